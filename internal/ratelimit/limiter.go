// Package ratelimit keeps one token bucket per key and forgets idle keys.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// visitor holds the rate limiter and the last time it was seen.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type Keyed struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	idle     time.Duration
	now      func() time.Time
}

// NewKeyed returns a limiter set whose entries are dropped after idle.
func NewKeyed(idle time.Duration) *Keyed {
	return &Keyed{
		visitors: make(map[string]*visitor),
		idle:     idle,
		now:      time.Now,
	}
}

// Allow reports whether one more event for key fits the (r, b) bucket. The
// bucket parameters are fixed by the first call for a key.
func (k *Keyed) Allow(key string, r rate.Limit, b int) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	v, exists := k.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(r, b)}
		k.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Sweep removes entries not seen for longer than the idle window.
func (k *Keyed) Sweep() {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	for key, v := range k.visitors {
		if now.Sub(v.lastSeen) > k.idle {
			delete(k.visitors, key)
		}
	}
}

// Run sweeps every interval until stop is closed.
func (k *Keyed) Run(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			k.Sweep()
		case <-stop:
			return
		}
	}
}

func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.visitors)
}
