// Package metrics holds in-process counters surfaced on the health endpoint.
package metrics

import (
	"sync/atomic"
	"time"
)

type Counter struct {
	n atomic.Uint64
}

func (c *Counter) Inc()         { c.n.Add(1) }
func (c *Counter) Add(n uint64) { c.n.Add(n) }
func (c *Counter) Load() uint64 { return c.n.Load() }

// Timer measures one operation from StartTimer.
type Timer struct {
	start time.Time
}

func StartTimer() Timer {
	return Timer{start: time.Now()}
}

func (t Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Set is a fixed group of named counters. Names are registered up front so a
// snapshot always reports every counter, including zeros.
type Set struct {
	names    []string
	counters map[string]*Counter
}

func NewSet(names ...string) *Set {
	s := &Set{counters: make(map[string]*Counter, len(names))}
	for _, n := range names {
		if _, dup := s.counters[n]; dup {
			continue
		}
		s.names = append(s.names, n)
		s.counters[n] = &Counter{}
	}
	return s
}

// Get returns the counter registered under name, or nil.
func (s *Set) Get(name string) *Counter {
	return s.counters[name]
}

// Inc bumps name; unknown names are ignored.
func (s *Set) Inc(name string) {
	if c := s.counters[name]; c != nil {
		c.Inc()
	}
}

func (s *Set) Snapshot() map[string]uint64 {
	out := make(map[string]uint64, len(s.names))
	for _, n := range s.names {
		out[n] = s.counters[n].Load()
	}
	return out
}
