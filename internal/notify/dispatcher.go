// Package notify delivers best-effort emails about order state changes. A
// failure here is logged and counted, never returned to the caller that
// triggered the transition.
package notify

import (
	"context"
	"sync"

	"printlink-be/internal/logger"
	"printlink-be/internal/metrics"
	"printlink-be/internal/user"

	"go.uber.org/zap"
)

// Notifier is what the order workflow depends on.
type Notifier interface {
	Notify(ctx context.Context, tmpl Template, recipientID string, p Payload)
}

type Directory interface {
	FindByID(ctx context.Context, id string) (*user.User, error)
}

const (
	MetricQueued  = "notifications_queued"
	MetricSent    = "notifications_sent"
	MetricFailed  = "notifications_failed"
	MetricDropped = "notifications_dropped"
)

type job struct {
	ctx         context.Context
	tmpl        Template
	recipientID string
	payload     Payload
}

type Dispatcher struct {
	directory Directory
	mailer    Mailer
	queue     chan job
	stats     *metrics.Set
	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

func NewDispatcher(directory Directory, mailer Mailer, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Dispatcher{
		directory: directory,
		mailer:    mailer,
		queue:     make(chan job, queueSize),
		stats:     metrics.NewSet(MetricQueued, MetricSent, MetricFailed, MetricDropped),
	}
}

// Start launches n workers draining the queue.
func (d *Dispatcher) Start(n int) {
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for j := range d.queue {
				d.deliver(j)
			}
		}()
	}
}

// Notify enqueues a message without blocking. A full queue drops the message.
func (d *Dispatcher) Notify(ctx context.Context, tmpl Template, recipientID string, p Payload) {
	log := logger.FromCtx(ctx).With(
		zap.String("template", string(tmpl)),
		zap.String("recipient_id", recipientID),
		zap.String("order_id", p.OrderID),
	)

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.stats.Inc(MetricDropped)
		log.Warn("notification dropped, dispatcher stopped")
		return
	}

	j := job{ctx: context.WithoutCancel(ctx), tmpl: tmpl, recipientID: recipientID, payload: p}
	select {
	case d.queue <- j:
		d.stats.Inc(MetricQueued)
	default:
		d.stats.Inc(MetricDropped)
		log.Warn("notification dropped, queue full")
	}
}

func (d *Dispatcher) deliver(j job) {
	timer := metrics.StartTimer()
	log := logger.FromCtx(j.ctx).With(
		zap.String("template", string(j.tmpl)),
		zap.String("recipient_id", j.recipientID),
		zap.String("order_id", j.payload.OrderID),
	)

	recipient, err := d.directory.FindByID(j.ctx, j.recipientID)
	if err != nil {
		d.stats.Inc(MetricFailed)
		log.Error("notification recipient lookup failed", zap.Error(err))
		return
	}

	if j.payload.CustomerName == "" {
		j.payload.CustomerName = d.customerName(j.ctx, j.payload.CustomerID)
	}

	subject, body, err := Render(j.tmpl, recipient.DisplayName(defaultName(j.tmpl)), j.payload)
	if err != nil {
		d.stats.Inc(MetricFailed)
		log.Error("notification render failed", zap.Error(err))
		return
	}

	if err := d.mailer.Send(j.ctx, recipient.Email, subject, body); err != nil {
		d.stats.Inc(MetricFailed)
		log.Error("notification send failed", zap.Error(err))
		return
	}

	d.stats.Inc(MetricSent)
	log.Info("notification sent", zap.Duration("duration", timer.Duration()))
}

func (d *Dispatcher) customerName(ctx context.Context, id string) string {
	if id == "" {
		return "Customer"
	}
	u, err := d.directory.FindByID(ctx, id)
	if err != nil {
		return "Customer"
	}
	return u.DisplayName("Customer")
}

func defaultName(tmpl Template) string {
	switch tmpl {
	case TemplateNewOrder, TemplatePaymentConfirmed, TemplateOrderCollectedShop:
		return "Shop Owner"
	default:
		return "Customer"
	}
}

// Stop refuses new messages and waits for queued ones or ctx, whichever ends first.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) Stats() map[string]uint64 {
	return d.stats.Snapshot()
}
