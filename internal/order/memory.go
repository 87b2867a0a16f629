package order

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is an in-process Repository with the same compare-and-set
// semantics as the SQL implementation. Used by tests and local tooling.
type MemoryRepository struct {
	mu     sync.Mutex
	orders map[string]Order
	now    func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{orders: make(map[string]Order), now: time.Now}
}

func (m *MemoryRepository) Create(ctx context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.orders[o.ID]; exists {
		return ErrDuplicateOrderID
	}
	now := m.now()
	o.CreatedAt, o.UpdatedAt = now, now
	m.orders[o.ID] = copyOrder(*o)
	return nil
}

func (m *MemoryRepository) GetByID(ctx context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	c := copyOrder(o)
	return &c, nil
}

func (m *MemoryRepository) UpdateWhere(ctx context.Context, id string, t Transition) (*Order, bool, error) {
	if !CanTransition(t.From, t.To) {
		return nil, false, ErrIllegalMove
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok || o.Status != t.From {
		return nil, false, nil
	}
	if t.PresentedCode != "" && (o.PickupCode == nil || *o.PickupCode != t.PresentedCode) {
		return nil, false, nil
	}

	now := m.now()
	o.Status = t.To
	o.UpdatedAt = now
	o.PickupCode = nil
	if t.PickupCode != "" {
		code := t.PickupCode
		o.PickupCode = &code
	}
	switch t.To {
	case StatusPrinting:
		o.PaidAt = &now
	case StatusCompleted:
		o.CompletedAt = &now
	case StatusDone:
		o.CollectedAt = &now
	case StatusCancelled:
		o.CancelledAt = &now
	}

	m.orders[id] = o
	c := copyOrder(o)
	return &c, true, nil
}

func copyOrder(o Order) Order {
	if o.PickupCode != nil {
		code := *o.PickupCode
		o.PickupCode = &code
	}
	return o
}
