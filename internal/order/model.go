package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusPrinting       Status = "printing"
	StatusCompleted      Status = "completed"
	StatusDone           Status = "done"
	StatusCancelled      Status = "cancelled"
)

// Document describes the stored file an order prints.
type Document struct {
	Name        string
	Size        int64
	ContentType string
	StoragePath string
}

// PrintOptions determine the expected cost of an order.
type PrintOptions struct {
	Pages  int
	Copies int
	Color  bool
}

// Order is the aggregate tracking one uploaded document from submission to
// pickup. PickupCode is non-nil only while Status is completed.
type Order struct {
	ID          string
	UserID      string
	ShopID      string
	Document    Document
	Options     PrintOptions
	Amount      decimal.Decimal
	Currency    string
	Status      Status
	PickupCode  *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	PaidAt      *time.Time
	CompletedAt *time.Time
	CollectedAt *time.Time
	CancelledAt *time.Time
}

// Transition is one conditional write: it applies only while the stored status
// still equals From and, when PresentedCode is set, the stored pickup code
// equals it.
type Transition struct {
	From          Status
	To            Status
	PickupCode    string
	PresentedCode string
}
