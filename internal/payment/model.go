package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusCaptured Status = "captured"
	StatusFailed   Status = "failed"
)

const (
	ProviderRazorpay = "RAZORPAY"

	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
)

// Transaction is one gateway round-trip for an order.
type Transaction struct {
	TxnID      string
	OrderID    string
	Amount     decimal.Decimal
	Currency   string
	Hash       string
	Status     Status
	GatewayRef string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Payer struct {
	FirstName string
	Email     string
	Phone     string
}

// Field is one hidden input of the redirect form; order is preserved.
type Field struct {
	Name  string
	Value string
}

type RedirectForm struct {
	Action string
	Fields []Field
}

func (f *RedirectForm) Get(name string) string {
	for _, field := range f.Fields {
		if field.Name == name {
			return field.Value
		}
	}
	return ""
}

// HashFields are the values bound by the request digest. UDF holds the five
// merchant-defined slots; udf1 is the order id and udf2 the shop id.
type HashFields struct {
	TxnID       string
	Amount      string
	ProductInfo string
	FirstName   string
	Email       string
	UDF         [5]string
}

// ReturnFields are posted back by the gateway when the payer returns.
type ReturnFields struct {
	HashFields
	Key        string
	Status     string
	Hash       string
	GatewayRef string
}

// WebhookEvent is the captured-payment notification body.
type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type PaymentEntity struct {
	ID       string            `json:"id"`
	OrderID  string            `json:"order_id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Notes    map[string]string `json:"notes"`
}

// UploadID is the order reference the event belongs to.
func (e PaymentEntity) UploadID() string {
	if id := e.Notes["upload_id"]; id != "" {
		return id
	}
	return e.OrderID
}

// MajorAmount converts the minor-unit amount to currency units.
func (e PaymentEntity) MajorAmount() decimal.Decimal {
	return decimal.New(e.Amount, -2)
}
