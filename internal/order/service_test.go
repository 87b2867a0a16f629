package order

import (
	"context"
	"errors"
	"sync"
	"testing"

	"printlink-be/internal/apperr"
	"printlink-be/internal/notify"
	"printlink-be/internal/shop"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type MockShopRepository struct {
	mock.Mock
}

func (m *MockShopRepository) GetByID(ctx context.Context, id string) (*shop.Shop, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shop.Shop), args.Error(1)
}

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, o *Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id string) (*Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockRepository) UpdateWhere(ctx context.Context, id string, t Transition) (*Order, bool, error) {
	args := m.Called(ctx, id, t)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*Order), args.Bool(1), args.Error(2)
}

type sent struct {
	tmpl        notify.Template
	recipientID string
	payload     notify.Payload
}

// recordingNotifier captures notifications synchronously.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sent
}

func (r *recordingNotifier) Notify(ctx context.Context, tmpl notify.Template, recipientID string, p notify.Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{tmpl: tmpl, recipientID: recipientID, payload: p})
}

func (r *recordingNotifier) templates() []notify.Template {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Template, 0, len(r.sent))
	for _, s := range r.sent {
		out = append(out, s.tmpl)
	}
	return out
}

// --- Helpers ---

var testShop = &shop.Shop{
	ID:         "S1",
	Name:       "Campus Prints",
	PriceBW:    decimal.RequireFromString("2.00"),
	PriceColor: decimal.RequireFromString("10.00"),
	OwnerID:    "owner-1",
}

func fixedCode(code string) Option {
	return WithCodeGenerator(func() (string, error) { return code, nil })
}

func newTestService(t *testing.T, opts ...Option) (Service, *MemoryRepository, *recordingNotifier) {
	t.Helper()
	shops := new(MockShopRepository)
	shops.On("GetByID", mock.Anything, "S1").Return(testShop, nil)
	shops.On("GetByID", mock.Anything, mock.Anything).Return(nil, shop.ErrShopNotFound)

	repo := NewMemoryRepository()
	n := &recordingNotifier{}
	return NewService(repo, shops, n, opts...), repo, n
}

func createOrder(t *testing.T, svc Service) *Order {
	t.Helper()
	o, err := svc.Create(context.Background(), CreateInput{
		ID:       "O1",
		UserID:   "user-1",
		ShopID:   "S1",
		Document: Document{Name: "report.pdf", Size: 2048, ContentType: "application/pdf"},
		Options:  PrintOptions{Pages: 10, Copies: 2},
	})
	require.NoError(t, err)
	return o
}

// --- Tests ---

func TestService_Create(t *testing.T) {
	t.Run("Prices and notifies", func(t *testing.T) {
		svc, _, n := newTestService(t)

		o := createOrder(t, svc)
		assert.Equal(t, StatusPendingPayment, o.Status)
		assert.True(t, decimal.RequireFromString("40").Equal(o.Amount))
		assert.Equal(t, DefaultCurrency, o.Currency)
		assert.Nil(t, o.PickupCode)
		assert.Equal(t, []notify.Template{notify.TemplateUploadReceived, notify.TemplateNewOrder}, n.templates())
		assert.Equal(t, "owner-1", n.sent[1].recipientID)
	})

	t.Run("Defaults options and generates id", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		o, err := svc.Create(context.Background(), CreateInput{UserID: "user-1", ShopID: "S1", Options: PrintOptions{Color: true}})
		require.NoError(t, err)
		assert.NotEmpty(t, o.ID)
		assert.Equal(t, 1, o.Options.Pages)
		assert.Equal(t, 1, o.Options.Copies)
		assert.True(t, decimal.RequireFromString("10").Equal(o.Amount))
	})

	t.Run("Unknown shop", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.Create(context.Background(), CreateInput{UserID: "user-1", ShopID: "nope"})
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("Anonymous", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.Create(context.Background(), CreateInput{ShopID: "S1"})
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	})
}

func TestService_GetForCaller(t *testing.T) {
	svc, _, _ := newTestService(t)
	createOrder(t, svc)
	ctx := context.Background()

	_, err := svc.GetForCaller(ctx, "O1", "user-1")
	assert.NoError(t, err)

	_, err = svc.GetForCaller(ctx, "O1", "owner-1")
	assert.NoError(t, err)

	_, err = svc.GetForCaller(ctx, "O1", "stranger")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.GetForCaller(ctx, "O1", "")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestService_ConfirmPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		svc, _, n := newTestService(t)
		createOrder(t, svc)

		o, err := svc.ConfirmPayment(ctx, "O1", decimal.RequireFromString("40.00"), "S1")
		require.NoError(t, err)
		assert.Equal(t, StatusPrinting, o.Status)
		assert.NotNil(t, o.PaidAt)
		assert.Contains(t, n.templates(), notify.TemplatePaymentConfirmed)
	})

	t.Run("Replay is rejected without a second transition", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		createOrder(t, svc)

		_, err := svc.ConfirmPayment(ctx, "O1", decimal.RequireFromString("40"), "")
		require.NoError(t, err)
		first, _ := repo.GetByID(ctx, "O1")

		_, err = svc.ConfirmPayment(ctx, "O1", decimal.RequireFromString("40"), "")
		assert.ErrorIs(t, err, apperr.ErrInvalidState)

		second, _ := repo.GetByID(ctx, "O1")
		assert.Equal(t, first.PaidAt, second.PaidAt)
	})

	t.Run("Amount mismatch leaves order untouched", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		createOrder(t, svc)

		_, err := svc.ConfirmPayment(ctx, "O1", decimal.RequireFromString("39.99"), "")
		assert.ErrorIs(t, err, ErrAmountMismatch)

		o, _ := repo.GetByID(ctx, "O1")
		assert.Equal(t, StatusPendingPayment, o.Status)
	})

	t.Run("Shop mismatch", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		createOrder(t, svc)

		_, err := svc.ConfirmPayment(ctx, "O1", decimal.RequireFromString("40"), "S2")
		assert.ErrorIs(t, err, ErrShopMismatch)
	})

	t.Run("Lost race", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo, new(MockShopRepository), &recordingNotifier{})

		repo.On("GetByID", mock.Anything, "O1").
			Return(&Order{ID: "O1", ShopID: "S1", Status: StatusPendingPayment, Amount: decimal.NewFromInt(40)}, nil)
		repo.On("UpdateWhere", mock.Anything, "O1", Transition{From: StatusPendingPayment, To: StatusPrinting}).
			Return(nil, false, nil)

		_, err := svc.ConfirmPayment(ctx, "O1", decimal.NewFromInt(40), "")
		assert.ErrorIs(t, err, apperr.ErrInvalidState)
		repo.AssertExpectations(t)
	})
}

func TestService_MarkReady(t *testing.T) {
	ctx := context.Background()

	t.Run("Shop owner mints code", func(t *testing.T) {
		svc, _, n := newTestService(t, fixedCode("483920"))
		createOrder(t, svc)
		_, err := svc.ConfirmPayment(ctx, "O1", decimal.NewFromInt(40), "")
		require.NoError(t, err)

		o, err := svc.MarkReady(ctx, "O1", "owner-1")
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, o.Status)
		require.NotNil(t, o.PickupCode)
		assert.Equal(t, "483920", *o.PickupCode)

		last := n.sent[len(n.sent)-1]
		assert.Equal(t, notify.TemplateOrderReady, last.tmpl)
		assert.Equal(t, "user-1", last.recipientID)
		assert.Equal(t, "483920", last.payload.PickupCode)
	})

	t.Run("Customer cannot complete", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		createOrder(t, svc)
		_, _ = svc.ConfirmPayment(ctx, "O1", decimal.NewFromInt(40), "")

		_, err := svc.MarkReady(ctx, "O1", "user-1")
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	})

	t.Run("Not yet paid", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		createOrder(t, svc)

		_, err := svc.MarkReady(ctx, "O1", "owner-1")
		assert.ErrorIs(t, err, apperr.ErrInvalidState)
	})

	t.Run("Code generator failure", func(t *testing.T) {
		svc, repo, _ := newTestService(t, WithCodeGenerator(func() (string, error) {
			return "", errors.New("entropy exhausted")
		}))
		createOrder(t, svc)
		_, _ = svc.ConfirmPayment(ctx, "O1", decimal.NewFromInt(40), "")

		_, err := svc.MarkReady(ctx, "O1", "owner-1")
		assert.Error(t, err)
		o, _ := repo.GetByID(ctx, "O1")
		assert.Equal(t, StatusPrinting, o.Status)
	})
}

func readyOrder(t *testing.T, code string) (Service, *MemoryRepository) {
	t.Helper()
	svc, repo, _ := newTestService(t, fixedCode(code))
	createOrder(t, svc)
	_, err := svc.ConfirmPayment(context.Background(), "O1", decimal.NewFromInt(40), "")
	require.NoError(t, err)
	_, err = svc.MarkReady(context.Background(), "O1", "owner-1")
	require.NoError(t, err)
	return svc, repo
}

func TestService_Collect(t *testing.T) {
	ctx := context.Background()

	t.Run("Wrong code keeps order completed", func(t *testing.T) {
		svc, repo := readyOrder(t, "483920")

		_, err := svc.Collect(ctx, "O1", "483910")
		assert.ErrorIs(t, err, apperr.ErrInvalidCode)

		o, _ := repo.GetByID(ctx, "O1")
		assert.Equal(t, StatusCompleted, o.Status)
		assert.Equal(t, "483920", *o.PickupCode)
	})

	t.Run("Right code consumes it", func(t *testing.T) {
		svc, _ := readyOrder(t, "483920")

		o, err := svc.Collect(ctx, "O1", "483920")
		require.NoError(t, err)
		assert.Equal(t, StatusDone, o.Status)
		assert.Nil(t, o.PickupCode)
		assert.NotNil(t, o.CollectedAt)

		_, err = svc.Collect(ctx, "O1", "483920")
		assert.ErrorIs(t, err, apperr.ErrInvalidState)
	})

	t.Run("Not ready", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		createOrder(t, svc)

		_, err := svc.Collect(ctx, "O1", "483920")
		assert.ErrorIs(t, err, ErrNotReady)
	})

	t.Run("Unknown order", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.Collect(ctx, "nope", "483920")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("Empty code", func(t *testing.T) {
		svc, _ := readyOrder(t, "483920")
		_, err := svc.Collect(ctx, "O1", "")
		assert.ErrorIs(t, err, apperr.ErrInvalidCode)
	})
}

func TestService_Collect_ConcurrentSingleWinner(t *testing.T) {
	svc, _ := readyOrder(t, "483920")

	const attempts = 32
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		wins  int
		other []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Collect(context.Background(), "O1", "483920")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return
			}
			other = append(other, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	for _, err := range other {
		assert.ErrorIs(t, err, apperr.ErrInvalidState)
	}
}

func TestService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("Customer cancels unpaid order", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		createOrder(t, svc)

		o, err := svc.Cancel(ctx, "O1", "user-1")
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, o.Status)
		assert.NotNil(t, o.CancelledAt)
	})

	t.Run("Customer cannot cancel a paid order", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		createOrder(t, svc)
		_, _ = svc.ConfirmPayment(ctx, "O1", decimal.NewFromInt(40), "")

		_, err := svc.Cancel(ctx, "O1", "user-1")
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)

		o, err := svc.Cancel(ctx, "O1", "owner-1")
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, o.Status)
	})

	t.Run("Completed orders cannot be cancelled", func(t *testing.T) {
		svc, _ := readyOrder(t, "483920")
		_, err := svc.Cancel(ctx, "O1", "owner-1")
		assert.ErrorIs(t, err, apperr.ErrInvalidState)
	})

	t.Run("Strangers see nothing", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		createOrder(t, svc)
		_, err := svc.Cancel(ctx, "O1", "stranger")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}
