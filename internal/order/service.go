package order

import (
	"context"
	"errors"

	"printlink-be/internal/logger"
	"printlink-be/internal/notify"
	"printlink-be/internal/shop"
	"printlink-be/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultCurrency  = "INR"
	pickupCodeDigits = 6
)

type Service interface {
	Create(ctx context.Context, in CreateInput) (*Order, error)
	Get(ctx context.Context, id string) (*Order, error)
	GetForCaller(ctx context.Context, id, callerID string) (*Order, error)
	ConfirmPayment(ctx context.Context, id string, paid decimal.Decimal, shopID string) (*Order, error)
	MarkReady(ctx context.Context, id, callerID string) (*Order, error)
	Collect(ctx context.Context, id, code string) (*Order, error)
	Cancel(ctx context.Context, id, callerID string) (*Order, error)
}

type CreateInput struct {
	ID       string
	UserID   string
	ShopID   string
	Document Document
	Options  PrintOptions
}

type service struct {
	repo     Repository
	shops    shop.Repository
	notifier notify.Notifier
	newCode  func() (string, error)
}

type Option func(*service)

// WithCodeGenerator replaces the random pickup code source.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(s *service) { s.newCode = gen }
}

func NewService(repo Repository, shops shop.Repository, notifier notify.Notifier, opts ...Option) Service {
	s := &service{
		repo:     repo,
		shops:    shops,
		notifier: notifier,
		newCode:  func() (string, error) { return utils.GeneratePickupCode(pickupCodeDigits) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Create(ctx context.Context, in CreateInput) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Create"),
		zap.String("shop_id", in.ShopID),
	)

	if in.UserID == "" {
		return nil, ErrUnauthorized
	}

	opts := in.Options
	if opts.Pages <= 0 {
		opts.Pages = 1
	}
	if opts.Copies <= 0 {
		opts.Copies = 1
	}

	sh, err := s.shops.GetByID(ctx, in.ShopID)
	if err != nil {
		log.Warn("shop lookup failed", zap.Error(err))
		return nil, err
	}

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}

	o := &Order{
		ID:       id,
		UserID:   in.UserID,
		ShopID:   sh.ID,
		Document: in.Document,
		Options:  opts,
		Amount:   sh.Quote(opts.Pages, opts.Copies, opts.Color),
		Currency: DefaultCurrency,
		Status:   StatusPendingPayment,
	}

	if err := s.repo.Create(ctx, o); err != nil {
		log.Error("failed to create order", zap.Error(err))
		return nil, err
	}

	log.Info("order created",
		zap.String("order_id", o.ID),
		zap.String("amount", o.Amount.StringFixed(2)),
	)

	payload := notify.Payload{
		OrderID:    o.ID,
		CustomerID: o.UserID,
		ShopName:   sh.Name,
		FileName:   o.Document.Name,
		Amount:     o.Amount.StringFixed(2),
	}
	s.notifier.Notify(ctx, notify.TemplateUploadReceived, o.UserID, payload)
	s.notifier.Notify(ctx, notify.TemplateNewOrder, sh.OwnerID, payload)

	return o, nil
}

func (s *service) Get(ctx context.Context, id string) (*Order, error) {
	return s.repo.GetByID(ctx, id)
}

// GetForCaller hides orders from anyone but their customer and shop owner.
func (s *service) GetForCaller(ctx context.Context, id, callerID string) (*Order, error) {
	if callerID == "" {
		return nil, ErrUnauthorized
	}

	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID == callerID {
		return o, nil
	}

	sh, err := s.shops.GetByID(ctx, o.ShopID)
	if err != nil {
		return nil, err
	}
	if sh.OwnerID != callerID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

// ConfirmPayment moves pending_payment -> printing when the captured amount
// equals the order cost. Replays observe ErrInvalidState.
func (s *service) ConfirmPayment(ctx context.Context, id string, paid decimal.Decimal, shopID string) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("method", "ConfirmPayment"),
		zap.String("order_id", id),
		zap.String("paid", paid.String()),
	)

	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if o.Status != StatusPendingPayment {
		log.Info("payment confirmation ignored", zap.String("status", string(o.Status)))
		return nil, ErrInvalidState
	}
	if shopID != "" && shopID != o.ShopID {
		log.Warn("payment shop mismatch", zap.String("shop_id", shopID))
		return nil, ErrShopMismatch
	}
	if !paid.Equal(o.Amount) {
		log.Warn("payment amount mismatch", zap.String("expected", o.Amount.String()))
		return nil, ErrAmountMismatch
	}

	updated, ok, err := s.repo.UpdateWhere(ctx, id, Transition{From: StatusPendingPayment, To: StatusPrinting})
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Info("lost payment confirmation race")
		return nil, ErrInvalidState
	}

	log.Info("order paid", zap.String("from", string(StatusPendingPayment)), zap.String("to", string(StatusPrinting)))

	if sh, err := s.shops.GetByID(ctx, updated.ShopID); err != nil {
		log.Warn("skip payment notification, shop lookup failed", zap.Error(err))
	} else {
		s.notifier.Notify(ctx, notify.TemplatePaymentConfirmed, sh.OwnerID, notify.Payload{
			OrderID:    updated.ID,
			CustomerID: updated.UserID,
			ShopName:   sh.Name,
			FileName:   updated.Document.Name,
			Amount:     updated.Amount.StringFixed(2),
		})
	}

	return updated, nil
}

// MarkReady is the shop owner's printing -> completed move; it mints the
// pickup code handed to the customer.
func (s *service) MarkReady(ctx context.Context, id, callerID string) (*Order, error) {
	log := logger.FromCtx(ctx).With(zap.String("method", "MarkReady"), zap.String("order_id", id))

	if callerID == "" {
		return nil, ErrUnauthorized
	}

	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	sh, err := s.shops.GetByID(ctx, o.ShopID)
	if err != nil {
		return nil, err
	}
	if sh.OwnerID != callerID {
		log.Warn("non-owner tried to complete order", zap.String("caller_id", callerID))
		return nil, ErrNotShopOwner
	}
	if o.Status != StatusPrinting {
		return nil, ErrInvalidState
	}

	code, err := s.newCode()
	if err != nil {
		log.Error("failed to mint pickup code", zap.Error(err))
		return nil, err
	}

	updated, ok, err := s.repo.UpdateWhere(ctx, id, Transition{From: StatusPrinting, To: StatusCompleted, PickupCode: code})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidState
	}

	log.Info("order ready for pickup", zap.String("from", string(StatusPrinting)), zap.String("to", string(StatusCompleted)))

	s.notifier.Notify(ctx, notify.TemplateOrderReady, updated.UserID, notify.Payload{
		OrderID:    updated.ID,
		CustomerID: updated.UserID,
		ShopName:   sh.Name,
		FileName:   updated.Document.Name,
		PickupCode: code,
	})

	return updated, nil
}

// Collect consumes the pickup code with one conditional write. When the write
// loses, the stored row decides which error the caller sees.
func (s *service) Collect(ctx context.Context, id, code string) (*Order, error) {
	if code == "" {
		return nil, ErrInvalidCode
	}

	updated, ok, err := s.repo.UpdateWhere(ctx, id, Transition{From: StatusCompleted, To: StatusDone, PresentedCode: code})
	if err != nil {
		return nil, err
	}
	if ok {
		logger.FromCtx(ctx).Info("order collected",
			zap.String("order_id", id),
			zap.String("from", string(StatusCompleted)),
			zap.String("to", string(StatusDone)),
		)
		return updated, nil
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusCompleted {
		return nil, ErrNotReady
	}
	return nil, ErrInvalidCode
}

func (s *service) Cancel(ctx context.Context, id, callerID string) (*Order, error) {
	log := logger.FromCtx(ctx).With(zap.String("method", "Cancel"), zap.String("order_id", id))

	if callerID == "" {
		return nil, ErrUnauthorized
	}

	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	sh, err := s.shops.GetByID(ctx, o.ShopID)
	if err != nil {
		return nil, err
	}

	isOwner := sh.OwnerID == callerID
	isCustomer := o.UserID == callerID
	switch {
	case !isOwner && !isCustomer:
		return nil, ErrOrderNotFound
	case o.Status == StatusPrinting && !isOwner:
		return nil, ErrNotShopOwner
	case !CanTransition(o.Status, StatusCancelled):
		return nil, ErrInvalidState
	}

	updated, ok, err := s.repo.UpdateWhere(ctx, id, Transition{From: o.Status, To: StatusCancelled})
	if errors.Is(err, ErrIllegalMove) {
		return nil, ErrInvalidState
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidState
	}

	log.Info("order cancelled", zap.String("from", string(o.Status)), zap.String("to", string(StatusCancelled)))
	return updated, nil
}
