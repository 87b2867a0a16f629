// Package payment drives the gateway round-trip: it signs outbound payment
// requests and authenticates inbound confirmations before touching an order.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"printlink-be/internal/apperr"
	"printlink-be/internal/logger"
	"printlink-be/internal/order"
	"printlink-be/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type InitiateInput struct {
	OrderID     string
	CallerID    string
	TxnID       string
	Amount      string
	ProductInfo string
	Payer       Payer
}

type ReturnResult struct {
	OrderID  string
	Captured bool
}

type WebhookResult struct {
	EventID   string
	Duplicate bool
	Ignored   bool
	Failed    bool
	Order     *order.Order
}

type Service interface {
	Initiate(ctx context.Context, in InitiateInput) (*RedirectForm, error)
	HandleReturn(ctx context.Context, rf ReturnFields) (*ReturnResult, error)
	HandleWebhook(ctx context.Context, body []byte, signature, eventID string) (*WebhookResult, error)
}

type service struct {
	gateway *Gateway
	repo    Repository
	orders  order.Service
	newTxn  func() string
}

func NewService(gateway *Gateway, repo Repository, orders order.Service) Service {
	return &service{
		gateway: gateway,
		repo:    repo,
		orders:  orders,
		newTxn:  utils.GenerateTxnID,
	}
}

func (s *service) Initiate(ctx context.Context, in InitiateInput) (*RedirectForm, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Initiate"),
		zap.String("order_id", in.OrderID),
	)

	if err := s.gateway.ready(); err != nil {
		log.Error("payment gateway misconfigured", zap.Error(err))
		return nil, err
	}
	if in.Payer.FirstName == "" || in.Payer.Email == "" {
		return nil, ErrMissingPayer
	}

	o, err := s.orders.GetForCaller(ctx, in.OrderID, in.CallerID)
	if err != nil {
		return nil, err
	}
	if o.Status != order.StatusPendingPayment {
		return nil, order.ErrInvalidState
	}

	if in.Amount != "" {
		claimed, err := decimal.NewFromString(in.Amount)
		if err != nil {
			return nil, apperr.Validation("amount must be a number")
		}
		if !claimed.Equal(o.Amount) {
			log.Warn("client amount differs from order total",
				zap.String("claimed", in.Amount),
				zap.String("expected", o.Amount.StringFixed(2)),
			)
			return nil, ErrAmountMismatch
		}
	}

	txnID := in.TxnID
	if txnID == "" {
		txnID = s.newTxn()
	}
	productInfo := in.ProductInfo
	if productInfo == "" {
		productInfo = o.Document.Name
	}

	fields := HashFields{
		TxnID:       txnID,
		Amount:      o.Amount.StringFixed(2),
		ProductInfo: productInfo,
		FirstName:   in.Payer.FirstName,
		Email:       in.Payer.Email,
		UDF:         [5]string{o.ID, o.ShopID},
	}

	form, err := s.gateway.BuildForm(fields, in.Payer)
	if err != nil {
		return nil, err
	}

	err = s.repo.SaveTransaction(ctx, &Transaction{
		TxnID:    txnID,
		OrderID:  o.ID,
		Amount:   o.Amount,
		Currency: o.Currency,
		Hash:     form.Get("hash"),
		Status:   StatusPending,
	})
	if err != nil {
		return nil, err
	}

	log.Info("payment initiated", zap.String("txn_id", txnID), zap.String("amount", fields.Amount))
	return form, nil
}

// HandleReturn trusts nothing posted by the payer's browser until the reverse
// digest checks out.
func (s *service) HandleReturn(ctx context.Context, rf ReturnFields) (*ReturnResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("method", "HandleReturn"),
		zap.String("txn_id", rf.TxnID),
	)

	if err := s.gateway.VerifyReturn(rf); err != nil {
		log.Warn("payment return rejected", zap.Error(err))
		return nil, err
	}

	orderID, shopID := rf.UDF[0], rf.UDF[1]
	log = log.With(zap.String("order_id", orderID), zap.String("gateway_status", rf.Status))

	txn, err := s.repo.GetByTxnID(ctx, rf.TxnID)
	switch {
	case errors.Is(err, ErrPaymentNotFound), err == nil && txn.OrderID != orderID:
		log.Warn("return names a transaction not issued for this order")
		return nil, ErrUnknownTxn
	case err != nil:
		return nil, err
	}

	if rf.Status != "success" {
		if err := s.repo.UpdateStatus(ctx, rf.TxnID, StatusFailed, rf.GatewayRef); err != nil {
			log.Warn("failed to record failed payment", zap.Error(err))
		}
		log.Info("payment not successful")
		return &ReturnResult{OrderID: orderID}, nil
	}

	paid, err := decimal.NewFromString(rf.Amount)
	if err != nil {
		return nil, apperr.Validation("amount must be a number")
	}

	if _, err := s.orders.ConfirmPayment(ctx, orderID, paid, shopID); err != nil {
		if !errors.Is(err, apperr.ErrInvalidState) || !s.alreadyPaid(ctx, orderID) {
			return nil, err
		}
		log.Info("payment already confirmed")
	}

	if err := s.repo.UpdateStatus(ctx, rf.TxnID, StatusCaptured, rf.GatewayRef); err != nil {
		log.Warn("failed to record captured payment", zap.Error(err))
	}
	return &ReturnResult{OrderID: orderID, Captured: true}, nil
}

func (s *service) HandleWebhook(ctx context.Context, body []byte, signature, eventID string) (*WebhookResult, error) {
	log := logger.FromCtx(ctx).With(zap.String("method", "HandleWebhook"))

	if err := s.gateway.VerifyWebhook(body, signature); err != nil {
		log.Warn("webhook rejected", zap.Error(err))
		return nil, err
	}

	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		log.Warn("webhook body unreadable", zap.Error(err))
		return nil, ErrInvalidSignature
	}

	entity := ev.Payload.Payment.Entity
	orderID := entity.UploadID()
	if eventID == "" {
		eventID = fallbackEventID(ev.Event, entity.ID)
	}
	log = log.With(
		zap.String("event_id", eventID),
		zap.String("event", ev.Event),
		zap.String("order_id", orderID),
	)

	webhookID, dup, err := s.repo.SavePaymentWebhook(ctx, ProviderRazorpay, eventID, ev.Event, orderID, body, true)
	if err != nil {
		log.Error("failed to record webhook", zap.Error(err))
		return nil, err
	}
	if dup {
		log.Info("duplicate webhook acknowledged")
		return &WebhookResult{EventID: eventID, Duplicate: true}, nil
	}

	switch ev.Event {
	case EventPaymentCaptured:
	case EventPaymentFailed:
		if err := s.repo.SettleOrder(ctx, orderID, StatusFailed, entity.ID); err != nil {
			s.markFailed(ctx, webhookID, err)
			return nil, err
		}
		s.markProcessed(ctx, webhookID)
		log.Info("payment failed at gateway")
		return &WebhookResult{EventID: eventID, Failed: true}, nil
	default:
		s.markProcessed(ctx, webhookID)
		return &WebhookResult{EventID: eventID, Ignored: true}, nil
	}

	o, err := s.capture(ctx, orderID, entity)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidState) && s.alreadyPaid(ctx, orderID) {
			s.markProcessed(ctx, webhookID)
			return &WebhookResult{EventID: eventID, Duplicate: true}, nil
		}
		s.markFailed(ctx, webhookID, err)
		return nil, err
	}

	if err := s.repo.SettleOrder(ctx, orderID, StatusCaptured, entity.ID); err != nil {
		log.Warn("failed to record captured payment", zap.Error(err))
	}
	s.markProcessed(ctx, webhookID)

	log.Info("payment captured")
	return &WebhookResult{EventID: eventID, Order: o}, nil
}

// capture confirms the order against the amount and currency the gateway
// reports.
func (s *service) capture(ctx context.Context, orderID string, entity PaymentEntity) (*order.Order, error) {
	current, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(entity.Currency, current.Currency) {
		logger.FromCtx(ctx).Warn("webhook currency differs from order",
			zap.String("order_id", orderID),
			zap.String("currency", entity.Currency),
			zap.String("expected", current.Currency),
		)
		return nil, ErrCurrencyMismatch
	}
	return s.orders.ConfirmPayment(ctx, orderID, entity.MajorAmount(), "")
}

// markFailed leaves the event open so a redelivery runs it again.
func (s *service) markFailed(ctx context.Context, webhookID int64, cause error) {
	log := logger.FromCtx(ctx).With(zap.Int64("webhook_id", webhookID))
	if err := s.repo.MarkWebhookFailed(ctx, webhookID, cause.Error()); err != nil {
		log.Error("failed to mark webhook failed", zap.Error(err))
	}
	log.Warn("webhook could not be applied", zap.Error(cause))
}

func (s *service) markProcessed(ctx context.Context, webhookID int64) {
	if err := s.repo.MarkWebhookProcessed(ctx, webhookID); err != nil {
		logger.FromCtx(ctx).Error("failed to mark webhook processed", zap.Int64("webhook_id", webhookID), zap.Error(err))
	}
}

// alreadyPaid reports whether a rejected confirmation is a replay of one that
// already moved the order forward.
func (s *service) alreadyPaid(ctx context.Context, orderID string) bool {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return false
	}
	switch o.Status {
	case order.StatusPrinting, order.StatusCompleted, order.StatusDone:
		return true
	}
	return false
}

func fallbackEventID(event, paymentID string) string {
	if paymentID == "" {
		return uuid.NewString()
	}
	return event + ":" + paymentID
}
