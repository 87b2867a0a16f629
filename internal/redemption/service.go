// Package redemption verifies pickup codes and consumes them exactly once.
package redemption

import (
	"context"
	"crypto/subtle"
	"time"

	"printlink-be/internal/logger"
	"printlink-be/internal/notify"
	"printlink-be/internal/order"
	"printlink-be/internal/ratelimit"
	"printlink-be/internal/shop"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	attemptBurst    = 5
	attemptInterval = time.Minute
)

type Verifier struct {
	orders   order.Service
	shops    shop.Repository
	notifier notify.Notifier
	attempts *ratelimit.Keyed
}

func NewVerifier(orders order.Service, shops shop.Repository, notifier notify.Notifier, attempts *ratelimit.Keyed) *Verifier {
	return &Verifier{
		orders:   orders,
		shops:    shops,
		notifier: notifier,
		attempts: attempts,
	}
}

// Redeem checks code against the order and moves it completed -> done. Anyone
// holding both the order id and the code may redeem.
func (v *Verifier) Redeem(ctx context.Context, orderID, code string) (*order.Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Redeem"),
		zap.String("order_id", orderID),
	)

	if !v.attempts.Allow("redeem:"+orderID, rate.Every(attemptInterval), attemptBurst) {
		log.Warn("redemption throttled")
		return nil, ErrTooManyAttempts
	}

	current, err := v.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current.Status != order.StatusCompleted {
		log.Info("redemption rejected", zap.String("status", string(current.Status)))
		return nil, order.ErrNotReady
	}
	if !codeMatches(current.PickupCode, code) {
		log.Info("redemption rejected, code mismatch")
		return nil, order.ErrInvalidCode
	}

	// The pre-check above can be stale; Collect re-applies both guards in one write.
	done, err := v.orders.Collect(ctx, orderID, code)
	if err != nil {
		log.Info("redemption lost", zap.Error(err))
		return nil, err
	}

	log.Info("order redeemed")
	v.notifyCollected(ctx, done)
	return done, nil
}

func codeMatches(stored *string, presented string) bool {
	if stored == nil || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*stored), []byte(presented)) == 1
}

func (v *Verifier) notifyCollected(ctx context.Context, o *order.Order) {
	payload := notify.Payload{
		OrderID:    o.ID,
		CustomerID: o.UserID,
		FileName:   o.Document.Name,
	}

	sh, err := v.shops.GetByID(ctx, o.ShopID)
	if err != nil {
		logger.FromCtx(ctx).Warn("shop lookup failed, shop owner not notified",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	} else {
		payload.ShopName = sh.Name
	}

	v.notifier.Notify(ctx, notify.TemplateOrderCollectedCustomer, o.UserID, payload)
	if sh != nil {
		v.notifier.Notify(ctx, notify.TemplateOrderCollectedShop, sh.OwnerID, payload)
	}
}
