// Package access mints short-lived download links for an order's document.
package access

import (
	"context"
	"errors"
	"time"

	"printlink-be/internal/apperr"
	"printlink-be/internal/auth"
	"printlink-be/internal/logger"
	"printlink-be/internal/order"
	"printlink-be/internal/storage"

	"go.uber.org/zap"
)

const DefaultTTL = time.Hour

// Grant is a derived capability for one stored object. It is never persisted.
type Grant struct {
	URL       string `json:"url"`
	FileName  string `json:"fileName"`
	ExpiresIn int    `json:"expiresIn"`
}

type Service struct {
	orders order.Service
	store  storage.Store
	ttl    time.Duration
}

func NewService(orders order.Service, store storage.Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{orders: orders, store: store, ttl: ttl}
}

// GrantAccess returns a signed link to the order's document. Only the customer
// and the shop owner can see the order; anyone else gets not found.
func (s *Service) GrantAccess(ctx context.Context, orderID string, requester *auth.User) (*Grant, error) {
	if requester == nil || requester.ID == "" {
		return nil, ErrUnauthorized
	}

	log := logger.FromCtx(ctx).With(
		zap.String("method", "GrantAccess"),
		zap.String("order_id", orderID),
	)

	o, err := s.orders.GetForCaller(ctx, orderID, requester.ID)
	if err != nil {
		return nil, err
	}

	url, err := s.store.SignedURL(ctx, o.Document.StoragePath, s.ttl)
	if err != nil {
		if errors.Is(err, apperr.ErrMisconfigured) {
			return nil, err
		}
		log.Error("failed to sign download url", zap.Error(err))
		return nil, ErrStorageUnavailable
	}

	log.Info("download link issued", zap.Duration("ttl", s.ttl))
	return &Grant{
		URL:       url,
		FileName:  o.Document.Name,
		ExpiresIn: int(s.ttl / time.Second),
	}, nil
}
