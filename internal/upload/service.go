// Package upload accepts a customer's document, stores it and opens the order.
package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"printlink-be/internal/apperr"
	"printlink-be/internal/auth"
	"printlink-be/internal/logger"
	"printlink-be/internal/order"
	"printlink-be/internal/storage"
	"printlink-be/internal/utils"

	"go.uber.org/zap"
)

type Input struct {
	FileName    string
	ContentType string
	Data        []byte
	ShopID      string
	Options     order.PrintOptions
}

type Service struct {
	store  storage.Store
	orders order.Service
	now    func() time.Time
}

func NewService(store storage.Store, orders order.Service) *Service {
	return &Service{store: store, orders: orders, now: time.Now}
}

// StoragePath is <userId>/<unixMillis>-<sanitised name>.
func StoragePath(userID string, at time.Time, fileName string) string {
	return fmt.Sprintf("%s/%d-%s", userID, at.UnixMilli(), utils.SanitizeFileName(fileName))
}

func (s *Service) Submit(ctx context.Context, caller *auth.User, in Input) (*order.Order, error) {
	if caller == nil || caller.ID == "" {
		return nil, order.ErrUnauthorized
	}
	if in.ShopID == "" {
		return nil, ErrNoShop
	}
	if err := Validate(in.ContentType, in.Data); err != nil {
		return nil, err
	}

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Submit"),
		zap.String("shop_id", in.ShopID),
		zap.Int("file_size", len(in.Data)),
	)

	path := StoragePath(caller.ID, s.now(), in.FileName)
	if err := s.store.Put(ctx, path, in.Data, in.ContentType); err != nil {
		log.Error("failed to store upload", zap.String("path", path), zap.Error(err))
		if errors.Is(err, apperr.ErrMisconfigured) {
			return nil, err
		}
		return nil, ErrUploadFailed
	}

	o, err := s.orders.Create(ctx, order.CreateInput{
		UserID: caller.ID,
		ShopID: in.ShopID,
		Document: order.Document{
			Name:        in.FileName,
			Size:        int64(len(in.Data)),
			ContentType: in.ContentType,
			StoragePath: path,
		},
		Options: in.Options,
	})
	if err != nil {
		// TODO: remove the stored object once storage.Store grows a Delete.
		log.Warn("order not created for stored upload", zap.String("path", path), zap.Error(err))
		return nil, err
	}

	return o, nil
}
