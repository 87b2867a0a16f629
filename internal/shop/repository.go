package shop

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"printlink-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*Shop, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByID(ctx context.Context, id string) (*Shop, error) {
	var s Shop
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, location, price_bw, price_color, owner_id
		FROM shops
		WHERE id = $1
	`, id).Scan(&s.ID, &s.Name, &s.Location, &s.PriceBW, &s.PriceColor, &s.OwnerID)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShopNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("db: failed to load shop", zap.String("shop_id", id), zap.Error(err))
		return nil, fmt.Errorf("load shop: %w", err)
	}

	return &s, nil
}
