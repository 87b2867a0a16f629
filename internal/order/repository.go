package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"printlink-be/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// UpdateWhere applies t atomically. It returns false, without error, when
	// the stored row no longer matches the guard.
	UpdateWhere(ctx context.Context, id string, t Transition) (*Order, bool, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const orderColumns = `
	id, user_id, shop_id,
	file_name, file_size, content_type, storage_path,
	pages, copies, color, amount, currency,
	status, pickup_code,
	created_at, updated_at, paid_at, completed_at, collected_at, cancelled_at
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var o Order
	var code sql.NullString
	var paidAt, completedAt, collectedAt, cancelAt sql.NullTime

	err := row.Scan(
		&o.ID, &o.UserID, &o.ShopID,
		&o.Document.Name, &o.Document.Size, &o.Document.ContentType, &o.Document.StoragePath,
		&o.Options.Pages, &o.Options.Copies, &o.Options.Color, &o.Amount, &o.Currency,
		&o.Status, &code,
		&o.CreatedAt, &o.UpdatedAt, &paidAt, &completedAt, &collectedAt, &cancelAt,
	)
	if err != nil {
		return nil, err
	}

	if code.Valid {
		o.PickupCode = &code.String
	}
	o.PaidAt = nullTime(paidAt)
	o.CompletedAt = nullTime(completedAt)
	o.CollectedAt = nullTime(collectedAt)
	o.CancelledAt = nullTime(cancelAt)
	return &o, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func (r *repository) Create(ctx context.Context, o *Order) error {
	log := logger.FromCtx(ctx).With(zap.String("order_id", o.ID), zap.String("shop_id", o.ShopID))

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO uploads (
			id, user_id, shop_id,
			file_name, file_size, content_type, storage_path,
			pages, copies, color, amount, currency, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at
	`,
		o.ID, o.UserID, o.ShopID,
		o.Document.Name, o.Document.Size, o.Document.ContentType, o.Document.StoragePath,
		o.Options.Pages, o.Options.Copies, o.Options.Color, o.Amount, o.Currency, o.Status,
	).Scan(&o.CreatedAt, &o.UpdatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return ErrDuplicateOrderID
		}
		log.Error("db: failed to insert order", zap.Error(err))
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM uploads WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("db: failed to load order", zap.String("order_id", id), zap.Error(err))
		return nil, fmt.Errorf("load order: %w", err)
	}
	return o, nil
}

func (r *repository) UpdateWhere(ctx context.Context, id string, t Transition) (*Order, bool, error) {
	if !CanTransition(t.From, t.To) {
		return nil, false, ErrIllegalMove
	}

	query := fmt.Sprintf(`
		UPDATE uploads
		SET status = $3, pickup_code = NULLIF($4, ''), %s = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $2`, stampColumn(t.To))
	args := []interface{}{id, t.From, t.To, t.PickupCode}

	if t.PresentedCode != "" {
		query += ` AND pickup_code = $5`
		args = append(args, t.PresentedCode)
	}
	query += ` RETURNING ` + orderColumns

	o, err := scanOrder(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		logger.FromCtx(ctx).Error("db: conditional update failed",
			zap.String("order_id", id),
			zap.String("from", string(t.From)),
			zap.String("to", string(t.To)),
			zap.Error(err),
		)
		return nil, false, fmt.Errorf("update order: %w", err)
	}
	return o, true, nil
}

// -- Constants (External Systems) --
const pgUniqueViolation = "23505"
