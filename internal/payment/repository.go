package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"printlink-be/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	SaveTransaction(ctx context.Context, t *Transaction) error
	GetByTxnID(ctx context.Context, txnID string) (*Transaction, error)
	UpdateStatus(ctx context.Context, txnID string, status Status, gatewayRef string) error
	// SettleOrder moves the pending transactions of an order to status.
	SettleOrder(ctx context.Context, orderID string, status Status, gatewayRef string) error

	SavePaymentWebhook(
		ctx context.Context,
		provider string,
		eventID string,
		eventType string,
		orderID string,
		payload json.RawMessage,
		signatureValid bool,
	) (webhookID int64, isDuplicate bool, err error)
	MarkWebhookProcessed(ctx context.Context, webhookID int64) error
	MarkWebhookFailed(ctx context.Context, webhookID int64, reason string) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) SaveTransaction(ctx context.Context, t *Transaction) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO payments (txn_id, order_id, amount, currency, hash, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, t.TxnID, t.OrderID, t.Amount, t.Currency, t.Hash, t.Status).Scan(&t.CreatedAt, &t.UpdatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return ErrTransactionExists
		}
		logger.FromCtx(ctx).Error("db: failed to insert payment", zap.String("txn_id", t.TxnID), zap.Error(err))
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *repository) GetByTxnID(ctx context.Context, txnID string) (*Transaction, error) {
	var t Transaction
	var ref sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT txn_id, order_id, amount, currency, hash, status, gateway_ref, created_at, updated_at
		FROM payments
		WHERE txn_id = $1
	`, txnID).Scan(&t.TxnID, &t.OrderID, &t.Amount, &t.Currency, &t.Hash, &t.Status, &ref, &t.CreatedAt, &t.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load payment: %w", err)
	}
	t.GatewayRef = ref.String
	return &t, nil
}

func (r *repository) UpdateStatus(ctx context.Context, txnID string, status Status, gatewayRef string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status = $2, gateway_ref = COALESCE(NULLIF($3, ''), gateway_ref), updated_at = NOW()
		WHERE txn_id = $1
	`, txnID, status, gatewayRef)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if n == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *repository) SettleOrder(ctx context.Context, orderID string, status Status, gatewayRef string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status = $2, gateway_ref = COALESCE(NULLIF($3, ''), gateway_ref), updated_at = NOW()
		WHERE order_id = $1 AND status = $4
	`, orderID, status, gatewayRef, StatusPending)
	if err != nil {
		return fmt.Errorf("settle payments as %s: %w", status, err)
	}
	return nil
}

// SavePaymentWebhook records one delivery. A redelivery of an event that was
// already processed reports isDuplicate; a redelivery of one that never
// finished returns the existing row so the caller runs it again.
func (r *repository) SavePaymentWebhook(ctx context.Context, provider, eventID, eventType, orderID string, payload json.RawMessage, signatureValid bool) (int64, bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO payment_webhooks (provider, event_id, event_type, order_id, signature_valid, payload)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
		ON CONFLICT (provider, event_id) DO UPDATE
			SET process_error = NULL
			WHERE payment_webhooks.processed_at IS NULL
		RETURNING id
	`, provider, eventID, eventType, orderID, signatureValid, []byte(payload)).Scan(&id)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, true, nil
	case err != nil:
		logger.FromCtx(ctx).Error("db: failed to record webhook",
			zap.String("provider", provider),
			zap.String("event_id", eventID),
			zap.Error(err),
		)
		return 0, false, fmt.Errorf("record webhook: %w", err)
	}
	return id, false, nil
}

func (r *repository) MarkWebhookProcessed(ctx context.Context, webhookID int64) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE payment_webhooks
		SET processed_at = NOW(), process_error = NULL
		WHERE id = $1
	`, webhookID); err != nil {
		return fmt.Errorf("mark webhook %d processed: %w", webhookID, err)
	}
	return nil
}

// MarkWebhookFailed leaves processed_at unset, so the next delivery of the same
// event is applied again.
func (r *repository) MarkWebhookFailed(ctx context.Context, webhookID int64, reason string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE payment_webhooks
		SET process_error = $2
		WHERE id = $1
	`, webhookID, reason); err != nil {
		return fmt.Errorf("mark webhook %d failed: %w", webhookID, err)
	}
	return nil
}

const pgUniqueViolation = "23505"
