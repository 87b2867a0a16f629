package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"printlink-be/internal/apperr"
	"printlink-be/internal/logger"

	"go.uber.org/zap"
)

var ErrUserNotFound = apperr.New(apperr.CodeNotFound, "user not found")

type Repository interface {
	FindByID(ctx context.Context, id string) (*User, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id string) (*User, error) {
	var (
		u    User
		name sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, email, full_name FROM users WHERE id = $1",
		id,
	).Scan(&u.ID, &u.Email, &name)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("db: failed to load user", zap.String("user_id", id), zap.Error(err))
		return nil, fmt.Errorf("load user: %w", err)
	}

	u.FullName = name.String
	return &u, nil
}
