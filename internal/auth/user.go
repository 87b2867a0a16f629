package auth

import (
	"context"

	"printlink-be/internal/utils"
)

// User is the authenticated caller as seen by this service.
type User struct {
	ID       string
	Email    string
	Role     string
	FullName string
}

// CurrentUser returns the caller placed in ctx by the auth middleware, or nil.
func CurrentUser(ctx context.Context) *User {
	id, ok := utils.GetUserIDFromContext(ctx)
	if !ok {
		return nil
	}
	return &User{
		ID:       id,
		Email:    utils.GetUserEmailFromContext(ctx),
		Role:     utils.GetUserRoleFromContext(ctx),
		FullName: utils.GetUserNameFromContext(ctx),
	}
}

// DisplayName falls back to a generic label when the profile has no name.
func (u *User) DisplayName(fallback string) string {
	if u == nil || u.FullName == "" {
		return fallback
	}
	return u.FullName
}
