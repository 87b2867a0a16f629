package order

import "printlink-be/internal/apperr"

var (
	ErrOrderNotFound    = apperr.New(apperr.CodeNotFound, "order not found")
	ErrInvalidState     = apperr.New(apperr.CodeInvalidState, "order is not in the expected state")
	ErrNotReady         = apperr.New(apperr.CodeInvalidState, "order is not ready for pickup")
	ErrInvalidCode      = apperr.New(apperr.CodeInvalidCode, "invalid pickup code")
	ErrAmountMismatch   = apperr.New(apperr.CodeValidation, "payment amount does not match order cost")
	ErrShopMismatch     = apperr.New(apperr.CodeValidation, "payment shop does not match order")
	ErrUnauthorized     = apperr.New(apperr.CodeUnauthorized, "unauthorized")
	ErrNotShopOwner     = apperr.New(apperr.CodeUnauthorized, "only the shop owner can complete this order")
	ErrIllegalMove      = apperr.New(apperr.CodeInvalidState, "transition not allowed")
	ErrDuplicateOrderID = apperr.New(apperr.CodeValidation, "order already exists")
)
