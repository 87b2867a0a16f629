package payment

import "printlink-be/internal/apperr"

var (
	ErrMissingCredentials = apperr.New(apperr.CodeMisconfigured, "PAYU_MERCHANT_KEY or PAYU_SALT is not set")
	ErrMissingWebhookKey  = apperr.New(apperr.CodeMisconfigured, "WEBHOOK_SECRET is not set")
	ErrInvalidSignature   = apperr.New(apperr.CodeInvalidSignature, "payment signature verification failed")
	ErrAmountMismatch     = apperr.Validation("amount does not match the order total")
	ErrMissingPayer       = apperr.Validation("payer name and email are required")
	ErrTransactionExists  = apperr.Validation("transaction id already used")
	ErrPaymentNotFound    = apperr.New(apperr.CodeNotFound, "payment not found")
	ErrUnknownTxn         = apperr.Validation("transaction was not issued for this order")
	ErrCurrencyMismatch   = apperr.Validation("payment currency does not match the order")
)
