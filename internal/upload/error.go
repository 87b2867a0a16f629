package upload

import "printlink-be/internal/apperr"

var (
	ErrNoFile          = apperr.Validation("No file provided")
	ErrNoShop          = apperr.Validation("No shop selected")
	ErrUnsupportedType = apperr.Validation("Invalid file type. Only PDF, Word and Excel documents allowed.")
	ErrContentMismatch = apperr.Validation("File content does not match its declared type")
	ErrTooLarge        = apperr.Validation("File too large. Max 10MB allowed.")
	ErrUploadFailed    = apperr.New(apperr.CodeDownstreamUnavailable, "Failed to upload file")
)
