package access

import "printlink-be/internal/apperr"

var (
	ErrUnauthorized       = apperr.New(apperr.CodeUnauthorized, "sign in to download this file")
	ErrStorageUnavailable = apperr.New(apperr.CodeDownstreamUnavailable, "could not generate download link")
)
