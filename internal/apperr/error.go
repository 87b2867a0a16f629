// Package apperr defines the error taxonomy shared by every domain package and
// the HTTP status each code maps to.
package apperr

import (
	"errors"
	"net/http"
)

type Code string

const (
	CodeUnauthorized          Code = "unauthorized"
	CodeNotFound              Code = "not_found"
	CodeInvalidState          Code = "invalid_state"
	CodeInvalidCode           Code = "invalid_code"
	CodeInvalidSignature      Code = "invalid_signature"
	CodeValidation            Code = "validation_error"
	CodeMisconfigured         Code = "misconfigured"
	CodeDownstreamUnavailable Code = "downstream_unavailable"
	CodeRateLimited           Code = "rate_limited"
)

type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error carrying the same code, so domain errors compare equal
// to the taxonomy sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

var (
	ErrUnauthorized          = New(CodeUnauthorized, "unauthorized")
	ErrNotFound              = New(CodeNotFound, "not found")
	ErrInvalidState          = New(CodeInvalidState, "invalid state")
	ErrInvalidCode           = New(CodeInvalidCode, "invalid code")
	ErrInvalidSignature      = New(CodeInvalidSignature, "invalid signature")
	ErrValidation            = New(CodeValidation, "validation error")
	ErrMisconfigured         = New(CodeMisconfigured, "server misconfiguration")
	ErrDownstreamUnavailable = New(CodeDownstreamUnavailable, "service temporarily unavailable")
	ErrRateLimited           = New(CodeRateLimited, "too many attempts")
)

// Validation builds a validation error with a caller-facing message.
func Validation(msg string) *Error {
	return New(CodeValidation, msg)
}

// CodeOf returns the taxonomy code of err; unknown errors are downstream failures.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeDownstreamUnavailable
}

// MessageOf returns the message safe to show to a caller.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Code == CodeMisconfigured {
			return ErrMisconfigured.Message
		}
		return e.Message
	}
	return ErrDownstreamUnavailable.Message
}

func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidState:
		return http.StatusConflict
	case CodeInvalidCode, CodeInvalidSignature, CodeValidation:
		return http.StatusBadRequest
	case CodeMisconfigured:
		return http.StatusInternalServerError
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusServiceUnavailable
	}
}
