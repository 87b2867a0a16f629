package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	callerIDKey  ctxKey = "caller_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithCallerID tags every log line of the request with the authenticated user.
func WithCallerID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, callerIDKey, userID)
}

// FromCtx returns logger with request_id and caller_id added when present
func FromCtx(ctx context.Context) *zap.Logger {
	l := L()
	if reqID := RequestIDFrom(ctx); reqID != "" {
		l = l.With(zap.String("request_id", reqID))
	}
	if uid, ok := ctx.Value(callerIDKey).(string); ok && uid != "" {
		l = l.With(zap.String("caller_id", uid))
	}
	return l
}
