package logger

import (
	"context"

	"go.uber.org/zap"
)

type requestLoggerKey struct{}

// WithRequestLogger attaches a request-scoped logger to the context. The
// HTTP wide-event middleware stores one per request with the request id
// already bound, so downstream log lines correlate.
func WithRequestLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, requestLoggerKey{}, l)
}

// RequestLogger returns the logger attached by WithRequestLogger. When the
// context carries none (tests, background jobs) it returns fallback, or a
// nop logger if fallback is nil.
func RequestLogger(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(requestLoggerKey{}).(*zap.Logger); ok {
		return l
	}
	if fallback != nil {
		return fallback
	}
	return zap.NewNop()
}
