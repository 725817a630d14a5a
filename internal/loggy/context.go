package loggy

import (
	"context"

	"github.com/tildaslashalef/critiq/internal/ulid"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	requestIDKey
)

// FromContext returns the logger stored in ctx or the global logger
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*Logger); ok && l != nil {
			return l
		}
	}
	return GetGlobalLogger()
}

// WithLogger stores l in ctx
func WithLogger(ctx context.Context, l *Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey, l)
}

// WithRequestID stores a request id in ctx and tags the context logger with it
func WithRequestID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, requestIDKey, id)
	if l := FromContext(ctx); l != nil {
		ctx = WithLogger(ctx, l.With("request_id", id))
	}
	return ctx
}

// RequestID returns the request id stored in ctx, if any
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// NewRequestID generates a new request id
func NewRequestID() string {
	return ulid.RequestID()
}
