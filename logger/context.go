package logger

import (
	"context"
)

// ContextKey is used for context values
type ContextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"
	// PoolKey is the context key for the pool a request works on
	PoolKey ContextKey = "pool"
)

// WithContextValue adds a value to the context for logging
func WithContextValue(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}

// ExtractContextValues extracts logging-relevant values from context
func ExtractContextValues(ctx context.Context) []any {
	return appendContextArgs(ctx)
}

// appendContextArgs extracts context values and appends them to the args
func appendContextArgs(ctx context.Context, args ...any) []any {
	if ctx == nil {
		return args
	}

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		args = append(args, string(RequestIDKey), requestID)
	}

	if pool, ok := ctx.Value(PoolKey).(string); ok {
		args = append(args, string(PoolKey), pool)
	}

	return args
}
