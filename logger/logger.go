// Package logger is a thin structured-logging layer over log/slog, configured
// from the environment.
package logger

import (
	"context"
	"log/slog"
	"sync/atomic"
)

var current atomic.Pointer[slog.Logger]

func init() {
	SetLogger(NewLogger(LoadConfig()))
}

// Logger returns the global logger instance
func Logger() *slog.Logger {
	return current.Load()
}

// SetLogger replaces the global logger
func SetLogger(l *slog.Logger) {
	if l != nil {
		current.Store(l)
	}
}

// Init configures the global logger
func Init(config Config) {
	SetLogger(NewLogger(config))
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

// DebugContext logs a debug message with context
func DebugContext(ctx context.Context, msg string, args ...any) {
	Logger().DebugContext(ctx, msg, appendContextArgs(ctx, args...)...)
}

// Info logs an info message
func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

// InfoContext logs an info message with context
func InfoContext(ctx context.Context, msg string, args ...any) {
	Logger().InfoContext(ctx, msg, appendContextArgs(ctx, args...)...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

// WarnContext logs a warning message with context
func WarnContext(ctx context.Context, msg string, args ...any) {
	Logger().WarnContext(ctx, msg, appendContextArgs(ctx, args...)...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

// ErrorContext logs an error message with context
func ErrorContext(ctx context.Context, msg string, args ...any) {
	Logger().ErrorContext(ctx, msg, appendContextArgs(ctx, args...)...)
}

// With returns a new Logger that includes the given attributes in each output operation
func With(args ...any) *slog.Logger {
	return Logger().With(args...)
}

// WithContext returns a new Logger that includes context information
func WithContext(ctx context.Context) *slog.Logger {
	return Logger().With(appendContextArgs(ctx)...)
}
