package logger

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Levels beyond the slog defaults
const (
	LevelTrace slog.Level = -8
	LevelFatal slog.Level = 12
)

// LevelName returns TRACE and FATAL for the custom levels and the slog name
// otherwise
func LevelName(level slog.Level) string {
	switch level {
	case LevelTrace:
		return "TRACE"
	case LevelFatal:
		return "FATAL"
	}
	return level.String()
}

// Config holds the logger configuration
type Config struct {
	Level     slog.Level
	Format    string    // "json" or "text"
	AddSource bool      // Whether to add source code information
	Writer    io.Writer // Custom writer for output, stderr when nil
}

// DefaultConfig returns the default logger configuration
func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Format:    "json",
		AddSource: false,
		Writer:    os.Stderr,
	}
}

// ParseLevel parses DEBUG, INFO, WARN, ERROR, TRACE, FATAL or an integer level
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace, true
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN", "WARNING":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	case "FATAL":
		return LevelFatal, true
	}
	if levelInt, err := strconv.Atoi(s); err == nil {
		return slog.Level(levelInt), true
	}
	return slog.LevelInfo, false
}

// LoadConfig loads the logger configuration from environment variables
func LoadConfig() Config {
	config := DefaultConfig()

	if levelStr := os.Getenv("LOG_LEVEL"); levelStr != "" {
		if level, ok := ParseLevel(levelStr); ok {
			config.Level = level
		}
	}

	if format := os.Getenv("LOG_FORMAT"); format == "text" || format == "json" {
		config.Format = format
	}

	if addSourceStr := os.Getenv("LOG_ADD_SOURCE"); addSourceStr != "" {
		if addSource, err := strconv.ParseBool(addSourceStr); err == nil {
			config.AddSource = addSource
		}
	}

	return config
}

// NewLogger creates a new logger with the given configuration
func NewLogger(config Config) *slog.Logger {
	writer := config.Writer
	if writer == nil {
		writer = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     config.Level,
		AddSource: config.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if level, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(LevelName(level))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	switch config.Format {
	case "text":
		handler = slog.NewTextHandler(writer, opts)
	default: // json
		handler = slog.NewJSONHandler(writer, opts)
	}

	return slog.New(handler)
}
