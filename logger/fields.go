package logger

import (
	"log/slog"
	"time"
)

// Attribute helpers shared by the pool packages
var (
	String = slog.String
	Int    = slog.Int
)

func Duration(key string, d time.Duration) slog.Attr {
	return slog.String(key, d.String())
}

// ErrorField logs err under "error"; a nil error is logged as "<nil>"
func ErrorField(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

func Component(name string) slog.Attr { return slog.String("component", name) }
func Operation(name string) slog.Attr { return slog.String("operation", name) }
func PoolName(name string) slog.Attr  { return slog.String("pool", name) }
