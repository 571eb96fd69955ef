package pool

import (
	"fmt"
	"log/slog"
	"strings"
)

// FullPolicy decides what Release does with a resource when the idle set is
// already at capacity.
type FullPolicy int

const (
	// FullDiscard silently drops the released resource.
	FullDiscard FullPolicy = iota
	// FullError rejects the release with ErrPoolFull; the caller keeps custody.
	FullError
	// FullEvictOldest drops the oldest idle resource to make room.
	FullEvictOldest
)

var fullPolicyNames = map[FullPolicy]string{
	FullDiscard:     "discard",
	FullError:       "error",
	FullEvictOldest: "evict_oldest",
}

func (fp FullPolicy) String() string {
	if name, ok := fullPolicyNames[fp]; ok {
		return name
	}
	return fmt.Sprintf("FullPolicy(%d)", int(fp))
}

// ParseFullPolicy parses the configuration name of a FullPolicy.
func ParseFullPolicy(s string) (FullPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "discard":
		return FullDiscard, nil
	case "error":
		return FullError, nil
	case "evict_oldest", "evict-oldest", "evictoldest":
		return FullEvictOldest, nil
	}
	return FullDiscard, fmt.Errorf("unknown full policy %q", s)
}

// LimitMode selects what capacity bounds.
type LimitMode int

const (
	// LimitIdle bounds only the idle set. Any number of resources may be on
	// loan at the same time.
	LimitIdle LimitMode = iota
	// LimitLive bounds every resource the pool has constructed and still
	// tracks, idle or on loan.
	LimitLive
)

func (lm LimitMode) String() string {
	switch lm {
	case LimitIdle:
		return "idle"
	case LimitLive:
		return "live"
	}
	return fmt.Sprintf("LimitMode(%d)", int(lm))
}

// ParseLimitMode parses the configuration name of a LimitMode.
func ParseLimitMode(s string) (LimitMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "idle":
		return LimitIdle, nil
	case "live":
		return LimitLive, nil
	}
	return LimitIdle, fmt.Errorf("unknown limit mode %q", s)
}

type options struct {
	name   string
	onFull FullPolicy
	limit  LimitMode
	logger *slog.Logger
}

// Option configures a Pool.
type Option func(*options)

// WithName sets the name used in logs, errors and metrics.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithFullPolicy sets the release policy applied when the idle set is full.
func WithFullPolicy(policy FullPolicy) Option {
	return func(o *options) { o.onFull = policy }
}

// WithLimitMode sets what capacity bounds.
func WithLimitMode(mode LimitMode) Option {
	return func(o *options) { o.limit = mode }
}

// WithLogger sets the logger. A nil logger keeps the default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
