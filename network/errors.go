package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/guileen/respool/pool"
)

var ErrPoolClosed = errors.New("connection pool is closed")

// NetworkError represents a structured network error
type NetworkError struct {
	Operation string
	Address   string
	Err       error
}

func (ne *NetworkError) Error() string {
	if ne.Address != "" {
		return fmt.Sprintf("network error during %s to %s: %v", ne.Operation, ne.Address, ne.Err)
	}
	return fmt.Sprintf("network error during %s: %v", ne.Operation, ne.Err)
}

func (ne *NetworkError) Unwrap() error {
	return ne.Err
}

// NewNetworkError creates a new network error
func NewNetworkError(operation, address string, err error) *NetworkError {
	return &NetworkError{
		Operation: operation,
		Address:   address,
		Err:       err,
	}
}

// IsNetworkError checks if an error is a network error
func IsNetworkError(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

// IsTimeoutError reports whether err is an acquire timeout, an ended context
// or a net.Error timeout
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if pool.IsTimeout(err) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsConnectionError reports whether err came from establishing or using a
// connection
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if IsNetworkError(err) || errors.Is(err, pool.ErrConstructionFailed) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset by peer") ||
		strings.Contains(errStr, "broken pipe")
}

// WrapError wraps an error with additional context
func WrapError(err error, msg string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(msg, args...), err)
}
