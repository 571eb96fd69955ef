package pool

import (
	"errors"
	"fmt"
)

var (
	// ErrPoolExhausted is returned by Acquire when no idle resource exists and
	// no further construction is permitted.
	ErrPoolExhausted = errors.New("pool exhausted")
	// ErrConstructionFailed matches every error produced by a failing factory.
	ErrConstructionFailed = errors.New("resource construction failed")
	// ErrPoolFull is returned by Release under the FullError policy.
	ErrPoolFull = errors.New("pool is full")
	// ErrInvalidRelease is returned when a lease is released twice or was not
	// issued by the pool it is released into.
	ErrInvalidRelease = errors.New("invalid release")
	// ErrAcquireTimeout is returned by AcquireWait when its context ends first.
	ErrAcquireTimeout = errors.New("acquire timed out")
)

// PoolError represents errors specific to pool operations
type PoolError struct {
	Pool string
	Op   string
	Err  error
}

func (e *PoolError) Error() string {
	return fmt.Sprintf("pool %s: %s: %v", e.Pool, e.Op, e.Err)
}

func (e *PoolError) Unwrap() error {
	return e.Err
}

// IsPoolError checks if an error is a pool error
func IsPoolError(err error) bool {
	var target *PoolError
	return errors.As(err, &target)
}

// ConstructionError wraps an error returned by the factory. It unwraps to the
// factory error and also matches ErrConstructionFailed.
type ConstructionError struct {
	Pool string
	Err  error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("pool %s: %v: %v", e.Pool, ErrConstructionFailed, e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

func (e *ConstructionError) Is(target error) bool {
	return target == ErrConstructionFailed
}

// IsExhausted reports whether err signals an exhausted pool.
func IsExhausted(err error) bool {
	return errors.Is(err, ErrPoolExhausted)
}

// IsTimeout reports whether err signals an AcquireWait that gave up.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrAcquireTimeout)
}

func newTimeoutError(cause error) error {
	return fmt.Errorf("%w: %w", ErrAcquireTimeout, cause)
}
