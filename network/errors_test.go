package network

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/guileen/respool/pool"
)

func TestNetworkError(t *testing.T) {
	origErr := errors.New("connection refused")
	netErr := NewNetworkError("connect", "localhost:5432", origErr)

	assert.Equal(t, "connect", netErr.Operation)
	assert.Equal(t, "localhost:5432", netErr.Address)
	assert.ErrorIs(t, netErr, origErr)
	assert.Equal(t, "network error during connect to localhost:5432: connection refused", netErr.Error())
	assert.Equal(t, "network error during close: connection refused", NewNetworkError("close", "", origErr).Error())

	assert.True(t, IsNetworkError(netErr))
	assert.True(t, IsNetworkError(fmt.Errorf("wrapped: %w", netErr)))
	assert.False(t, IsNetworkError(origErr))
}

func TestErrorTypeChecking(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name       string
		err        error
		timeout    bool
		connection bool
	}{
		{"nil", nil, false, false},
		{"canceled context", ctx.Err(), true, false},
		{"deadline", fmt.Errorf("dial: %w", context.DeadlineExceeded), true, false},
		{"acquire timeout", &pool.PoolError{Pool: "p", Op: "acquire", Err: pool.ErrAcquireTimeout}, true, false},
		{"exhausted", &pool.PoolError{Pool: "p", Op: "acquire", Err: pool.ErrPoolExhausted}, false, false},
		{"construction", &pool.ConstructionError{Pool: "p", Err: errors.New("boom")}, false, true},
		{"refused errno", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), false, true},
		{"broken pipe text", errors.New("write: broken pipe"), false, true},
		{"reset text", errors.New("read: connection reset by peer"), false, true},
		{"plain", errors.New("something else"), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.timeout, IsTimeoutError(tt.err))
			assert.Equal(t, tt.connection, IsConnectionError(tt.err))
		})
	}
}

func TestWrapError(t *testing.T) {
	origErr := errors.New("original error")
	wrapped := WrapError(origErr, "additional context: %s", "test")

	assert.ErrorIs(t, wrapped, origErr)
	assert.Equal(t, "additional context: test: original error", wrapped.Error())
	assert.NoError(t, WrapError(nil, "ignored"))
}
