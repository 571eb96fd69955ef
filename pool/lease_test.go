package pool

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackedPoolLeases(t *testing.T) {
	f := &countingFactory{}
	tp := NewTracked(f.New, 2, WithName("tracked"))

	a, err := tp.Acquire()
	require.NoError(t, err)
	b, err := tp.Acquire()
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, tp.Outstanding())

	require.NoError(t, tp.Release(a))
	assert.Equal(t, 1, tp.Outstanding())
	assert.Equal(t, 1, tp.Size())

	again, err := tp.Acquire()
	require.NoError(t, err)
	assert.Same(t, a.Value(), again.Value())
	assert.NotEqual(t, a.ID(), again.ID())
	assert.Equal(t, "tracked", tp.Name())
	assert.Equal(t, 2, tp.Cap())
}

func TestTrackedPoolInvalidRelease(t *testing.T) {
	f := &countingFactory{}
	tp := NewTracked(f.New, 2)
	other := NewTracked(f.New, 2)

	lease, err := tp.Acquire()
	require.NoError(t, err)
	foreign, err := other.Acquire()
	require.NoError(t, err)

	tests := []struct {
		name  string
		lease *Lease[*testConn]
	}{
		{"Nil", nil},
		{"Foreign", foreign},
		{"Forged", &Lease[*testConn]{id: lease.ID(), value: lease.Value()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tp.Release(tt.lease)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRelease)
		})
	}

	require.NoError(t, tp.Release(lease))
	err = tp.Release(lease)
	assert.ErrorIs(t, err, ErrInvalidRelease, "double release")
	assert.Equal(t, 1, tp.Size())
	assert.Equal(t, 0, tp.Outstanding())
}

func TestTrackedPoolPropagatesErrors(t *testing.T) {
	tp := NewTracked(func() (*testConn, error) { return &testConn{}, nil }, 0)

	_, err := tp.Acquire()
	assert.ErrorIs(t, err, ErrPoolExhausted)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tp.AcquireWait(ctx)
	assert.ErrorIs(t, err, ErrAcquireTimeout)
	assert.Equal(t, 0, tp.Outstanding())
}

func TestTrackedPoolClear(t *testing.T) {
	f := &countingFactory{}
	tp := NewTracked(f.New, 2)

	l, err := tp.AcquireWait(context.Background())
	require.NoError(t, err)
	require.NoError(t, tp.Release(l))
	require.Equal(t, 1, tp.Size())

	tp.Clear()
	assert.Equal(t, 0, tp.Size())
	assert.Equal(t, uint64(1), tp.Stats().Clears)
}

func TestTrackedPoolForget(t *testing.T) {
	f := &countingFactory{}
	tp := NewTracked(f.New, 1, WithLimitMode(LimitLive))

	a, err := tp.Acquire()
	require.NoError(t, err)
	_, err = tp.Acquire()
	assert.True(t, IsExhausted(err))

	require.NoError(t, tp.Forget(a))
	assert.Equal(t, 0, tp.Outstanding())
	assert.Equal(t, 0, tp.Stats().Live)
	assert.Equal(t, uint64(1), tp.Stats().Discards)

	b, err := tp.Acquire()
	require.NoError(t, err)
	assert.NotSame(t, a.Value(), b.Value())

	err = tp.Forget(a)
	assert.ErrorIs(t, err, ErrInvalidRelease)
	assert.ErrorContains(t, err, "forget")
	assert.ErrorIs(t, tp.Release(a), ErrInvalidRelease)
	assert.ErrorIs(t, tp.Forget(nil), ErrInvalidRelease)
	assert.Equal(t, 1, tp.Stats().Live)
}
