package pool

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Lease is a token for a resource issued by a TrackedPool.
type Lease[T any] struct {
	id    uuid.UUID
	value T
}

// ID returns the unique identifier of the lease.
func (l *Lease[T]) ID() uuid.UUID { return l.id }

// Value returns the leased resource.
func (l *Lease[T]) Value() T { return l.value }

// TrackedPool wraps a Pool and remembers every lease it issued, so releasing
// a lease twice or releasing a foreign lease fails with ErrInvalidRelease.
type TrackedPool[T any] struct {
	pool *Pool[T]

	mu     sync.Mutex
	issued map[uuid.UUID]*Lease[T]
}

// NewTracked creates a TrackedPool over a new Pool.
func NewTracked[T any](factory Factory[T], capacity int, opts ...Option) *TrackedPool[T] {
	return &TrackedPool[T]{
		pool:   New(factory, capacity, opts...),
		issued: make(map[uuid.UUID]*Lease[T]),
	}
}

// Acquire acquires a resource and wraps it in a new lease.
func (tp *TrackedPool[T]) Acquire() (*Lease[T], error) {
	res, err := tp.pool.Acquire()
	if err != nil {
		return nil, err
	}
	return tp.issue(res), nil
}

// AcquireWait is Acquire on top of Pool.AcquireWait.
func (tp *TrackedPool[T]) AcquireWait(ctx context.Context) (*Lease[T], error) {
	res, err := tp.pool.AcquireWait(ctx)
	if err != nil {
		return nil, err
	}
	return tp.issue(res), nil
}

// Release validates the lease against the live-issue set and releases its
// resource. The lease is consumed even when the underlying release fails.
func (tp *TrackedPool[T]) Release(l *Lease[T]) error {
	if err := tp.consume(l, "release"); err != nil {
		return err
	}
	return tp.pool.Release(l.value)
}

// Forget consumes the lease without returning its resource, see Pool.Forget.
func (tp *TrackedPool[T]) Forget(l *Lease[T]) error {
	if err := tp.consume(l, "forget"); err != nil {
		return err
	}
	tp.pool.Forget()
	return nil
}

func (tp *TrackedPool[T]) consume(l *Lease[T], op string) error {
	if l == nil {
		return &PoolError{Pool: tp.pool.name, Op: op, Err: ErrInvalidRelease}
	}

	tp.mu.Lock()
	defer tp.mu.Unlock()
	issued, ok := tp.issued[l.id]
	if !ok || issued != l {
		return &PoolError{Pool: tp.pool.name, Op: op, Err: ErrInvalidRelease}
	}
	delete(tp.issued, l.id)
	return nil
}

// Outstanding returns the number of leases not yet released.
func (tp *TrackedPool[T]) Outstanding() int {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return len(tp.issued)
}

func (tp *TrackedPool[T]) Size() int    { return tp.pool.Size() }
func (tp *TrackedPool[T]) Cap() int     { return tp.pool.Cap() }
func (tp *TrackedPool[T]) Name() string { return tp.pool.Name() }
func (tp *TrackedPool[T]) Clear()       { tp.pool.Clear() }
func (tp *TrackedPool[T]) Stats() Stats { return tp.pool.Stats() }

func (tp *TrackedPool[T]) issue(res T) *Lease[T] {
	l := &Lease[T]{id: uuid.New(), value: res}
	tp.mu.Lock()
	tp.issued[l.id] = l
	tp.mu.Unlock()
	return l
}
