package pool

import (
	"container/list"
	"context"
	"sync/atomic"
	"time"

	"github.com/guileen/respool/logger"
)

// grant is what a queued waiter receives: either a released resource or the
// right to build one.
type grant[T any] struct {
	res       T
	construct bool
}

type waiter[T any] struct {
	ch   chan grant[T] // buffered, receives exactly one grant
	elem *list.Element // nil once dequeued
}

// AcquireWait is Acquire that queues instead of failing with ErrPoolExhausted.
// Waiters are served in FIFO order, by Release or, in LimitLive mode, by a
// freed construction slot. If ctx ends first the call fails with an error
// matching both ErrAcquireTimeout and ctx.Err(). A grant that arrives before
// the cancellation is observed still succeeds.
func (p *Pool[T]) AcquireWait(ctx context.Context) (T, error) {
	var zero T

	p.mu.Lock()
	if res, ok := p.popLocked(); ok {
		p.mu.Unlock()
		atomic.AddUint64(&p.stats.hits, 1)
		return res, nil
	}
	if p.canConstructLocked() {
		p.reserveLocked()
		p.mu.Unlock()
		return p.construct()
	}
	start := time.Now()
	w := &waiter[T]{ch: make(chan grant[T], 1)}
	w.elem = p.waiters.PushBack(w)
	p.mu.Unlock()
	atomic.AddUint64(&p.stats.waits, 1)

	select {
	case g := <-w.ch:
		return p.fulfil(g)
	case <-ctx.Done():
	}

	p.mu.Lock()
	if w.elem != nil {
		p.waiters.Remove(w.elem)
		w.elem = nil
		p.mu.Unlock()
		atomic.AddUint64(&p.stats.timeouts, 1)
		p.log.Debug("acquire wait ended", logger.Operation("acquire"),
			logger.Duration("waited", time.Since(start)), logger.ErrorField(ctx.Err()))
		return zero, &PoolError{Pool: p.name, Op: "acquire", Err: newTimeoutError(ctx.Err())}
	}
	p.mu.Unlock()

	return p.fulfil(<-w.ch)
}

func (p *Pool[T]) fulfil(g grant[T]) (T, error) {
	if g.construct {
		return p.construct()
	}
	atomic.AddUint64(&p.stats.hits, 1)
	return g.res, nil
}

func (p *Pool[T]) dequeueLocked() *waiter[T] {
	front := p.waiters.Front()
	if front == nil {
		return nil
	}
	w := p.waiters.Remove(front).(*waiter[T])
	w.elem = nil
	return w
}
