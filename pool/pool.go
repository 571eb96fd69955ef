// Package pool provides a bounded, reusable-object pool: callers borrow
// expensive resources and hand them back instead of rebuilding them.
package pool

import (
	"container/list"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/guileen/respool/logger"
)

// Factory manufactures one new resource per call.
type Factory[T any] func() (T, error)

// Pool keeps up to capacity idle resources and builds new ones on demand.
//
// Idle resources are reused last-in-first-out. In LimitIdle mode (the default)
// capacity bounds only the idle set, so the pool hands out a new resource
// whenever none is idle and capacity is non-zero. In LimitLive mode capacity
// also bounds the resources on loan.
//
// A Pool is safe for concurrent use. The factory is never called while the
// internal lock is held.
type Pool[T any] struct {
	name     string
	factory  Factory[T]
	capacity int
	onFull   FullPolicy
	limit    LimitMode
	log      *slog.Logger

	mu      sync.Mutex
	idle    []T
	live    int       // LimitLive only
	waiters list.List // of *waiter[T], oldest first
	stats   counters
}

// New creates a pool. A capacity of zero is legal: every Acquire fails with
// ErrPoolExhausted. New panics on a nil factory or a negative capacity.
func New[T any](factory Factory[T], capacity int, opts ...Option) *Pool[T] {
	if factory == nil {
		panic("pool: nil factory")
	}
	if capacity < 0 {
		panic(fmt.Sprintf("pool: negative capacity %d", capacity))
	}

	o := options{name: "pool"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.With(logger.Component("pool"))
	}

	return &Pool[T]{
		name:     o.name,
		factory:  factory,
		capacity: capacity,
		onFull:   o.onFull,
		limit:    o.limit,
		log:      o.logger.With(logger.PoolName(o.name)),
		idle:     make([]T, 0, min(capacity, 64)),
	}
}

// Acquire returns the most recently released idle resource, or a new one from
// the factory when the idle set is empty and construction is permitted.
// Otherwise it fails with ErrPoolExhausted. Factory failures are returned as
// *ConstructionError and leave the pool unchanged.
func (p *Pool[T]) Acquire() (T, error) {
	p.mu.Lock()
	if res, ok := p.popLocked(); ok {
		p.mu.Unlock()
		atomic.AddUint64(&p.stats.hits, 1)
		return res, nil
	}
	if !p.canConstructLocked() {
		p.mu.Unlock()
		atomic.AddUint64(&p.stats.exhausted, 1)
		var zero T
		return zero, &PoolError{Pool: p.name, Op: "acquire", Err: ErrPoolExhausted}
	}
	p.reserveLocked()
	p.mu.Unlock()

	return p.construct()
}

// Release hands res back to the pool. A queued AcquireWait caller receives it
// first. Otherwise it joins the idle set if there is room, and the FullPolicy
// decides its fate if there is not. Only FullError makes Release fail.
func (p *Pool[T]) Release(res T) error {
	atomic.AddUint64(&p.stats.releases, 1)

	p.mu.Lock()
	if w := p.dequeueLocked(); w != nil {
		w.ch <- grant[T]{res: res}
		p.mu.Unlock()
		atomic.AddUint64(&p.stats.handoffs, 1)
		return nil
	}

	if len(p.idle) < p.capacity {
		p.idle = append(p.idle, res)
		p.mu.Unlock()
		return nil
	}

	switch p.onFull {
	case FullError:
		p.untrackLocked(1)
		p.mu.Unlock()
		atomic.AddUint64(&p.stats.rejected, 1)
		return &PoolError{Pool: p.name, Op: "release", Err: ErrPoolFull}
	case FullEvictOldest:
		if p.capacity > 0 {
			copy(p.idle, p.idle[1:])
			p.idle[len(p.idle)-1] = res
			p.untrackLocked(1)
			p.mu.Unlock()
			atomic.AddUint64(&p.stats.evictions, 1)
			p.log.Debug("evicted oldest idle resource", logger.Operation("release"))
			return nil
		}
	}

	p.untrackLocked(1)
	p.mu.Unlock()
	atomic.AddUint64(&p.stats.discards, 1)
	p.log.Debug("discarded released resource", logger.Operation("release"))
	return nil
}

// Forget records that one loaned resource will never be released, for example
// because the owner closed a broken connection. In LimitLive mode its slot is
// freed for waiters.
func (p *Pool[T]) Forget() {
	p.mu.Lock()
	p.untrackLocked(1)
	p.mu.Unlock()
	atomic.AddUint64(&p.stats.discards, 1)
}

// Size returns the number of idle resources.
func (p *Pool[T]) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// Cap returns the capacity fixed at construction.
func (p *Pool[T]) Cap() int { return p.capacity }

// Name returns the pool name.
func (p *Pool[T]) Name() string { return p.name }

// Live returns the number of constructed resources the pool still tracks, or
// -1 when the pool does not count them (LimitIdle).
func (p *Pool[T]) Live() int {
	if p.limit != LimitLive {
		return -1
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

// Clear empties the idle set. Nothing is done to the dropped resources.
func (p *Pool[T]) Clear() {
	p.mu.Lock()
	n := len(p.idle)
	clear(p.idle)
	p.idle = p.idle[:0]
	p.untrackLocked(n)
	p.mu.Unlock()
	atomic.AddUint64(&p.stats.clears, 1)
}

// Drain empties the idle set and returns the removed resources, most recently
// released first, so the caller can dispose of them.
func (p *Pool[T]) Drain() []T {
	p.mu.Lock()
	n := len(p.idle)
	out := make([]T, n)
	for i := range n {
		out[i] = p.idle[n-1-i]
	}
	clear(p.idle)
	p.idle = p.idle[:0]
	p.untrackLocked(n)
	p.mu.Unlock()
	atomic.AddUint64(&p.stats.clears, 1)
	return out
}

// Stats returns a snapshot of the pool counters.
func (p *Pool[T]) Stats() Stats {
	s := Stats{Name: p.name, Capacity: p.capacity, Live: -1}
	p.mu.Lock()
	s.Idle = len(p.idle)
	if p.limit == LimitLive {
		s.Live = p.live
	}
	p.mu.Unlock()
	p.stats.snapshot(&s)
	return s
}

func (p *Pool[T]) construct() (T, error) {
	res, err := p.factory()
	if err != nil {
		p.mu.Lock()
		p.untrackLocked(1)
		p.mu.Unlock()
		atomic.AddUint64(&p.stats.constructionErrors, 1)
		p.log.Warn("resource construction failed", logger.Operation("acquire"), logger.ErrorField(err))
		var zero T
		return zero, &ConstructionError{Pool: p.name, Err: err}
	}
	atomic.AddUint64(&p.stats.misses, 1)
	return res, nil
}

func (p *Pool[T]) popLocked() (T, bool) {
	var zero T
	n := len(p.idle)
	if n == 0 {
		return zero, false
	}
	res := p.idle[n-1]
	p.idle[n-1] = zero
	p.idle = p.idle[:n-1]
	return res, true
}

func (p *Pool[T]) canConstructLocked() bool {
	if p.limit == LimitLive {
		return p.live < p.capacity
	}
	return len(p.idle) < p.capacity
}

func (p *Pool[T]) reserveLocked() {
	if p.limit == LimitLive {
		p.live++
	}
}

// untrackLocked forgets n resources and lets queued waiters use the freed
// construction slots.
func (p *Pool[T]) untrackLocked(n int) {
	if p.limit != LimitLive || n == 0 {
		return
	}
	p.live = max(p.live-n, 0)
	for p.waiters.Len() > 0 && p.canConstructLocked() {
		w := p.dequeueLocked()
		p.reserveLocked()
		w.ch <- grant[T]{construct: true}
	}
}
