// Package storage pools pebble write batches.
package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/guileen/respool/logger"
	"github.com/guileen/respool/pool"
)

var ErrClosed = errors.New("batch pool is closed")

// Open opens a pebble database at path. With inMemory set the database lives
// in an in-memory filesystem and path only names it.
func Open(path string, inMemory bool) (*pebble.DB, error) {
	opts := &pebble.Options{}
	if inMemory {
		opts.FS = vfs.NewMem()
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	return db, nil
}

// BatchPool recycles write batches of one database. Batches are reset before
// they are pooled, and batches that do not fit are closed.
type BatchPool struct {
	db   *pebble.DB
	pool *pool.Pool[*pebble.Batch]
	log  *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewBatchPool creates a pool keeping up to capacity idle batches of db
func NewBatchPool(db *pebble.DB, capacity int, opts ...pool.Option) *BatchPool {
	base := logger.With(logger.Component("storage"))
	opts = append([]pool.Option{
		pool.WithName("batches"),
		pool.WithLogger(base),
	}, opts...)
	// overflow batches must be closed, so releases report them
	opts = append(opts, pool.WithFullPolicy(pool.FullError))

	bp := &BatchPool{db: db}
	bp.pool = pool.New(func() (*pebble.Batch, error) {
		return db.NewBatch(), nil
	}, capacity, opts...)
	bp.log = base.With(logger.PoolName(bp.pool.Name()))
	return bp
}

// Acquire returns an empty batch
func (bp *BatchPool) Acquire() (*pebble.Batch, error) {
	bp.mu.RLock()
	defer bp.mu.RUnlock()
	if bp.closed {
		return nil, ErrClosed
	}
	return bp.pool.Acquire()
}

// Release resets b and returns it to the pool
func (bp *BatchPool) Release(b *pebble.Batch) error {
	bp.mu.RLock()
	defer bp.mu.RUnlock()

	if bp.closed {
		bp.pool.Forget()
		return b.Close()
	}

	b.Reset()
	err := bp.pool.Release(b)
	if errors.Is(err, pool.ErrPoolFull) {
		return b.Close()
	}
	return err
}

// Commit applies b to the database and releases it. A batch that failed to
// commit is closed instead of pooled.
func (bp *BatchPool) Commit(b *pebble.Batch, sync bool) error {
	writeOpts := pebble.NoSync
	if sync {
		writeOpts = pebble.Sync
	}
	if err := b.Commit(writeOpts); err != nil {
		bp.pool.Forget()
		_ = b.Close()
		return fmt.Errorf("pebble commit batch: %w", err)
	}
	return bp.Release(b)
}

// Update acquires a batch, lets fn fill it and commits it. Nothing is
// written when fn fails.
func (bp *BatchPool) Update(fn func(b *pebble.Batch) error, sync bool) error {
	b, err := bp.Acquire()
	if err != nil {
		return err
	}
	if err := fn(b); err != nil {
		return errors.Join(err, bp.Release(b))
	}
	return bp.Commit(b, sync)
}

// Clear closes every idle batch
func (bp *BatchPool) Clear() {
	for _, b := range bp.pool.Drain() {
		if err := b.Close(); err != nil {
			bp.log.Debug("closing idle batch failed", logger.Operation("clear"), logger.ErrorField(err))
		}
	}
}

// Close closes every idle batch. Later Acquires fail with ErrClosed and
// borrowed batches are closed when released. The database stays open.
func (bp *BatchPool) Close() error {
	bp.mu.Lock()
	if bp.closed {
		bp.mu.Unlock()
		return nil
	}
	bp.closed = true
	idle := bp.pool.Drain()
	bp.mu.Unlock()

	var errs []error
	for _, b := range idle {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (bp *BatchPool) Name() string      { return bp.pool.Name() }
func (bp *BatchPool) Size() int         { return bp.pool.Size() }
func (bp *BatchPool) Stats() pool.Stats { return bp.pool.Stats() }
