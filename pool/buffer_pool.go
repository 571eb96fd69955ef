package pool

import (
	"fmt"
	"slices"
	"sync/atomic"
)

// BufferMetrics tracks buffer pool usage
type BufferMetrics struct {
	Gets   int64 // Number of Get() operations
	Puts   int64 // Number of Put() operations
	Hits   int64 // Buffers reused from the pool
	Misses int64 // Buffers allocated because none was idle
	Size   int64 // Idle buffers
}

// BufferPool keeps up to capacity idle byte slices of one fixed size
type BufferPool struct {
	pool *Pool[[]byte]
	size int

	gets   int64
	puts   int64
	misses int64
}

// NewBufferPool creates a BufferPool for slices of length size
func NewBufferPool(name string, size, capacity int) *BufferPool {
	return &BufferPool{
		pool: New(func() ([]byte, error) {
			return make([]byte, size), nil
		}, capacity, WithName(name)),
		size: size,
	}
}

// Get returns a buffer of the pool's size. It never fails: an exhausted pool
// falls back to a fresh allocation.
func (bp *BufferPool) Get() []byte {
	atomic.AddInt64(&bp.gets, 1)
	buf, err := bp.pool.Acquire()
	if err != nil {
		atomic.AddInt64(&bp.misses, 1)
		return make([]byte, bp.size)
	}
	return buf
}

// Put returns a buffer to the pool. Buffers too small for the pool are dropped.
func (bp *BufferPool) Put(buf []byte) {
	atomic.AddInt64(&bp.puts, 1)
	if cap(buf) < bp.size {
		return
	}
	_ = bp.pool.Release(buf[:bp.size])
}

// Name returns the pool name
func (bp *BufferPool) Name() string { return bp.pool.Name() }

// Clear drops every idle buffer
func (bp *BufferPool) Clear() { bp.pool.Clear() }

// BufferSize returns the length of the buffers handed out
func (bp *BufferPool) BufferSize() int { return bp.size }

// Stats returns the underlying pool statistics
func (bp *BufferPool) Stats() Stats { return bp.pool.Stats() }

// Metrics returns the current buffer pool metrics
func (bp *BufferPool) Metrics() BufferMetrics {
	s := bp.pool.Stats()
	return BufferMetrics{
		Gets:   atomic.LoadInt64(&bp.gets),
		Puts:   atomic.LoadInt64(&bp.puts),
		Hits:   int64(s.Hits),
		Misses: int64(s.Misses) + atomic.LoadInt64(&bp.misses),
		Size:   int64(s.Idle),
	}
}

// MultiBufferPool manages buffer pools for several sizes
type MultiBufferPool struct {
	pools  map[int]*BufferPool
	sizes  []int
	gets   int64
	misses int64
}

// NewMultiBufferPool creates one BufferPool per size, each holding up to
// capacity idle buffers. Each pool is named "<name>-<size>".
func NewMultiBufferPool(name string, sizes []int, capacity int) *MultiBufferPool {
	pools := make(map[int]*BufferPool, len(sizes))
	for _, size := range sizes {
		pools[size] = NewBufferPool(fmt.Sprintf("%s-%d", name, size), size, capacity)
	}

	sorted := slices.Clone(sizes)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	return &MultiBufferPool{
		pools: pools,
		sizes: sorted,
	}
}

// Get returns a buffer from the smallest pool that fits size, or a fresh
// slice when no pool is large enough
func (mbp *MultiBufferPool) Get(size int) []byte {
	if bp := mbp.poolForSize(size); bp != nil {
		return bp.Get()
	}
	atomic.AddInt64(&mbp.gets, 1)
	atomic.AddInt64(&mbp.misses, 1)
	return make([]byte, size)
}

// Put returns a buffer to the pool matching its capacity
func (mbp *MultiBufferPool) Put(buf []byte) {
	if bp := mbp.pools[cap(buf)]; bp != nil {
		bp.Put(buf)
	}
}

// Pools returns the per-size pools, smallest size first
func (mbp *MultiBufferPool) Pools() []*BufferPool {
	pools := make([]*BufferPool, 0, len(mbp.sizes))
	for _, size := range mbp.sizes {
		pools = append(pools, mbp.pools[size])
	}
	return pools
}

func (mbp *MultiBufferPool) poolForSize(size int) *BufferPool {
	i, _ := slices.BinarySearch(mbp.sizes, size)
	if i == len(mbp.sizes) {
		return nil
	}
	return mbp.pools[mbp.sizes[i]]
}

// Metrics returns the combined metrics for all pools
func (mbp *MultiBufferPool) Metrics() BufferMetrics {
	total := BufferMetrics{
		Gets:   atomic.LoadInt64(&mbp.gets),
		Misses: atomic.LoadInt64(&mbp.misses),
	}
	for _, bp := range mbp.pools {
		m := bp.Metrics()
		total.Gets += m.Gets
		total.Puts += m.Puts
		total.Hits += m.Hits
		total.Misses += m.Misses
		total.Size += m.Size
	}
	return total
}
