package pool

import "sync/atomic"

// Stats is a point-in-time snapshot of a pool
type Stats struct {
	Name     string
	Capacity int
	Idle     int // resources ready for reuse
	Live     int // constructed and tracked resources, -1 unless LimitLive

	Hits               uint64 // acquires served from the idle set
	Misses             uint64 // acquires served by the factory
	ConstructionErrors uint64 // factory failures
	Exhausted          uint64 // acquires refused with ErrPoolExhausted

	Releases  uint64 // calls to Release
	Discards  uint64 // resources dropped on a full release or by Forget
	Rejected  uint64 // releases refused with ErrPoolFull
	Evictions uint64 // idle resources dropped to make room
	Handoffs  uint64 // releases handed straight to a waiter

	Waits    uint64 // AcquireWait calls that had to queue
	Timeouts uint64 // queued AcquireWait calls whose context ended
	Clears   uint64 // calls to Clear or Drain
}

// HitRate returns the percentage of successful acquires served from the idle
// set, or 0 when nothing was acquired yet.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// counters holds the atomic counters behind Stats
type counters struct {
	hits               uint64
	misses             uint64
	constructionErrors uint64
	exhausted          uint64
	releases           uint64
	discards           uint64
	rejected           uint64
	evictions          uint64
	handoffs           uint64
	waits              uint64
	timeouts           uint64
	clears             uint64
}

func (c *counters) snapshot(s *Stats) {
	s.Hits = atomic.LoadUint64(&c.hits)
	s.Misses = atomic.LoadUint64(&c.misses)
	s.ConstructionErrors = atomic.LoadUint64(&c.constructionErrors)
	s.Exhausted = atomic.LoadUint64(&c.exhausted)
	s.Releases = atomic.LoadUint64(&c.releases)
	s.Discards = atomic.LoadUint64(&c.discards)
	s.Rejected = atomic.LoadUint64(&c.rejected)
	s.Evictions = atomic.LoadUint64(&c.evictions)
	s.Handoffs = atomic.LoadUint64(&c.handoffs)
	s.Waits = atomic.LoadUint64(&c.waits)
	s.Timeouts = atomic.LoadUint64(&c.timeouts)
	s.Clears = atomic.LoadUint64(&c.clears)
}
