package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guileen/respool/pool"
)

func newTestPool(name string, capacity int, opts ...pool.Option) *pool.Pool[int] {
	next := 0
	opts = append(opts, pool.WithName(name))
	return pool.New(func() (int, error) {
		next++
		return next, nil
	}, capacity, opts...)
}

func TestCollector(t *testing.T) {
	p := newTestPool("conns", 1)
	a, err := p.Acquire()
	require.NoError(t, err)
	b, err := p.Acquire()
	require.NoError(t, err)
	require.NoError(t, p.Release(a))
	require.NoError(t, p.Release(b))
	_, err = p.Acquire()
	require.NoError(t, err)

	c := NewCollector(p)

	expected := `
# HELP respool_pool_hits_total Acquires served from the idle set.
# TYPE respool_pool_hits_total counter
respool_pool_hits_total{pool="conns"} 1
# HELP respool_pool_misses_total Acquires served by the factory.
# TYPE respool_pool_misses_total counter
respool_pool_misses_total{pool="conns"} 2
# HELP respool_pool_discards_total Released resources dropped because the pool was full.
# TYPE respool_pool_discards_total counter
respool_pool_discards_total{pool="conns"} 1
# HELP respool_pool_capacity Configured pool capacity.
# TYPE respool_pool_capacity gauge
respool_pool_capacity{pool="conns"} 1
`
	err = testutil.CollectAndCompare(c, strings.NewReader(expected),
		"respool_pool_hits_total", "respool_pool_misses_total",
		"respool_pool_discards_total", "respool_pool_capacity")
	assert.NoError(t, err)
}

func TestCollectorLiveGauge(t *testing.T) {
	idle := newTestPool("idle", 2)
	live := newTestPool("live", 2, pool.WithLimitMode(pool.LimitLive))
	_, err := live.Acquire()
	require.NoError(t, err)

	// LimitIdle pools do not report live resources
	assert.Equal(t, 13, testutil.CollectAndCount(NewCollector(idle)))
	assert.Equal(t, 14, testutil.CollectAndCount(NewCollector(live)))
	assert.Equal(t, 1, testutil.CollectAndCount(NewCollector(live), "respool_pool_live_resources"))
}

func TestRegistryHandler(t *testing.T) {
	reg, err := NewRegistry(newTestPool("a", 1), newTestPool("b", 1))
	require.NoError(t, err)

	// duplicate pool names collide
	_, err = NewRegistry(newTestPool("dup", 1), newTestPool("dup", 1))
	assert.Error(t, err)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `respool_pool_capacity{pool="a"} 1`)
	assert.Contains(t, body, `respool_pool_capacity{pool="b"} 1`)
	assert.Contains(t, body, "go_goroutines")
}
