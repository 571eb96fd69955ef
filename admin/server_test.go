package admin

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guileen/respool/logger"
	"github.com/guileen/respool/pool"
)

func setupTestServer(t *testing.T) (*Server, *pool.Pool[[]byte], *pool.TrackedPool[int]) {
	t.Helper()
	server, err := NewServer()
	require.NoError(t, err)

	buffers := pool.New(func() ([]byte, error) { return make([]byte, 8), nil }, 2, pool.WithName("buffers"))
	tracked := pool.NewTracked(func() (int, error) { return 1, nil }, 1,
		pool.WithName("ids"), pool.WithLimitMode(pool.LimitLive))

	require.NoError(t, server.Register(buffers))
	require.NoError(t, server.Register(tracked))
	return server, buffers, tracked
}

func doRequest(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestListPools(t *testing.T) {
	server, _, _ := setupTestServer(t)

	rec := doRequest(t, server.Router(), http.MethodGet, "/pools")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "buffers", resp.Pools[0].Name)
	assert.Nil(t, resp.Pools[0].Live)
	assert.Equal(t, "ids", resp.Pools[1].Name)
	require.NotNil(t, resp.Pools[1].Live)
	assert.Equal(t, 0, *resp.Pools[1].Live)
}

func TestGetAndClearPool(t *testing.T) {
	server, buffers, _ := setupTestServer(t)
	router := chi.NewRouter()
	server.RegisterRoutes(router)

	buf, err := buffers.Acquire()
	require.NoError(t, err)
	require.NoError(t, buffers.Release(buf))

	rec := doRequest(t, router, http.MethodGet, "/pools/buffers")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats StatsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, 1, stats.Idle)
	assert.Equal(t, 2, stats.Capacity)
	assert.Equal(t, uint64(1), stats.Misses)

	rec = doRequest(t, router, http.MethodPost, "/pools/buffers/clear")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, 0, stats.Idle)
	assert.Equal(t, uint64(1), stats.Clears)
	assert.Equal(t, 0, buffers.Size())
}

func TestUnknownPool(t *testing.T) {
	server, _, _ := setupTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/pools/nope"},
		{http.MethodPost, "/pools/nope/clear"},
	} {
		rec := doRequest(t, server.Router(), tc.method, tc.path)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		var resp ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Contains(t, resp.Error, `"nope"`)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	server, _, _ := setupTestServer(t)

	dup := pool.New(func() (int, error) { return 0, nil }, 1, pool.WithName("buffers"))
	assert.Error(t, server.Register(dup))
}

func TestMetricsEndpoint(t *testing.T) {
	server, _, tracked := setupTestServer(t)

	lease, err := tracked.Acquire()
	require.NoError(t, err)
	require.NoError(t, tracked.Release(lease))

	rec := doRequest(t, server.Router(), http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `respool_pool_idle_resources{pool="ids"} 1`)
	assert.Contains(t, body, `respool_pool_live_resources{pool="ids"} 1`)
	assert.Contains(t, body, `respool_pool_capacity{pool="buffers"} 2`)
}

func TestProfilerMounted(t *testing.T) {
	server, _, _ := setupTestServer(t)

	rec := doRequest(t, server.Router(), http.MethodGet, "/debug/pprof/cmdline")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClearLogsRequestContext(t *testing.T) {
	prev := logger.Logger()
	t.Cleanup(func() { logger.SetLogger(prev) })
	var out bytes.Buffer
	logger.SetLogger(logger.NewLogger(logger.Config{Level: slog.LevelInfo, Format: "json", Writer: &out}))

	server, _, _ := setupTestServer(t)
	rec := doRequest(t, server.Router(), http.MethodPost, "/pools/buffers/clear")
	require.Equal(t, http.StatusOK, rec.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &entry))
	assert.Equal(t, "pool cleared via admin API", entry["msg"])
	assert.Equal(t, "buffers", entry["pool"])
	assert.NotEmpty(t, entry["request_id"])
}

func TestRegisterBufferPools(t *testing.T) {
	server, err := NewServer()
	require.NoError(t, err)

	mbp := pool.NewMultiBufferPool("buf", []int{512, 4096}, 2)
	for _, bp := range mbp.Pools() {
		require.NoError(t, server.Register(bp))
	}

	rec := doRequest(t, server.Router(), http.MethodGet, "/pools")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "buf-4096", resp.Pools[0].Name)
	assert.Equal(t, "buf-512", resp.Pools[1].Name)

	rec = doRequest(t, server.Router(), http.MethodGet, "/metrics")
	assert.Contains(t, rec.Body.String(), `respool_pool_capacity{pool="buf-512"} 2`)
}
