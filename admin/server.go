// Package admin serves an HTTP API for inspecting and clearing pools.
package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/guileen/respool/logger"
	"github.com/guileen/respool/metrics"
	"github.com/guileen/respool/pool"
)

// Pool is what the admin API needs from a registered pool
type Pool interface {
	metrics.Source
	Clear()
}

// Server keeps the registered pools and their metrics registry
type Server struct {
	mu       sync.RWMutex
	pools    map[string]Pool
	registry *prometheus.Registry
}

// NewServer creates an admin server with an empty registry
func NewServer() (*Server, error) {
	reg, err := metrics.NewRegistry()
	if err != nil {
		return nil, err
	}
	return &Server{
		pools:    make(map[string]Pool),
		registry: reg,
	}, nil
}

// Register adds a pool under its name and exports its metrics
func (s *Server) Register(p Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := p.Name()
	if _, exists := s.pools[name]; exists {
		return fmt.Errorf("pool %q already registered", name)
	}
	if err := s.registry.Register(metrics.NewCollector(p)); err != nil {
		return fmt.Errorf("register metrics for pool %q: %w", name, err)
	}
	s.pools[name] = p
	return nil
}

// RegisterRoutes mounts the admin endpoints on r
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/pools", s.ListPools)
	r.Route("/pools/{name}", func(r chi.Router) {
		r.Get("/", s.GetPool)
		r.Post("/clear", s.ClearPool)
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler(s.registry))
}

// Router builds a chi router serving the admin endpoints and pprof under /debug
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logContext)
	s.RegisterRoutes(r)
	r.Mount("/debug", middleware.Profiler())
	return r
}

type StatsResponse struct {
	Name               string  `json:"name"`
	Capacity           int     `json:"capacity"`
	Idle               int     `json:"idle"`
	Live               *int    `json:"live,omitempty"`
	Hits               uint64  `json:"hits"`
	Misses             uint64  `json:"misses"`
	HitRate            float64 `json:"hit_rate"`
	ConstructionErrors uint64  `json:"construction_errors"`
	Exhausted          uint64  `json:"exhausted"`
	Releases           uint64  `json:"releases"`
	Discards           uint64  `json:"discards"`
	Rejected           uint64  `json:"rejected"`
	Evictions          uint64  `json:"evictions"`
	Handoffs           uint64  `json:"handoffs"`
	Waits              uint64  `json:"waits"`
	Timeouts           uint64  `json:"timeouts"`
	Clears             uint64  `json:"clears"`
}

type ListResponse struct {
	Pools []StatsResponse `json:"pools"`
	Count int             `json:"count"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func newStatsResponse(st pool.Stats) StatsResponse {
	resp := StatsResponse{
		Name:               st.Name,
		Capacity:           st.Capacity,
		Idle:               st.Idle,
		Hits:               st.Hits,
		Misses:             st.Misses,
		HitRate:            st.HitRate(),
		ConstructionErrors: st.ConstructionErrors,
		Exhausted:          st.Exhausted,
		Releases:           st.Releases,
		Discards:           st.Discards,
		Rejected:           st.Rejected,
		Evictions:          st.Evictions,
		Handoffs:           st.Handoffs,
		Waits:              st.Waits,
		Timeouts:           st.Timeouts,
		Clears:             st.Clears,
	}
	if st.Live >= 0 {
		live := st.Live
		resp.Live = &live
	}
	return resp
}

func (s *Server) ListPools(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	names := make([]string, 0, len(s.pools))
	for name := range s.pools {
		names = append(names, name)
	}
	slices.Sort(names)
	resp := ListResponse{Pools: make([]StatsResponse, 0, len(names))}
	for _, name := range names {
		resp.Pools = append(resp.Pools, newStatsResponse(s.pools[name].Stats()))
	}
	s.mu.RUnlock()

	resp.Count = len(resp.Pools)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) GetPool(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newStatsResponse(p.Stats()))
}

func (s *Server) ClearPool(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookup(w, r)
	if !ok {
		return
	}
	p.Clear()
	ctx := logger.WithContextValue(r.Context(), logger.PoolKey, p.Name())
	logger.InfoContext(ctx, "pool cleared via admin API")
	writeJSON(w, http.StatusOK, newStatsResponse(p.Stats()))
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (Pool, bool) {
	name := chi.URLParam(r, "name")
	s.mu.RLock()
	p, ok := s.pools[name]
	s.mu.RUnlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("pool %q not found", name)})
	}
	return p, ok
}

// logContext exposes the request id to the logger's context helpers
func logContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(logger.WithContextValue(r.Context(), logger.RequestIDKey, id))
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode admin response", logger.ErrorField(err))
	}
}
