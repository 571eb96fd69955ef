// Command respool exercises the resource pools: it replays the classic
// acquire/release example, runs concurrent borrowers and can serve the admin API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/guileen/respool/admin"
	"github.com/guileen/respool/config"
	"github.com/guileen/respool/logger"
	"github.com/guileen/respool/network"
	"github.com/guileen/respool/pool"
	"github.com/guileen/respool/storage"
)

func main() {
	logger.Init(logger.LoadConfig())

	fs := pflag.NewFlagSet("respool", pflag.ContinueOnError)
	settings, help, err := parseFlags(fs, os.Args[1:])
	if help {
		cliUsage(fs)
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		cliUsage(fs)
		os.Exit(2)
	}

	cfg, err := config.Load(settings.configPath)
	if err != nil {
		logger.Error("Failed to load configuration", logger.ErrorField(err))
		os.Exit(1)
	}
	settings.apply(fs, cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", logger.ErrorField(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, settings, cfg); err != nil {
		logger.Error("respool failed", logger.String("mode", settings.mode), logger.ErrorField(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, settings cliSettings, cfg *config.Config) error {
	var (
		source admin.Pool
		err    error
	)
	switch settings.mode {
	case "conn":
		source, err = runConnDemo(ctx, out, settings, cfg)
	case "batch":
		source, err = runBatchDemo(ctx, out, settings, cfg)
	case "net":
		source, err = runNetDemo(ctx, out, settings, cfg)
	default:
		return fmt.Errorf("unknown mode %q", settings.mode)
	}
	if err != nil {
		return err
	}

	printStats(out, source.Stats())
	if !cfg.Admin.Enabled {
		return nil
	}
	return serveAdmin(ctx, cfg.Admin.Listen, source)
}

// mockConn stands in for an expensive connection
type mockConn struct {
	ID float64
}

func newMockConn() (*mockConn, error) {
	return &mockConn{ID: rand.Float64()}, nil
}

func runConnDemo(ctx context.Context, out io.Writer, settings cliSettings, cfg *config.Config) (*pool.Pool[*mockConn], error) {
	p := pool.New(newMockConn, cfg.Pool.Capacity, cfg.Pool.Options()...)

	conn1, err := p.Acquire()
	if err != nil {
		fmt.Fprintln(out, err)
	} else {
		fmt.Fprintf(out, "Acquired resource: %+v\n", *conn1)
		if err := p.Release(conn1); err != nil {
			return nil, err
		}
	}
	fmt.Fprintln(out, "Pool size after release:", p.Size())

	conns := make([]*mockConn, 0, settings.requests)
	for range settings.requests {
		c, err := p.Acquire()
		if err != nil {
			fmt.Fprintln(out, err)
			break
		}
		conns = append(conns, c)
	}
	if len(conns) == settings.requests {
		fmt.Fprintf(out, "Connections: %d acquired\n", len(conns))
	}
	for _, c := range conns {
		if err := p.Release(c); err != nil {
			fmt.Fprintln(out, err)
		}
	}

	// a zero-capacity pool never grants a waiter
	if p.Cap() == 0 {
		fmt.Fprintln(out, "Borrowers skipped: pool capacity is 0")
		return p, nil
	}

	timeout := cfg.Pool.AcquireTimeoutDuration()
	var timedOut int64
	err = borrow(ctx, settings, func(ctx context.Context) error {
		wctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		c, err := p.AcquireWait(wctx)
		if pool.IsTimeout(err) && ctx.Err() == nil {
			atomic.AddInt64(&timedOut, 1)
			return nil
		}
		if err != nil {
			return err
		}
		time.Sleep(time.Millisecond)
		if err := p.Release(c); err != nil && !errors.Is(err, pool.ErrPoolFull) {
			return err
		}
		return nil
	})
	if n := atomic.LoadInt64(&timedOut); n > 0 {
		fmt.Fprintf(out, "Borrowers timed out %d times\n", n)
	}
	return p, err
}

func runBatchDemo(ctx context.Context, out io.Writer, settings cliSettings, cfg *config.Config) (*storage.BatchPool, error) {
	db, err := storage.Open("respool", true)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	bp := storage.NewBatchPool(db, cfg.Pool.Capacity, pool.WithName(cfg.Pool.Name))
	defer bp.Close()
	if cfg.Pool.Capacity == 0 {
		fmt.Fprintln(out, "Borrowers skipped: pool capacity is 0")
		return bp, nil
	}

	var written int64
	err = borrow(ctx, settings, func(ctx context.Context) error {
		n := atomic.AddInt64(&written, 1)
		return bp.Update(func(b *pebble.Batch) error {
			key := fmt.Sprintf("key-%06d", n)
			return b.Set([]byte(key), []byte(time.Now().Format(time.RFC3339Nano)), nil)
		}, false)
	})
	if err != nil {
		return nil, err
	}

	iter, err := db.NewIter(nil)
	if err != nil {
		return nil, err
	}
	var keys int
	for iter.First(); iter.Valid(); iter.Next() {
		keys++
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "Wrote %d keys through %d pooled batches\n", keys, bp.Stats().Misses)
	return bp, nil
}

func runNetDemo(ctx context.Context, out io.Writer, settings cliSettings, cfg *config.Config) (*network.ConnectionPool, error) {
	if cfg.Network.Address == "" {
		return nil, errors.New("net mode needs --address or network.address")
	}
	dialTimeout := cfg.Network.DialTimeoutDuration()
	cp := network.NewConnectionPool(network.PoolConfig{
		Name:              cfg.Pool.Name,
		MaxIdleConns:      cfg.Pool.Capacity,
		ConnectionTimeout: cfg.Pool.AcquireTimeoutDuration(),
		Strict:            cfg.Pool.Limit == pool.LimitLive.String(),
	}, network.NewTCPFactory(cfg.Network.Address, dialTimeout))

	err := borrow(ctx, settings, func(ctx context.Context) error {
		conn, err := cp.Get(ctx)
		if err != nil {
			return err
		}
		return conn.Close()
	})
	fmt.Fprintf(out, "Connections closed: %d\n", cp.ClosedConnections())
	if cerr := cp.Close(); err == nil {
		err = cerr
	}
	return cp, err
}

// borrow runs settings.borrowers goroutines, each calling fn settings.requests
// times. The first error cancels the rest.
func borrow(ctx context.Context, settings cliSettings, fn func(ctx context.Context) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for range settings.borrowers {
		g.Go(func() error {
			for range settings.requests {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := fn(ctx); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func printStats(out io.Writer, s pool.Stats) {
	fmt.Fprintf(out, "Pool %q: capacity=%d idle=%d hits=%d misses=%d hit_rate=%.1f%% discards=%d rejected=%d waits=%d timeouts=%d\n",
		s.Name, s.Capacity, s.Idle, s.Hits, s.Misses, s.HitRate(), s.Discards, s.Rejected, s.Waits, s.Timeouts)
}

func serveAdmin(ctx context.Context, addr string, source admin.Pool) error {
	srv, err := admin.NewServer()
	if err != nil {
		return err
	}
	if err := srv.Register(source); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Admin API listening", logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down admin API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
