package network

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/guileen/respool/pool"
)

// NewPgxFactory parses dsn once and returns a factory that opens a new
// PostgreSQL connection per call, each bounded by timeout.
func NewPgxFactory(dsn string, timeout time.Duration) (pool.Factory[*pgx.Conn], error) {
	config, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, WrapError(err, "parse dsn")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	address := net.JoinHostPort(config.Host, strconv.Itoa(int(config.Port)))

	return func() (*pgx.Conn, error) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		conn, err := pgx.ConnectConfig(ctx, config.Copy())
		if err != nil {
			return nil, NewNetworkError("connect", address, err)
		}
		return conn, nil
	}, nil
}

// NewPgxPool creates a pool of PostgreSQL connections. Connections dropped by
// the pool are not closed; use Drain to close idle ones on shutdown.
func NewPgxPool(dsn string, capacity int, opts ...pool.Option) (*pool.Pool[*pgx.Conn], error) {
	if capacity < 0 {
		return nil, fmt.Errorf("negative capacity %d", capacity)
	}
	factory, err := NewPgxFactory(dsn, 0)
	if err != nil {
		return nil, err
	}
	return pool.New(factory, capacity, opts...), nil
}

// ClosePgxConns closes connections drained from a pgx pool.
func ClosePgxConns(ctx context.Context, conns []*pgx.Conn) error {
	var first error
	for _, c := range conns {
		if err := c.Close(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
