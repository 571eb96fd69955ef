// Package network pools client connections on top of the generic resource pool.
package network

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guileen/respool/logger"
	"github.com/guileen/respool/pool"
)

// PoolConfig defines configuration for the connection pool
type PoolConfig struct {
	Name              string
	MaxIdleConns      int           // idle connections kept, and live connections in strict mode
	ConnectionTimeout time.Duration // bounds dialing, and waiting for a connection in strict mode
	Strict            bool          // never open more than MaxIdleConns connections
}

// DefaultPoolConfig returns the configuration used for zero fields
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Name:              "connections",
		MaxIdleConns:      5,
		ConnectionTimeout: 30 * time.Second,
	}
}

func (c PoolConfig) withDefaults() PoolConfig {
	def := DefaultPoolConfig()
	if c.Name == "" {
		c.Name = def.Name
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = def.MaxIdleConns
	}
	if c.ConnectionTimeout <= 0 {
		c.ConnectionTimeout = def.ConnectionTimeout
	}
	return c
}

// ConnectionPool hands out connections opened by a ConnectionFactory and keeps
// returned ones for reuse. Connections that do not fit in the idle set are
// closed.
type ConnectionPool struct {
	config  PoolConfig
	factory ConnectionFactory
	pool    *pool.Pool[net.Conn]
	log     *slog.Logger

	mu     sync.RWMutex // held exclusively while closing
	closed bool

	closedConns uint64
}

// NewConnectionPool creates a connection pool. No connection is opened until
// the first Get.
func NewConnectionPool(config PoolConfig, factory ConnectionFactory) *ConnectionPool {
	config = config.withDefaults()
	base := logger.With(logger.Component("network"))
	cp := &ConnectionPool{
		config:  config,
		factory: factory,
		log:     base.With(logger.PoolName(config.Name)),
	}

	limit := pool.LimitIdle
	if config.Strict {
		limit = pool.LimitLive
	}
	cp.pool = pool.New(cp.dial, config.MaxIdleConns,
		pool.WithName(config.Name),
		pool.WithFullPolicy(pool.FullError),
		pool.WithLimitMode(limit),
		pool.WithLogger(base),
	)
	return cp
}

func (p *ConnectionPool) dial() (net.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.ConnectionTimeout)
	defer cancel()
	return p.factory.CreateConnection(ctx)
}

// Get returns an idle connection or opens a new one. In strict mode it waits
// up to ConnectionTimeout, or until ctx ends, for a connection to be returned.
func (p *ConnectionPool) Get(ctx context.Context) (*PooledConnection, error) {
	if p.isClosed() {
		return nil, ErrPoolClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		conn net.Conn
		err  error
	)
	if p.config.Strict {
		wctx, cancel := context.WithTimeout(ctx, p.config.ConnectionTimeout)
		conn, err = p.pool.AcquireWait(wctx)
		cancel()
	} else {
		conn, err = p.pool.Acquire()
	}
	if err != nil {
		return nil, err
	}
	// Close may have run while this Get waited or dialed
	if p.isClosed() {
		p.pool.Forget()
		_ = p.closeConn(conn)
		return nil, ErrPoolClosed
	}

	return &PooledConnection{
		Conn:       conn,
		pool:       p,
		acquiredAt: time.Now(),
	}, nil
}

// Put returns a connection to the pool. It is the same as conn.Close().
func (p *ConnectionPool) Put(conn *PooledConnection) error {
	return conn.Close()
}

func (p *ConnectionPool) put(pc *PooledConnection) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed || pc.unusable.Load() {
		p.pool.Forget()
		return p.closeConn(pc.Conn)
	}

	err := p.pool.Release(pc.Conn)
	if errors.Is(err, pool.ErrPoolFull) {
		return p.closeConn(pc.Conn)
	}
	return err
}

func (p *ConnectionPool) closeConn(conn net.Conn) error {
	atomic.AddUint64(&p.closedConns, 1)
	if err := conn.Close(); err != nil {
		return NewNetworkError("close", remoteAddr(conn), err)
	}
	return nil
}

// Clear closes every idle connection. Borrowed connections are unaffected.
func (p *ConnectionPool) Clear() {
	for _, conn := range p.pool.Drain() {
		if err := p.closeConn(conn); err != nil {
			p.log.Debug("closing idle connection failed", logger.Operation("clear"), logger.ErrorField(err))
		}
	}
}

// Close closes every idle connection and makes later Gets fail with
// ErrPoolClosed. Borrowed connections are closed when they are returned.
func (p *ConnectionPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.pool.Drain()
	p.mu.Unlock()

	var errs []error
	for _, conn := range idle {
		if err := p.closeConn(conn); err != nil {
			errs = append(errs, err)
		}
	}
	p.log.Info("connection pool closed", logger.Int("idle_closed", len(idle)))
	return errors.Join(errs...)
}

func (p *ConnectionPool) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// Name returns the pool name
func (p *ConnectionPool) Name() string { return p.config.Name }

// Config returns the effective configuration
func (p *ConnectionPool) Config() PoolConfig { return p.config }

// Size returns the number of idle connections
func (p *ConnectionPool) Size() int { return p.pool.Size() }

// Stats returns the underlying pool statistics
func (p *ConnectionPool) Stats() pool.Stats { return p.pool.Stats() }

// ClosedConnections returns how many connections the pool has closed
func (p *ConnectionPool) ClosedConnections() uint64 {
	return atomic.LoadUint64(&p.closedConns)
}

// PooledConnection is a borrowed connection. Closing it returns the
// underlying connection to its pool.
type PooledConnection struct {
	net.Conn
	pool       *ConnectionPool
	acquiredAt time.Time
	released   atomic.Bool
	unusable   atomic.Bool
}

// Close returns the connection to the pool. Only the first call has an effect.
func (pc *PooledConnection) Close() error {
	if pc.released.Swap(true) {
		return nil
	}
	return pc.pool.put(pc)
}

// MarkUnusable makes Close really close the connection instead of pooling it.
// Call it after an I/O error.
func (pc *PooledConnection) MarkUnusable() {
	pc.unusable.Store(true)
}

// Raw returns the underlying connection
func (pc *PooledConnection) Raw() net.Conn { return pc.Conn }

// AcquiredAt returns when the connection was handed out
func (pc *PooledConnection) AcquiredAt() time.Time { return pc.acquiredAt }

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
