package network

import (
	"context"
	"net"
	"time"
)

// ConnectionFactory opens new connections for a ConnectionPool
type ConnectionFactory interface {
	CreateConnection(ctx context.Context) (net.Conn, error)
}

// ConnectionFactoryFunc adapts a function to ConnectionFactory
type ConnectionFactoryFunc func(ctx context.Context) (net.Conn, error)

func (f ConnectionFactoryFunc) CreateConnection(ctx context.Context) (net.Conn, error) {
	return f(ctx)
}

// DialerFactory dials network/address for every new connection
type DialerFactory struct {
	network string
	address string
	dialer  net.Dialer
}

// NewTCPFactory creates a DialerFactory for TCP connections
func NewTCPFactory(address string, timeout time.Duration) *DialerFactory {
	return NewDialerFactory("tcp", address, timeout)
}

// NewUnixFactory creates a DialerFactory for Unix socket connections
func NewUnixFactory(socketPath string, timeout time.Duration) *DialerFactory {
	return NewDialerFactory("unix", socketPath, timeout)
}

// NewDialerFactory creates a DialerFactory. A non-positive timeout defaults to 30s.
func NewDialerFactory(network, address string, timeout time.Duration) *DialerFactory {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DialerFactory{
		network: network,
		address: address,
		dialer:  net.Dialer{Timeout: timeout},
	}
}

// Address returns the dialed address
func (f *DialerFactory) Address() string { return f.address }

// CreateConnection dials a new connection, honoring the earlier of ctx's
// deadline and the factory timeout
func (f *DialerFactory) CreateConnection(ctx context.Context) (net.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewNetworkError("dial", f.address, err)
	}
	conn, err := f.dialer.DialContext(ctx, f.network, f.address)
	if err != nil {
		return nil, NewNetworkError("dial", f.address, err)
	}
	return conn, nil
}
