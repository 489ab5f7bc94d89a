package datasource

import (
	"context"
	"fmt"

	"github.com/dd0wney/txsync/pkg/txsync"
)

// ConnSynchronizationOrder is the chain position of the facade's cleanup
// callback. Participants that piggyback on the managed connection should
// use a lower order so they run before the connection is given back.
const ConnSynchronizationOrder = 1000

// Factory supplies transactional connection handles, typically backed by a
// connection pool. The Connection call may block on network I/O; any
// timeout discipline is the factory's own concern.
type Factory interface {
	Connection(ctx context.Context) (Conn, error)
}

// SmartFactory is an optional Factory capability for pooling proxies that
// want to suppress the physical close of handles they manage themselves.
type SmartFactory interface {
	Factory
	// ShouldClose reports whether the given connection should really be
	// closed when released outside a transaction.
	ShouldClose(conn Conn) bool
}

// DelegatingFactory is an optional Factory capability for decorators that
// wrap another factory. Every delegation level lowers the cleanup
// callback's order so inner factories release closer to the boundary.
type DelegatingFactory interface {
	Factory
	Target() Factory
}

// Conn is one transactional connection handle. Implementations are
// single-goroutine-use by contract: a handle belongs to exactly one
// logical goroutine for the lifetime of one transaction.
type Conn interface {
	SetReadOnly(ctx context.Context, readOnly bool) error
	ReadOnly(ctx context.Context) (bool, error)
	Isolation(ctx context.Context) (txsync.Isolation, error)
	SetIsolation(ctx context.Context, level txsync.Isolation) error
	Close(ctx context.Context) error
}

// Unwrapper is an optional Conn capability implemented by decorators: it
// exposes the next inner connection, one level at a time. Target loops it
// so equality checks see through any proxy stack without reflection.
type Unwrapper interface {
	Unwrap() Conn
}

// Target returns the innermost connection of the given handle, unwrapping
// decorator layers until none is left.
func Target(conn Conn) Conn {
	for {
		u, ok := conn.(Unwrapper)
		if !ok {
			return conn
		}
		inner := u.Unwrap()
		if inner == nil {
			return conn
		}
		conn = inner
	}
}

// FactoryName returns a stable label for the factory, for logs and
// metrics. Factories may implement Name() string; the type name is the
// fallback.
func FactoryName(f Factory) string {
	if f == nil {
		return "none"
	}
	if n, ok := f.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", f)
}

// syncOrder computes the cleanup callback order for the factory, lowered
// once per delegation level
func syncOrder(f Factory) int {
	order := ConnSynchronizationOrder
	for {
		df, ok := f.(DelegatingFactory)
		if !ok {
			return order
		}
		order--
		f = df.Target()
		if f == nil {
			return order
		}
	}
}
