// Package memds provides an in-memory connection factory, used by the
// test suites and by the demo binary when no database is reachable. It
// tracks every fetched handle so tests can assert how often connections
// were physically opened and closed.
package memds

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dd0wney/txsync/pkg/datasource"
	"github.com/dd0wney/txsync/pkg/txsync"
)

var (
	ErrConnClosed          = errors.New("connection already closed")
	ErrReadOnlyUnsupported = errors.New("read-only mode not supported")
)

// TimeoutError is a connection setup timeout reported through the standard
// Timeout() convention.
type TimeoutError struct {
	Op string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out", e.Op)
}

func (e *TimeoutError) Timeout() bool {
	return true
}

// Factory is an in-memory connection factory
type Factory struct {
	name string

	mu      sync.Mutex
	conns   []*Conn
	fetches int
	connErr error
	retain  bool
}

// New creates a named in-memory factory
func New(name string) *Factory {
	return &Factory{name: name}
}

// Name returns the factory label used in logs and metrics
func (f *Factory) Name() string {
	return f.name
}

// Connection fetches a fresh in-memory connection
func (f *Factory) Connection(ctx context.Context) (datasource.Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connErr != nil {
		return nil, f.connErr
	}
	f.fetches++
	conn := &Conn{
		factory:   f,
		id:        f.fetches,
		isolation: txsync.IsolationReadCommitted,
	}
	f.conns = append(f.conns, conn)
	return conn, nil
}

// ShouldClose implements datasource.SmartFactory; a retaining factory
// vetoes the physical close of its handles
func (f *Factory) ShouldClose(conn datasource.Conn) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.retain
}

// SetRetain makes the factory veto physical closes
func (f *Factory) SetRetain(retain bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retain = retain
}

// FailWith makes every subsequent Connection call fail with err; pass nil
// to recover
func (f *Factory) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connErr = err
}

// Fetches returns how many connections were physically fetched
func (f *Factory) Fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

// OpenConns returns how many fetched connections are still open
func (f *Factory) OpenConns() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	open := 0
	for _, c := range f.conns {
		if !c.Closed() {
			open++
		}
	}
	return open
}

// Conn is an in-memory connection handle
type Conn struct {
	factory *Factory
	id      int

	mu          sync.Mutex
	closed      bool
	closes      int
	readOnly    bool
	isolation   txsync.Isolation
	readOnlyErr error
}

// ID returns the fetch sequence number of this connection
func (c *Conn) ID() int {
	return c.id
}

// FailReadOnly makes SetReadOnly fail with err; pass nil to recover
func (c *Conn) FailReadOnly(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readOnlyErr = err
}

// SetReadOnly implements datasource.Conn
func (c *Conn) SetReadOnly(ctx context.Context, readOnly bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	if c.readOnlyErr != nil {
		return c.readOnlyErr
	}
	c.readOnly = readOnly
	return nil
}

// ReadOnly implements datasource.Conn
func (c *Conn) ReadOnly(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, ErrConnClosed
	}
	return c.readOnly, nil
}

// Isolation implements datasource.Conn
func (c *Conn) Isolation(ctx context.Context) (txsync.Isolation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return txsync.IsolationDefault, ErrConnClosed
	}
	return c.isolation, nil
}

// SetIsolation implements datasource.Conn
func (c *Conn) SetIsolation(ctx context.Context, level txsync.Isolation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	c.isolation = level
	return nil
}

// Close implements datasource.Conn. Closing twice fails, so tests catch
// double physical closes.
func (c *Conn) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	if c.closed {
		return ErrConnClosed
	}
	c.closed = true
	return nil
}

// Closed reports whether the connection was physically closed
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Closes returns how many times Close was called
func (c *Conn) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}
