// Package pgxds adapts a pgx connection pool to the datasource contracts,
// so PostgreSQL connections can participate in scope-bound transactions.
package pgxds

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dd0wney/txsync/pkg/datasource"
	"github.com/dd0wney/txsync/pkg/txsync"
)

// Config holds the connection pool settings
type Config struct {
	URL             string        `yaml:"url"`
	Name            string        `yaml:"name"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

// Factory hands out PostgreSQL connections from a pgx pool
type Factory struct {
	pool *pgxpool.Pool
	name string
}

// New creates a PostgreSQL-backed connection factory
func New(ctx context.Context, cfg Config) (*Factory, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pooling configuration
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	name := cfg.Name
	if name == "" {
		name = "postgres"
	}
	return &Factory{pool: pool, name: name}, nil
}

// NewFromPool wraps an existing pool without taking ownership of its
// lifecycle
func NewFromPool(pool *pgxpool.Pool, name string) *Factory {
	return &Factory{pool: pool, name: name}
}

// Name returns the factory label used in logs and metrics
func (f *Factory) Name() string {
	return f.name
}

// Connection implements datasource.Factory
func (f *Factory) Connection(ctx context.Context) (datasource.Conn, error) {
	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Conn{conn: conn}, nil
}

// Ping checks database connectivity
func (f *Factory) Ping(ctx context.Context) error {
	return f.pool.Ping(ctx)
}

// Close closes the underlying connection pool
func (f *Factory) Close() {
	f.pool.Close()
}

// Conn is one pooled PostgreSQL connection
type Conn struct {
	conn *pgxpool.Conn
}

// Raw exposes the wrapped pgx connection for statement execution
func (c *Conn) Raw() *pgxpool.Conn {
	return c.conn
}

// SetReadOnly implements datasource.Conn by toggling the session default
// for new transactions
func (c *Conn) SetReadOnly(ctx context.Context, readOnly bool) error {
	mode := "off"
	if readOnly {
		mode = "on"
	}
	_, err := c.conn.Exec(ctx, "SET default_transaction_read_only = "+mode)
	return err
}

// ReadOnly implements datasource.Conn
func (c *Conn) ReadOnly(ctx context.Context) (bool, error) {
	var mode string
	if err := c.conn.QueryRow(ctx, "SHOW default_transaction_read_only").Scan(&mode); err != nil {
		return false, err
	}
	return mode == "on", nil
}

// isolationSQL maps isolation levels to their SQL spelling. Levels go
// through this table, never into the statement directly.
var isolationSQL = map[txsync.Isolation]string{
	txsync.IsolationReadUncommitted: "READ UNCOMMITTED",
	txsync.IsolationReadCommitted:   "READ COMMITTED",
	txsync.IsolationRepeatableRead:  "REPEATABLE READ",
	txsync.IsolationSerializable:    "SERIALIZABLE",
}

// Isolation implements datasource.Conn. Postgres reports the level with
// the same lowercase spelling ParseIsolation accepts.
func (c *Conn) Isolation(ctx context.Context) (txsync.Isolation, error) {
	var level string
	if err := c.conn.QueryRow(ctx, "SHOW default_transaction_isolation").Scan(&level); err != nil {
		return txsync.IsolationDefault, err
	}
	return txsync.ParseIsolation(level)
}

// SetIsolation implements datasource.Conn
func (c *Conn) SetIsolation(ctx context.Context, level txsync.Isolation) error {
	sql, ok := isolationSQL[level]
	if !ok {
		return fmt.Errorf("cannot set isolation level %v", level)
	}
	_, err := c.conn.Exec(ctx, "SET SESSION CHARACTERISTICS AS TRANSACTION ISOLATION LEVEL "+sql)
	return err
}

// Close implements datasource.Conn by returning the connection to the
// pool
func (c *Conn) Close(ctx context.Context) error {
	c.conn.Release()
	return nil
}
