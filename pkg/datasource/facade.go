package datasource

import (
	"context"
	"time"

	"github.com/dd0wney/txsync/pkg/logging"
	"github.com/dd0wney/txsync/pkg/metrics"
	"github.com/dd0wney/txsync/pkg/txsync"
)

// Acquire obtains a connection from the given factory, reusing the
// scope-bound transactional connection when the context carries a scope
// with one. Within an active synchronization context the fetched
// connection is wrapped in a holder, bound to the scope and registered for
// cleanup at transaction completion; every further Acquire on the same
// factory then bumps the holder's reference count instead of fetching
// again.
func Acquire(ctx context.Context, f Factory) (Conn, error) {
	if f == nil {
		return nil, &AcquireError{Factory: FactoryName(f), Cause: ErrNilConn}
	}
	scope, _ := txsync.ScopeFrom(ctx)
	log, met := observers(scope)
	name := FactoryName(f)

	var holder *ConnHolder
	if scope != nil {
		if r := scope.Resource(f); r != nil {
			holder, _ = r.(*ConnHolder)
		}
	}

	if holder != nil && (holder.HasConn() || holder.SynchronizedWithTransaction()) {
		holder.Requested()
		if !holder.HasConn() {
			// Re-fetch after a suspend released the physical connection
			log.Debug("fetching resumed connection from factory", logging.Factory(name))
			conn, err := fetchConn(ctx, f, name, met)
			if err != nil {
				return nil, err
			}
			holder.SetConn(conn)
			if met != nil {
				met.RecordAcquire(name, metrics.AcquireModeResumed, 0)
			}
			return conn, nil
		}
		log.Debug("reusing transactional connection",
			logging.Factory(name), logging.RefCount(holder.RefCount()))
		if met != nil {
			met.RecordAcquire(name, metrics.AcquireModeBound, 0)
		}
		return holder.Conn(), nil
	}
	// Else we either got no holder or an empty scope-bound holder here.

	log.Debug("fetching connection from factory", logging.Factory(name))
	start := time.Now()
	conn, err := fetchConn(ctx, f, name, met)
	if err != nil {
		return nil, err
	}
	if met != nil {
		met.RecordAcquire(name, metrics.AcquireModeDirect, time.Since(start))
	}

	if scope != nil && scope.SynchronizationActive() {
		// Use the same connection for further access within the
		// transaction; the cleanup callback removes the binding at
		// transaction completion.
		holderToUse := holder
		if holderToUse == nil {
			holderToUse = NewConnHolder(conn)
		} else {
			holderToUse.SetConn(conn)
		}
		holderToUse.Requested()
		if err := scope.RegisterSynchronization(newConnSynchronization(scope, holderToUse, f)); err != nil {
			// Don't leak the connection we just fetched
			physicalClose(ctx, conn, f, log, met)
			return nil, err
		}
		holderToUse.SetSynchronizedWithTransaction(true)
		if holderToUse != holder {
			if err := scope.BindResource(f, holderToUse); err != nil {
				physicalClose(ctx, conn, f, log, met)
				return nil, err
			}
		}
	}

	return conn, nil
}

// fetchConn obtains a connection straight from the factory, defensively
// turning a nil return into an error
func fetchConn(ctx context.Context, f Factory, name string, met *metrics.Registry) (Conn, error) {
	conn, err := f.Connection(ctx)
	if err != nil {
		if met != nil {
			met.RecordAcquireFailure(name)
		}
		return nil, &AcquireError{Factory: name, Cause: err}
	}
	if conn == nil {
		if met != nil {
			met.RecordAcquireFailure(name)
		}
		return nil, &AcquireError{Factory: name, Cause: ErrNilConn}
	}
	return conn, nil
}

// Prepare applies the definition's read-only flag and isolation level to
// the connection, returning the previous isolation level if it was
// actually changed so the caller can restore it through Reset.
//
// Setting read-only is best effort: a capability rejection is logged and
// swallowed, unless the error chain reports a timeout, which is a real
// connection failure and propagates.
func Prepare(ctx context.Context, conn Conn, def *txsync.Definition) (*txsync.Isolation, error) {
	if conn == nil {
		return nil, txsync.ErrNilResource
	}
	scope, _ := txsync.ScopeFrom(ctx)
	log, met := observers(scope)

	prev, err := doPrepare(ctx, conn, def, log)
	if met != nil {
		met.RecordPrepare(err)
	}
	return prev, err
}

func doPrepare(ctx context.Context, conn Conn, def *txsync.Definition, log logging.Logger) (*txsync.Isolation, error) {
	if def != nil && def.ReadOnly {
		if err := conn.SetReadOnly(ctx, true); err != nil {
			if IsTimeout(err) {
				return nil, err
			}
			// Read-only is just a hint; the connection stays usable
			log.Debug("could not set connection read-only", logging.Error(err))
		} else {
			log.Debug("set connection read-only")
		}
	}

	// Apply specific isolation level, if any
	var prev *txsync.Isolation
	if def != nil && def.Isolation != txsync.IsolationDefault {
		current, err := conn.Isolation(ctx)
		if err != nil {
			return nil, err
		}
		if current != def.Isolation {
			log.Debug("changing connection isolation level",
				logging.Isolation(def.Isolation.String()))
			if err := conn.SetIsolation(ctx, def.Isolation); err != nil {
				return nil, err
			}
			prev = &current
		}
	}

	return prev, nil
}

// Reset restores the connection after a transaction: the isolation level
// if Prepare changed it, and the read-only flag. All failures here are
// best-effort cleanup and only logged.
func Reset(ctx context.Context, conn Conn, prevIsolation *txsync.Isolation) {
	if conn == nil {
		return
	}
	scope, _ := txsync.ScopeFrom(ctx)
	log, _ := observers(scope)

	if prevIsolation != nil {
		log.Debug("restoring connection isolation level",
			logging.Isolation(prevIsolation.String()))
		if err := conn.SetIsolation(ctx, *prevIsolation); err != nil {
			log.Debug("could not restore connection isolation level", logging.Error(err))
			return
		}
	}

	readOnly, err := conn.ReadOnly(ctx)
	if err != nil {
		log.Debug("could not query connection read-only flag", logging.Error(err))
		return
	}
	if readOnly {
		if err := conn.SetReadOnly(ctx, false); err != nil {
			log.Debug("could not reset connection read-only flag", logging.Error(err))
		}
	}
}

// Release is the mirror of Acquire. If the scope holds the passed-in
// connection for the factory, only the reference count drops; the cleanup
// callback owns the physical close. Otherwise the connection is closed
// directly, honoring a SmartFactory's veto. Close failures are logged,
// never propagated; a reference count underflow is a programming error
// and returned.
func Release(ctx context.Context, conn Conn, f Factory) error {
	if conn == nil {
		return nil
	}
	scope, _ := txsync.ScopeFrom(ctx)
	log, met := observers(scope)
	name := FactoryName(f)

	if scope != nil && f != nil {
		if r := scope.Resource(f); r != nil {
			if holder, ok := r.(*ConnHolder); ok && holder.ConnEquals(conn) {
				// It's the transactional connection: don't close it
				if err := holder.Released(); err != nil {
					return err
				}
				log.Debug("released transactional connection",
					logging.Factory(name), logging.RefCount(holder.RefCount()))
				if met != nil {
					met.RecordRelease(name, metrics.ReleaseModeLogical)
				}
				return nil
			}
		}
	}

	physicalClose(ctx, conn, f, log, met)
	return nil
}

// physicalClose closes the connection unless a SmartFactory vetoes it.
// Close failures degrade to debug logging.
func physicalClose(ctx context.Context, conn Conn, f Factory, log logging.Logger, met *metrics.Registry) {
	name := FactoryName(f)
	if sf, ok := f.(SmartFactory); ok && !sf.ShouldClose(conn) {
		log.Debug("factory retained connection on release", logging.Factory(name))
		return
	}
	if err := conn.Close(ctx); err != nil {
		log.Debug("could not close connection", logging.Factory(name), logging.Error(err))
	} else {
		log.Debug("closed connection", logging.Factory(name))
	}
	if met != nil {
		met.RecordRelease(name, metrics.ReleaseModePhysical)
	}
}

// IsConnTransactional reports whether the given connection is the one
// bound to the context's scope for the factory.
func IsConnTransactional(ctx context.Context, conn Conn, f Factory) bool {
	if f == nil {
		return false
	}
	scope, ok := txsync.ScopeFrom(ctx)
	if !ok {
		return false
	}
	r := scope.Resource(f)
	if r == nil {
		return false
	}
	holder, ok := r.(*ConnHolder)
	return ok && holder.ConnEquals(conn)
}

// ApplyTimeout derives a statement execution context from the remaining
// transaction time budget of the factory's bound holder, falling back to
// the given timeout (zero means none) outside a deadlined transaction. An
// already expired budget fails with ErrTransactionTimedOut.
func ApplyTimeout(ctx context.Context, f Factory, fallback time.Duration) (context.Context, context.CancelFunc, error) {
	var holder *ConnHolder
	if scope, ok := txsync.ScopeFrom(ctx); ok && f != nil {
		if r := scope.Resource(f); r != nil {
			holder, _ = r.(*ConnHolder)
		}
	}
	if holder != nil && holder.HasDeadline() {
		// Remaining transaction budget overrides the specified value
		if _, err := holder.TimeToLive(); err != nil {
			return ctx, func() {}, err
		}
		timeoutCtx, cancel := context.WithDeadline(ctx, holder.Deadline())
		return timeoutCtx, cancel, nil
	}
	if fallback > 0 {
		timeoutCtx, cancel := context.WithTimeout(ctx, fallback)
		return timeoutCtx, cancel, nil
	}
	return ctx, func() {}, nil
}

// observers returns the scope's logger and metrics, or inert defaults
func observers(scope *txsync.Scope) (logging.Logger, *metrics.Registry) {
	if scope == nil {
		return logging.NewNopLogger(), nil
	}
	return scope.Logger(), scope.Metrics()
}
