package datasource_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dd0wney/txsync/pkg/datasource"
	"github.com/dd0wney/txsync/pkg/memds"
	"github.com/dd0wney/txsync/pkg/txsync"
)

// setupScope creates a context carrying a fresh scope with an active
// synchronization chain
func setupScope(t *testing.T) (context.Context, *txsync.Scope) {
	t.Helper()

	scope := txsync.NewScope(nil)
	if err := scope.InitSynchronization(); err != nil {
		t.Fatalf("Failed to init synchronization: %v", err)
	}
	return txsync.WithScope(context.Background(), scope), scope
}

func TestAcquireWithoutScope(t *testing.T) {
	factory := memds.New("plain")
	ctx := context.Background()

	conn, err := datasource.Acquire(ctx, factory)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if factory.Fetches() != 1 {
		t.Errorf("Expected 1 fetch, got %d", factory.Fetches())
	}

	// No transaction context: release closes immediately
	if err := datasource.Release(ctx, conn, factory); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if factory.OpenConns() != 0 {
		t.Error("Connection should be physically closed after release")
	}
}

func TestAcquireWithoutActiveSynchronization(t *testing.T) {
	// A scope without an initialized chain behaves like no scope at all
	scope := txsync.NewScope(nil)
	ctx := txsync.WithScope(context.Background(), scope)
	factory := memds.New("inactive")

	conn, err := datasource.Acquire(ctx, factory)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if scope.Resource(factory) != nil {
		t.Error("No holder should be bound without active synchronization")
	}

	datasource.Release(ctx, conn, factory)
	if factory.OpenConns() != 0 {
		t.Error("Connection should be closed directly")
	}
}

func TestAcquireTransactionalLifecycle(t *testing.T) {
	ctx, scope := setupScope(t)
	factory := memds.New("primary")

	conn1, err := datasource.Acquire(ctx, factory)
	if err != nil {
		t.Fatalf("First acquire failed: %v", err)
	}

	holder, ok := scope.Resource(factory).(*datasource.ConnHolder)
	if !ok {
		t.Fatal("Expected a bound ConnHolder")
	}
	if !holder.SynchronizedWithTransaction() {
		t.Error("Holder should be marked synchronized")
	}
	if holder.RefCount() != 1 {
		t.Errorf("Expected ref count 1, got %d", holder.RefCount())
	}

	// Second acquire reuses the same physical connection
	conn2, err := datasource.Acquire(ctx, factory)
	if err != nil {
		t.Fatalf("Second acquire failed: %v", err)
	}
	if conn1 != conn2 {
		t.Error("Expected the same transactional connection")
	}
	if factory.Fetches() != 1 {
		t.Errorf("Expected a single physical fetch, got %d", factory.Fetches())
	}
	if holder.RefCount() != 2 {
		t.Errorf("Expected ref count 2, got %d", holder.RefCount())
	}

	// Releases only drop the count; the chain owns the physical close
	if err := datasource.Release(ctx, conn1, factory); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := datasource.Release(ctx, conn2, factory); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if holder.RefCount() != 0 {
		t.Errorf("Expected ref count 0, got %d", holder.RefCount())
	}
	if factory.OpenConns() != 1 {
		t.Error("Connection should stay open until transaction completion")
	}

	scope.TriggerBeforeCompletion()
	scope.TriggerAfterCompletion(txsync.StatusCommitted)

	if factory.OpenConns() != 0 {
		t.Error("Connection should be closed after completion")
	}
	if scope.Resource(factory) != nil {
		t.Error("Holder should be unbound after completion")
	}
	if holder.RefCount() != 0 || holder.SynchronizedWithTransaction() {
		t.Error("Holder should be reset after completion")
	}
}

func TestReleaseBelowZero(t *testing.T) {
	ctx, _ := setupScope(t)
	factory := memds.New("primary")

	conn, err := datasource.Acquire(ctx, factory)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if err := datasource.Release(ctx, conn, factory); err != nil {
		t.Fatalf("First release failed: %v", err)
	}
	err = datasource.Release(ctx, conn, factory)
	if !errors.Is(err, txsync.ErrNegativeRefCount) {
		t.Errorf("Expected ErrNegativeRefCount, got %v", err)
	}
}

func TestAcquireFailureTranslated(t *testing.T) {
	ctx, _ := setupScope(t)
	factory := memds.New("down")
	cause := errors.New("connection refused")
	factory.FailWith(cause)

	_, err := datasource.Acquire(ctx, factory)
	var acquireErr *datasource.AcquireError
	if !errors.As(err, &acquireErr) {
		t.Fatalf("Expected AcquireError, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("AcquireError should wrap the factory's cause")
	}
}

func TestSuspendResumeTransparency(t *testing.T) {
	ctx, scope := setupScope(t)
	factory := memds.New("primary")

	conn, err := datasource.Acquire(ctx, factory)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := datasource.Release(ctx, conn, factory); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	// Suspend releases the idle physical connection and unbinds the holder
	suspended, err := scope.SuspendSynchronizations()
	if err != nil {
		t.Fatalf("Suspend failed: %v", err)
	}
	if scope.Resource(factory) != nil {
		t.Error("Holder should be unbound while suspended")
	}
	if factory.OpenConns() != 0 {
		t.Error("Idle connection should be closed on suspend")
	}

	if err := scope.ResumeSynchronizations(suspended); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}

	// The caller needs no knowledge of the suspension: the next acquire
	// transparently re-fetches from the same factory
	conn2, err := datasource.Acquire(ctx, factory)
	if err != nil {
		t.Fatalf("Acquire after resume failed: %v", err)
	}
	if conn2 == nil {
		t.Fatal("Expected a usable connection after resume")
	}
	if factory.Fetches() != 2 {
		t.Errorf("Expected a lazy re-fetch, got %d fetches", factory.Fetches())
	}

	if err := datasource.Release(ctx, conn2, factory); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	scope.TriggerBeforeCompletion()
	scope.TriggerAfterCompletion(txsync.StatusCommitted)
	if factory.OpenConns() != 0 {
		t.Error("All connections should be closed after completion")
	}
}

func TestAfterCompletionFromAnotherGoroutine(t *testing.T) {
	ctx, scope := setupScope(t)
	factory := memds.New("primary")

	conn, err := datasource.Acquire(ctx, factory)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := datasource.Release(ctx, conn, factory); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	// Ownership handoff: the manager completes the transaction elsewhere
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scope.TriggerAfterCompletion(txsync.StatusRolledBack)
	}()
	wg.Wait()

	if factory.OpenConns() != 0 {
		t.Error("Connection should be closed after cross-goroutine completion")
	}
	if scope.Resource(factory) != nil {
		t.Error("Holder should be unbound after cross-goroutine completion")
	}
}

func TestSmartFactoryVeto(t *testing.T) {
	factory := memds.New("pooled")
	factory.SetRetain(true)
	ctx := context.Background()

	conn, err := datasource.Acquire(ctx, factory)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := datasource.Release(ctx, conn, factory); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	if factory.OpenConns() != 1 {
		t.Error("Retaining factory should veto the physical close")
	}
}

func TestIsConnTransactional(t *testing.T) {
	ctx, scope := setupScope(t)
	factory := memds.New("primary")
	other := memds.New("other")

	conn, err := datasource.Acquire(ctx, factory)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if !datasource.IsConnTransactional(ctx, conn, factory) {
		t.Error("Bound connection should be transactional")
	}
	if datasource.IsConnTransactional(ctx, conn, other) {
		t.Error("Connection is not bound for the other factory")
	}
	if datasource.IsConnTransactional(context.Background(), conn, factory) {
		t.Error("No scope means not transactional")
	}

	datasource.Release(ctx, conn, factory)
	scope.TriggerAfterCompletion(txsync.StatusCommitted)
}

func TestPrepareAndReset(t *testing.T) {
	ctx := context.Background()
	factory := memds.New("primary")
	conn, err := datasource.Acquire(ctx, factory)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	def := &txsync.Definition{ReadOnly: true, Isolation: txsync.IsolationSerializable}
	prev, err := datasource.Prepare(ctx, conn, def)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if prev == nil || *prev != txsync.IsolationReadCommitted {
		t.Errorf("Expected previous level read committed, got %v", prev)
	}

	level, _ := conn.Isolation(ctx)
	if level != txsync.IsolationSerializable {
		t.Errorf("Expected serializable, got %v", level)
	}
	readOnly, _ := conn.ReadOnly(ctx)
	if !readOnly {
		t.Error("Connection should be read-only")
	}

	datasource.Reset(ctx, conn, prev)

	level, _ = conn.Isolation(ctx)
	if level != txsync.IsolationReadCommitted {
		t.Errorf("Expected isolation restored, got %v", level)
	}
	readOnly, _ = conn.ReadOnly(ctx)
	if readOnly {
		t.Error("Read-only flag should be cleared")
	}
}

func TestPrepareUnchangedIsolation(t *testing.T) {
	ctx := context.Background()
	factory := memds.New("primary")
	conn, _ := datasource.Acquire(ctx, factory)

	// Same level as the connection's current one: nothing to restore
	prev, err := datasource.Prepare(ctx, conn, &txsync.Definition{Isolation: txsync.IsolationReadCommitted})
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if prev != nil {
		t.Errorf("Expected no previous level, got %v", *prev)
	}
}

func TestPrepareReadOnlyCapabilityRejection(t *testing.T) {
	ctx := context.Background()
	factory := memds.New("primary")
	conn, _ := datasource.Acquire(ctx, factory)
	conn.(*memds.Conn).FailReadOnly(memds.ErrReadOnlyUnsupported)

	// A capability rejection is just a hint failure and gets swallowed
	if _, err := datasource.Prepare(ctx, conn, &txsync.Definition{ReadOnly: true}); err != nil {
		t.Errorf("Capability rejection should be swallowed, got %v", err)
	}
}

func TestPrepareReadOnlyTimeoutPropagates(t *testing.T) {
	ctx := context.Background()
	factory := memds.New("primary")
	conn, _ := datasource.Acquire(ctx, factory)
	conn.(*memds.Conn).FailReadOnly(&memds.TimeoutError{Op: "set read-only"})

	_, err := datasource.Prepare(ctx, conn, &txsync.Definition{ReadOnly: true})
	if err == nil {
		t.Fatal("Timeout during connection setup must propagate")
	}
	if !datasource.IsTimeout(err) {
		t.Errorf("Expected a timeout error, got %v", err)
	}
}

func TestApplyTimeout(t *testing.T) {
	ctx, scope := setupScope(t)
	factory := memds.New("primary")

	conn, err := datasource.Acquire(ctx, factory)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	holder := scope.Resource(factory).(*datasource.ConnHolder)
	holder.SetTimeout(time.Minute)

	stmtCtx, cancel, err := datasource.ApplyTimeout(ctx, factory, 0)
	if err != nil {
		t.Fatalf("ApplyTimeout failed: %v", err)
	}
	defer cancel()

	deadline, ok := stmtCtx.Deadline()
	if !ok {
		t.Fatal("Expected a statement deadline from the transaction budget")
	}
	if time.Until(deadline) > time.Minute {
		t.Error("Deadline should not exceed the transaction budget")
	}

	datasource.Release(ctx, conn, factory)
	scope.TriggerAfterCompletion(txsync.StatusCommitted)
}

func TestApplyTimeoutExpired(t *testing.T) {
	ctx, scope := setupScope(t)
	factory := memds.New("primary")

	_, err := datasource.Acquire(ctx, factory)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	holder := scope.Resource(factory).(*datasource.ConnHolder)
	holder.SetDeadline(time.Now().Add(-time.Second))

	_, _, err = datasource.ApplyTimeout(ctx, factory, 0)
	if !errors.Is(err, txsync.ErrTransactionTimedOut) {
		t.Errorf("Expected ErrTransactionTimedOut, got %v", err)
	}
}

func TestApplyTimeoutFallback(t *testing.T) {
	ctx := context.Background()
	factory := memds.New("primary")

	stmtCtx, cancel, err := datasource.ApplyTimeout(ctx, factory, time.Second)
	if err != nil {
		t.Fatalf("ApplyTimeout failed: %v", err)
	}
	defer cancel()
	if _, ok := stmtCtx.Deadline(); !ok {
		t.Error("Expected the fallback timeout to apply")
	}

	// No holder and no fallback: context passes through untouched
	plainCtx, cancel2, err := datasource.ApplyTimeout(ctx, factory, 0)
	if err != nil {
		t.Fatalf("ApplyTimeout failed: %v", err)
	}
	defer cancel2()
	if _, ok := plainCtx.Deadline(); ok {
		t.Error("Expected no deadline without budget or fallback")
	}
}
