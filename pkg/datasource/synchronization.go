package datasource

import (
	"context"

	"github.com/dd0wney/txsync/pkg/txsync"
)

// connSynchronization is the facade's cleanup callback: it owns the
// scope binding and the physical close of the managed connection across
// suspend/resume and transaction completion.
type connSynchronization struct {
	txsync.BaseSynchronization

	scope   *txsync.Scope
	holder  *ConnHolder
	factory Factory
	order   int
	// holderActive latches off once the binding has been torn down, so
	// completion acts at most once even if both completion phases run
	holderActive bool
}

func newConnSynchronization(scope *txsync.Scope, holder *ConnHolder, f Factory) *connSynchronization {
	return &connSynchronization{
		scope:        scope,
		holder:       holder,
		factory:      f,
		order:        syncOrder(f),
		holderActive: true,
	}
}

func (cs *connSynchronization) Order() int {
	return cs.order
}

// Suspend unbinds the holder and gives the physical connection back when
// no borrower keeps a handle to it; the next Acquire after Resume fetches
// a fresh one lazily.
func (cs *connSynchronization) Suspend() error {
	if !cs.holderActive {
		return nil
	}
	if _, err := cs.scope.UnbindResource(cs.factory); err != nil {
		return err
	}
	if cs.holder.HasConn() && !cs.holder.Open() {
		cs.close(cs.holder.Conn())
		cs.holder.SetConn(nil)
	}
	return nil
}

// Resume rebinds the holder removed by Suspend
func (cs *connSynchronization) Resume() error {
	if !cs.holderActive {
		return nil
	}
	return cs.scope.BindResource(cs.factory, cs.holder)
}

// BeforeCompletion releases the connection early when no borrower holds it
// open anymore, so strict resource managers see the close before the
// transaction completes.
func (cs *connSynchronization) BeforeCompletion() error {
	if cs.holder.Open() {
		return nil
	}
	if _, err := cs.scope.UnbindResource(cs.factory); err != nil {
		return err
	}
	cs.holderActive = false
	if cs.holder.HasConn() {
		cs.close(cs.holder.Conn())
	}
	return nil
}

// AfterCompletion closes the connection if BeforeCompletion didn't, then
// resets the holder. The binding may already be gone when completion runs
// after an ownership handoff, hence the non-failing unbind.
func (cs *connSynchronization) AfterCompletion(status txsync.CompletionStatus) error {
	if cs.holderActive {
		cs.scope.UnbindResourceIfPossible(cs.factory)
		cs.holderActive = false
		if cs.holder.HasConn() {
			cs.close(cs.holder.Conn())
			cs.holder.SetConn(nil)
		}
	}
	cs.holder.Reset()
	return nil
}

// close physically closes the connection with the scope's observers. The
// binding is already gone at every call site, so this never recurses into
// a logical release.
func (cs *connSynchronization) close(conn Conn) {
	physicalClose(context.Background(), conn, cs.factory, cs.scope.Logger(), cs.scope.Metrics())
}
