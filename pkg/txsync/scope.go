package txsync

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/dd0wney/txsync/pkg/logging"
	"github.com/dd0wney/txsync/pkg/metrics"
)

// Scope is one logical transaction's resource registry and synchronization
// chain. It replaces ambient thread-local state with an explicit object the
// transaction manager creates and carries through context.Context, which
// keeps the single-owner invariant visible in the call chain instead of
// implicit in thread identity.
type Scope struct {
	id        string
	log       logging.Logger
	met       *metrics.Registry
	resources map[any]any
	// syncs is nil while synchronization is inactive; an empty non-nil
	// slice means active with no registrations yet
	syncs []Synchronization

	name         string
	readOnly     bool
	isolation    Isolation
	activeActual bool
}

// voider lets the scope skip holders that were invalidated after
// transaction completion but left bound by a late-running callback
type voider interface {
	Voided() bool
}

// NewScope creates an empty scope. A nil logger disables logging.
func NewScope(log logging.Logger) *Scope {
	if log == nil {
		log = logging.NewNopLogger()
	}
	s := &Scope{
		id:        uuid.NewString(),
		resources: make(map[any]any),
	}
	s.log = log.With(logging.ScopeID(s.id))
	return s
}

// ID returns the scope's correlation ID
func (s *Scope) ID() string {
	return s.id
}

// Logger returns the scope's logger
func (s *Scope) Logger() logging.Logger {
	return s.log
}

// SetMetrics attaches a metrics registry; nil disables metrics
func (s *Scope) SetMetrics(met *metrics.Registry) {
	s.met = met
}

// Metrics returns the attached metrics registry, or nil
func (s *Scope) Metrics() *metrics.Registry {
	return s.met
}

// BindResource binds a resource holder for the given factory key. It fails
// with ErrAlreadyBound if a live holder is already bound.
func (s *Scope) BindResource(key, value any) error {
	if key == nil || value == nil {
		return fmt.Errorf("bind resource: %w", ErrNilResource)
	}
	current := s.resources[key]
	if v, ok := current.(voider); ok && v.Voided() {
		current = nil
	}
	if current != nil {
		return fmt.Errorf("%w: %v already has %v bound in scope %s", ErrAlreadyBound, keyLabel(key), current, s.id)
	}
	s.resources[key] = value
	if s.met != nil {
		s.met.HolderBound(1)
	}
	s.log.Debug("bound resource to scope", logging.Any("key", keyLabel(key)))
	return nil
}

// UnbindResource removes and returns the holder bound for the given key.
// It fails with ErrNotBound if nothing is bound.
func (s *Scope) UnbindResource(key any) (any, error) {
	value := s.doUnbind(key)
	if value == nil {
		return nil, fmt.Errorf("%w: %v in scope %s", ErrNotBound, keyLabel(key), s.id)
	}
	return value, nil
}

// UnbindResourceIfPossible removes and returns the holder bound for the
// given key, or nil when nothing is bound. Completion callbacks running
// after ownership handoff use this variant since the binding may already
// be gone.
func (s *Scope) UnbindResourceIfPossible(key any) any {
	return s.doUnbind(key)
}

func (s *Scope) doUnbind(key any) any {
	value, ok := s.resources[key]
	if !ok {
		return nil
	}
	delete(s.resources, key)
	if s.met != nil {
		s.met.HolderBound(-1)
	}
	// A void holder counts as no binding at all
	if v, ok := value.(voider); ok && v.Voided() {
		return nil
	}
	s.log.Debug("unbound resource from scope", logging.Any("key", keyLabel(key)))
	return value
}

// Resource returns the holder bound for the given key, or nil. It never
// fails.
func (s *Scope) Resource(key any) any {
	value, ok := s.resources[key]
	if !ok {
		return nil
	}
	if v, ok := value.(voider); ok && v.Voided() {
		delete(s.resources, key)
		if s.met != nil {
			s.met.HolderBound(-1)
		}
		return nil
	}
	return value
}

// HasResources reports whether any holder is currently bound
func (s *Scope) HasResources() bool {
	return len(s.resources) > 0
}

// InitSynchronization activates the synchronization chain for a new
// transaction
func (s *Scope) InitSynchronization() error {
	if s.SynchronizationActive() {
		return ErrSynchronizationActive
	}
	s.log.Debug("initializing transaction synchronization")
	s.syncs = make([]Synchronization, 0)
	return nil
}

// SynchronizationActive reports whether a synchronization chain is active
func (s *Scope) SynchronizationActive() bool {
	return s.syncs != nil
}

// RegisterSynchronization appends a callback to the active chain. It fails
// with ErrSynchronizationInactive if no transaction synchronization is
// active; the chain is never partially mutated.
func (s *Scope) RegisterSynchronization(sync Synchronization) error {
	var err error
	switch {
	case sync == nil:
		err = fmt.Errorf("register synchronization: %w", ErrNilResource)
	case !s.SynchronizationActive():
		err = ErrSynchronizationInactive
	}
	if s.met != nil {
		s.met.RecordSyncRegistration(err)
	}
	if err != nil {
		return err
	}
	s.syncs = append(s.syncs, sync)
	return nil
}

// ClearSynchronization deactivates the chain without firing anything
func (s *Scope) ClearSynchronization() {
	s.syncs = nil
}

// sortedSyncs returns the registered synchronizations ordered ascending by
// Order, stable for equal values
func (s *Scope) sortedSyncs() []Synchronization {
	sorted := make([]Synchronization, len(s.syncs))
	copy(sorted, s.syncs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order() < sorted[j].Order()
	})
	return sorted
}

// TriggerBeforeCommit fires BeforeCommit on every registered
// synchronization. The first error aborts the phase and propagates; the
// manager must react by rolling back.
func (s *Scope) TriggerBeforeCommit(readOnly bool) error {
	for _, sync := range s.sortedSyncs() {
		err := sync.BeforeCommit(readOnly)
		s.recordCallback("before_commit", err)
		if err != nil {
			return err
		}
	}
	return nil
}

// TriggerBeforeCompletion fires BeforeCompletion on every registered
// synchronization. Errors are logged, never propagated: this phase must
// run for every participant before commit or rollback.
func (s *Scope) TriggerBeforeCompletion() {
	for _, sync := range s.sortedSyncs() {
		err := sync.BeforeCompletion()
		s.recordCallback("before_completion", err)
		if err != nil {
			s.log.Error("synchronization beforeCompletion failed", logging.Error(err))
		}
	}
}

// TriggerFlush fires Flush on every registered synchronization,
// propagating the first error.
func (s *Scope) TriggerFlush() error {
	for _, sync := range s.sortedSyncs() {
		err := sync.Flush()
		s.recordCallback("flush", err)
		if err != nil {
			return err
		}
	}
	return nil
}

// TriggerAfterCommit fires AfterCommit on every registered
// synchronization, propagating the first error.
func (s *Scope) TriggerAfterCommit() error {
	for _, sync := range s.sortedSyncs() {
		err := sync.AfterCommit()
		s.recordCallback("after_commit", err)
		if err != nil {
			return err
		}
	}
	return nil
}

// TriggerAfterCompletion fires AfterCompletion on every registered
// synchronization and deactivates the chain, so it runs at most once per
// transaction. Errors are logged, never propagated.
func (s *Scope) TriggerAfterCompletion(status CompletionStatus) {
	if !s.SynchronizationActive() {
		return
	}
	sorted := s.sortedSyncs()
	s.syncs = nil
	for _, sync := range sorted {
		err := sync.AfterCompletion(status)
		s.recordCallback("after_completion", err)
		if err != nil {
			s.log.Error("synchronization afterCompletion failed",
				logging.Error(err), logging.Status(status.String()))
		}
	}
	if s.met != nil {
		s.met.RecordCompletion(status.String())
	}
	s.log.Debug("transaction completed", logging.Status(status.String()))
}

// SuspendSynchronizations suspends every registered synchronization and
// deactivates the chain, returning the suspended callbacks for a later
// ResumeSynchronizations. Each participant defensively unbinds whatever it
// does not need to keep open across the nested transaction.
func (s *Scope) SuspendSynchronizations() ([]Synchronization, error) {
	if !s.SynchronizationActive() {
		return nil, ErrSynchronizationInactive
	}
	suspended := s.sortedSyncs()
	for _, sync := range suspended {
		err := sync.Suspend()
		s.recordCallback("suspend", err)
		if err != nil {
			return nil, err
		}
	}
	s.syncs = nil
	if s.met != nil {
		s.met.RecordSuspend()
	}
	s.log.Debug("suspended transaction synchronization")
	return suspended, nil
}

// ResumeSynchronizations reactivates the chain with previously suspended
// callbacks, letting each rebind what Suspend removed.
func (s *Scope) ResumeSynchronizations(suspended []Synchronization) error {
	if s.SynchronizationActive() {
		return ErrSynchronizationActive
	}
	s.syncs = make([]Synchronization, 0, len(suspended))
	for _, sync := range suspended {
		err := sync.Resume()
		s.recordCallback("resume", err)
		if err != nil {
			return err
		}
		s.syncs = append(s.syncs, sync)
	}
	if s.met != nil {
		s.met.RecordResume()
	}
	s.log.Debug("resumed transaction synchronization")
	return nil
}

func (s *Scope) recordCallback(phase string, err error) {
	if s.met != nil {
		s.met.RecordSyncCallback(phase, err)
	}
}

// ApplyDefinition records the transaction metadata for introspection by
// participants
func (s *Scope) ApplyDefinition(def *Definition) {
	if def == nil {
		return
	}
	s.name = def.Name
	s.readOnly = def.ReadOnly
	s.isolation = def.Isolation
}

// SetTransactionName records the active transaction's name
func (s *Scope) SetTransactionName(name string) { s.name = name }

// TransactionName returns the active transaction's name
func (s *Scope) TransactionName() string { return s.name }

// SetTransactionReadOnly records the active transaction's read-only flag
func (s *Scope) SetTransactionReadOnly(readOnly bool) { s.readOnly = readOnly }

// TransactionReadOnly reports whether the active transaction is read-only
func (s *Scope) TransactionReadOnly() bool { return s.readOnly }

// SetTransactionIsolation records the active transaction's isolation level
func (s *Scope) SetTransactionIsolation(level Isolation) { s.isolation = level }

// TransactionIsolation returns the active transaction's isolation level
func (s *Scope) TransactionIsolation() Isolation { return s.isolation }

// SetTransactionActive records whether an actual transaction (as opposed
// to an empty synchronization-only scope) is running
func (s *Scope) SetTransactionActive(active bool) { s.activeActual = active }

// TransactionActive reports whether an actual transaction is running
func (s *Scope) TransactionActive() bool { return s.activeActual }

// ClearTransactionMeta resets the recorded transaction metadata
func (s *Scope) ClearTransactionMeta() {
	s.name = ""
	s.readOnly = false
	s.isolation = IsolationDefault
	s.activeActual = false
}

func keyLabel(key any) any {
	type named interface {
		Name() string
	}
	if n, ok := key.(named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", key)
}

type scopeCtxKey struct{}

// WithScope attaches a scope to the context
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeCtxKey{}, s)
}

// ScopeFrom extracts the scope from the context, if any
func ScopeFrom(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(scopeCtxKey{}).(*Scope)
	return s, ok
}
