package txsync

// CompletionStatus represents the outcome of a completed transaction
type CompletionStatus int

const (
	// StatusCommitted means the transaction committed successfully
	StatusCommitted CompletionStatus = iota
	// StatusRolledBack means the transaction was rolled back
	StatusRolledBack
	// StatusUnknown means a mixed or undeterminable outcome
	StatusUnknown
)

// String returns the string representation of a completion status
func (s CompletionStatus) String() string {
	switch s {
	case StatusCommitted:
		return "committed"
	case StatusRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// DefaultOrder is the order assigned to synchronizations that don't care
// about their position in the chain; they run after every ordered one.
const DefaultOrder = int(^uint32(0) >> 1)

// Synchronization is a transaction lifecycle callback. The external
// transaction manager drives the phases through the Scope trigger methods;
// participants with a smaller Order run closer to the commit/rollback
// boundary.
//
// Error policy per phase: BeforeCommit, AfterCommit, Flush, Suspend and
// Resume errors propagate to the transaction manager. BeforeCompletion and
// AfterCompletion errors are logged and discarded so one participant's
// cleanup failure cannot block the rest of the chain.
//
// There is no rollback-specific hook: participants branch on the status
// passed to AfterCompletion.
type Synchronization interface {
	// Suspend releases any scope-bound state the participant does not need
	// to keep across a nested transaction; reacquired lazily after Resume.
	Suspend() error
	// Resume rebinds whatever state Suspend removed.
	Resume() error
	// Flush pushes pending buffered writes to the backing store without
	// completing the transaction.
	Flush() error
	// BeforeCommit is the last chance to do work that only matters if the
	// commit proceeds. An error forces the manager to roll back.
	BeforeCommit(readOnly bool) error
	// BeforeCompletion runs before commit or rollback, even when
	// BeforeCommit failed.
	BeforeCompletion() error
	// AfterCommit runs only on successful commit.
	AfterCommit() error
	// AfterCompletion always runs last, possibly on another goroutine.
	AfterCompletion(status CompletionStatus) error
	// Order determines the position in the chain; lower runs first.
	Order() int
}

// BaseSynchronization provides no-op defaults for every phase so
// participants only override what they need.
type BaseSynchronization struct{}

func (BaseSynchronization) Suspend() error                          { return nil }
func (BaseSynchronization) Resume() error                           { return nil }
func (BaseSynchronization) Flush() error                            { return nil }
func (BaseSynchronization) BeforeCommit(readOnly bool) error        { return nil }
func (BaseSynchronization) BeforeCompletion() error                 { return nil }
func (BaseSynchronization) AfterCommit() error                      { return nil }
func (BaseSynchronization) AfterCompletion(CompletionStatus) error  { return nil }
func (BaseSynchronization) Order() int                              { return DefaultOrder }
