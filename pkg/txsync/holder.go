package txsync

import (
	"time"
)

// ResourceHolder is the reference-counted base for wrappers around one
// transactional resource. Logical release (reference counting) is kept
// separate from physical close: the holder never closes anything itself,
// it only tracks how many borrowers share the resource and when the
// enclosing transaction runs out of time.
type ResourceHolder struct {
	synchronizedWithTransaction bool
	rollbackOnly                bool
	deadline                    time.Time
	referenceCount              int
	isVoid                      bool
}

// SetSynchronizedWithTransaction marks the holder as managed by an active
// transaction synchronization
func (h *ResourceHolder) SetSynchronizedWithTransaction(synced bool) {
	h.synchronizedWithTransaction = synced
}

// SynchronizedWithTransaction reports whether the holder is managed by an
// active transaction synchronization
func (h *ResourceHolder) SynchronizedWithTransaction() bool {
	return h.synchronizedWithTransaction
}

// SetRollbackOnly marks the enclosing transaction for rollback
func (h *ResourceHolder) SetRollbackOnly() {
	h.rollbackOnly = true
}

// RollbackOnly reports whether the enclosing transaction must roll back
func (h *ResourceHolder) RollbackOnly() bool {
	return h.rollbackOnly
}

// SetTimeout sets the transaction deadline to now plus the given budget
func (h *ResourceHolder) SetTimeout(budget time.Duration) {
	h.deadline = time.Now().Add(budget)
}

// SetDeadline sets an absolute transaction deadline
func (h *ResourceHolder) SetDeadline(deadline time.Time) {
	h.deadline = deadline
}

// HasDeadline reports whether a transaction deadline is set
func (h *ResourceHolder) HasDeadline() bool {
	return !h.deadline.IsZero()
}

// Deadline returns the transaction deadline (zero when none is set)
func (h *ResourceHolder) Deadline() time.Time {
	return h.deadline
}

// TimeToLive returns the remaining transaction time budget. It fails with
// ErrTransactionTimedOut once the deadline has passed.
func (h *ResourceHolder) TimeToLive() (time.Duration, error) {
	if !h.HasDeadline() {
		return 0, nil
	}
	ttl := time.Until(h.deadline)
	if ttl <= 0 {
		return 0, ErrTransactionTimedOut
	}
	return ttl, nil
}

// Requested increments the reference count. Call on every checkout of the
// underlying resource within the transaction.
func (h *ResourceHolder) Requested() {
	h.referenceCount++
}

// Released decrements the reference count. It fails with
// ErrNegativeRefCount if the count would drop below zero.
func (h *ResourceHolder) Released() error {
	if h.referenceCount == 0 {
		return ErrNegativeRefCount
	}
	h.referenceCount--
	return nil
}

// RefCount returns the current reference count
func (h *ResourceHolder) RefCount() int {
	return h.referenceCount
}

// Open reports whether there are active references to the holder
func (h *ResourceHolder) Open() bool {
	return h.referenceCount > 0
}

// Unbound marks the holder as void. A void holder left behind in a scope is
// treated as absent by subsequent lookups.
func (h *ResourceHolder) Unbound() {
	h.isVoid = true
}

// Voided reports whether the holder has been invalidated
func (h *ResourceHolder) Voided() bool {
	return h.isVoid
}

// Reset clears all tracked state after transaction completion. It does not
// close the underlying resource; physical close is the caller's job.
func (h *ResourceHolder) Reset() {
	h.synchronizedWithTransaction = false
	h.rollbackOnly = false
	h.deadline = time.Time{}
	h.referenceCount = 0
}
