package txsync

import (
	"errors"
)

// Common sentinel errors. All of these indicate a programming error in the
// caller and are never swallowed by this package.
var (
	ErrAlreadyBound            = errors.New("resource already bound for key")
	ErrNotBound                = errors.New("no resource bound for key")
	ErrNegativeRefCount        = errors.New("holder released more often than requested")
	ErrSynchronizationInactive = errors.New("transaction synchronization is not active")
	ErrSynchronizationActive   = errors.New("transaction synchronization is already active")
	ErrNilResource             = errors.New("nil resource")
	ErrTransactionTimedOut     = errors.New("transaction timeout expired")
)
