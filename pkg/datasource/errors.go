package datasource

import (
	"errors"
	"fmt"
)

// ErrNilConn flags a factory that returned a nil connection without an
// error, which is a contract violation on the factory's side.
var ErrNilConn = errors.New("factory returned nil connection")

// AcquireError wraps any failure to obtain a connection from a factory.
// It is never retried at this layer.
type AcquireError struct {
	Factory string // Factory label the acquisition targeted
	Cause   error  // Underlying error
}

// Error implements the error interface.
func (e *AcquireError) Error() string {
	return fmt.Sprintf("cannot acquire connection from %s: %v", e.Factory, e.Cause)
}

// Unwrap returns the underlying cause for error chain support.
func (e *AcquireError) Unwrap() error {
	return e.Cause
}

// IsTimeout reports whether the error chain carries a timeout, using the
// standard library's Timeout() convention. Factories must report timeouts
// through this interface; nothing here ever inspects type or message
// names.
func IsTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
