package datasource

import (
	"fmt"

	"github.com/dd0wney/txsync/pkg/txsync"
)

// ConnHolder wraps one connection handle shared within a transaction,
// tracking how many borrowers currently hold it. The physical close
// happens exactly once, when the outermost borrower's count is back to
// zero and the holder is being unbound by the cleanup callback.
type ConnHolder struct {
	txsync.ResourceHolder

	conn              Conn
	transactionActive bool
	savepointCounter  int
}

// NewConnHolder creates a holder around the given connection
func NewConnHolder(conn Conn) *ConnHolder {
	return &ConnHolder{conn: conn}
}

// HasConn reports whether a live connection handle is set
func (h *ConnHolder) HasConn() bool {
	return h.conn != nil
}

// Conn returns the held connection, or nil after a suspend released it
func (h *ConnHolder) Conn() Conn {
	return h.conn
}

// SetConn replaces the held connection; pass nil after giving it back
func (h *ConnHolder) SetConn(conn Conn) {
	h.conn = conn
}

// SetTransactionActive marks whether a native transaction is running on
// the held connection
func (h *ConnHolder) SetTransactionActive(active bool) {
	h.transactionActive = active
}

// TransactionActive reports whether a native transaction is running on
// the held connection
func (h *ConnHolder) TransactionActive() bool {
	return h.transactionActive
}

// NextSavepoint generates the next unique savepoint name for the held
// connection's transaction
func (h *ConnHolder) NextSavepoint() string {
	h.savepointCounter++
	return fmt.Sprintf("SAVEPOINT_%d", h.savepointCounter)
}

// ConnEquals reports whether the passed-in connection is the held one, by
// identity or after unwrapping decorator layers. Callers may hand back an
// inner target connection while the holder keeps a wrapping proxy.
func (h *ConnHolder) ConnEquals(conn Conn) bool {
	if !h.HasConn() || conn == nil {
		return false
	}
	return h.conn == conn || Target(h.conn) == conn || h.conn == Target(conn)
}

// Reset clears all tracked state after transaction completion, including
// the connection-specific flags. The connection itself is not closed here.
func (h *ConnHolder) Reset() {
	h.ResourceHolder.Reset()
	h.transactionActive = false
	h.savepointCounter = 0
}
