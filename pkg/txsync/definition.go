package txsync

import (
	"fmt"
	"time"
)

// Isolation represents a transaction isolation level
type Isolation int

const (
	// IsolationDefault leaves the connection at whatever level the factory configured
	IsolationDefault Isolation = iota
	IsolationReadUncommitted
	IsolationReadCommitted
	IsolationRepeatableRead
	IsolationSerializable
)

// String returns the string representation of an isolation level
func (i Isolation) String() string {
	switch i {
	case IsolationDefault:
		return "default"
	case IsolationReadUncommitted:
		return "read uncommitted"
	case IsolationReadCommitted:
		return "read committed"
	case IsolationRepeatableRead:
		return "repeatable read"
	case IsolationSerializable:
		return "serializable"
	default:
		return "unknown"
	}
}

// ParseIsolation converts a string to an Isolation level
func ParseIsolation(s string) (Isolation, error) {
	switch s {
	case "", "default":
		return IsolationDefault, nil
	case "read uncommitted", "read_uncommitted":
		return IsolationReadUncommitted, nil
	case "read committed", "read_committed":
		return IsolationReadCommitted, nil
	case "repeatable read", "repeatable_read":
		return IsolationRepeatableRead, nil
	case "serializable":
		return IsolationSerializable, nil
	default:
		return IsolationDefault, fmt.Errorf("unknown isolation level %q", s)
	}
}

// Definition describes the transactional semantics an external transaction
// manager wants applied to a connection: read-only flag, isolation level
// and an optional timeout budget.
type Definition struct {
	Name      string        `yaml:"name" validate:"max=250"`
	ReadOnly  bool          `yaml:"read_only"`
	Isolation Isolation     `yaml:"isolation" validate:"min=0,max=4"`
	Timeout   time.Duration `yaml:"timeout" validate:"min=0"`
}
