package pgxds

import (
	"testing"

	"github.com/dd0wney/txsync/pkg/datasource"
	"github.com/dd0wney/txsync/pkg/txsync"
)

// Interface conformance
var (
	_ datasource.Factory = (*Factory)(nil)
	_ datasource.Conn    = (*Conn)(nil)
)

func TestIsolationSQLCoversAllConcreteLevels(t *testing.T) {
	levels := []txsync.Isolation{
		txsync.IsolationReadUncommitted,
		txsync.IsolationReadCommitted,
		txsync.IsolationRepeatableRead,
		txsync.IsolationSerializable,
	}
	for _, level := range levels {
		if _, ok := isolationSQL[level]; !ok {
			t.Errorf("No SQL spelling for %v", level)
		}
	}
	if _, ok := isolationSQL[txsync.IsolationDefault]; ok {
		t.Error("Default level must not be settable")
	}
}

func TestNewFromPool(t *testing.T) {
	f := NewFromPool(nil, "analytics")
	if f.Name() != "analytics" {
		t.Errorf("Expected name 'analytics', got %q", f.Name())
	}
}
