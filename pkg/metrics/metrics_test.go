package metrics

import (
	"errors"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}

	// Verify all metrics are initialized
	if r.ConnAcquiresTotal == nil {
		t.Error("ConnAcquiresTotal not initialized")
	}
	if r.ConnAcquireDuration == nil {
		t.Error("ConnAcquireDuration not initialized")
	}
	if r.SyncCallbacksTotal == nil {
		t.Error("SyncCallbacksTotal not initialized")
	}
	if r.BoundHolders == nil {
		t.Error("BoundHolders not initialized")
	}
	if r.registry == nil {
		t.Error("Prometheus registry not initialized")
	}
}

func TestDefaultRegistry(t *testing.T) {
	// Should return the same instance
	r1 := DefaultRegistry()
	r2 := DefaultRegistry()

	if r1 != r2 {
		t.Error("DefaultRegistry() should return the same instance")
	}
}

func TestRecordAcquire(t *testing.T) {
	r := NewRegistry()

	r.RecordAcquire("primary", AcquireModeDirect, 5*time.Millisecond)
	r.RecordAcquire("primary", AcquireModeBound, time.Millisecond)
	r.RecordAcquire("primary", AcquireModeBound, time.Millisecond)

	counter, err := r.ConnAcquiresTotal.GetMetricWithLabelValues("primary", AcquireModeBound)
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}

	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}

	if metric.Counter.GetValue() != 2 {
		t.Errorf("Expected 2 bound acquires, got %v", metric.Counter.GetValue())
	}
}

func TestRecordAcquireFailure(t *testing.T) {
	r := NewRegistry()

	r.RecordAcquireFailure("primary")

	counter, err := r.ConnAcquireFailuresTotal.GetMetricWithLabelValues("primary")
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}

	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}

	if metric.Counter.GetValue() != 1 {
		t.Errorf("Expected 1 failure, got %v", metric.Counter.GetValue())
	}
}

func TestRecordSyncCallback(t *testing.T) {
	r := NewRegistry()

	r.RecordSyncCallback("before_commit", nil)
	r.RecordSyncCallback("before_completion", errors.New("boom"))

	counter, err := r.SyncCallbacksTotal.GetMetricWithLabelValues("before_completion", "error")
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}

	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}

	if metric.Counter.GetValue() != 1 {
		t.Errorf("Expected 1 errored callback, got %v", metric.Counter.GetValue())
	}
}

func TestRecordCompletion(t *testing.T) {
	r := NewRegistry()

	r.RecordCompletion("committed")
	r.RecordCompletion("committed")
	r.RecordCompletion("rolled_back")

	counter, err := r.CompletionsTotal.GetMetricWithLabelValues("committed")
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}

	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}

	if metric.Counter.GetValue() != 2 {
		t.Errorf("Expected 2 commits, got %v", metric.Counter.GetValue())
	}
}

func TestHolderBoundGauge(t *testing.T) {
	r := NewRegistry()

	r.HolderBound(1)
	r.HolderBound(1)
	r.HolderBound(-1)

	var metric dto.Metric
	if err := r.BoundHolders.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}

	if metric.Gauge.GetValue() != 1 {
		t.Errorf("Expected 1 bound holder, got %v", metric.Gauge.GetValue())
	}
}

func TestGatherAll(t *testing.T) {
	r := NewRegistry()
	r.RecordAcquire("primary", AcquireModeDirect, time.Millisecond)

	families, err := r.GetPrometheusRegistry().Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range families {
		if mf.GetName() == "txsync_conn_acquires_total" {
			found = true
		}
	}
	if !found {
		t.Error("txsync_conn_acquires_total not found in gathered metrics")
	}
}
