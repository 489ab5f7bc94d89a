package metrics

import (
	"time"
)

// Acquire modes
const (
	AcquireModeDirect  = "direct"  // fetched straight from the factory, no transaction
	AcquireModeBound   = "bound"   // served from the scope-bound holder
	AcquireModeResumed = "resumed" // re-fetched after a suspend/resume cycle
)

// Release modes
const (
	ReleaseModeLogical  = "logical"  // reference count decrement only
	ReleaseModePhysical = "physical" // connection actually closed
)

// RecordAcquire records a successful connection acquisition
func (r *Registry) RecordAcquire(factory, mode string, duration time.Duration) {
	r.ConnAcquiresTotal.WithLabelValues(factory, mode).Inc()
	r.ConnAcquireDuration.WithLabelValues(factory).Observe(duration.Seconds())
}

// RecordAcquireFailure records a failed connection acquisition
func (r *Registry) RecordAcquireFailure(factory string) {
	r.ConnAcquireFailuresTotal.WithLabelValues(factory).Inc()
}

// RecordRelease records a connection release
func (r *Registry) RecordRelease(factory, mode string) {
	r.ConnReleasesTotal.WithLabelValues(factory, mode).Inc()
}

// RecordPrepare records a connection preparation outcome
func (r *Registry) RecordPrepare(err error) {
	r.ConnPreparesTotal.WithLabelValues(statusLabel(err)).Inc()
}

// RecordSyncRegistration records a synchronization registration attempt
func (r *Registry) RecordSyncRegistration(err error) {
	r.SyncRegistrationsTotal.WithLabelValues(statusLabel(err)).Inc()
}

// RecordSyncCallback records one synchronization callback invocation
func (r *Registry) RecordSyncCallback(phase string, err error) {
	r.SyncCallbacksTotal.WithLabelValues(phase, statusLabel(err)).Inc()
}

// RecordCompletion records a transaction completion outcome
func (r *Registry) RecordCompletion(status string) {
	r.CompletionsTotal.WithLabelValues(status).Inc()
}

// RecordSuspend records a synchronization chain suspension
func (r *Registry) RecordSuspend() {
	r.SuspensionsTotal.Inc()
}

// RecordResume records a synchronization chain resumption
func (r *Registry) RecordResume() {
	r.ResumptionsTotal.Inc()
}

// HolderBound adjusts the bound-holder gauge
func (r *Registry) HolderBound(delta int) {
	r.BoundHolders.Add(float64(delta))
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
