package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the library
type Registry struct {
	// Connection Metrics
	ConnAcquiresTotal        *prometheus.CounterVec
	ConnAcquireFailuresTotal *prometheus.CounterVec
	ConnAcquireDuration      *prometheus.HistogramVec
	ConnReleasesTotal        *prometheus.CounterVec
	ConnPreparesTotal        *prometheus.CounterVec
	BoundHolders             prometheus.Gauge

	// Synchronization Metrics
	SyncRegistrationsTotal *prometheus.CounterVec
	SyncCallbacksTotal     *prometheus.CounterVec
	CompletionsTotal       *prometheus.CounterVec
	SuspensionsTotal       prometheus.Counter
	ResumptionsTotal       prometheus.Counter

	registry *prometheus.Registry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
	}

	// Initialize all metrics
	r.initConnMetrics()
	r.initSyncMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Global default registry
var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global default metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}
