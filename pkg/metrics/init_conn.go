package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initConnMetrics() {
	r.ConnAcquiresTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "txsync_conn_acquires_total",
			Help: "Total number of connection acquisitions",
		},
		[]string{"factory", "mode"},
	)

	r.ConnAcquireFailuresTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "txsync_conn_acquire_failures_total",
			Help: "Total number of failed connection acquisitions",
		},
		[]string{"factory"},
	)

	r.ConnAcquireDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "txsync_conn_acquire_duration_seconds",
			Help:    "Connection acquisition duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
		[]string{"factory"},
	)

	r.ConnReleasesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "txsync_conn_releases_total",
			Help: "Total number of connection releases",
		},
		[]string{"factory", "mode"},
	)

	r.ConnPreparesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "txsync_conn_prepares_total",
			Help: "Total number of connection preparations for a transaction",
		},
		[]string{"status"},
	)

	r.BoundHolders = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "txsync_bound_holders",
			Help: "Number of connection holders currently bound to a scope",
		},
	)
}
