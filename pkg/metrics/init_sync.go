package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSyncMetrics() {
	r.SyncRegistrationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "txsync_sync_registrations_total",
			Help: "Total number of synchronization registrations",
		},
		[]string{"status"},
	)

	r.SyncCallbacksTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "txsync_sync_callbacks_total",
			Help: "Total number of synchronization callbacks invoked",
		},
		[]string{"phase", "status"},
	)

	r.CompletionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "txsync_completions_total",
			Help: "Total number of transaction completions by outcome",
		},
		[]string{"status"},
	)

	r.SuspensionsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "txsync_suspensions_total",
			Help: "Total number of synchronization chain suspensions",
		},
	)

	r.ResumptionsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "txsync_resumptions_total",
			Help: "Total number of synchronization chain resumptions",
		},
	)
}
