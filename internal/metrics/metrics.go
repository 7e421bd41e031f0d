// Package metrics exposes the ambient Prometheus registry: queue depth,
// worker busy count, and candidate win counts. Grounded on the pack's
// jordigilh-kubernaut use of prometheus/client_golang for an in-process
// operational registry, not a user-facing feature.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueueWaiting = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "audiolevel_queue_waiting",
		Help: "Jobs currently waiting in the priority queue.",
	})
	QueueActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "audiolevel_queue_active",
		Help: "Jobs currently being processed by a worker.",
	})
	JobsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiolevel_jobs_completed_total",
		Help: "Total jobs that reached the completed state.",
	})
	JobsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiolevel_jobs_failed_total",
		Help: "Total jobs that exhausted retries and reached the failed state.",
	})
	CandidateWinsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audiolevel_candidate_wins_total",
		Help: "Winning candidate selections by candidate name.",
	}, []string{"candidate"})
)
