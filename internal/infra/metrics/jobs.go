package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		jobsFinishedTotal,
		itemsProcessedTotal,
		jobDurationSeconds,
	)
}

var jobsFinishedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "courier_jobs_finished_total",
		Help: "Jobs resolved to a terminal status.",
	},
	[]string{"status"}, // 'completed', 'partially_failed', 'failed', 'cancelled', 'interrupted'
)

var itemsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "courier_items_processed_total",
		Help: "Media items by stage outcome.",
	},
	[]string{"stage", "outcome"}, // stage: 'fetch'|'deliver'
)

var jobDurationSeconds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "courier_job_duration_seconds",
		Help:    "Wall time from submission to terminal status.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	},
)

func IncJobFinished(status string) {
	jobsFinishedTotal.WithLabelValues(norm(status)).Inc()
}

func IncItemProcessed(stage, outcome string) {
	itemsProcessedTotal.WithLabelValues(norm(stage), norm(outcome)).Inc()
}

func ObserveJobDuration(seconds float64) {
	jobDurationSeconds.Observe(seconds)
}
