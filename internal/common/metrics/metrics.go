package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	PricesComputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_prices_computed_total",
			Help: "Prices computed and persisted, by record kind",
		},
		[]string{"kind"},
	)

	Promotions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_promotions_total",
			Help: "Base package promotions, by outcome",
		},
		[]string{"outcome"},
	)

	CascadeRecomputed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pricing_cascade_packages_recomputed",
			Help:    "Sibling packages recomputed per base package promotion",
			Buckets: prometheus.LinearBuckets(0, 2, 10),
		},
	)

	TotalMismatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricing_total_mismatches_total",
			Help: "Saves where the client-asserted total disagreed with the server total",
		},
	)
)
