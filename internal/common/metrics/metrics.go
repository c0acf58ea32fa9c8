// internal/common/metrics/metrics.go
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
		[]string{"task_type"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	IntentParsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlquery_intent_parses_total",
			Help: "Total number of intent parses by extractor source",
		},
		[]string{"source"},
	)

	IntentConfidence = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nlquery_intent_confidence",
			Help:    "Confidence scores produced by intent parsing",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
		[]string{"source"},
	)

	QueriesExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlquery_queries_executed_total",
			Help: "Total number of compiled queries executed by domain",
		},
		[]string{"domain", "action"},
	)

	QueryRowsReturned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nlquery_query_rows_returned",
			Help:    "Row counts returned by compiled queries",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		},
		[]string{"domain"},
	)

	ExtractorCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlquery_extractor_cache_total",
			Help: "Language-model extractor cache lookups by result",
		},
		[]string{"result"},
	)
)
