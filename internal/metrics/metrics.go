package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsSubmitted counts detection jobs accepted by the backend.
	JobsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omnisafe_jobs_submitted_total",
			Help: "Total number of detection jobs submitted",
		},
		[]string{"chain"},
	)

	// JobsFinished counts jobs observed reaching a terminal status.
	JobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omnisafe_jobs_finished_total",
			Help: "Total number of detection jobs observed in a terminal status",
		},
		[]string{"status"},
	)

	// SubmitRejected counts submissions blocked before or by the backend.
	SubmitRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omnisafe_submit_rejected_total",
			Help: "Total number of rejected detection submissions",
		},
		[]string{"kind"},
	)

	// Polls counts status requests by outcome.
	Polls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omnisafe_polls_total",
			Help: "Total number of detection status polls",
		},
		[]string{"outcome"},
	)

	// CacheEvictions counts scan cache entries dropped, by reason.
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omnisafe_cache_evictions_total",
			Help: "Total number of scan cache evictions",
		},
		[]string{"reason"},
	)

	// StorageSwept counts expired storage keys removed by the janitor.
	StorageSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "omnisafe_storage_swept_total",
			Help: "Total number of expired storage keys removed",
		},
	)

	// AISummaries counts AI summary requests by outcome.
	AISummaries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omnisafe_ai_summaries_total",
			Help: "Total number of AI summary requests",
		},
		[]string{"outcome"},
	)

	// APILatency tracks backend request latency.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "omnisafe_api_latency_seconds",
			Help:    "Backend API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "kind"},
	)

	// ActiveSessions tracks scan sessions held by the gateway.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "omnisafe_active_sessions",
			Help: "Number of scan sessions currently held in memory",
		},
	)
)
