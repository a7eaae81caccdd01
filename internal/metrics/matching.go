package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Matching Prometheus metrics.
var (
	PairsComparedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lostfound",
			Name:      "match_pairs_compared_total",
			Help:      "Lost/found descriptor pairs scored",
		},
		[]string{"trigger"}, // "incremental" / "sweep"
	)

	MatchesCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lostfound",
			Name:      "matches_created_total",
			Help:      "Match records created",
		},
		[]string{"trigger"},
	)

	DuplicateConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lostfound",
			Name:      "match_duplicate_conflicts_total",
			Help:      "Match inserts rejected by the unique (lost_id, found_id) constraint",
		},
	)

	BackgroundFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lostfound",
			Name:      "match_background_failures_total",
			Help:      "Incremental matching runs that ended with an error or panic",
		},
	)

	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lostfound",
			Name:      "match_sweep_duration_seconds",
			Help:      "Full match sweep duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lostfound",
			Name:      "embedding_request_duration_seconds",
			Help:      "Face embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"status"}, // "ok" / "no_face" / "error"
	)
)

var registerOnce sync.Once

// Register registers all Prometheus metrics. Must be called once from main.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			PairsComparedTotal,
			MatchesCreatedTotal,
			DuplicateConflictsTotal,
			BackgroundFailuresTotal,
			SweepDuration,
			EmbeddingRequestDuration,
			httpRequestDuration,
			httpRequestsTotal,
		)
	})
}
