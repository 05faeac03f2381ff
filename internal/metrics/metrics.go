// Package metrics exposes Prometheus instrumentation for the submission path.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FBRSubmissions counts external submissions by mode and outcome.
	// Outcome is one of: accepted, validation, transient, auth.
	FBRSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fbrgate_fbr_submissions_total",
		Help: "FBR submissions by integration mode and outcome.",
	}, []string{"mode", "outcome"})

	// FBRSubmitDuration observes the latency of individual FBR calls.
	FBRSubmitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fbrgate_fbr_submit_duration_seconds",
		Help:    "Latency of FBR submission calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	// BatchRowsProcessed counts batch rows by terminal outcome.
	BatchRowsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fbrgate_batch_rows_processed_total",
		Help: "Batch rows driven to a terminal stage, by outcome.",
	}, []string{"outcome"})

	// SequenceAllocations counts invoice sequence allocations.
	SequenceAllocations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fbrgate_sequence_allocations_total",
		Help: "Invoice sequence numbers allocated.",
	})
)
