package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess     = "success"
	outcomeRejected    = "rejected"
	outcomeFailed      = "failed"
	outcomeUnavailable = "unavailable"
)

var (
	allocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sequence_allocations_total",
			Help: "Total number of sequence allocations by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	allocationConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sequence_allocation_conflicts_total",
			Help: "Number of allocation attempts that lost a compare-and-swap race",
		},
		[]string{"kind"},
	)

	allocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sequence_allocation_duration_seconds",
			Help:    "Duration of one allocation attempt including the caller's insert",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"kind"},
	)

	counterBackfills = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sequence_backfills_total",
			Help: "Number of counters raised by backfill",
		},
		[]string{"kind"},
	)
)
