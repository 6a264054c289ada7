package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesProcessed The total number of processed messages (counter)
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messages",
			Name:      "processed_total",
			Help:      "The total number of processed messages",
		},
		[]string{"topic", "handler"},
	)

	// MessagesProcessingFailed total number of message processing failures (counter)
	MessagesProcessingFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messages",
			Name:      "processing_failed_total",
			Help:      "The total number of message processing failures",
		},
		[]string{"topic", "handler"},
	)

	// MessagesProcessingDuration The total time spent processing messages (summary with quantiles 0.5, 0.9, and 0.99)
	MessagesProcessingDuration = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace:  "messages",
			Name:       "processing_duration_seconds",
			Help:       "The total time spent processing messages",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"topic", "handler"},
	)
)

var (
	SeatConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bookings",
			Name:      "seat_conflicts_total",
			Help:      "The total number of booking requests rejected because a seat was already held",
		},
	)

	RefundsRequested = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bookings",
			Name:      "refunds_requested_total",
			Help:      "The total number of refund requests emitted",
		},
	)

	EventsDeduplicated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookings",
			Name:      "events_deduplicated_total",
			Help:      "The total number of redelivered events recognised as already applied",
		},
		[]string{"event"},
	)

	Discrepancies = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bookings",
			Name:      "discrepancies_total",
			Help:      "The total number of bookings flagged for manual review",
		},
	)
)
