package timeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeline_transitions_total",
		Help: "Occurrence transitions by operation and outcome.",
	}, []string{"operation", "outcome"})

	transitionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timeline_transition_duration_seconds",
		Help:    "Wall time of occurrence transitions, including the database transaction.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	paymentsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeline_payments_recorded_total",
		Help: "Payments appended to the ledger.",
	})

	occurrenceEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeline_occurrence_events_total",
		Help: "Paid/unpaid events written to the outbox.",
	}, []string{"type"})
)

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsValidationError(err):
		return "rejected"
	case IsNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}
