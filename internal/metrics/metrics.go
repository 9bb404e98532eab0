// Package metrics holds the Prometheus counters for turn processing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	turnsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbiter_turns_processed_total",
			Help: "Total number of turns processed by outcome.",
		},
		[]string{"outcome"},
	)

	intentsRoutedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbiter_intents_routed_total",
			Help: "Total number of routed inputs by effective intent and fallback reason.",
		},
		[]string{"intent", "fallback"},
	)

	validationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbiter_validation_failures_total",
			Help: "Total number of failed validations by kind.",
		},
		[]string{"kind"},
	)

	compressionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbiter_history_compressions_total",
			Help: "Total number of history compressions by strategy.",
		},
		[]string{"strategy"},
	)
)

// Turn outcomes
const (
	OutcomeCompleted = "completed"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

func TurnProcessed(outcome string) {
	turnsProcessedTotal.WithLabelValues(outcome).Inc()
}

// IntentRouted records the effective intent. fallback is empty when the
// classifier's label was used.
func IntentRouted(intent, fallback string) {
	if fallback == "" {
		fallback = "none"
	}
	intentsRoutedTotal.WithLabelValues(intent, fallback).Inc()
}

func ValidationFailed(kind string) {
	validationFailuresTotal.WithLabelValues(kind).Inc()
}

func Compressed(strategy string) {
	compressionsTotal.WithLabelValues(strategy).Inc()
}
