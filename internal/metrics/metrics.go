// Package metrics provides Prometheus metrics for the generation pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TokensInput counts input tokens consumed per model and operation.
	TokensInput = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wikid",
			Subsystem: "generation",
			Name:      "tokens_input_total",
			Help:      "Input tokens consumed by model calls",
		},
		[]string{"model", "operation"},
	)

	// TokensOutput counts output tokens produced per model and operation.
	TokensOutput = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wikid",
			Subsystem: "generation",
			Name:      "tokens_output_total",
			Help:      "Output tokens produced by model calls",
		},
		[]string{"model", "operation"},
	)

	// Attempts counts agent attempts by operation and result.
	// Labels: result (success, transient_error, fatal_error, timeout)
	Attempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wikid",
			Subsystem: "generation",
			Name:      "attempts_total",
			Help:      "Agent call attempts by result",
		},
		[]string{"operation", "result"},
	)

	// FanoutTasks counts fan-out items by operation and outcome.
	// Labels: outcome (success, failure, cancelled)
	FanoutTasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wikid",
			Subsystem: "generation",
			Name:      "fanout_tasks_total",
			Help:      "Fan-out items by outcome",
		},
		[]string{"operation", "outcome"},
	)

	// AttemptDuration tracks wall-clock time of individual agent attempts.
	AttemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wikid",
			Subsystem: "generation",
			Name:      "attempt_duration_seconds",
			Help:      "Duration of agent call attempts in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"operation"},
	)
)
