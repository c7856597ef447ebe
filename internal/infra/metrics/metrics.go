// Package metrics provides Prometheus metrics for the Chaos Theorist console:
// counters, gauges and histograms for store transitions, orchestrated
// operations, the AI analyst, simulations and health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Store ──────────────────────────────────────────────────────────────────

// TransitionsApplied counts transitions applied to the state store.
var TransitionsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "chaos",
	Name:      "store_transitions_total",
	Help:      "Total transitions applied to the state store.",
}, []string{"transition"})

// TransitionsIgnored counts transitions that left the state unchanged.
var TransitionsIgnored = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "chaos",
	Name:      "store_transitions_ignored_total",
	Help:      "Transitions that matched nothing (unknown system id, bad preference value).",
}, []string{"transition"})

// SystemsVisible tracks the size of the access-filtered catalog.
var SystemsVisible = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "chaos",
	Name:      "systems_visible",
	Help:      "Number of systems in the access-filtered catalog.",
})

// ─── Operations ─────────────────────────────────────────────────────────────

// OperationLatency tracks orchestrated operation duration in seconds.
var OperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "chaos",
	Name:      "operation_latency_seconds",
	Help:      "Orchestrated operation duration in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"operation"})

// OperationFailures counts failed orchestrated operations by error kind.
var OperationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "chaos",
	Name:      "operation_failures_total",
	Help:      "Total failed orchestrated operations.",
}, []string{"operation", "kind"})

// StaleResponses counts results discarded because the selection moved on.
var StaleResponses = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "chaos",
	Name:      "stale_responses_total",
	Help:      "Async results discarded because their system is no longer selected.",
}, []string{"operation"})

// ErrorsReported counts errors handed to the error reporter.
var ErrorsReported = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "chaos",
	Name:      "errors_reported_total",
	Help:      "Total errors passed to the error reporter.",
}, []string{"kind"})

// InterventionsProposed counts intervention proposals per system.
var InterventionsProposed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "chaos",
	Name:      "interventions_proposed_total",
	Help:      "Total intervention proposals.",
}, []string{"system"})

// ─── Analyst ────────────────────────────────────────────────────────────────

// ChatTurns counts analyst turns by outcome (ok, failed).
var ChatTurns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "chaos",
	Name:      "chat_turns_total",
	Help:      "Total analyst chat turns by outcome.",
}, []string{"outcome"})

// ChatLatency tracks completion latency per provider.
var ChatLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "chaos",
	Name:      "chat_latency_seconds",
	Help:      "Chat completion latency in seconds.",
	Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
}, []string{"provider"})

// ─── Simulations ────────────────────────────────────────────────────────────

// SimulationRuns counts runs reaching a status.
var SimulationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "chaos",
	Name:      "simulation_runs_total",
	Help:      "Simulation runs by status reached.",
}, []string{"status"})

// ParameterUpdates counts accepted parameter writes.
var ParameterUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "chaos",
	Name:      "parameter_updates_total",
	Help:      "Total accepted parameter writes.",
}, []string{"system"})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "chaos",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})

// HealthRecoveries tracks auto-recovery attempts.
var HealthRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "chaos",
	Name:      "health_recoveries_total",
	Help:      "Total auto-recovery attempts per check.",
}, []string{"check"})
