package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gatheredNames(t *testing.T) map[string]bool {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestStoreMetrics(t *testing.T) {
	TransitionsApplied.WithLabelValues("select_system").Inc()
	TransitionsIgnored.WithLabelValues("update_system").Inc()
	SystemsVisible.Set(2)

	names := gatheredNames(t)
	for _, name := range []string{
		"chaos_store_transitions_total",
		"chaos_store_transitions_ignored_total",
		"chaos_systems_visible",
	} {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestOperationMetrics(t *testing.T) {
	OperationLatency.WithLabelValues("load_systems").Observe(0.2)
	OperationFailures.WithLabelValues("update_parameter", "validation").Inc()
	StaleResponses.WithLabelValues("leverage_points").Inc()
	ErrorsReported.WithLabelValues("transport").Inc()
	InterventionsProposed.WithLabelValues("sys-1").Inc()

	names := gatheredNames(t)
	for _, name := range []string{
		"chaos_operation_latency_seconds",
		"chaos_operation_failures_total",
		"chaos_stale_responses_total",
		"chaos_errors_reported_total",
		"chaos_interventions_proposed_total",
	} {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestAnalystAndSimulationMetrics(t *testing.T) {
	ChatTurns.WithLabelValues("ok").Inc()
	ChatLatency.WithLabelValues("demo").Observe(1)
	SimulationRuns.WithLabelValues("Running").Inc()
	ParameterUpdates.WithLabelValues("sys-1").Inc()
	HealthCheckStatus.WithLabelValues("sqlite").Set(1)
	HealthRecoveries.WithLabelValues("sqlite").Inc()

	names := gatheredNames(t)
	for _, name := range []string{
		"chaos_chat_turns_total",
		"chaos_chat_latency_seconds",
		"chaos_simulation_runs_total",
		"chaos_parameter_updates_total",
		"chaos_health_check_status",
		"chaos_health_recoveries_total",
	} {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}
