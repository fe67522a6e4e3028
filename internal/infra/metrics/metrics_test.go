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

func TestEvaluationMetrics(t *testing.T) {
	Evaluations.WithLabelValues("check", "mixte", "passed").Inc()
	EvaluationErrors.WithLabelValues("progress", "consecutive", "false").Inc()
	EvaluationLatency.WithLabelValues("check").Observe(0.002)

	names := gatheredNames(t)
	expected := []string{
		"mathquest_requirement_evaluations_total",
		"mathquest_requirement_errors_total",
		"mathquest_requirement_evaluation_seconds",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestPassMetrics(t *testing.T) {
	StatsBuildLatency.Observe(0.01)
	StatsAggregateFailures.WithLabelValues("activity_dates").Inc()
	PassesCompleted.WithLabelValues("event").Inc()
	PassLatency.Observe(0.05)
	BadgesPassed.Add(2)

	names := gatheredNames(t)
	expected := []string{
		"mathquest_stats_build_seconds",
		"mathquest_stats_aggregate_failures_total",
		"mathquest_passes_completed_total",
		"mathquest_pass_seconds",
		"mathquest_badges_passed_total",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestDispatchAndHealthMetrics(t *testing.T) {
	MessagesReceived.WithLabelValues("ok").Inc()
	DispatchQueueDepth.Set(4)
	HTTPRequests.WithLabelValues("/api/requirements/check", "2xx").Inc()
	HealthCheckStatus.WithLabelValues("store").Set(1)

	names := gatheredNames(t)
	for _, name := range []string{
		"mathquest_dispatch_messages_total",
		"mathquest_dispatch_queue_depth",
		"mathquest_http_requests_total",
		"mathquest_health_check_status",
	} {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}
