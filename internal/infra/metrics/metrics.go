// Package metrics provides Prometheus metrics for mathquest.
// Counters and histograms for requirement evaluation, stats cache
// construction, evaluation passes, dispatch and HTTP traffic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Requirement Evaluation ─────────────────────────────────────────────────

// Evaluations counts orchestrator calls by operation, kind and outcome.
var Evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mathquest",
	Name:      "requirement_evaluations_total",
	Help:      "Requirement checks and progress queries by outcome.",
}, []string{"op", "kind", "result"})

// EvaluationErrors counts errors contained by the engine.
var EvaluationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mathquest",
	Name:      "requirement_errors_total",
	Help:      "Errors converted to safe defaults, by operation and kind.",
}, []string{"op", "kind", "panic"})

// EvaluationLatency tracks a single requirement evaluation in seconds.
var EvaluationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "mathquest",
	Name:      "requirement_evaluation_seconds",
	Help:      "Duration of a single requirement evaluation.",
	Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
}, []string{"op"})

// ─── Evaluation Passes ──────────────────────────────────────────────────────

// StatsBuildLatency tracks stats cache construction in seconds.
var StatsBuildLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "mathquest",
	Name:      "stats_build_seconds",
	Help:      "Time to precompute a user's stats cache.",
	Buckets:   prometheus.DefBuckets,
})

// StatsAggregateFailures counts cache aggregates that could not be built.
var StatsAggregateFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mathquest",
	Name:      "stats_aggregate_failures_total",
	Help:      "Stats cache aggregates left absent after a query failure.",
}, []string{"aggregate"})

// PassesCompleted counts evaluation passes by trigger (event, sweep, api).
var PassesCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mathquest",
	Name:      "passes_completed_total",
	Help:      "Completed evaluation passes.",
}, []string{"trigger"})

// PassLatency tracks a full evaluation pass in seconds.
var PassLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "mathquest",
	Name:      "pass_seconds",
	Help:      "Duration of one evaluation pass over every badge.",
	Buckets:   prometheus.DefBuckets,
})

// BadgesPassed counts badges whose requirements were satisfied in a pass.
var BadgesPassed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "mathquest",
	Name:      "badges_passed_total",
	Help:      "Badge requirements found satisfied.",
})

// ─── Dispatch ───────────────────────────────────────────────────────────────

// MessagesReceived counts attempt messages by outcome (ok, malformed, failed, dropped).
var MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mathquest",
	Name:      "dispatch_messages_total",
	Help:      "Attempt messages consumed from the bus.",
}, []string{"outcome"})

// DispatchQueueDepth tracks messages waiting for a worker.
var DispatchQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "mathquest",
	Name:      "dispatch_queue_depth",
	Help:      "Attempt messages queued for evaluation.",
})

// ─── HTTP ───────────────────────────────────────────────────────────────────

// HTTPRequests counts API requests by route and status class.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mathquest",
	Name:      "http_requests_total",
	Help:      "API requests served.",
}, []string{"route", "status"})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "mathquest",
	Name:      "health_check_status",
	Help:      "Health check status (1=healthy, 0=unhealthy).",
}, []string{"check"})
