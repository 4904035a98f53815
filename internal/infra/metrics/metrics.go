// Package metrics provides Prometheus metrics for Distri.
// Counters, gauges and histograms for engine operations, value movements,
// rewards, events and health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Operations ─────────────────────────────────────────────────────────────

// Operations counts engine operations by name and result
// ("ok" or the error kind).
var Operations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "distri",
	Name:      "operations_total",
	Help:      "Total engine operations by result.",
}, []string{"op", "result"})

// OperationLatency tracks how long an operation's transaction takes.
var OperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "distri",
	Name:      "operation_latency_seconds",
	Help:      "Engine operation duration in seconds.",
	Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
}, []string{"op"})

// ─── Value ──────────────────────────────────────────────────────────────────

// TransferredAmount tracks token base units moved, by purpose
// ("rent", "refund", "payout", "claim", "deposit").
var TransferredAmount = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "distri",
	Name:      "transferred_amount_total",
	Help:      "Total token base units moved by the engine.",
}, []string{"purpose"})

// ─── Market ─────────────────────────────────────────────────────────────────

// OrdersResolved counts orders reaching a terminal status.
var OrdersResolved = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "distri",
	Name:      "orders_resolved_total",
	Help:      "Total orders reaching a terminal status.",
}, []string{"status"})

// TasksSubmitted counts accepted task submissions.
var TasksSubmitted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "distri",
	Name:      "tasks_submitted_total",
	Help:      "Total accepted task submissions.",
})

// RewardsClaimed counts reward claims by kind ("periodic", "ai_model_dataset").
var RewardsClaimed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "distri",
	Name:      "rewards_claimed_total",
	Help:      "Total reward claims.",
}, []string{"kind"})

// CurrentPeriod is the reward period at the last operation.
var CurrentPeriod = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "distri",
	Name:      "current_period",
	Help:      "Reward period observed by the engine.",
})

// ─── Events ─────────────────────────────────────────────────────────────────

// EventsPublished counts events handed to a sink, by sink and topic.
var EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "distri",
	Name:      "events_published_total",
	Help:      "Total events published.",
}, []string{"sink", "topic"})

// EventsDropped counts events a sink failed to deliver.
var EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "distri",
	Name:      "events_dropped_total",
	Help:      "Total events dropped on delivery failure.",
}, []string{"sink"})

// ─── API ────────────────────────────────────────────────────────────────────

// APIRequests counts HTTP requests by route pattern and status code.
var APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "distri",
	Name:      "api_requests_total",
	Help:      "Total HTTP API requests.",
}, []string{"route", "code"})

// APIRateLimited counts requests rejected by the rate limiter.
var APIRateLimited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "distri",
	Name:      "api_rate_limited_total",
	Help:      "Total HTTP requests rejected by the rate limiter.",
})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=pass, 0=fail).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "distri",
	Name:      "health_check_status",
	Help:      "Health check status (1=pass, 0=fail).",
}, []string{"check"})

// HealthRecoveries counts failed checks that later passed again.
var HealthRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "distri",
	Name:      "health_recoveries_total",
	Help:      "Total health recoveries.",
}, []string{"check"})
