package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
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

func TestOperationMetrics(t *testing.T) {
	Operations.WithLabelValues("place_order", "ok").Inc()
	OperationLatency.WithLabelValues("place_order").Observe(0.002)

	names := gatheredNames(t)
	for _, name := range []string{
		"distri_operations_total",
		"distri_operation_latency_seconds",
	} {
		if !names[name] {
			t.Errorf("%s not found in gathered metrics", name)
		}
	}
}

func TestMarketCounters(t *testing.T) {
	before := testutil.ToFloat64(TransferredAmount.WithLabelValues("rent"))
	TransferredAmount.WithLabelValues("rent").Add(500)
	if got := testutil.ToFloat64(TransferredAmount.WithLabelValues("rent")); got != before+500 {
		t.Errorf("transferred rent = %v, want %v", got, before+500)
	}

	OrdersResolved.WithLabelValues("COMPLETED").Inc()
	TasksSubmitted.Inc()
	RewardsClaimed.WithLabelValues("periodic").Inc()
	CurrentPeriod.Set(42)

	if got := testutil.ToFloat64(CurrentPeriod); got != 42 {
		t.Errorf("current period = %v, want 42", got)
	}
}

func TestEventAndAPIMetrics(t *testing.T) {
	EventsPublished.WithLabelValues("nats", "order").Inc()
	EventsDropped.WithLabelValues("nats").Inc()
	APIRequests.WithLabelValues("/v1/machines", "200").Inc()
	APIRateLimited.Inc()
	HealthCheckStatus.WithLabelValues("store").Set(1)
	HealthRecoveries.WithLabelValues("store").Inc()

	names := gatheredNames(t)
	for _, name := range []string{
		"distri_events_published_total",
		"distri_events_dropped_total",
		"distri_api_requests_total",
		"distri_api_rate_limited_total",
		"distri_health_check_status",
		"distri_health_recoveries_total",
	} {
		if !names[name] {
			t.Errorf("%s not found in gathered metrics", name)
		}
	}
}
