package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestMetrics_Usable verifies every metric can be used without panic, keeping
// label dimensions aligned with usage in fetch, service, http, and cache.
func TestMetrics_Usable(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/radar", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/radar").Observe(0.01)
	HTTPRequestsInFlight.Inc()
	HTTPRequestsInFlight.Dec()
	SnapshotFetchesTotal.WithLabelValues("success").Inc()
	SnapshotFetchesTotal.WithLabelValues("server_error").Inc()
	SnapshotFetchDuration.WithLabelValues("success").Observe(12.5)
	SnapshotFetchRetriesTotal.Inc()
	SnapshotFetchErrorsTotal.WithLabelValues("timeout").Inc()
	PipelineRunsTotal.WithLabelValues("success").Inc()
	PipelineRunsTotal.WithLabelValues("fetch").Inc()
	PipelineDuration.Observe(30)
	SnapshotCacheHitsTotal.Inc()
	PipelineCoalescedTotal.Inc()
	PipelineCoalesceWaitSeconds.Observe(1.5)
	PayloadPointsCount.Set(48211)
	SnapshotWarmingTotal.Inc()
	SnapshotWarmingErrorsTotal.Inc()
	SnapshotWarmingDurationSeconds.Observe(45)
	RecordCircuitBreakerTransition("mrms_source", "closed", "open")
	SetCircuitBreakerStateGauge("mrms_source", 1)
	RateLimitDeniedTotal.Inc()
}

// TestMetricsHandler_ServesPrometheusFormat verifies the handler serves the
// text exposition format from the custom registry.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	SnapshotFetchesTotal.WithLabelValues("success").Inc()
	PipelineRunsTotal.WithLabelValues("success").Inc()
	HTTPRequestsTotal.WithLabelValues("GET", "/radar", "2xx").Inc()

	handler := MetricsHandler()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, metric := range []string{"snapshotFetchesTotal", "pipelineRunsTotal", "httpRequestsTotal"} {
		if !strings.Contains(body, metric) {
			t.Errorf("exposition missing %s", metric)
		}
	}
	// Runtime collectors registered alongside application metrics.
	if !strings.Contains(body, "go_goroutines") {
		t.Error("exposition missing go runtime collector output")
	}
}
