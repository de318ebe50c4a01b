package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 increases on /radar.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation during slow pipeline runs.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream snapshot download attempts by outcome. Watch for: error vs success ratio.
	SnapshotFetchesTotal *prometheus.CounterVec

	// Upstream download latency per attempt. The file is hundreds of MB; p99 near
	// the per-attempt timeout means the retry budget is about to be spent.
	SnapshotFetchDuration *prometheus.HistogramVec

	// Retry attempts for snapshot downloads. Watch for: high retries = unstable upstream.
	SnapshotFetchRetriesTotal prometheus.Counter

	// Fetches that spent the whole retry budget, by category of the last
	// failure (timeout, network, upstream_status, disk). Separates "origin is
	// down" from "we cannot write the artifact".
	SnapshotFetchErrorsTotal *prometheus.CounterVec

	// Full pipeline runs by outcome stage (the stage that failed, or "success").
	PipelineRunsTotal *prometheus.CounterVec

	// End-to-end pipeline latency (gate miss through transform).
	PipelineDuration prometheus.Histogram

	// Requests answered from the cached payload without touching the pipeline.
	SnapshotCacheHitsTotal prometheus.Counter

	// Pipeline runs coalesced onto an in-flight run instead of starting their own.
	PipelineCoalescedTotal prometheus.Counter

	// Time coalesced callers spent waiting for the in-flight pipeline.
	PipelineCoalesceWaitSeconds prometheus.Histogram

	// Points in the most recent payload. A sudden drop to ~0 usually means the
	// upstream switched sentinel conventions, not clear skies everywhere.
	PayloadPointsCount prometheus.Gauge

	// Snapshot warming runs / failures / latency.
	SnapshotWarmingTotal           prometheus.Counter
	SnapshotWarmingErrorsTotal     prometheus.Counter
	SnapshotWarmingDurationSeconds prometheus.Histogram

	// Circuit breaker state transitions for the upstream source.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// Circuit breaker current state (0=closed, 1=open, 2=half_open).
	CircuitBreakerState *prometheus.GaugeVec

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	SnapshotFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshotFetchesTotal",
			Help: "Total number of MRMS snapshot download attempts",
		},
		[]string{"status"},
	)
	SnapshotFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snapshotFetchDurationSeconds",
			Help:    "MRMS snapshot download latency in seconds (per attempt)",
			Buckets: []float64{1, 5, 10, 30, 60, 90, 120},
		},
		[]string{"status"},
	)
	SnapshotFetchRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshotFetchRetriesTotal",
			Help: "Total number of retry attempts for snapshot downloads",
		},
	)
	SnapshotFetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshotFetchErrorsTotal",
			Help: "Snapshot fetches that exhausted the retry budget, by last-failure category",
		},
		[]string{"category"},
	)
	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipelineRunsTotal",
			Help: "Pipeline runs by result (success or the stage that failed)",
		},
		[]string{"result"},
	)
	PipelineDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipelineDurationSeconds",
			Help:    "End-to-end fetch/extract/decode/transform latency in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
	)
	SnapshotCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshotCacheHitsTotal",
			Help: "Requests served from the cached payload without running the pipeline",
		},
	)
	PipelineCoalescedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pipelineCoalescedTotal",
			Help: "Requests that waited on an in-flight pipeline run instead of starting one",
		},
	)
	PipelineCoalesceWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipelineCoalesceWaitSeconds",
			Help:    "Time coalesced requests spent waiting for the in-flight pipeline",
			Buckets: []float64{.1, .5, 1, 5, 15, 60, 120},
		},
	)
	PayloadPointsCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "payloadPointsCount",
			Help: "Number of points in the most recently built payload",
		},
	)
	SnapshotWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshotWarmingTotal",
			Help: "Snapshot warming runs",
		},
	)
	SnapshotWarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshotWarmingErrorsTotal",
			Help: "Snapshot warming runs that failed",
		},
	)
	SnapshotWarmingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "snapshotWarmingDurationSeconds",
			Help:    "Snapshot warming latency in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half_open)",
		},
		[]string{"component"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		SnapshotFetchesTotal, SnapshotFetchDuration, SnapshotFetchRetriesTotal,
		SnapshotFetchErrorsTotal,
		PipelineRunsTotal, PipelineDuration,
		SnapshotCacheHitsTotal, PipelineCoalescedTotal, PipelineCoalesceWaitSeconds,
		PayloadPointsCount,
		SnapshotWarmingTotal, SnapshotWarmingErrorsTotal, SnapshotWarmingDurationSeconds,
		CircuitBreakerTransitionsTotal, CircuitBreakerState,
		RateLimitDeniedTotal,
	)
}

// RecordCircuitBreakerTransition records a breaker transition for the component.
func RecordCircuitBreakerTransition(component, from, to string) {
	CircuitBreakerTransitionsTotal.WithLabelValues(component, from, to).Inc()
}

// SetCircuitBreakerStateGauge sets the breaker state gauge for the component.
func SetCircuitBreakerStateGauge(component string, state float64) {
	CircuitBreakerState.WithLabelValues(component).Set(state)
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
