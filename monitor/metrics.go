package monitor

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gateway metrics, exposed on /metrics when ENABLE_PROMETHEUS_METRICS is set.
var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requests_total",
			Help: "Total number of relay requests handled",
		},
		[]string{"dialect", "model", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "End to end request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~200s, streams run long
		},
		[]string{"dialect"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_duration_seconds",
			Help:    "Bedrock call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"model"},
	)

	TokensProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokens_processed_total",
			Help: "Total tokens relayed upstream and back",
		},
		[]string{"model", "type"}, // type: input/output
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Requests rejected by the per key token bucket",
		},
	)

	BudgetDeactivations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "budget_deactivations_total",
			Help: "Keys deactivated for exceeding their monthly budget",
		},
	)

	UsageWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usage_write_failures_total",
			Help: "Usage accounting writes that failed after retries",
		},
		[]string{"store"}, // records, aggregates, budget
	)

	EventsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "client_events_received_total",
			Help: "Telemetry events accepted by the event logging sink",
		},
	)
)

// RecordRequest counts a finished request and observes its wall time.
func RecordRequest(dialect, model string, status int, elapsed time.Duration) {
	RequestsTotal.WithLabelValues(dialect, model, strconv.Itoa(status)).Inc()
	RequestDuration.WithLabelValues(dialect).Observe(elapsed.Seconds())
}

// RecordUpstream observes how long a Bedrock call took.
func RecordUpstream(model string, elapsed time.Duration) {
	UpstreamDuration.WithLabelValues(model).Observe(elapsed.Seconds())
}

// RecordTokens counts input and output tokens against a model.
func RecordTokens(model string, inputTokens, outputTokens int64) {
	if inputTokens > 0 {
		TokensProcessed.WithLabelValues(model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		TokensProcessed.WithLabelValues(model, "output").Add(float64(outputTokens))
	}
}
