// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ChatPendingDepth tracks the current size of the client pending queue.
	ChatPendingDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_pending_items",
			Help: "Undelivered chat entries currently queued",
		},
	)

	// ChatFlushAttempts tracks delivery attempts by result.
	ChatFlushAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_flush_attempts_total",
			Help: "Chat entry delivery attempts",
		},
		[]string{"result"},
	)

	// ChatDroppedTotal tracks entries dropped after exhausting retries.
	ChatDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_dropped_entries_total",
			Help: "Chat entries dropped after exceeding the attempt ceiling",
		},
	)

	// ChatAppendsTotal tracks server-side conversation appends.
	ChatAppendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_appends_total",
			Help: "Conversation entries appended server-side",
		},
		[]string{"role"},
	)

	// QAQueriesTotal tracks QA lookups by outcome (cache_hit, inflight,
	// remote, error).
	QAQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qa_queries_total",
			Help: "QA lookups by resolution path",
		},
		[]string{"outcome"},
	)

	// QADuration tracks remote QA resolution latency.
	QADuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qa_resolve_duration_seconds",
			Help:    "Remote QA resolution latency",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// LLMFallbacksTotal tracks QA queries answered by the LLM provider.
	LLMFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qa_llm_fallbacks_total",
			Help: "QA queries answered by the configured LLM provider",
		},
		[]string{"provider", "status"},
	)

	// NATSEventsTotal tracks chat activity events published to JetStream.
	NATSEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_chat_events_total",
			Help: "Chat activity events published",
		},
		[]string{"kind", "status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}
