// Package metrics provides HTTP handler metrics for observability
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// HTTPMetrics contains Prometheus metrics for the presentation API
type HTTPMetrics struct {
	registry *prometheus.Registry

	// HTTP request metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// SSE (Server-Sent Events) metrics
	sseActiveConnections  prometheus.Gauge
	sseTotalConnections   *prometheus.CounterVec
	sseConnectionDuration prometheus.Histogram
	sseMessagesSent       *prometheus.CounterVec
	sseMessagesDropped    *prometheus.CounterVec
}

// NewHTTPMetrics creates and registers new HTTP handler metrics
func NewHTTPMetrics(registry *prometheus.Registry) (*HTTPMetrics, error) {
	m := &HTTPMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *HTTPMetrics) initMetrics() {
	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"}, // path is the route pattern, e.g. /api/v1/photos/:slot
	)

	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Time taken for HTTP requests",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12), // 1ms to ~4s
		},
		[]string{"method", "path"},
	)

	m.httpResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Size of HTTP responses in bytes",
			Buckets: prometheus.ExponentialBuckets(BucketStart100B, BucketFactor10, BucketCount6), // 100B to ~10MB
		},
		[]string{"method", "path"},
	)

	m.sseActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_sse_active_connections",
			Help: "Current number of active SSE connections",
		},
	)

	m.sseTotalConnections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_sse_connections_total",
			Help: "Total number of SSE connections established",
		},
		[]string{"status"}, // status: established, closed
	)

	m.sseConnectionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "http_sse_connection_duration_seconds",
			Help:    "Duration of SSE connections",
			Buckets: prometheus.ExponentialBuckets(1, BucketFactor2, BucketCount12), // 1s to ~1h
		},
	)

	m.sseMessagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_sse_messages_sent_total",
			Help: "Total number of SSE messages sent",
		},
		[]string{"event"},
	)

	m.sseMessagesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_sse_messages_dropped_total",
			Help: "Total number of SSE messages dropped before delivery",
		},
		[]string{"event", "reason"}, // reason: throttled, full
	)
}

func (m *HTTPMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.httpResponseSize,
		m.sseActiveConnections,
		m.sseTotalConnections,
		m.sseConnectionDuration,
		m.sseMessagesSent,
		m.sseMessagesDropped,
	}
}

// Describe implements the prometheus.Collector interface
func (m *HTTPMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.getCollectors() {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface
func (m *HTTPMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.getCollectors() {
		c.Collect(ch)
	}
}

// RecordHTTPRequest records a served request
func (m *HTTPMetrics) RecordHTTPRequest(method, path string, statusCode int, duration float64, sizeBytes int64) {
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
	if sizeBytes >= 0 {
		m.httpResponseSize.WithLabelValues(method, path).Observe(float64(sizeBytes))
	}
}

// SSEConnectionStarted records a new SSE client
func (m *HTTPMetrics) SSEConnectionStarted() {
	m.sseActiveConnections.Inc()
	m.sseTotalConnections.WithLabelValues("established").Inc()
}

// SSEConnectionClosed records a finished SSE client
func (m *HTTPMetrics) SSEConnectionClosed(duration float64) {
	m.sseActiveConnections.Dec()
	m.sseTotalConnections.WithLabelValues("closed").Inc()
	m.sseConnectionDuration.Observe(duration)
}

// RecordSSEMessageSent counts a delivered SSE event
func (m *HTTPMetrics) RecordSSEMessageSent(event string) {
	m.sseMessagesSent.WithLabelValues(event).Inc()
}

// RecordSSEMessageDropped counts an SSE event that was not delivered
func (m *HTTPMetrics) RecordSSEMessageDropped(event, reason string) {
	m.sseMessagesDropped.WithLabelValues(event, reason).Inc()
}

// GetActiveSSEConnections returns the current number of active SSE connections
func (m *HTTPMetrics) GetActiveSSEConnections() float64 {
	metric := &dto.Metric{}
	if err := m.sseActiveConnections.Write(metric); err != nil {
		return 0
	}
	return metric.GetGauge().GetValue()
}
