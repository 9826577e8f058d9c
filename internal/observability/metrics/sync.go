// Package metrics provides custom Prometheus metrics for navpreview.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics contains Prometheus metrics for the playback coordinator:
// mode transitions, mirrored player actions, camera acquisitions and
// clip load failures.
type SyncMetrics struct {
	registry *prometheus.Registry

	transitionsTotal         *prometheus.CounterVec
	transitionsDeferredTotal prometheus.Counter
	transitionDuration       *prometheus.HistogramVec

	mirrorActionsTotal *prometheus.CounterVec

	captureAcquisitionsTotal *prometheus.CounterVec
	captureStreamsOpen       prometheus.Gauge

	loadFailuresTotal *prometheus.CounterVec
}

// NewSyncMetrics creates and registers new coordinator metrics
func NewSyncMetrics(registry *prometheus.Registry) (*SyncMetrics, error) {
	m := &SyncMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *SyncMetrics) initMetrics() {
	m.transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navpreview_transitions_total",
			Help: "Total number of completed mode transitions",
		},
		[]string{"to", "result"}, // to: standard, realtime; result: ok, error, camera-error
	)

	m.transitionsDeferredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "navpreview_transitions_deferred_total",
			Help: "Total number of mode requests deferred because the sync lock was held",
		},
	)

	m.transitionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "navpreview_transition_duration_seconds",
			Help:    "Time from transition start until every player settled",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12), // 10ms to ~20s
		},
		[]string{"to"},
	)

	m.mirrorActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navpreview_mirror_actions_total",
			Help: "Total number of player events seen by the sync group",
		},
		[]string{"action", "result"}, // action: play, pause, seek; result: applied, noop, suppressed, dropped, ignored
	)

	m.captureAcquisitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navpreview_capture_acquisitions_total",
			Help: "Total number of camera acquisition attempts",
		},
		[]string{"result"}, // result: ok, denied, no-device, timeout, superseded, error
	)

	m.captureStreamsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "navpreview_capture_streams_open",
			Help: "Number of camera streams currently held open",
		},
	)

	m.loadFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navpreview_load_failures_total",
			Help: "Total number of clip load failures",
		},
		[]string{"player"},
	)
}

func (m *SyncMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.transitionsTotal,
		m.transitionsDeferredTotal,
		m.transitionDuration,
		m.mirrorActionsTotal,
		m.captureAcquisitionsTotal,
		m.captureStreamsOpen,
		m.loadFailuresTotal,
	}
}

// Describe implements the prometheus.Collector interface
func (m *SyncMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface
func (m *SyncMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

// RecordTransition records a finished transition and how long it took.
func (m *SyncMetrics) RecordTransition(to, result string, d time.Duration) {
	m.transitionsTotal.WithLabelValues(to, result).Inc()
	m.transitionDuration.WithLabelValues(to).Observe(d.Seconds())
}

// RecordTransitionDeferred counts a mode request that had to wait for the lock.
func (m *SyncMetrics) RecordTransitionDeferred() {
	m.transitionsDeferredTotal.Inc()
}

// RecordLoadFailure counts a clip that failed to load on player.
func (m *SyncMetrics) RecordLoadFailure(player string) {
	m.loadFailuresTotal.WithLabelValues(player).Inc()
}

// RecordMirror counts a sync group decision.
func (m *SyncMetrics) RecordMirror(action, result string) {
	m.mirrorActionsTotal.WithLabelValues(action, result).Inc()
}

// RecordAcquisition counts a camera acquisition attempt.
func (m *SyncMetrics) RecordAcquisition(result string) {
	m.captureAcquisitionsTotal.WithLabelValues(result).Inc()
}

// SetOpenStreams sets the open camera stream gauge.
func (m *SyncMetrics) SetOpenStreams(n int) {
	m.captureStreamsOpen.Set(float64(n))
}
