package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StreamingMetrics provides observability for the streaming session
// manager.
type StreamingMetrics interface {
	// RecordSessionOpened increments the opened-session counter for the
	// session kind ("file", "directory", "search").
	RecordSessionOpened(kind string)

	// RecordSessionClosed records a finished session with its kind,
	// terminal cause ("completed", "cancelled", "expired", "failed"),
	// lifetime and transferred volume.
	RecordSessionClosed(kind, cause string, lifetime time.Duration, bytes uint64)

	// RecordSessionRejected increments the capacity-rejection counter.
	RecordSessionRejected()

	// SetActiveSessions updates the live session gauge.
	SetActiveSessions(count int)
}

// streamingMetrics is the Prometheus implementation of StreamingMetrics.
type streamingMetrics struct {
	sessionsOpened   *prometheus.CounterVec
	sessionsClosed   *prometheus.CounterVec
	sessionsRejected prometheus.Counter
	sessionLifetime  *prometheus.HistogramVec
	bytesStreamed    *prometheus.CounterVec
	activeSessions   prometheus.Gauge
}

// NewStreamingMetrics creates a Prometheus-backed StreamingMetrics.
//
// Returns a no-op implementation if metrics are not enabled.
func NewStreamingMetrics() StreamingMetrics {
	if !IsEnabled() {
		return &noopStreamingMetrics{}
	}

	reg := GetRegistry()

	return &streamingMetrics{
		sessionsOpened: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fsgate_streaming_sessions_opened_total",
				Help: "Total streaming sessions opened by kind",
			},
			[]string{"kind"},
		),
		sessionsClosed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fsgate_streaming_sessions_closed_total",
				Help: "Total streaming sessions closed by kind and cause",
			},
			[]string{"kind", "cause"},
		),
		sessionsRejected: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "fsgate_streaming_sessions_rejected_total",
				Help: "Total stream opens rejected because the concurrency cap was reached",
			},
		),
		sessionLifetime: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "fsgate_streaming_session_lifetime_seconds",
				Help: "Lifetime of streaming sessions in seconds",
				Buckets: []float64{
					0.1,   // 100ms
					1.0,   // 1s
					10.0,  // 10s
					60.0,  // 1m
					300.0, // 5m
					900.0, // 15m
				},
			},
			[]string{"kind"},
		),
		bytesStreamed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fsgate_streaming_bytes_total",
				Help: "Total bytes (or items, for pagers) delivered through streaming sessions",
			},
			[]string{"kind"},
		),
		activeSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "fsgate_streaming_sessions_active",
				Help: "Current number of live streaming sessions",
			},
		),
	}
}

func (m *streamingMetrics) RecordSessionOpened(kind string) {
	m.sessionsOpened.WithLabelValues(kind).Inc()
}

func (m *streamingMetrics) RecordSessionClosed(kind, cause string, lifetime time.Duration, bytes uint64) {
	m.sessionsClosed.WithLabelValues(kind, cause).Inc()
	m.sessionLifetime.WithLabelValues(kind).Observe(lifetime.Seconds())
	m.bytesStreamed.WithLabelValues(kind).Add(float64(bytes))
}

func (m *streamingMetrics) RecordSessionRejected() {
	m.sessionsRejected.Inc()
}

func (m *streamingMetrics) SetActiveSessions(count int) {
	m.activeSessions.Set(float64(count))
}

// noopStreamingMetrics discards all metrics.
type noopStreamingMetrics struct{}

// NewNoopStreamingMetrics returns a StreamingMetrics that discards
// everything.
func NewNoopStreamingMetrics() StreamingMetrics {
	return &noopStreamingMetrics{}
}

func (noopStreamingMetrics) RecordSessionOpened(string)                            {}
func (noopStreamingMetrics) RecordSessionClosed(string, string, time.Duration, uint64) {}
func (noopStreamingMetrics) RecordSessionRejected()                                {}
func (noopStreamingMetrics) SetActiveSessions(int)                                 {}
