package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AdmissionMetrics provides observability for the admission controller.
//
// This interface is optional - components accepting it treat nil as
// "no metrics" and the constructor returns a no-op implementation when
// the registry is not initialized.
type AdmissionMetrics interface {
	// RecordCheck records one admission decision.
	//
	// Parameters:
	//   - operation: operation name (e.g. "read_file")
	//   - allowed: whether the request was admitted
	//   - reason: denial reason, empty when allowed
	RecordCheck(operation string, allowed bool, reason string)

	// RecordFailOpen increments the count of internal admission errors
	// resolved as allow.
	RecordFailOpen()

	// RecordRequestComplete records a finished request with its
	// duration and outcome.
	RecordRequestComplete(operation string, duration time.Duration, success bool)

	// SetActiveRequests updates the in-flight request gauge.
	SetActiveRequests(count int)

	// SetTrackedIdentities updates the usage-table size gauge.
	SetTrackedIdentities(count int)

	// RecordSweep records the result of one maintenance sweep.
	RecordSweep(evicted, trimmed, blocked int)
}

// admissionMetrics is the Prometheus implementation of AdmissionMetrics.
type admissionMetrics struct {
	checksTotal       *prometheus.CounterVec
	failOpenTotal     prometheus.Counter
	requestDuration   *prometheus.HistogramVec
	activeRequests    prometheus.Gauge
	trackedIdentities prometheus.Gauge
	sweepEvicted      prometheus.Counter
	sweepTrimmed      prometheus.Counter
	sweepBlocked      prometheus.Counter
}

// NewAdmissionMetrics creates a Prometheus-backed AdmissionMetrics.
//
// Returns a no-op implementation if metrics are not enabled.
func NewAdmissionMetrics() AdmissionMetrics {
	if !IsEnabled() {
		return &noopAdmissionMetrics{}
	}

	reg := GetRegistry()

	return &admissionMetrics{
		checksTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fsgate_admission_checks_total",
				Help: "Total number of admission checks by operation, outcome, and denial reason",
			},
			[]string{"operation", "outcome", "reason"},
		),
		failOpenTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "fsgate_admission_fail_open_total",
				Help: "Total number of internal admission errors resolved as allow",
			},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "fsgate_admission_request_duration_seconds",
				Help: "Duration of admitted requests in seconds",
				Buckets: []float64{
					0.001, // 1ms
					0.01,  // 10ms
					0.05,  // 50ms
					0.1,   // 100ms
					0.5,   // 500ms
					1.0,   // 1s
					5.0,   // 5s
					30.0,  // 30s
				},
			},
			[]string{"operation", "status"},
		),
		activeRequests: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "fsgate_admission_requests_in_flight",
				Help: "Current number of requests between BeginRequest and EndRequest",
			},
		),
		trackedIdentities: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "fsgate_admission_tracked_identities",
				Help: "Current number of identities with a live usage record",
			},
		),
		sweepEvicted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "fsgate_admission_sweep_evicted_total",
				Help: "Total usage records evicted by the maintenance sweep",
			},
		),
		sweepTrimmed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "fsgate_admission_sweep_trimmed_total",
				Help: "Total request log entries trimmed by the maintenance sweep",
			},
		),
		sweepBlocked: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "fsgate_admission_sweep_blocked_total",
				Help: "Total identities blocked by the enforcement pass of the sweep",
			},
		),
	}
}

func (m *admissionMetrics) RecordCheck(operation string, allowed bool, reason string) {
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	m.checksTotal.WithLabelValues(operation, outcome, reason).Inc()
}

func (m *admissionMetrics) RecordFailOpen() {
	m.failOpenTotal.Inc()
}

func (m *admissionMetrics) RecordRequestComplete(operation string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.requestDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

func (m *admissionMetrics) SetActiveRequests(count int) {
	m.activeRequests.Set(float64(count))
}

func (m *admissionMetrics) SetTrackedIdentities(count int) {
	m.trackedIdentities.Set(float64(count))
}

func (m *admissionMetrics) RecordSweep(evicted, trimmed, blocked int) {
	m.sweepEvicted.Add(float64(evicted))
	m.sweepTrimmed.Add(float64(trimmed))
	m.sweepBlocked.Add(float64(blocked))
}

// noopAdmissionMetrics discards all metrics.
type noopAdmissionMetrics struct{}

// NewNoopAdmissionMetrics returns an AdmissionMetrics that discards
// everything.
func NewNoopAdmissionMetrics() AdmissionMetrics {
	return &noopAdmissionMetrics{}
}

func (noopAdmissionMetrics) RecordCheck(string, bool, string)                       {}
func (noopAdmissionMetrics) RecordFailOpen()                                        {}
func (noopAdmissionMetrics) RecordRequestComplete(string, time.Duration, bool)      {}
func (noopAdmissionMetrics) SetActiveRequests(int)                                  {}
func (noopAdmissionMetrics) SetTrackedIdentities(int)                               {}
func (noopAdmissionMetrics) RecordSweep(evicted int, trimmed int, blockedCount int) {}
