package config

import (
	"github.com/ntufar/fsgate/pkg/metrics"
)

// MetricsResult contains all metrics-related components created from
// configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if
	// disabled)
	Server *metrics.Server

	// Admission is the metrics collector for the admission controller
	// (never nil, uses noop if disabled)
	Admission metrics.AdmissionMetrics

	// Streaming is the metrics collector for the streaming session
	// manager (never nil, uses noop if disabled)
	Streaming metrics.StreamingMetrics
}

// InitializeMetrics creates all metrics components based on
// configuration.
//
// If metrics are enabled the global Prometheus registry is initialized
// and a metrics HTTP server plus Prometheus-backed collectors are
// returned. If disabled, the server is nil and the collectors are
// no-op implementations.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			Server:    nil,
			Admission: metrics.NewNoopAdmissionMetrics(),
			Streaming: metrics.NewNoopStreamingMetrics(),
		}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Metrics.Port,
	})

	return &MetricsResult{
		Server:    server,
		Admission: metrics.NewAdmissionMetrics(),
		Streaming: metrics.NewStreamingMetrics(),
	}
}
