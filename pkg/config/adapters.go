package config

import (
	"github.com/ntufar/fsgate/pkg/admission"
	"github.com/ntufar/fsgate/pkg/shutdown"
	"github.com/ntufar/fsgate/pkg/streaming"
)

// AdmissionLimits converts the configured limits into the admission
// controller's limit set.
func (c *Config) AdmissionLimits() admission.ResourceLimits {
	return admission.ResourceLimits{
		MaxConcurrentRequests:   c.Limits.MaxConcurrentRequests,
		MaxRequestsPerMinute:    c.Limits.MaxRequestsPerMinute,
		MaxRequestsPerHour:      c.Limits.MaxRequestsPerHour,
		MaxFileSize:             c.Limits.MaxFileSize,
		MaxDirectoryDepth:       c.Limits.MaxDirectoryDepth,
		MaxSearchResults:        c.Limits.MaxSearchResults,
		MaxCacheSize:            c.Limits.MaxCacheSize,
		MaxMemoryUsage:          c.Limits.MaxMemoryUsage,
		MaxDiskUsage:            c.Limits.MaxDiskUsage,
		MaxStreamingConnections: c.Limits.MaxStreamingConnections,
	}
}

// AdmissionThrottle converts the throttle section.
func (c *Config) AdmissionThrottle() admission.ThrottleConfig {
	return admission.ThrottleConfig{
		WindowSize:    c.Throttle.WindowSize,
		MaxRequests:   c.Throttle.MaxRequests,
		BlockDuration: c.Throttle.BlockDuration,
		BurstLimit:    c.Throttle.BurstLimit,
		DecayRate:     c.Throttle.DecayRate,
	}
}

// AdmissionRules converts the configured rate-limit rules.
func (c *Config) AdmissionRules() []admission.RateLimitRule {
	rules := make([]admission.RateLimitRule, 0, len(c.Rules))
	for _, r := range c.Rules {
		rules = append(rules, admission.RateLimitRule{
			ID:       r.ID,
			Name:     r.Name,
			Pattern:  r.Pattern,
			Limits:   r.Limits,
			Enabled:  r.Enabled,
			Priority: r.Priority,
		})
	}
	return rules
}

// StreamingManagerConfig converts the streaming section.
func (c *Config) StreamingManagerConfig() streaming.Config {
	return streaming.Config{
		MaxConcurrentStreams: c.Streaming.MaxConcurrentStreams,
		ChunkSize:            c.Streaming.ChunkSize,
		SessionTimeout:       c.Streaming.SessionTimeout,
		Compression:          c.Streaming.Compression,
	}
}

// ShutdownOrchestratorConfig converts the shutdown section. The
// version string is stamped into saved snapshots.
func (c *Config) ShutdownOrchestratorConfig(version string) shutdown.Config {
	return shutdown.Config{
		PhaseTimeout:     c.Shutdown.Timeout,
		PollInterval:     c.Shutdown.PollInterval,
		Force:            c.Shutdown.ForceShutdown,
		SaveState:        c.Shutdown.SaveState,
		NotifyClients:    c.Shutdown.NotifyClients,
		CleanupResources: c.Shutdown.CleanupResources,
		LogShutdown:      c.Shutdown.LogShutdown,
		Version:          version,
	}
}
