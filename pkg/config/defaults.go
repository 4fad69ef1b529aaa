package config

import (
	"strings"
	"time"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields. Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	applyLimitsDefaults(&cfg.Limits)
	applyThrottleDefaults(&cfg.Throttle)
	applyStreamingDefaults(&cfg.Streaming, &cfg.Limits)
	applyShutdownDefaults(&cfg.Shutdown)
	applyContentDefaults(&cfg.Content)
	applyStateDefaults(&cfg.State)
}

// GetDefaultConfig returns a configuration with all defaults applied.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalized to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyLimitsDefaults(cfg *LimitsConfig) {
	if cfg.MaxConcurrentRequests == 0 {
		cfg.MaxConcurrentRequests = 10
	}
	if cfg.MaxRequestsPerMinute == 0 {
		cfg.MaxRequestsPerMinute = 100
	}
	if cfg.MaxRequestsPerHour == 0 {
		cfg.MaxRequestsPerHour = 1000
	}
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = 100 << 20 // 100MB
	}
	if cfg.MaxDirectoryDepth == 0 {
		cfg.MaxDirectoryDepth = 10
	}
	if cfg.MaxSearchResults == 0 {
		cfg.MaxSearchResults = 1000
	}
	if cfg.MaxCacheSize == 0 {
		cfg.MaxCacheSize = 100 << 20 // 100MB
	}
	if cfg.MaxMemoryUsage == 0 {
		cfg.MaxMemoryUsage = 512 << 20 // 512MB
	}
	if cfg.MaxDiskUsage == 0 {
		cfg.MaxDiskUsage = 10 << 30 // 10GB
	}
	if cfg.MaxStreamingConnections == 0 {
		cfg.MaxStreamingConnections = 5
	}
}

func applyThrottleDefaults(cfg *ThrottleConfig) {
	if cfg.WindowSize == 0 {
		cfg.WindowSize = time.Minute
	}
	if cfg.BlockDuration == 0 {
		cfg.BlockDuration = 15 * time.Minute
	}
	// BurstLimit 0 keeps the burst gate disabled
	if cfg.DecayRate == 0 {
		cfg.DecayRate = 0.5
	}
}

func applyStreamingDefaults(cfg *StreamingConfig, limits *LimitsConfig) {
	if cfg.MaxConcurrentStreams == 0 {
		cfg.MaxConcurrentStreams = limits.MaxStreamingConnections
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 64 * 1024
	}
	if cfg.SessionTimeout == 0 {
		cfg.SessionTimeout = 5 * time.Minute
	}
}

func applyShutdownDefaults(cfg *ShutdownConfig) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
}

func applyContentDefaults(cfg *ContentConfig) {
	if cfg.Type == "" {
		cfg.Type = "filesystem"
	}

	if cfg.Filesystem == nil {
		cfg.Filesystem = make(map[string]any)
	}
	if _, ok := cfg.Filesystem["path"]; !ok {
		cfg.Filesystem["path"] = "/var/lib/fsgate/content"
	}
}

func applyStateDefaults(cfg *StateConfig) {
	if cfg.Type == "" {
		cfg.Type = "none"
	}

	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if _, ok := cfg.Badger["path"]; !ok {
		cfg.Badger["path"] = "/var/lib/fsgate/state"
	}
}
