// Package config loads, defaults, and validates the fsgate
// configuration, and provides factories for the configured backends.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete fsgate configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (FSGATE_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Metrics controls the Prometheus metrics endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Limits is the global resource limit set consulted by admission
	// checks
	Limits LimitsConfig `mapstructure:"limits" yaml:"limits"`

	// Throttle tunes the burst gate in front of the sliding windows
	Throttle ThrottleConfig `mapstructure:"throttle" yaml:"throttle"`

	// Rules are additional rate-limit rules loaded at startup
	Rules []RuleConfig `mapstructure:"rules" yaml:"rules,omitempty" validate:"dive"`

	// Streaming tunes the streaming session manager
	Streaming StreamingConfig `mapstructure:"streaming" yaml:"streaming"`

	// Shutdown tunes the shutdown sequence
	Shutdown ShutdownConfig `mapstructure:"shutdown" yaml:"shutdown"`

	// Content selects and configures the content repository
	Content ContentConfig `mapstructure:"content" yaml:"content"`

	// State selects and configures the shutdown snapshot sink
	State StateConfig `mapstructure:"state" yaml:"state"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled turns the metrics registry and HTTP server on
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the metrics HTTP server port
	Port int `mapstructure:"port" yaml:"port" validate:"gte=0,lte=65535"`
}

// LimitsConfig is the global resource limit set.
type LimitsConfig struct {
	MaxConcurrentRequests   uint   `mapstructure:"max_concurrent_requests" yaml:"max_concurrent_requests" validate:"gt=0"`
	MaxRequestsPerMinute    uint   `mapstructure:"max_requests_per_minute" yaml:"max_requests_per_minute" validate:"gt=0"`
	MaxRequestsPerHour      uint   `mapstructure:"max_requests_per_hour" yaml:"max_requests_per_hour" validate:"gt=0"`
	MaxFileSize             uint64 `mapstructure:"max_file_size" yaml:"max_file_size"`
	MaxDirectoryDepth       uint   `mapstructure:"max_directory_depth" yaml:"max_directory_depth"`
	MaxSearchResults        uint   `mapstructure:"max_search_results" yaml:"max_search_results"`
	MaxCacheSize            uint64 `mapstructure:"max_cache_size" yaml:"max_cache_size"`
	MaxMemoryUsage          uint64 `mapstructure:"max_memory_usage" yaml:"max_memory_usage"`
	MaxDiskUsage            uint64 `mapstructure:"max_disk_usage" yaml:"max_disk_usage"`
	MaxStreamingConnections uint   `mapstructure:"max_streaming_connections" yaml:"max_streaming_connections"`
}

// ThrottleConfig tunes the admission burst gate.
type ThrottleConfig struct {
	WindowSize    time.Duration `mapstructure:"window_size" yaml:"window_size"`
	MaxRequests   uint          `mapstructure:"max_requests" yaml:"max_requests"`
	BlockDuration time.Duration `mapstructure:"block_duration" yaml:"block_duration"`
	BurstLimit    uint          `mapstructure:"burst_limit" yaml:"burst_limit"`
	DecayRate     float64       `mapstructure:"decay_rate" yaml:"decay_rate" validate:"gte=0,lte=1"`
}

// RuleConfig defines one rate-limit rule loaded at startup.
type RuleConfig struct {
	// ID identifies the rule; IDs are unique across the rule set
	ID string `mapstructure:"id" yaml:"id" validate:"required"`

	// Name is the human-readable rule description
	Name string `mapstructure:"name" yaml:"name"`

	// Pattern matches operation names (path.Match syntax); empty
	// matches every operation
	Pattern string `mapstructure:"pattern" yaml:"pattern"`

	// Priority orders rule matching, highest first
	Priority int `mapstructure:"priority" yaml:"priority"`

	// Enabled toggles the rule without removing it
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Limits overrides individual limit fields for matching checks,
	// keyed by the limit's config name
	Limits map[string]any `mapstructure:"limits" yaml:"limits,omitempty"`
}

// StreamingConfig tunes the streaming session manager.
type StreamingConfig struct {
	// MaxConcurrentStreams caps the active-session table; 0 falls back
	// to limits.max_streaming_connections
	MaxConcurrentStreams uint `mapstructure:"max_concurrent_streams" yaml:"max_concurrent_streams"`

	// ChunkSize is the suggested read chunk for file sessions
	ChunkSize int `mapstructure:"chunk_size" yaml:"chunk_size"`

	// SessionTimeout is the default session deadline
	SessionTimeout time.Duration `mapstructure:"session_timeout" yaml:"session_timeout"`

	// Compression marks sessions as compressed in their metadata
	Compression bool `mapstructure:"compression" yaml:"compression"`
}

// ShutdownConfig tunes the shutdown sequence.
type ShutdownConfig struct {
	// Timeout bounds each shutdown phase independently
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"required,gt=0"`

	// PollInterval is the drain phase's sampling interval
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`

	// ForceShutdown continues past phase and hook failures
	ForceShutdown bool `mapstructure:"force_shutdown" yaml:"force_shutdown"`

	// SaveState hands a snapshot to the state sink before completion
	SaveState bool `mapstructure:"save_state" yaml:"save_state"`

	// NotifyClients invokes the client notification collaborator
	NotifyClients bool `mapstructure:"notify_clients" yaml:"notify_clients"`

	// CleanupResources enables the resource cleanup phase
	CleanupResources bool `mapstructure:"cleanup_resources" yaml:"cleanup_resources"`

	// LogShutdown logs every phase transition
	LogShutdown bool `mapstructure:"log_shutdown" yaml:"log_shutdown"`
}

// ContentConfig selects the content repository implementation.
// Only the section matching Type is consulted.
type ContentConfig struct {
	// Type specifies which repository implementation to use
	// Valid values: filesystem, memory, s3
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=filesystem memory s3"`

	// Filesystem contains filesystem-specific configuration
	Filesystem map[string]any `mapstructure:"filesystem" yaml:"filesystem,omitempty"`

	// S3 contains S3-specific configuration
	S3 map[string]any `mapstructure:"s3" yaml:"s3,omitempty"`
}

// StateConfig selects the shutdown snapshot sink.
type StateConfig struct {
	// Type specifies which sink to use
	// Valid values: none, memory, badger
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=none memory badger"`

	// Badger contains BadgerDB-specific configuration
	Badger map[string]any `mapstructure:"badger" yaml:"badger,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
//
// Pass an empty configPath to search the default location
// ($XDG_CONFIG_HOME/fsgate/config.yaml).
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures environment variable support and the config
// file search path.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the FSGATE_ prefix with underscores,
	// e.g. FSGATE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("FSGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. A missing
// file is acceptable; defaults apply.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory, preferring
// XDG_CONFIG_HOME, then ~/.config, then the current directory.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "fsgate")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "fsgate")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
