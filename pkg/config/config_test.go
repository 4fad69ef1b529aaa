package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_DefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"

content:
  type: "memory"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify defaults were applied
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.Shutdown.Timeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.Shutdown.Timeout)
	}
	if cfg.Limits.MaxConcurrentRequests != 10 {
		t.Errorf("Expected default max_concurrent_requests 10, got %d", cfg.Limits.MaxConcurrentRequests)
	}
	if cfg.Streaming.MaxConcurrentStreams != 5 {
		t.Errorf("Expected default max_concurrent_streams 5, got %d", cfg.Streaming.MaxConcurrentStreams)
	}
	if cfg.Content.Type != "memory" {
		t.Errorf("Expected content type 'memory', got %q", cfg.Content.Type)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// A missing config file is acceptable; defaults apply
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Content.Type != "filesystem" {
		t.Errorf("Expected default content type 'filesystem', got %q", cfg.Content.Type)
	}
	if cfg.State.Type != "none" {
		t.Errorf("Expected default state type 'none', got %q", cfg.State.Type)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	if err := os.WriteFile(configPath, []byte("logging: [unclosed"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error loading invalid YAML")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Setenv("FSGATE_LOGGING_LEVEL", "DEBUG")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected env override level 'DEBUG', got %q", cfg.Logging.Level)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "warn"
  output: "stderr"

metrics:
  enabled: true
  port: 9191

limits:
  max_concurrent_requests: 20
  max_requests_per_minute: 200
  max_requests_per_hour: 2000
  max_file_size: 1048576

throttle:
  window_size: 30s
  max_requests: 50
  block_duration: 5m
  burst_limit: 10
  decay_rate: 0.25

rules:
  - id: "search-tight"
    name: "Tighter search limits"
    pattern: "search_*"
    priority: 20
    enabled: true
    limits:
      max_requests_per_minute: 10

streaming:
  max_concurrent_streams: 3
  session_timeout: 1m

shutdown:
  timeout: 10s
  force_shutdown: true
  save_state: true

content:
  type: "memory"

state:
  type: "memory"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Level is normalized to uppercase
	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Metrics.Port != 9191 {
		t.Errorf("Expected metrics port 9191, got %d", cfg.Metrics.Port)
	}
	if cfg.Limits.MaxConcurrentRequests != 20 {
		t.Errorf("Expected max_concurrent_requests 20, got %d", cfg.Limits.MaxConcurrentRequests)
	}
	if cfg.Throttle.WindowSize != 30*time.Second {
		t.Errorf("Expected throttle window 30s, got %v", cfg.Throttle.WindowSize)
	}
	if cfg.Throttle.DecayRate != 0.25 {
		t.Errorf("Expected decay_rate 0.25, got %v", cfg.Throttle.DecayRate)
	}
	if len(cfg.Rules) != 1 || cfg.Rules[0].ID != "search-tight" {
		t.Fatalf("Expected one rule 'search-tight', got %+v", cfg.Rules)
	}
	if cfg.Rules[0].Limits["max_requests_per_minute"] != 10 {
		t.Errorf("Expected rule limit override 10, got %v", cfg.Rules[0].Limits["max_requests_per_minute"])
	}
	if cfg.Streaming.MaxConcurrentStreams != 3 {
		t.Errorf("Expected max_concurrent_streams 3, got %d", cfg.Streaming.MaxConcurrentStreams)
	}
	if !cfg.Shutdown.ForceShutdown {
		t.Error("Expected force_shutdown true")
	}
	if cfg.State.Type != "memory" {
		t.Errorf("Expected state type 'memory', got %q", cfg.State.Type)
	}
}

func TestAdapters_RoundTrip(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Shutdown.ForceShutdown = true

	limits := cfg.AdmissionLimits()
	if limits.MaxConcurrentRequests != cfg.Limits.MaxConcurrentRequests {
		t.Errorf("AdmissionLimits dropped max_concurrent_requests: %d", limits.MaxConcurrentRequests)
	}

	sc := cfg.StreamingManagerConfig()
	if sc.MaxConcurrentStreams != cfg.Streaming.MaxConcurrentStreams {
		t.Errorf("StreamingManagerConfig dropped max_concurrent_streams: %d", sc.MaxConcurrentStreams)
	}

	oc := cfg.ShutdownOrchestratorConfig("v1.2.3")
	if oc.PhaseTimeout != cfg.Shutdown.Timeout {
		t.Errorf("ShutdownOrchestratorConfig dropped timeout: %v", oc.PhaseTimeout)
	}
	if !oc.Force {
		t.Error("ShutdownOrchestratorConfig dropped force flag")
	}
	if oc.Version != "v1.2.3" {
		t.Errorf("Expected version 'v1.2.3', got %q", oc.Version)
	}
}

func TestDump_RendersYAML(t *testing.T) {
	cfg := GetDefaultConfig()

	out, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump failed: %v", err)
	}

	for _, section := range []string{"logging:", "limits:", "shutdown:", "content:"} {
		if !strings.Contains(out, section) {
			t.Errorf("Dump output missing section %q", section)
		}
	}
}
