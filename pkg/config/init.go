package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// InitConfig writes a default configuration file to the default
// location and returns its path.
//
// Fails if the file already exists unless force is set.
func InitConfig(force bool) (string, error) {
	configPath := GetDefaultConfigPath()

	if !force {
		if _, err := os.Stat(configPath); err == nil {
			return "", fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
		}
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	var cfg Config
	ApplyDefaults(&cfg)

	content, err := generateYAMLWithComments(&cfg)
	if err != nil {
		return "", fmt.Errorf("failed to generate config: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return configPath, nil
}

// Dump renders the effective configuration as YAML, for --print-config.
func Dump(cfg *Config) (string, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(out), nil
}

// generateYAMLWithComments renders the configuration as YAML with a
// header and per-section comments.
func generateYAMLWithComments(cfg *Config) (string, error) {
	body, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("# fsgate Configuration File\n")
	b.WriteString("#\n")
	b.WriteString("# Environment variables with the FSGATE_ prefix override these\n")
	b.WriteString("# values, e.g. FSGATE_LOGGING_LEVEL=DEBUG\n\n")

	sectionComments := map[string]string{
		"logging:":   "# Log level and destination",
		"metrics:":   "# Prometheus metrics endpoint",
		"limits:":    "# Global resource limits consulted by admission checks",
		"throttle:":  "# Burst gate in front of the sliding windows",
		"streaming:": "# Streaming session manager",
		"shutdown:":  "# Shutdown sequence",
		"content:":   "# Content repository backend",
		"state:":     "# Shutdown snapshot sink",
	}

	for _, line := range strings.Split(string(body), "\n") {
		if comment, ok := sectionComments[strings.TrimRight(line, " ")]; ok {
			b.WriteString("\n")
			b.WriteString(comment)
			b.WriteString("\n")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return b.String(), nil
}
