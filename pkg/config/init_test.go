package config

import (
	"os"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func setTestConfigDir(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	return tmpDir
}

func TestInitConfig_Success(t *testing.T) {
	tmpDir := setTestConfigDir(t)

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	if !strings.HasPrefix(configPath, tmpDir) {
		t.Errorf("Config written outside test dir: %s", configPath)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	contentStr := string(content)
	expectedSections := []string{
		"# fsgate Configuration File",
		"logging:",
		"limits:",
		"streaming:",
		"shutdown:",
		"content:",
	}
	for _, section := range expectedSections {
		if !strings.Contains(contentStr, section) {
			t.Errorf("Config file missing section: %s", section)
		}
	}

	// The generated file parses back into a valid config
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		t.Fatalf("Generated config is not valid YAML: %v", err)
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected generated level 'INFO', got %q", cfg.Logging.Level)
	}
	if err := Validate(&cfg); err != nil {
		t.Errorf("Generated config failed validation: %v", err)
	}
}

func TestInitConfig_ExistingFileWithoutForce(t *testing.T) {
	setTestConfigDir(t)

	if _, err := InitConfig(false); err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}

	if _, err := InitConfig(false); err == nil {
		t.Fatal("Expected error when config already exists")
	}
}

func TestInitConfig_ForceOverwrites(t *testing.T) {
	setTestConfigDir(t)

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}

	if err := os.WriteFile(configPath, []byte("mangled"), 0644); err != nil {
		t.Fatalf("Failed to mangle config: %v", err)
	}

	if _, err := InitConfig(true); err != nil {
		t.Fatalf("InitConfig with force failed: %v", err)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}
	if string(content) == "mangled" {
		t.Error("Force InitConfig did not overwrite the file")
	}
}

func TestConfigExists(t *testing.T) {
	setTestConfigDir(t)

	if ConfigExists() {
		t.Error("Expected ConfigExists false before init")
	}

	if _, err := InitConfig(false); err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	if !ConfigExists() {
		t.Error("Expected ConfigExists true after init")
	}
}
