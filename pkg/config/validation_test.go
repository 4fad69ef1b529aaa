package config

import (
	"strings"
	"testing"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidContentType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Content.Type = "ftp"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for invalid content type")
	}
}

func TestValidate_ZeroShutdownTimeout(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Shutdown.Timeout = 0

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for zero shutdown timeout")
	}
}

func TestValidate_DecayRateOutOfRange(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Throttle.DecayRate = 1.5

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for decay_rate above 1")
	}
}

func TestValidate_DuplicateRuleIDs(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Rules = []RuleConfig{
		{ID: "a", Enabled: true},
		{ID: "a", Enabled: true},
	}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for duplicate rule ids")
	}
	if !strings.Contains(err.Error(), "duplicate rule id") {
		t.Errorf("Expected duplicate rule id error, got: %v", err)
	}
}

func TestValidate_HourWindowTighterThanMinute(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Limits.MaxRequestsPerMinute = 100
	cfg.Limits.MaxRequestsPerHour = 50

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for hour window tighter than minute window")
	}
	if !strings.Contains(err.Error(), "max_requests_per_hour") {
		t.Errorf("Expected hour/minute window error, got: %v", err)
	}
}

func TestValidate_SaveStateWithoutSink(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Shutdown.SaveState = true
	cfg.State.Type = "none"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for save_state without a sink")
	}
	if !strings.Contains(err.Error(), "save_state") {
		t.Errorf("Expected save_state error, got: %v", err)
	}
}

func TestValidate_RuleMissingID(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Rules = []RuleConfig{{Name: "no id"}}

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for rule without id")
	}
}
