package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags plus custom
// rules that tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	// Rule IDs are unique; matching relies on the ID tie-break
	ids := make(map[string]bool)
	for i, rule := range cfg.Rules {
		if ids[rule.ID] {
			return fmt.Errorf("rules[%d]: duplicate rule id %q", i, rule.ID)
		}
		ids[rule.ID] = true
	}

	// The hour window must not be tighter than the minute window
	if cfg.Limits.MaxRequestsPerHour < cfg.Limits.MaxRequestsPerMinute {
		return fmt.Errorf("limits: max_requests_per_hour (%d) must be >= max_requests_per_minute (%d)",
			cfg.Limits.MaxRequestsPerHour, cfg.Limits.MaxRequestsPerMinute)
	}

	if cfg.Throttle.BurstLimit > 0 && cfg.Throttle.MaxRequests > 0 && cfg.Throttle.WindowSize <= 0 {
		return fmt.Errorf("throttle: window_size must be positive when the burst gate is configured")
	}

	if cfg.Shutdown.SaveState && cfg.State.Type == "none" {
		return fmt.Errorf("shutdown: save_state requires a state sink (state.type is %q)", cfg.State.Type)
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly
// messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
