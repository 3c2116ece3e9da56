// Package config provides configuration management for the value-lay engine.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	v.RegisterValidation("environment", validateEnvironment)
	v.RegisterValidation("loglevel", validateLogLevel)

	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	cv := NewValidator()
	return cv.Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	err := cv.validator.Struct(cfg)
	if err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	return validateCrossField(cfg)
}

func validateEnvironment(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "development", "staging", "production":
		return true
	default:
		return false
	}
}

func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// validateCrossField applies checks that span multiple fields. Threshold
// ordering is intentionally not checked: a non-monotonic triple is a caller
// configuration choice that classifies literally rather than an error.
func validateCrossField(cfg *Config) error {
	if cfg.Engine.MaxFieldSize > 0 && cfg.Engine.MinFieldSize > cfg.Engine.MaxFieldSize {
		return fmt.Errorf("engine.min_field_size (%d) exceeds engine.max_field_size (%d)",
			cfg.Engine.MinFieldSize, cfg.Engine.MaxFieldSize)
	}

	if cfg.Engine.ExecutionSource != "" {
		found := false
		for _, p := range cfg.Providers {
			if p.Name == cfg.Engine.ExecutionSource {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("engine.execution_source %q does not name a configured provider",
				cfg.Engine.ExecutionSource)
		}
	}

	enabled := 0
	for _, p := range cfg.Providers {
		if p.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one provider must be enabled")
	}

	return nil
}

func formatValidationErrors(errs validator.ValidationErrors) error {
	msg := "configuration validation failed:"
	for _, e := range errs {
		msg += fmt.Sprintf("\n  - field %q failed rule %q", e.Namespace(), e.Tag())
	}
	return fmt.Errorf("%s", msg)
}
