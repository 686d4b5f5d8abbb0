package config

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	// DATABASE_URL is required
	if cfg.DatabaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "DATABASE_URL",
			Message: "required",
		})
	}

	errs = append(errs, validateDuration("TICK_INTERVAL", cfg.TickIntervalStr)...)
	errs = append(errs, validateDuration("RESYNC_INTERVAL", cfg.ResyncIntervalStr)...)
	errs = append(errs, validateDuration("NOTIFY_TIMEOUT", cfg.NotifyTimeoutStr)...)
	errs = append(errs, validateDuration("BREAKER_COOLDOWN", cfg.BreakerCooldownStr)...)

	// A webhook secret without a URL is almost certainly a misconfiguration.
	if cfg.NotifyWebhookURL == "" && cfg.NotifyWebhookSecret != "" {
		errs = append(errs, ValidationError{
			Field:   "NOTIFY_WEBHOOK_SECRET",
			Message: "set without NOTIFY_WEBHOOK_URL",
		})
	}
	if cfg.NotifyWebhookURL != "" &&
		!strings.HasPrefix(cfg.NotifyWebhookURL, "http://") &&
		!strings.HasPrefix(cfg.NotifyWebhookURL, "https://") {
		errs = append(errs, ValidationError{
			Field:   "NOTIFY_WEBHOOK_URL",
			Message: fmt.Sprintf("must be an http(s) URL, got %q", cfg.NotifyWebhookURL),
		})
	}

	if cfg.LeaderEnabled && cfg.LeaderLockKey <= 0 {
		errs = append(errs, ValidationError{
			Field:   "LEADER_LOCK_KEY",
			Message: "must be positive when leader election is enabled",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateDuration(field, value string) ValidationErrors {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return ValidationErrors{{Field: field, Message: fmt.Sprintf("invalid duration: %v", err)}}
	}
	if d <= 0 {
		return ValidationErrors{{Field: field, Message: "must be positive"}}
	}
	return nil
}
