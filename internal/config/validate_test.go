package config

import (
	"strings"
	"testing"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Config{
		DatabaseURL:     "postgres://localhost/eventcron",
		TickIntervalStr: "1s",
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("valid config should not return error, got: %v", err)
	}
}

func TestValidate_MissingDatabaseURL(t *testing.T) {
	cfg := Config{
		DatabaseURL:     "",
		TickIntervalStr: "1s",
	}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for missing DATABASE_URL")
	}

	if !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("error should mention DATABASE_URL: %q", err.Error())
	}
}

func TestValidate_InvalidTickInterval(t *testing.T) {
	tests := []struct {
		name     string
		interval string
		wantErr  string
	}{
		{"non-parseable", "invalid", "invalid duration"},
		{"negative", "-1s", "must be positive"},
		{"zero", "0s", "must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				DatabaseURL:     "postgres://localhost/eventcron",
				TickIntervalStr: tt.interval,
			}

			err := Validate(cfg)
			if err == nil {
				t.Fatalf("expected error for tick_interval=%q", tt.interval)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidate_WebhookSecretWithoutURL(t *testing.T) {
	cfg := Config{
		DatabaseURL:         "postgres://localhost/eventcron",
		NotifyWebhookSecret: "secret",
	}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for secret without URL")
	}
	if !strings.Contains(err.Error(), "NOTIFY_WEBHOOK_SECRET") {
		t.Errorf("error should mention NOTIFY_WEBHOOK_SECRET: %q", err.Error())
	}
}

func TestValidate_WebhookURLScheme(t *testing.T) {
	cfg := Config{
		DatabaseURL:      "postgres://localhost/eventcron",
		NotifyWebhookURL: "ftp://hooks.example.com",
	}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for non-http webhook URL")
	}
	if !strings.Contains(err.Error(), "NOTIFY_WEBHOOK_URL") {
		t.Errorf("error should mention NOTIFY_WEBHOOK_URL: %q", err.Error())
	}
}

func TestValidate_LeaderLockKey(t *testing.T) {
	cfg := Config{
		DatabaseURL:   "postgres://localhost/eventcron",
		LeaderEnabled: true,
		LeaderLockKey: 0,
	}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for zero lock key with leader election enabled")
	}
	if !strings.Contains(err.Error(), "LEADER_LOCK_KEY") {
		t.Errorf("error should mention LEADER_LOCK_KEY: %q", err.Error())
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := Config{
		DatabaseURL:     "", // missing
		TickIntervalStr: "invalid",
	}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}

	errs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	if len(errs) != 2 {
		t.Errorf("expected 2 validation errors, got %d: %v", len(errs), errs)
	}
}

func TestValidationError_Format(t *testing.T) {
	err := ValidationError{Field: "DATABASE_URL", Message: "required"}
	got := err.Error()
	want := "DATABASE_URL: required"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestValidationErrors_Format(t *testing.T) {
	single := ValidationErrors{{Field: "F1", Message: "M1"}}
	if single.Error() != "F1: M1" {
		t.Errorf("single error = %q, want 'F1: M1'", single.Error())
	}

	multi := ValidationErrors{
		{Field: "F1", Message: "M1"},
		{Field: "F2", Message: "M2"},
	}
	got := multi.Error()
	if !strings.Contains(got, "2 validation errors") {
		t.Errorf("multi error should contain '2 validation errors': %q", got)
	}
	if !strings.Contains(got, "F1: M1") || !strings.Contains(got, "F2: M2") {
		t.Errorf("multi error should contain both errors: %q", got)
	}

	empty := ValidationErrors{}
	if empty.Error() != "" {
		t.Errorf("empty errors should return empty string, got %q", empty.Error())
	}
}
