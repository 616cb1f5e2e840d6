package config

import (
	"strings"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "test.field",
		Value:   123,
		Message: "must be greater than zero",
	}

	expected := "test.field: must be greater than zero (got: 123)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("single error", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "test.field", Value: 123, Message: "is invalid"},
		}
		expected := "test.field: is invalid (got: 123)"
		if errs.Error() != expected {
			t.Errorf("Error() = %q, want %q", errs.Error(), expected)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Value: "bad", Message: "is invalid"},
			{Field: "field2", Value: -1, Message: "must be positive"},
		}
		result := errs.Error()
		if !strings.Contains(result, "2 validation errors") {
			t.Errorf("Error() should mention 2 errors: %s", result)
		}
		if !strings.Contains(result, "field1") || !strings.Contains(result, "field2") {
			t.Errorf("Error() should mention both fields: %s", result)
		}
	})
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	cfg := Default()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("Default config should be valid, got errors: %v", errs)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantField string
		wantMsg   string
	}{
		{
			name:      "null byte in shared dir",
			modify:    func(c *Config) { c.Engine.SharedDataDir = "/data\x00" },
			wantField: "engine.shared_data_dir",
			wantMsg:   "null character",
		},
		{
			name:      "overlong user dir",
			modify:    func(c *Config) { c.Engine.UserDataDir = "/" + strings.Repeat("a", 5000) },
			wantField: "engine.user_data_dir",
			wantMsg:   "maximum length",
		},
		{
			name:      "negative stale threshold",
			modify:    func(c *Config) { c.Dispatcher.StaleThresholdMs = -1 },
			wantField: "dispatcher.stale_threshold_ms",
			wantMsg:   "non-negative",
		},
		{
			name:      "zero notification capacity",
			modify:    func(c *Config) { c.Bus.NotificationCapacity = 0 },
			wantField: "bus.notification_capacity",
			wantMsg:   "at least 1",
		},
		{
			name:      "huge response capacity",
			modify:    func(c *Config) { c.Bus.ResponseCapacity = 1 << 20 },
			wantField: "bus.response_capacity",
			wantMsg:   "exceeds maximum",
		},
		{
			name:      "negative debounce",
			modify:    func(c *Config) { c.Deploy.DebounceMs = -5 },
			wantField: "deploy.debounce_ms",
			wantMsg:   "non-negative",
		},
		{
			name:      "empty pattern",
			modify:    func(c *Config) { c.Deploy.Patterns = []string{"*.yaml", " "} },
			wantField: "deploy.patterns[1]",
			wantMsg:   "cannot be empty",
		},
		{
			name:      "malformed pattern",
			modify:    func(c *Config) { c.Deploy.Patterns = []string{"[unclosed"} },
			wantField: "deploy.patterns[0]",
			wantMsg:   "invalid glob",
		},
		{
			name:      "watch without dirs",
			modify:    func(c *Config) { c.Deploy.Watch = true },
			wantField: "deploy.watch",
			wantMsg:   "requires",
		},
		{
			name:      "bad log level",
			modify:    func(c *Config) { c.Logging.Level = "verbose" },
			wantField: "logging.level",
			wantMsg:   "must be one of",
		},
		{
			name:      "zero log size",
			modify:    func(c *Config) { c.Logging.MaxSizeMB = 0 },
			wantField: "logging.max_size_mb",
			wantMsg:   "must be positive",
		},
		{
			name:      "huge log size",
			modify:    func(c *Config) { c.Logging.MaxSizeMB = 5000 },
			wantField: "logging.max_size_mb",
			wantMsg:   "exceeds maximum",
		},
		{
			name:      "negative backups",
			modify:    func(c *Config) { c.Logging.MaxBackups = -1 },
			wantField: "logging.max_backups",
			wantMsg:   "non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			errs := cfg.Validate()
			if len(errs) != 1 {
				t.Fatalf("Validate() returned %d errors, want 1: %v", len(errs), errs)
			}
			if errs[0].Field != tt.wantField {
				t.Errorf("Field = %q, want %q", errs[0].Field, tt.wantField)
			}
			if !strings.Contains(errs[0].Message, tt.wantMsg) {
				t.Errorf("Message = %q, want containing %q", errs[0].Message, tt.wantMsg)
			}
		})
	}
}

func TestConfig_Validate_WatchWithDir(t *testing.T) {
	cfg := Default()
	cfg.Deploy.Watch = true
	cfg.Engine.UserDataDir = "~/imecore"
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("Validate() = %v, want no errors", errs)
	}
}

func TestConfig_Validate_CollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Bus.NotificationCapacity = 0
	cfg.Bus.ResponseCapacity = 0
	cfg.Logging.Level = "loud"
	if errs := cfg.Validate(); len(errs) != 3 {
		t.Errorf("Validate() returned %d errors, want 3: %v", len(errs), errs)
	}
}
