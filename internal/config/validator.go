package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "bus.response_capacity")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateEngine()...)
	errors = append(errors, c.validateDispatcher()...)
	errors = append(errors, c.validateBus()...)
	errors = append(errors, c.validateDeploy()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateEngine validates the EngineConfig
func (c *Config) validateEngine() []ValidationError {
	var errors []ValidationError

	for field, path := range map[string]string{
		"engine.shared_data_dir": c.Engine.SharedDataDir,
		"engine.user_data_dir":   c.Engine.UserDataDir,
	} {
		if path == "" {
			continue
		}
		// Check for null bytes which are invalid in paths
		if strings.ContainsRune(path, '\x00') {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   path,
				Message: "path contains invalid null character",
			})
		}

		// Reasonable path length limit (most filesystems have limits around 4096)
		const maxPathLength = 4096
		if len(path) > maxPathLength {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   path,
				Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
			})
		}
	}

	// Map iteration order is random; keep the output stable.
	slices.SortFunc(errors, func(a, b ValidationError) int { return strings.Compare(a.Field, b.Field) })
	return errors
}

// validateDispatcher validates the DispatcherConfig
func (c *Config) validateDispatcher() []ValidationError {
	var errors []ValidationError

	if c.Dispatcher.StaleThresholdMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "dispatcher.stale_threshold_ms",
			Value:   c.Dispatcher.StaleThresholdMs,
			Message: "must be non-negative (0 disables the check)",
		})
	}

	return errors
}

// validateBus validates the BusConfig
func (c *Config) validateBus() []ValidationError {
	var errors []ValidationError

	// Reasonable upper bound for per-subscriber buffers
	const maxCapacity = 10000
	for _, f := range []struct {
		field string
		value int
	}{
		{"bus.notification_capacity", c.Bus.NotificationCapacity},
		{"bus.response_capacity", c.Bus.ResponseCapacity},
	} {
		if f.value < 1 {
			errors = append(errors, ValidationError{
				Field:   f.field,
				Value:   f.value,
				Message: "must be at least 1",
			})
		}
		if f.value > maxCapacity {
			errors = append(errors, ValidationError{
				Field:   f.field,
				Value:   f.value,
				Message: fmt.Sprintf("exceeds maximum of %d", maxCapacity),
			})
		}
	}

	return errors
}

// validateDeploy validates the DeployConfig
func (c *Config) validateDeploy() []ValidationError {
	var errors []ValidationError

	if c.Deploy.DebounceMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "deploy.debounce_ms",
			Value:   c.Deploy.DebounceMs,
			Message: "must be non-negative",
		})
	}

	for i, p := range c.Deploy.Patterns {
		field := fmt.Sprintf("deploy.patterns[%d]", i)
		if strings.TrimSpace(p) == "" {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   p,
				Message: "pattern cannot be empty",
			})
			continue
		}
		if _, err := glob.Compile(p); err != nil {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   p,
				Message: fmt.Sprintf("invalid glob pattern: %v", err),
			})
		}
	}

	if c.Deploy.Watch && c.Engine.SharedDataDir == "" && c.Engine.UserDataDir == "" {
		errors = append(errors, ValidationError{
			Field:   "deploy.watch",
			Value:   c.Deploy.Watch,
			Message: "requires engine.shared_data_dir or engine.user_data_dir",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	// Reasonable upper bound for log file size
	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	// Max backups must be non-negative
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	if strings.ContainsRune(c.Logging.Dir, '\x00') {
		errors = append(errors, ValidationError{
			Field:   "logging.dir",
			Value:   c.Logging.Dir,
			Message: "path contains invalid null character",
		})
	}

	return errors
}
