package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete imecore configuration
type Config struct {
	Engine     EngineConfig     `mapstructure:"engine" yaml:"engine"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher" yaml:"dispatcher"`
	Bus        BusConfig        `mapstructure:"bus" yaml:"bus"`
	Deploy     DeployConfig     `mapstructure:"deploy" yaml:"deploy"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
}

// EngineConfig locates the engine's data
type EngineConfig struct {
	// SharedDataDir holds read-only schema data. Supports ~ for home directory expansion.
	SharedDataDir string `mapstructure:"shared_data_dir" yaml:"shared_data_dir"`
	// UserDataDir holds user customizations. Supports ~ for home directory expansion.
	// If empty, defaults to <config dir>/data.
	UserDataDir string `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	// FullCheck forces a full deploy check on every startup (default: false)
	FullCheck bool `mapstructure:"full_check" yaml:"full_check"`
}

// DispatcherConfig controls the engine worker
type DispatcherConfig struct {
	// StaleThresholdMs is the queueing delay in milliseconds after which a task is
	// logged as stale (default: 2000, 0 = disabled)
	StaleThresholdMs int `mapstructure:"stale_threshold_ms" yaml:"stale_threshold_ms"`
}

// BusConfig sizes the per-subscriber event buffers
type BusConfig struct {
	// NotificationCapacity is the buffer size for engine notifications (default: 15)
	NotificationCapacity int `mapstructure:"notification_capacity" yaml:"notification_capacity"`
	// ResponseCapacity is the buffer size for operation responses (default: 15)
	ResponseCapacity int `mapstructure:"response_capacity" yaml:"response_capacity"`
}

// DeployConfig controls redeploying when data files change
type DeployConfig struct {
	// Watch enables watching the data directories (default: false)
	Watch bool `mapstructure:"watch" yaml:"watch"`
	// Patterns are glob patterns matched against changed file names
	Patterns []string `mapstructure:"patterns" yaml:"patterns"`
	// DebounceMs is how long to wait for a burst of changes to settle (default: 500)
	DebounceMs int `mapstructure:"debounce_ms" yaml:"debounce_ms"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is the directory for imecore.log. If empty, logs go to stderr.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			SharedDataDir: "",
			UserDataDir:   "", // Empty means <config dir>/data
			FullCheck:     false,
		},
		Dispatcher: DispatcherConfig{
			StaleThresholdMs: 2000,
		},
		Bus: BusConfig{
			NotificationCapacity: 15,
			ResponseCapacity:     15,
		},
		Deploy: DeployConfig{
			Watch:      false,
			Patterns:   []string{"*.yaml", "*.txt"},
			DebounceMs: 500,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			Dir:        "",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// StaleThreshold returns the stale threshold as a time.Duration (0 means disabled)
func (c *DispatcherConfig) StaleThreshold() time.Duration {
	return time.Duration(c.StaleThresholdMs) * time.Millisecond
}

// Debounce returns the debounce interval as a time.Duration
func (c *DeployConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// ResolveSharedDataDir returns the shared data directory with ~ expanded.
func (e *EngineConfig) ResolveSharedDataDir() string {
	return expandHome(e.SharedDataDir)
}

// ResolveUserDataDir returns the user data directory with ~ expanded.
// If UserDataDir is empty, it returns <config dir>/data.
func (e *EngineConfig) ResolveUserDataDir() string {
	if e.UserDataDir == "" {
		return filepath.Join(ConfigDir(), "data")
	}
	return expandHome(e.UserDataDir)
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
	}
	return path
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Engine defaults
	viper.SetDefault("engine.shared_data_dir", defaults.Engine.SharedDataDir)
	viper.SetDefault("engine.user_data_dir", defaults.Engine.UserDataDir)
	viper.SetDefault("engine.full_check", defaults.Engine.FullCheck)

	// Dispatcher defaults
	viper.SetDefault("dispatcher.stale_threshold_ms", defaults.Dispatcher.StaleThresholdMs)

	// Bus defaults
	viper.SetDefault("bus.notification_capacity", defaults.Bus.NotificationCapacity)
	viper.SetDefault("bus.response_capacity", defaults.Bus.ResponseCapacity)

	// Deploy defaults
	viper.SetDefault("deploy.watch", defaults.Deploy.Watch)
	viper.SetDefault("deploy.patterns", defaults.Deploy.Patterns)
	viper.SetDefault("deploy.debounce_ms", defaults.Deploy.DebounceMs)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "imecore")
	}
	// Fall back to ~/.config/imecore
	home, err := os.UserHomeDir()
	if err != nil {
		return ".imecore"
	}
	return filepath.Join(home, ".config", "imecore")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
