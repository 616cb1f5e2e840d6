package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	// Verify default engine config
	if cfg.Engine.SharedDataDir != "" || cfg.Engine.UserDataDir != "" {
		t.Errorf("Engine dirs = %q/%q, want empty", cfg.Engine.SharedDataDir, cfg.Engine.UserDataDir)
	}
	if cfg.Engine.FullCheck {
		t.Error("Engine.FullCheck should be false by default")
	}

	// Verify default dispatcher and bus config
	if cfg.Dispatcher.StaleThresholdMs != 2000 {
		t.Errorf("Dispatcher.StaleThresholdMs = %d, want 2000", cfg.Dispatcher.StaleThresholdMs)
	}
	if cfg.Bus.NotificationCapacity != 15 {
		t.Errorf("Bus.NotificationCapacity = %d, want 15", cfg.Bus.NotificationCapacity)
	}
	if cfg.Bus.ResponseCapacity != 15 {
		t.Errorf("Bus.ResponseCapacity = %d, want 15", cfg.Bus.ResponseCapacity)
	}

	// Verify default deploy config
	if cfg.Deploy.Watch {
		t.Error("Deploy.Watch should be false by default")
	}
	if len(cfg.Deploy.Patterns) != 2 || cfg.Deploy.Patterns[0] != "*.yaml" || cfg.Deploy.Patterns[1] != "*.txt" {
		t.Errorf("Deploy.Patterns = %v, want [*.yaml *.txt]", cfg.Deploy.Patterns)
	}
	if cfg.Deploy.DebounceMs != 500 {
		t.Errorf("Deploy.DebounceMs = %d, want 500", cfg.Deploy.DebounceMs)
	}

	// Verify default logging config
	if !cfg.Logging.Enabled {
		t.Error("Logging.Enabled should be true by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.MaxSizeMB != 10 || cfg.Logging.MaxBackups != 3 {
		t.Errorf("Logging rotation = %d/%d, want 10/3", cfg.Logging.MaxSizeMB, cfg.Logging.MaxBackups)
	}
}

func TestDurations(t *testing.T) {
	tests := []struct {
		ms       int
		expected time.Duration
	}{
		{2000, 2 * time.Second},
		{500, 500 * time.Millisecond},
		{0, 0},
	}

	for _, tt := range tests {
		d := DispatcherConfig{StaleThresholdMs: tt.ms}
		if got := d.StaleThreshold(); got != tt.expected {
			t.Errorf("StaleThreshold() with %dms = %v, want %v", tt.ms, got, tt.expected)
		}
		p := DeployConfig{DebounceMs: tt.ms}
		if got := p.Debounce(); got != tt.expected {
			t.Errorf("Debounce() with %dms = %v, want %v", tt.ms, got, tt.expected)
		}
	}
}

func TestEngineConfig_ResolveDirs(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	tests := []struct {
		name       string
		cfg        EngineConfig
		wantShared string
		wantUser   string
	}{
		{
			name:       "empty",
			cfg:        EngineConfig{},
			wantShared: "",
			wantUser:   "/custom/config/imecore/data",
		},
		{
			name:       "tilde",
			cfg:        EngineConfig{SharedDataDir: "~/rime/shared", UserDataDir: "~"},
			wantShared: filepath.Join(home, "rime/shared"),
			wantUser:   home,
		},
		{
			name:       "absolute",
			cfg:        EngineConfig{SharedDataDir: "/usr/share/rime-data", UserDataDir: "/var/lib/imecore"},
			wantShared: "/usr/share/rime-data",
			wantUser:   "/var/lib/imecore",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.ResolveSharedDataDir(); got != tt.wantShared {
				t.Errorf("ResolveSharedDataDir() = %q, want %q", got, tt.wantShared)
			}
			if got := tt.cfg.ResolveUserDataDir(); got != tt.wantUser {
				t.Errorf("ResolveUserDataDir() = %q, want %q", got, tt.wantUser)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	// Test with XDG_CONFIG_HOME set
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		result := ConfigDir()
		expected := "/custom/config/imecore"
		if result != expected {
			t.Errorf("ConfigDir() = %q, want %q", result, expected)
		}
	})

	// Test without XDG_CONFIG_HOME
	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		result := ConfigDir()

		// Should be based on home directory
		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, ".config", "imecore")
		if result != expected {
			t.Errorf("ConfigDir() = %q, want %q", result, expected)
		}
	})
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	result := ConfigFile()
	expected := "/custom/config/imecore/config.yaml"
	if result != expected {
		t.Errorf("ConfigFile() = %q, want %q", result, expected)
	}
}

func TestGet(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	// Set defaults in viper first (normally done by cmd init)
	SetDefaults()

	// Get() should return defaults when no config file exists
	cfg := Get()
	if cfg == nil {
		t.Fatal("Get() returned nil")
	}
	if cfg.Bus.ResponseCapacity != 15 {
		t.Errorf("Get().Bus.ResponseCapacity = %d, want 15", cfg.Bus.ResponseCapacity)
	}
	if len(cfg.Deploy.Patterns) != 2 {
		t.Errorf("Get().Deploy.Patterns = %v", cfg.Deploy.Patterns)
	}
}

func TestLoad_FromFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `engine:
  shared_data_dir: /opt/data
  full_check: true
bus:
  response_capacity: 30
deploy:
  watch: true
  patterns: ["*.schema.yaml"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Engine.SharedDataDir != "/opt/data" || !cfg.Engine.FullCheck {
		t.Errorf("Engine = %+v", cfg.Engine)
	}
	if cfg.Bus.ResponseCapacity != 30 || cfg.Bus.NotificationCapacity != 15 {
		t.Errorf("Bus = %+v, want response 30 and default notification 15", cfg.Bus)
	}
	if !cfg.Deploy.Watch || len(cfg.Deploy.Patterns) != 1 || cfg.Deploy.Patterns[0] != "*.schema.yaml" {
		t.Errorf("Deploy = %+v", cfg.Deploy)
	}
}

func TestLoad_Invalid(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()
	viper.Set("bus.notification_capacity", 0)

	_, err := Load()
	if err == nil {
		t.Fatal("Load() should fail for a zero capacity")
	}
	if _, ok := err.(ValidationErrors); !ok {
		t.Errorf("Load() error type = %T, want ValidationErrors", err)
	}

	// Get falls back to defaults.
	if cfg := Get(); cfg.Bus.NotificationCapacity != 15 {
		t.Errorf("Get() after invalid load = %d, want default 15", cfg.Bus.NotificationCapacity)
	}
}
