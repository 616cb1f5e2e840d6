package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Iron-Ham/imecore/internal/errors"
	"github.com/Iron-Ham/imecore/internal/logging"
)

const demoSchema = `schema:
  schema_id: demo
  name: Demo
menu:
  page_size: 3
table:
  nihao: [你好]
  hao: [好, 号]
`

const otherSchema = `schema:
  schema_id: other
  name: Other
table:
  x: [叉]
`

// resetFlags restores every flag in the tree to its default so values do not
// leak between executions of the shared root command.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// executeCommand runs the root command with args and returns stdout. Log
// output goes to a separate buffer.
func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out, logs bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&logs)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// setupDataDirs points the configuration at a temporary home and returns a
// shared dir holding the given schema files plus an empty user dir.
func setupDataDirs(t *testing.T, schemas map[string]string) (shared, user string) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	shared = t.TempDir()
	user = t.TempDir()
	for name, content := range schemas {
		if err := os.WriteFile(filepath.Join(shared, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return shared, user
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "imecore" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "imecore")
	}

	// Compare by Name(), not Use which includes args
	expectedCmds := []string{"run", "schemas", "daemon", "config"}
	cmdMap := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		cmdMap[c.Name()] = true
	}
	for _, name := range expectedCmds {
		if !cmdMap[name] {
			t.Errorf("expected subcommand %q not found", name)
		}
	}

	for _, flag := range []string{"config", "shared-data-dir", "user-data-dir"} {
		if rootCmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("expected persistent flag --%s", flag)
		}
	}
}

func TestConfigPath(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	out, err := executeCommand(t, "", "config", "path")
	if err != nil {
		t.Fatalf("config path error: %v", err)
	}
	want := filepath.Join(xdg, "imecore", "config.yaml")
	if strings.TrimSpace(out) != want {
		t.Errorf("config path = %q, want %q", strings.TrimSpace(out), want)
	}
}

func TestConfigInit(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	if _, err := executeCommand(t, "", "config", "init"); err != nil {
		t.Fatalf("config init error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(xdg, "imecore", "config.yaml"))
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	for _, want := range []string{"# imecore configuration", "stale_threshold_ms: 2000", "notification_capacity: 15", "debounce_ms: 500"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("config file missing %q:\n%s", want, data)
		}
	}

	if _, err := executeCommand(t, "", "config", "init"); err == nil {
		t.Error("second config init should fail")
	}
}

func TestConfigShow(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("bus:\n  response_capacity: 30\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := executeCommand(t, "", "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("config show error: %v", err)
	}
	if !strings.Contains(out, "# Config file: "+path) {
		t.Errorf("output does not name the config file:\n%s", out)
	}
	if !strings.Contains(out, "response_capacity: 30") {
		t.Errorf("output missing overridden value:\n%s", out)
	}
}

func TestRun_TypesThroughTable(t *testing.T) {
	shared, user := setupDataDirs(t, map[string]string{"demo.schema.yaml": demoSchema})

	out, err := executeCommand(t, "",
		"--shared-data-dir", shared, "--user-data-dir", user,
		"run", "nihao ", "hao")
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	for _, want := range []string{
		"commit: 你好",
		"preedit: hao → 好",
		"menu: 1.好 2.号 [page 1 (last)]",
		"schema: demo Demo",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRun_PassesThroughWithoutSchema(t *testing.T) {
	shared, user := setupDataDirs(t, nil)

	out, err := executeCommand(t, "",
		"--shared-data-dir", shared, "--user-data-dir", user,
		"run", "abc", "{Control+x}")
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if !strings.Contains(out, "commit: abc\n") {
		t.Errorf("output should pass plain keys through:\n%s", out)
	}
	if !strings.Contains(out, "schema: .default") {
		t.Errorf("output should report the default schema:\n%s", out)
	}
}

func TestRun_Errors(t *testing.T) {
	shared, user := setupDataDirs(t, map[string]string{"demo.schema.yaml": demoSchema})

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown schema", []string{"run", "--schema", "missing", "a"}, "unknown schema"},
		{"bad sequence", []string{"run", "{Nope}"}, "invalid key sequence"},
		{"no keys", []string{"run"}, "arg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--shared-data-dir", shared, "--user-data-dir", user}, tt.args...)
			_, err := executeCommand(t, "", args...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want containing %q", err.Error(), tt.want)
			}
		})
	}
}

func TestSchemas_SelectAndList(t *testing.T) {
	shared, user := setupDataDirs(t, map[string]string{
		"demo.schema.yaml":  demoSchema,
		"other.schema.yaml": otherSchema,
	})
	dirs := []string{"--shared-data-dir", shared, "--user-data-dir", user}

	out, err := executeCommand(t, "", append(dirs, "schemas")...)
	if err != nil {
		t.Fatalf("schemas error: %v", err)
	}
	if !strings.Contains(out, "current: demo") {
		t.Errorf("first schema should be current by default:\n%s", out)
	}

	if _, err := executeCommand(t, "", append(dirs, "schemas", "select", "other")...); err != nil {
		t.Fatalf("schemas select error: %v", err)
	}
	out, err = executeCommand(t, "", append(dirs, "schemas")...)
	if err != nil {
		t.Fatalf("schemas error: %v", err)
	}
	for _, want := range []string{"  demo Demo\n", "* other Other\n", "current: other"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if _, err := executeCommand(t, "", append(dirs, "schemas", "select", "nope")...); err == nil {
		t.Error("selecting an unknown schema should fail")
	}
}

func TestDaemon_ProcessesInput(t *testing.T) {
	shared, user := setupDataDirs(t, map[string]string{"demo.schema.yaml": demoSchema})

	input := strings.Join([]string{
		"hao",
		":select 1",
		":bogus",
		":option ascii_mode on",
		":status",
		":quit",
		"nihao ",
	}, "\n")
	out, err := executeCommand(t, input,
		"--shared-data-dir", shared, "--user-data-dir", user,
		"daemon", "--session", "test")
	if err != nil {
		t.Fatalf("daemon error: %v", err)
	}
	for _, want := range []string{
		"session: test",
		"SchemaNotification(id=demo, name=Demo)",
		"preedit: hao → 好",
		"commit: 号",
		`error: unknown command "bogus"`,
		"OptionNotification(option=ascii_mode, value=true)",
		"ascii_mode=true",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "你好") {
		t.Errorf("input after :quit was processed:\n%s", out)
	}
}

func TestReportError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantOut   string
		wantLevel string
	}{
		{
			name:      "input error",
			err:       errors.NewInputError(`unknown command "bogus"`, nil),
			wantOut:   `error: unknown command "bogus"`,
			wantLevel: `"level":"WARN"`,
		},
		{
			name:      "session error",
			err:       errors.NewSessionError("run", errors.ErrSessionNotEstablished).WithSessionName("kb"),
			wantOut:   "error: session error [session=kb]",
			wantLevel: `"level":"ERROR"`,
		},
		{
			name:      "illegal state",
			err:       errors.NewIllegalStateError("dispatcher", "submit", errors.ErrNotRunning),
			wantOut:   "error: engine is not running",
			wantLevel: `"level":"ERROR"`,
		},
		{
			name:      "unclassified",
			err:       fmt.Errorf("disk on fire"),
			wantOut:   "error: internal failure, see the log",
			wantLevel: `"level":"ERROR"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, logs bytes.Buffer
			reportError(newPrinter(&out), logging.NewWriterLogger(&logs, logging.LevelDebug), ":x", tt.err)
			if !strings.HasPrefix(out.String(), tt.wantOut) {
				t.Errorf("output = %q, want prefix %q", out.String(), tt.wantOut)
			}
			if !strings.Contains(logs.String(), tt.wantLevel) {
				t.Errorf("log = %q, want %s", logs.String(), tt.wantLevel)
			}
			if tt.name == "unclassified" && strings.Contains(out.String(), "disk on fire") {
				t.Errorf("internal error leaked to output: %q", out.String())
			}
		})
	}
}

func TestSeverityLevel(t *testing.T) {
	tests := []struct {
		severity errors.Severity
		want     string
	}{
		{errors.SeverityDebug, logging.LevelDebug},
		{errors.SeverityInfo, logging.LevelInfo},
		{errors.SeverityWarning, logging.LevelWarn},
		{errors.SeverityError, logging.LevelError},
		{errors.SeverityCritical, logging.LevelError},
	}
	for _, tt := range tests {
		if got := severityLevel(tt.severity); got != tt.want {
			t.Errorf("severityLevel(%v) = %q, want %q", tt.severity, got, tt.want)
		}
	}
}
