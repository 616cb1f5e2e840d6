package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/imecore/internal/core"
	"github.com/Iron-Ham/imecore/internal/engine"
	"github.com/Iron-Ham/imecore/internal/engine/table"
	"github.com/Iron-Ham/imecore/internal/errors"
	"github.com/Iron-Ham/imecore/internal/event"
	"github.com/Iron-Ham/imecore/internal/lifecycle"
)

func newDaemon(t *testing.T) *Daemon {
	t.Helper()
	shared := t.TempDir()
	schema := "schema:\n  schema_id: demo\n  name: Demo\ntable:\n  hao: [好]\n"
	if err := os.WriteFile(filepath.Join(shared, "demo.schema.yaml"), []byte(schema), 0o644); err != nil {
		t.Fatal(err)
	}
	config := core.DefaultConfig()
	config.SharedDataDir = shared
	config.UserDataDir = t.TempDir()
	d := New(core.New(table.New(nil), config, nil), nil)
	t.Cleanup(func() { d.Core().Shutdown() })
	return d
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestConnect_StartsCoreOnce(t *testing.T) {
	d := newDaemon(t)

	a := d.Connect("keyboard")
	if err := a.AwaitReady(testContext(t)); err != nil {
		t.Fatalf("AwaitReady() error: %v", err)
	}
	b := d.Connect("")
	if _, err := uuid.Parse(b.Name()); err != nil {
		t.Errorf("anonymous session name %q is not a UUID: %v", b.Name(), err)
	}
	if again := d.Connect("keyboard"); again != a {
		t.Error("Connect with an existing name returned a new session")
	}
	if got := len(d.Sessions()); got != 2 {
		t.Errorf("Sessions() has %d entries, want 2", got)
	}
	if !d.Core().IsReady() {
		t.Error("core not ready after connect")
	}
}

func TestDisconnect_LastSessionStopsCore(t *testing.T) {
	d := newDaemon(t)
	a := d.Connect("a")
	d.Connect("b")
	if err := a.AwaitReady(testContext(t)); err != nil {
		t.Fatal(err)
	}

	d.Disconnect("a")
	d.Disconnect("missing")
	if !d.Core().IsReady() {
		t.Fatal("core stopped while a session is still connected")
	}
	d.Disconnect("b")
	if state := d.Core().Lifecycle().State(); state != lifecycle.Stopped {
		t.Errorf("state after last disconnect = %v, want stopped", state)
	}

	// Reconnecting brings the engine back.
	c := d.Connect("c")
	if err := c.AwaitReady(testContext(t)); err != nil {
		t.Fatalf("AwaitReady() after reconnect: %v", err)
	}
}

func TestSession_DisconnectedRejectsOperations(t *testing.T) {
	d := newDaemon(t)
	s := d.Connect("gone")
	d.Connect("other")
	d.Disconnect("gone")

	checks := map[string]error{
		"Run": s.Run(func(*core.Core) error { return nil }),
		"RunOnReady": s.RunOnReady(func(context.Context, *core.Core) {
			t.Error("RunOnReady ran for a disconnected session")
		}),
		"AwaitReady": s.AwaitReady(testContext(t)),
	}
	_, checks["RunIfReady"] = s.RunIfReady(func(context.Context, *core.Core) {})

	for name, err := range checks {
		if !errors.Is(err, errors.ErrSessionNotEstablished) {
			t.Errorf("%s error = %v, want ErrSessionNotEstablished", name, err)
		}
		var se *errors.SessionError
		if !errors.As(err, &se) || se.SessionName != "gone" {
			t.Errorf("%s error %v does not name the session", name, err)
		}
	}
}

func TestSession_RunOnReady(t *testing.T) {
	d := newDaemon(t)
	s := d.Connect("kbd")

	got := make(chan string, 1)
	err := s.RunOnReady(func(ctx context.Context, c *core.Core) {
		id, err := c.SelectedSchemaID(ctx)
		if err != nil {
			t.Errorf("SelectedSchemaID() error: %v", err)
		}
		got <- id
	})
	if err != nil {
		t.Fatalf("RunOnReady() error: %v", err)
	}

	select {
	case id := <-got:
		if id != "demo" {
			t.Errorf("schema = %q, want demo", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunOnReady continuation never ran")
	}
}

func TestSession_RunAndRunIfReady(t *testing.T) {
	d := newDaemon(t)
	s := d.Connect("kbd")
	if err := s.AwaitReady(testContext(t)); err != nil {
		t.Fatal(err)
	}

	err := s.Run(func(c *core.Core) error {
		_, err := c.SimulateKeySequence(testContext(t), "hao ")
		return err
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	ran, err := s.RunIfReady(func(ctx context.Context, c *core.Core) {
		if ctx.Err() != nil {
			t.Errorf("lifecycle context already done: %v", ctx.Err())
		}
	})
	if err != nil || !ran {
		t.Errorf("RunIfReady() = (%v, %v), want (true, nil)", ran, err)
	}

	lifeCtx := s.Context()
	d.Disconnect("kbd")
	select {
	case <-lifeCtx.Done():
	case <-time.After(5 * time.Second):
		t.Error("session context not canceled after the engine stopped")
	}
}

func TestRestart(t *testing.T) {
	d := newDaemon(t)
	d.Restart(true)
	if d.Core().Lifecycle().State() != lifecycle.Stopped {
		t.Fatal("Restart without sessions started the core")
	}

	s := d.Connect("kbd")
	if err := s.AwaitReady(testContext(t)); err != nil {
		t.Fatal(err)
	}
	sub := d.Core().Bus().Notifications.Subscribe()
	defer sub.Close()

	d.Restart(true)
	if err := s.AwaitReady(testContext(t)); err != nil {
		t.Fatalf("AwaitReady() after Restart: %v", err)
	}

	n, err := sub.Next(testContext(t))
	if err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	if dn, ok := n.(event.DeployNotification); !ok || dn.State != "start" {
		t.Errorf("first notification after restart = %v, want deploy start", n)
	}
}

// gatedEngine is a table engine whose Startup blocks until release is closed.
type gatedEngine struct {
	*table.Engine
	release chan struct{}
}

func (e *gatedEngine) Startup(opts engine.StartupOptions) {
	<-e.release
	e.Engine.Startup(opts)
}

func newGatedDaemon(t *testing.T) (*Daemon, chan struct{}) {
	t.Helper()
	release := make(chan struct{})
	config := core.DefaultConfig()
	config.SharedDataDir = t.TempDir()
	config.UserDataDir = t.TempDir()
	d := New(core.New(&gatedEngine{Engine: table.New(nil), release: release}, config, nil), nil)
	t.Cleanup(func() { d.Core().Shutdown() })
	return d, release
}

func TestDaemon_StopWhileStartingWithPendingContinuation(t *testing.T) {
	tests := []struct {
		name     string
		stop     func(d *Daemon)
		restarts bool
	}{
		{"disconnect", func(d *Daemon) { d.Disconnect("a") }, false},
		{"restart", func(d *Daemon) { d.Restart(true) }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, release := newGatedDaemon(t)
			s := d.Connect("a")
			if err := s.RunOnReady(func(context.Context, *core.Core) {}); err != nil {
				t.Fatalf("RunOnReady() error: %v", err)
			}

			done := make(chan struct{})
			go func() {
				tt.stop(d)
				close(done)
			}()
			// Let the stop reach the wait for Ready before the engine boots.
			time.Sleep(50 * time.Millisecond)
			close(release)

			select {
			case <-done:
			case <-time.After(5 * time.Second):
				t.Fatalf("%s did not return while the engine was starting", tt.name)
			}
			if !tt.restarts {
				if got := d.Core().Lifecycle().State(); got != lifecycle.Stopped {
					t.Errorf("State() = %v, want %v", got, lifecycle.Stopped)
				}
				return
			}
			if err := d.Core().Lifecycle().AwaitReady(testContext(t)); err != nil {
				t.Errorf("core not ready after restart: %v", err)
			}
		})
	}
}
