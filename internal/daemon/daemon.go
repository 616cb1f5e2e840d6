// Package daemon shares one engine core between named client sessions.
//
// The first Connect starts the core and the last Disconnect shuts it down.
// Sessions outlive neither: a session that has been disconnected rejects
// every operation with an error wrapping errors.ErrSessionNotEstablished.
package daemon

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Iron-Ham/imecore/internal/core"
	"github.com/Iron-Ham/imecore/internal/errors"
	"github.com/Iron-Ham/imecore/internal/lifecycle"
	"github.com/Iron-Ham/imecore/internal/logging"
)

// Daemon tracks the sessions connected to a core.
type Daemon struct {
	core   *core.Core
	logger *logging.Logger

	// lifeMu serializes starting and stopping the core. It is held across
	// core.Shutdown, which may wait for continuations to run, so nothing a
	// continuation calls may take it.
	lifeMu sync.Mutex
	// mu guards sessions only and is never held across a core call.
	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates a Daemon around c. The core should be stopped; the daemon
// starts it on the first Connect.
func New(c *core.Core, logger *logging.Logger) *Daemon {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Daemon{
		core:     c,
		logger:   logger.WithComponent("daemon"),
		sessions: make(map[string]*Session),
	}
}

// Core returns the shared core.
func (d *Daemon) Core() *core.Core {
	return d.core
}

// Connect returns the session called name, creating it if needed. An empty
// name gets a random one. The core is started if it is stopped.
func (d *Daemon) Connect(name string) *Session {
	if name == "" {
		name = uuid.NewString()
	}

	d.lifeMu.Lock()
	defer d.lifeMu.Unlock()

	d.mu.Lock()
	s, ok := d.sessions[name]
	if !ok {
		s = &Session{
			name:   name,
			daemon: d,
			logger: d.logger.WithSession(name),
		}
		d.sessions[name] = s
		d.logger.Info("session connected", "session", name, "sessions", len(d.sessions))
	}
	d.mu.Unlock()

	if d.core.Lifecycle().State() == lifecycle.Stopped {
		d.core.Startup(false)
	}
	return s
}

// Disconnect removes the session called name. When it was the last one the
// core is shut down. Unknown names are ignored. It must not be called from a
// RunOnReady continuation.
func (d *Daemon) Disconnect(name string) {
	d.lifeMu.Lock()
	defer d.lifeMu.Unlock()

	d.mu.Lock()
	s, ok := d.sessions[name]
	if ok {
		delete(d.sessions, name)
		s.closed.Store(true)
	}
	remaining := len(d.sessions)
	d.mu.Unlock()
	if !ok {
		return
	}
	d.logger.Info("session disconnected", "session", name, "sessions", remaining)

	if remaining == 0 {
		leftovers := d.core.Shutdown()
		d.logger.Info("last session gone, engine stopped", "leftovers", len(leftovers))
	}
}

// Restart shuts the core down and starts it again. It does nothing when no
// session is connected. Like Disconnect, it must not be called from a
// RunOnReady continuation.
func (d *Daemon) Restart(fullCheck bool) {
	d.lifeMu.Lock()
	defer d.lifeMu.Unlock()

	d.mu.Lock()
	n := len(d.sessions)
	d.mu.Unlock()
	if n == 0 {
		d.logger.Debug("restart skipped, no sessions")
		return
	}
	leftovers := d.core.Shutdown()
	d.logger.Info("restarting engine", "full_check", fullCheck, "leftovers", len(leftovers))
	d.core.Startup(fullCheck)
}

// Sessions returns the connected session names in sorted order.
func (d *Daemon) Sessions() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(d.sessions))
	for name := range d.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d *Daemon) connected(s *Session) bool {
	return !s.closed.Load()
}

// Session is one client's handle on the shared core.
type Session struct {
	name   string
	daemon *Daemon
	logger *logging.Logger
	closed atomic.Bool
}

// Name returns the session name.
func (s *Session) Name() string {
	return s.name
}

func (s *Session) ensureEstablished(operation string) error {
	if !s.daemon.connected(s) {
		return errors.NewSessionError(operation, errors.ErrSessionNotEstablished).WithSessionName(s.name)
	}
	return nil
}

// Run calls fn with the core.
func (s *Session) Run(fn func(c *core.Core) error) error {
	if err := s.ensureEstablished("run"); err != nil {
		return err
	}
	return fn(s.daemon.core)
}

// RunOnReady schedules fn to run once the engine is ready, or right away on
// another goroutine if it already is. fn gets the lifecycle context and is
// skipped if the session has been disconnected by then.
func (s *Session) RunOnReady(fn func(ctx context.Context, c *core.Core)) error {
	if err := s.ensureEstablished("run on ready"); err != nil {
		return err
	}
	lc := s.daemon.core.Lifecycle()
	lc.WhenReady(func() {
		if !s.daemon.connected(s) {
			s.logger.Debug("session gone before engine was ready")
			return
		}
		fn(lc.Context(), s.daemon.core)
	})
	return nil
}

// RunIfReady calls fn synchronously if the engine is ready and reports
// whether it did.
func (s *Session) RunIfReady(fn func(ctx context.Context, c *core.Core)) (bool, error) {
	if err := s.ensureEstablished("run if ready"); err != nil {
		return false, err
	}
	c := s.daemon.core
	if !c.IsReady() {
		return false, nil
	}
	fn(c.Lifecycle().Context(), c)
	return true, nil
}

// AwaitReady blocks until the engine is ready or ctx is done.
func (s *Session) AwaitReady(ctx context.Context) error {
	if err := s.ensureEstablished("await ready"); err != nil {
		return err
	}
	return s.daemon.core.Lifecycle().AwaitReady(ctx)
}

// Context returns the current lifecycle context. It is canceled when the
// engine stops.
func (s *Session) Context() context.Context {
	return s.daemon.core.Lifecycle().Context()
}
