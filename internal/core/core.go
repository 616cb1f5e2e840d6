// Package core is the engine façade. It owns one engine session: the
// dispatcher whose worker makes every engine call, the lifecycle controller
// tracking the session's boot state, and the event bus the session publishes
// on.
//
// Every operation is a blocking, context-aware call that runs on the worker.
// Operations that can change engine state also pull the resulting commit,
// context and status inside the same task, refresh the cached status and
// publish a Response.
//
// Engine notifications are published from the worker while the engine call
// that raised them is still in progress. Listeners on Bus().Notifications
// must therefore not call Core synchronously, with one exception:
// SetRuntimeOption is ignored while a notification is being handled.
package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Iron-Ham/imecore/internal/dispatch"
	"github.com/Iron-Ham/imecore/internal/engine"
	"github.com/Iron-Ham/imecore/internal/event"
	"github.com/Iron-Ham/imecore/internal/lifecycle"
	"github.com/Iron-Ham/imecore/internal/logging"
)

// Config configures a Core.
type Config struct {
	SharedDataDir  string
	UserDataDir    string
	StaleThreshold time.Duration
	Bus            event.BusConfig
}

// DefaultConfig returns a Config with default dispatcher and bus settings and
// no data directories.
func DefaultConfig() Config {
	return Config{
		StaleThreshold: dispatch.DefaultStaleThreshold,
		Bus:            event.DefaultBusConfig(),
	}
}

// Core serializes access to one engine.
type Core struct {
	engine     engine.Engine
	config     Config
	logger     *logging.Logger
	dispatcher *dispatch.Dispatcher
	lifecycle  *lifecycle.Controller
	bus        *event.Bus

	// lifeMu serializes Startup and Shutdown.
	lifeMu sync.Mutex
	// handling is set on the worker while a notification is dispatched.
	handling atomic.Bool

	cacheMu sync.RWMutex
	schema  engine.SchemaItem
	status  engine.Status
}

// New creates a stopped Core around eng. A nil logger discards output.
func New(eng engine.Engine, config Config, logger *logging.Logger) *Core {
	if logger == nil {
		logger = logging.NopLogger()
	}
	c := &Core{
		engine:    eng,
		config:    config,
		logger:    logger.WithComponent("core"),
		lifecycle: lifecycle.NewController(logger),
		bus:       event.NewBus(config.Bus, logger),
		schema:    engine.SchemaItem{ID: engine.DefaultSchemaID},
	}
	c.dispatcher = dispatch.New(
		dispatch.LooperFuncs{StartupFunc: c.startEngine, FinalizeFunc: c.finalizeEngine},
		dispatch.Config{Name: "engine", StaleThreshold: config.StaleThreshold},
		logger,
	)
	return c
}

// Startup boots the engine asynchronously and returns at once. The lifecycle
// reaches Ready once the engine has started on the worker; operations issued
// in the meantime queue behind the boot. Startup is a no-op unless the core
// is stopped.
func (c *Core) Startup(fullCheck bool) {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	if err := c.lifecycle.MarkStarting(); err != nil {
		c.logger.Debug("startup ignored", "state", c.lifecycle.State().String())
		return
	}
	c.logger.Info("starting engine",
		"shared_data_dir", c.config.SharedDataDir,
		"user_data_dir", c.config.UserDataDir,
		"full_check", fullCheck,
	)
	c.dispatcher.Start(fullCheck)
}

// Shutdown stops the engine and blocks until it is stopped. A core that is
// still starting finishes booting first. Tasks that were queued but never ran
// are returned; Shutdown on a stopped core returns nil.
func (c *Core) Shutdown() []*dispatch.Task {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	switch c.lifecycle.State() {
	case lifecycle.Stopped:
		return nil
	case lifecycle.Starting:
		_ = c.lifecycle.AwaitReady(context.Background())
	}

	if err := c.lifecycle.MarkStopping(); err != nil {
		c.logger.Warn("shutdown ignored", "error", err)
		return nil
	}
	leftovers := c.dispatcher.Stop()
	if len(leftovers) > 0 {
		c.logger.Warn("engine stopped with queued tasks", "leftovers", len(leftovers))
	} else {
		c.logger.Info("engine stopped")
	}
	if err := c.lifecycle.MarkStopped(); err != nil {
		c.logger.Error("lifecycle out of sync", "error", err)
	}
	return leftovers
}

// startEngine runs on the worker before any task.
func (c *Core) startEngine(fullCheck bool) {
	defer func() {
		if err := c.lifecycle.MarkReady(); err != nil {
			c.logger.Error("lifecycle out of sync", "error", err)
		}
	}()

	c.engine.SetNotificationHandler(c.handleNotification)
	c.engine.Startup(engine.StartupOptions{
		SharedDataDir: c.config.SharedDataDir,
		UserDataDir:   c.config.UserDataDir,
		FullCheck:     fullCheck,
	})
	if st := c.engine.Status(); st != nil {
		c.setStatus(*st)
		c.setSchema(engine.SchemaItem{ID: st.SchemaID, Name: st.SchemaName})
	}
	c.logger.Info("engine ready", "schema", c.SchemaCached().ID)
}

// finalizeEngine runs on the worker after the last task.
func (c *Core) finalizeEngine() {
	c.engine.Shutdown()
	c.engine.SetNotificationHandler(nil)
	c.setStatus(engine.Status{})
	c.setSchema(engine.SchemaItem{ID: engine.DefaultSchemaID})
}

func (c *Core) handleNotification(messageType, messageValue string) {
	c.handling.Store(true)
	defer c.handling.Store(false)

	n := event.ParseNotification(messageType, messageValue)
	if s, ok := n.(event.SchemaNotification); ok {
		c.setSchema(s.Schema)
	}
	c.logger.Debug("engine notification", "type", messageType, "value", messageValue)
	c.bus.PublishNotification(n)
}

// respond pulls the engine's output state, caches the status and publishes
// it. It must run on the worker.
func (c *Core) respond() {
	commit := c.engine.Commit()
	ctx := c.engine.Context()
	status := c.engine.Status()
	if status != nil {
		c.setStatus(*status)
	}
	c.bus.PublishResponse(event.NewResponse(commit, ctx, status))
}

// mutate runs fn on the worker followed by respond.
func (c *Core) mutate(ctx context.Context, name string, fn func() bool) (bool, error) {
	return dispatch.Call(ctx, c.dispatcher, name, func() bool {
		ok := fn()
		c.respond()
		return ok
	})
}

func (c *Core) setSchema(s engine.SchemaItem) {
	c.cacheMu.Lock()
	c.schema = s
	c.cacheMu.Unlock()
}

func (c *Core) setStatus(s engine.Status) {
	c.cacheMu.Lock()
	c.status = s
	c.cacheMu.Unlock()
}

// SchemaCached returns the last schema reported by the engine without
// touching the worker.
func (c *Core) SchemaCached() engine.SchemaItem {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	return c.schema
}

// InputStatusCached returns the status observed after the latest operation.
func (c *Core) InputStatusCached() engine.Status {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	return c.status
}

// IsReady reports whether the engine has finished booting.
func (c *Core) IsReady() bool {
	return c.lifecycle.IsReady()
}

// Lifecycle returns the session's lifecycle controller.
func (c *Core) Lifecycle() *lifecycle.Controller {
	return c.lifecycle
}

// Bus returns the session's event bus.
func (c *Core) Bus() *event.Bus {
	return c.bus
}

// Pending returns the number of operations waiting for the worker.
func (c *Core) Pending() int {
	return c.dispatcher.Pending()
}
