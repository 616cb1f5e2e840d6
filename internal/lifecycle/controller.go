// Package lifecycle tracks the boot state of a single engine session and runs
// continuations once the session reaches a given state.
//
// The state machine is a strict cycle:
//
//	Stopped -> Starting -> Ready -> Stopping -> Stopped
//
// Any other transition is rejected with an IllegalStateError and leaves the
// state unchanged.
package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/Iron-Ham/imecore/internal/errors"
	"github.com/Iron-Ham/imecore/internal/logging"
)

// State is a lifecycle state.
type State int

const (
	Stopped State = iota
	Starting
	Ready
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Ready:
		return "ready"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Controller holds the lifecycle state. All methods are safe for concurrent use.
type Controller struct {
	logger *logging.Logger

	mu      sync.Mutex
	state   State
	pending map[State][]func()
	subs    map[chan State]struct{}
	ctx     context.Context
	cancel  context.CancelFunc

	wg conc.WaitGroup
}

// NewController returns a Controller in the Stopped state.
func NewController(logger *logging.Logger) *Controller {
	if logger == nil {
		logger = logging.NopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return &Controller{
		logger:  logger.WithComponent("lifecycle"),
		state:   Stopped,
		pending: make(map[State][]func()),
		subs:    make(map[chan State]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsReady reports whether the current state is Ready.
func (c *Controller) IsReady() bool {
	return c.State() == Ready
}

// MarkStarting moves Stopped -> Starting and opens a fresh lifecycle context.
func (c *Controller) MarkStarting() error { return c.transition(Stopped, Starting) }

// MarkReady moves Starting -> Ready and flushes Ready continuations.
func (c *Controller) MarkReady() error { return c.transition(Starting, Ready) }

// MarkStopping moves Ready -> Stopping.
func (c *Controller) MarkStopping() error { return c.transition(Ready, Stopping) }

// MarkStopped moves Stopping -> Stopped and cancels the lifecycle context.
func (c *Controller) MarkStopped() error { return c.transition(Stopping, Stopped) }

func (c *Controller) transition(from, to State) error {
	c.mu.Lock()
	if c.state != from {
		current := c.state
		c.mu.Unlock()
		return errors.NewIllegalStateError("lifecycle", "mark "+to.String(), errors.ErrIllegalTransition).
			WithState(current.String())
	}

	c.state = to
	switch to {
	case Starting:
		c.ctx, c.cancel = context.WithCancel(context.Background())
	case Stopped:
		c.cancel()
	}

	queued := c.pending[to]
	delete(c.pending, to)

	for ch := range c.subs {
		offer(ch, to)
	}
	c.mu.Unlock()

	c.logger.Debug("lifecycle transition", "from", from.String(), "to", to.String(), "continuations", len(queued))

	if len(queued) > 0 {
		c.wg.Go(func() {
			for _, fn := range queued {
				c.run(to, fn)
			}
		})
	}
	return nil
}

// WhenAtState runs fn once the controller is at state. If it already is, fn is
// scheduled right away on a new goroutine; otherwise it is queued and run,
// together with every other continuation queued for state and in registration
// order, when state is next reached.
func (c *Controller) WhenAtState(state State, fn func()) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		c.wg.Go(func() { c.run(state, fn) })
		return
	}
	c.pending[state] = append(c.pending[state], fn)
	c.mu.Unlock()
}

// WhenReady is WhenAtState(Ready, fn).
func (c *Controller) WhenReady(fn func()) {
	c.WhenAtState(Ready, fn)
}

// AwaitReady blocks until the controller is Ready or ctx is done.
func (c *Controller) AwaitReady(ctx context.Context) error {
	ready := make(chan struct{})
	c.WhenReady(func() { close(ready) })
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns a channel that always holds the latest state. It is primed
// with the current state; intermediate states may be skipped by a slow reader.
// Call cancel to release the subscription; the channel is not closed.
func (c *Controller) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	c.mu.Lock()
	ch <- c.state
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, ch)
			c.mu.Unlock()
		})
	}
}

// Context returns the context of the current lifecycle. It is created on
// MarkStarting and canceled on MarkStopped. While stopped, the returned
// context is already canceled.
func (c *Controller) Context() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

// Wait blocks until every scheduled continuation has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) run(state State, fn func()) {
	var pc panics.Catcher
	pc.Try(fn)
	if r := pc.Recovered(); r != nil {
		c.logger.Error("continuation panicked",
			"state", state.String(),
			"panic", fmt.Sprint(r.Value),
			"stack", string(r.Stack),
		)
	}
}

// offer replaces whatever ch holds with s. Callers hold c.mu, so there is a
// single writer per channel.
func offer(ch chan State, s State) {
	select {
	case <-ch:
	default:
	}
	ch <- s
}
