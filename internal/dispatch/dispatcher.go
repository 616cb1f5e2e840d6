package dispatch

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Iron-Ham/imecore/internal/errors"
	"github.com/Iron-Ham/imecore/internal/logging"
)

// DefaultStaleThreshold is how long a task may wait in the queue before its
// start is logged as stale.
const DefaultStaleThreshold = 2000 * time.Millisecond

// Looper receives the worker's one-time hooks. Both run on the worker thread:
// Startup before the first task, Finalize after the last.
type Looper interface {
	Startup(fullCheck bool)
	Finalize()
}

// LooperFuncs adapts a pair of functions to the Looper interface.
// Nil fields are skipped.
type LooperFuncs struct {
	StartupFunc  func(fullCheck bool)
	FinalizeFunc func()
}

// Startup implements Looper.
func (l LooperFuncs) Startup(fullCheck bool) {
	if l.StartupFunc != nil {
		l.StartupFunc(fullCheck)
	}
}

// Finalize implements Looper.
func (l LooperFuncs) Finalize() {
	if l.FinalizeFunc != nil {
		l.FinalizeFunc()
	}
}

// Config holds dispatcher settings.
type Config struct {
	// Name identifies the dispatcher in logs.
	Name string
	// StaleThreshold is the queueing delay after which a task is logged as
	// stale when it finally starts. Zero or negative disables the check.
	StaleThreshold time.Duration
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		Name:           "engine",
		StaleThreshold: DefaultStaleThreshold,
	}
}

type state int

const (
	stateStopped state = iota
	stateRunning
	stateStopping
)

func (s state) String() string {
	switch s {
	case stateStopped:
		return "stopped"
	case stateRunning:
		return "running"
	case stateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Dispatcher runs submitted tasks one at a time, in submission order, on a
// single worker goroutine locked to its OS thread.
type Dispatcher struct {
	config Config
	looper Looper
	logger *logging.Logger
	now    func() time.Time

	mu    sync.Mutex
	state state
	queue []*Task
	wake  *wakeup
	done  chan struct{} // closed when the current worker exits
}

// New creates a stopped Dispatcher. A nil looper means no startup or finalize
// hooks; a nil logger discards output.
func New(looper Looper, config Config, logger *logging.Logger) *Dispatcher {
	if looper == nil {
		looper = LooperFuncs{}
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Dispatcher{
		config: config,
		looper: looper,
		logger: logger.WithComponent("dispatcher").With("dispatcher", config.Name),
		now:    time.Now,
	}
}

// Start launches the worker and returns immediately. The worker runs the
// looper's Startup hook before any task; tasks submitted in the meantime wait
// in the queue. Calling Start on a dispatcher that is not stopped is a no-op.
func (d *Dispatcher) Start(fullCheck bool) {
	d.mu.Lock()
	if d.state != stateStopped {
		current := d.state
		d.mu.Unlock()
		d.logger.Debug("start ignored", "state", current.String())
		return
	}
	d.state = stateRunning
	d.wake = newWakeup()
	d.done = make(chan struct{})
	wake, done := d.wake, d.done
	d.mu.Unlock()

	d.logger.Info("starting worker", "full_check", fullCheck)
	go d.loop(fullCheck, wake, done)
}

// Submit queues t to run on the worker. It returns an IllegalStateError
// wrapping errors.ErrNotRunning when the dispatcher is not running.
func (d *Dispatcher) Submit(t *Task) error {
	_, err := d.enqueue(t)
	return err
}

// Post is shorthand for Submit(NewTask(name, fn)).
func (d *Dispatcher) Post(name string, fn func()) error {
	return d.Submit(NewTask(name, fn))
}

// enqueue appends t and signals the worker, returning the channel that is
// closed when the worker that will (or won't) run t exits.
func (d *Dispatcher) enqueue(t *Task) (<-chan struct{}, error) {
	d.mu.Lock()
	if d.state != stateRunning {
		current := d.state
		d.mu.Unlock()
		return nil, errors.NewIllegalStateError("dispatcher", "submit "+t.Name(), errors.ErrNotRunning).
			WithState(current.String())
	}
	t.enqueuedAt = d.now()
	d.queue = append(d.queue, t)
	wake, done := d.wake, d.done
	d.mu.Unlock()

	wake.signal()
	return done, nil
}

// Stop stops the worker and blocks until it has exited. The task running at
// the time of the call (if any) completes, the looper's Finalize hook runs on
// the worker, and every task still queued is returned without having run.
//
// Stopping a dispatcher that is already stopped returns nil. A Stop racing
// another Stop waits for the worker to exit and returns nil; the leftovers go
// to the first caller.
func (d *Dispatcher) Stop() []*Task {
	d.mu.Lock()
	switch d.state {
	case stateStopped:
		d.mu.Unlock()
		d.logger.Debug("stop ignored", "state", stateStopped.String())
		return nil
	case stateStopping:
		done := d.done
		d.mu.Unlock()
		<-done
		return nil
	}
	d.state = stateStopping
	wake, done := d.wake, d.done
	d.mu.Unlock()

	wake.signal()
	<-done

	d.mu.Lock()
	leftovers := d.queue
	d.queue = nil
	d.state = stateStopped
	d.mu.Unlock()

	d.logger.Info("worker stopped", "leftovers", len(leftovers))
	return leftovers
}

// IsRunning reports whether the dispatcher accepts tasks.
func (d *Dispatcher) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == stateRunning
}

// Pending returns the number of queued tasks that have not started.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

func (d *Dispatcher) loop(fullCheck bool, wake *wakeup, done chan struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(done)

	d.hook("startup", func() { d.looper.Startup(fullCheck) })

	for {
		wake.wait()
		for t := d.next(); t != nil; t = d.next() {
			d.execute(t)
		}
		if !d.IsRunning() {
			break
		}
	}

	d.hook("finalize", d.looper.Finalize)
}

// next pops the head of the queue, or returns nil when the queue is empty or
// the dispatcher is no longer running. The second case cuts a drain pass short
// on Stop; the tasks left behind are handed back as leftovers.
func (d *Dispatcher) next() *Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != stateRunning || len(d.queue) == 0 {
		return nil
	}
	t := d.queue[0]
	d.queue[0] = nil
	d.queue = d.queue[1:]
	return t
}

func (d *Dispatcher) execute(t *Task) {
	if threshold := d.config.StaleThreshold; threshold > 0 {
		if waited := d.now().Sub(t.enqueuedAt); waited > threshold {
			d.logger.Warn("stale task",
				"task", t.Name(),
				"waited_ms", waited.Milliseconds(),
				"threshold_ms", threshold.Milliseconds(),
			)
		}
	}

	if p := t.run(); p != nil {
		d.logger.Error("task panicked",
			"task", p.Task,
			"panic", fmt.Sprint(p.Value),
			"stack", string(p.Stack),
		)
	}
}

func (d *Dispatcher) hook(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("looper hook panicked", "hook", name, "panic", fmt.Sprint(r))
		}
	}()
	fn()
}
