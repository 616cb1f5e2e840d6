package dispatch

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// Task is a unit of work run exactly once on the dispatcher's worker.
type Task struct {
	name       string
	fn         func()
	enqueuedAt time.Time
	started    atomic.Bool
}

// NewTask wraps fn as a Task. The name only appears in logs and may be empty.
func NewTask(name string, fn func()) *Task {
	return &Task{name: name, fn: fn}
}

// Name returns the task's name, or "anonymous" when none was given.
func (t *Task) Name() string {
	if t.name == "" {
		return "anonymous"
	}
	return t.name
}

// EnqueuedAt returns when the task was accepted by a dispatcher. It is the
// zero time for a task that was never submitted.
func (t *Task) EnqueuedAt() time.Time {
	return t.enqueuedAt
}

// Started reports whether the worker has begun running the task.
func (t *Task) Started() bool {
	return t.started.Load()
}

// run executes fn, returning the recovered panic (if any) instead of
// propagating it.
func (t *Task) run() (p *PanicError) {
	t.started.Store(true)
	defer func() {
		if r := recover(); r != nil {
			p = &PanicError{Task: t.Name(), Value: r, Stack: debug.Stack()}
		}
	}()
	t.fn()
	return nil
}

// PanicError carries a panic raised by a task on the worker. [Call] re-panics
// with a *PanicError in the calling goroutine.
type PanicError struct {
	Task  string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task %q panicked: %v", e.Task, e.Value)
}
