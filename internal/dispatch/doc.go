// Package dispatch serializes all work against a non-reentrant resource onto a
// single dedicated worker goroutine.
//
// A [Dispatcher] owns one worker that is locked to its OS thread for its whole
// life. Tasks submitted from any goroutine are appended to an unbounded FIFO and
// run one at a time, in submission order, on that worker. Nothing else ever
// touches the resource, so the resource needs no locking of its own.
//
// # Queue and Wakeup
//
// The queue and the wakeup signal are separate primitives. Every submission
// appends one task and rings the wakeup once; on each wakeup the worker pops
// and runs tasks until the queue is empty, then waits again. A wakeup that
// finds the queue already drained is harmless.
//
// # Calling Convention
//
// [Dispatcher.Submit] and [Dispatcher.Post] are fire-and-forget. [Call] and
// [Do] block the calling goroutine until its task has run on the worker and
// return the task's result:
//
//	n, err := dispatch.Call(ctx, d, "count", func() int {
//	    return engine.Count()
//	})
//
// A canceled ctx only stops the caller from waiting; a task that was already
// queued still runs, and its result is discarded.
//
// # Start and Stop
//
// Start and Stop are idempotent. Stop blocks until the worker has finished the
// task it is running (tasks are never interrupted), run the looper's Finalize
// hook and exited. Tasks still queued at that point are returned to the caller
// of Stop, never run. [Call] waiters whose task was abandoned this way receive
// [errors.ErrTaskAbandoned].
//
// Stop must not be called from a task: the worker would wait on itself.
//
// # Staleness
//
// A task that waited longer than Config.StaleThreshold between submission and
// starting is logged as a warning. It still runs.
package dispatch
