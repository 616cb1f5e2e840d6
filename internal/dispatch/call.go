package dispatch

import (
	"context"
	"runtime/debug"

	"github.com/Iron-Ham/imecore/internal/errors"
)

type outcome[T any] struct {
	value T
	panic *PanicError
}

// Call runs fn on d's worker and waits for its result.
//
// It returns early with ctx.Err() when ctx is done; the task is not withdrawn
// and its result is discarded. It returns an error wrapping
// errors.ErrTaskAbandoned when the dispatcher stops before the task runs, and
// the Submit error when the dispatcher is not running. A panic in fn is
// re-raised in the caller as a *PanicError.
func Call[T any](ctx context.Context, d *Dispatcher, name string, fn func() T) (T, error) {
	var zero T
	result := make(chan outcome[T], 1)

	task := NewTask(name, func() {
		var o outcome[T]
		defer func() {
			if r := recover(); r != nil {
				o.panic = &PanicError{Task: name, Value: r, Stack: debug.Stack()}
			}
			result <- o
		}()
		o.value = fn()
	})

	done, err := d.enqueue(task)
	if err != nil {
		return zero, err
	}

	select {
	case o := <-result:
		return o.unwrap()
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-done:
		// The worker runs tasks before exiting, so a result sent by it is
		// already buffered.
		select {
		case o := <-result:
			return o.unwrap()
		default:
			return zero, errors.Wrapf(errors.ErrTaskAbandoned, "task %q", task.Name())
		}
	}
}

// Do is Call for functions without a result.
func Do(ctx context.Context, d *Dispatcher, name string, fn func()) error {
	_, err := Call(ctx, d, name, func() struct{} {
		fn()
		return struct{}{}
	})
	return err
}

func (o outcome[T]) unwrap() (T, error) {
	if o.panic != nil {
		panic(o.panic)
	}
	return o.value, nil
}
