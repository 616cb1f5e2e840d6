package event

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"sync"

	"github.com/Iron-Ham/imecore/internal/errors"
	"github.com/Iron-Ham/imecore/internal/logging"
)

// Overflow selects what a full subscriber buffer does with a new entry.
type Overflow int

const (
	// DropOldest evicts the oldest buffered entry to make room.
	DropOldest Overflow = iota
	// DropLatest discards the incoming entry and keeps the buffer as is.
	DropLatest
)

func (o Overflow) String() string {
	switch o {
	case DropOldest:
		return "drop-oldest"
	case DropLatest:
		return "drop-latest"
	default:
		return fmt.Sprintf("overflow(%d)", int(o))
	}
}

// Listener receives entries pushed on a Channel. Listeners are compared by
// identity, so implementations must be comparable (pointer types are).
// On runs on the publishing goroutine and must not block.
type Listener[T any] interface {
	On(v T)
}

type funcListener[T any] struct {
	fn func(T)
}

func (l *funcListener[T]) On(v T) { l.fn(v) }

// Handler wraps fn as a Listener. Each call returns a distinct listener; keep
// the result to remove it later.
func Handler[T any](fn func(T)) Listener[T] {
	return &funcListener[T]{fn: fn}
}

// Channel is a broadcast channel. Every subscription gets its own bounded
// buffer; listeners are called synchronously on Publish.
type Channel[T any] struct {
	name     string
	capacity int
	overflow Overflow
	logger   *logging.Logger

	mu        sync.Mutex
	listeners []Listener[T]
	subs      []*Subscription[T]
}

// NewChannel creates a Channel whose subscriptions buffer up to capacity
// entries and handle overflow with the given policy. A capacity below 1 is
// raised to 1; NewBus applies DefaultCapacity before it gets here.
func NewChannel[T any](name string, capacity int, overflow Overflow, logger *logging.Logger) *Channel[T] {
	if capacity < 1 {
		capacity = 1
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Channel[T]{
		name:     name,
		capacity: capacity,
		overflow: overflow,
		logger:   logger.WithComponent("event").With("channel", name),
	}
}

// Name returns the channel name.
func (c *Channel[T]) Name() string { return c.name }

// Capacity returns the per-subscription buffer size.
func (c *Channel[T]) Capacity() int { return c.capacity }

// Overflow returns the channel's overflow policy.
func (c *Channel[T]) Overflow() Overflow { return c.overflow }

// Publish delivers v to every subscription buffer and then to every listener.
// It never blocks on a slow subscriber. It returns false if any subscription
// had to drop an entry (v itself or an older one) to apply the overflow policy.
func (c *Channel[T]) Publish(v T) bool {
	c.mu.Lock()
	listeners := slices.Clone(c.listeners)
	subs := slices.Clone(c.subs)
	c.mu.Unlock()

	delivered := true
	for _, s := range subs {
		if !s.offer(v) {
			delivered = false
		}
	}
	for _, l := range listeners {
		c.safeCall(l, v)
	}
	return delivered
}

// safeCall invokes a listener and recovers from any panic so that one
// misbehaving listener cannot stop delivery to the others.
func (c *Channel[T]) safeCall(l Listener[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("listener panicked",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	l.On(v)
}

// AddListener registers l. Adding a listener that is already registered is a
// no-op.
func (c *Channel[T]) AddListener(l Listener[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if slices.Contains(c.listeners, l) {
		return
	}
	c.listeners = append(c.listeners, l)
}

// RemoveListener unregisters l. It reports whether l was registered.
func (c *Channel[T]) RemoveListener(l Listener[T]) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := slices.Index(c.listeners, l)
	if i < 0 {
		return false
	}
	c.listeners = slices.Delete(c.listeners, i, i+1)
	return true
}

// ListenerCount returns the number of registered listeners.
func (c *Channel[T]) ListenerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}

// Subscribe returns a new subscription. It sees only entries published after
// this call.
func (c *Channel[T]) Subscribe() *Subscription[T] {
	s := &Subscription[T]{
		channel: c,
		buf:     newRing[T](c.capacity),
		ready:   make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	c.mu.Lock()
	c.subs = append(c.subs, s)
	c.mu.Unlock()
	return s
}

// SubscriberCount returns the number of open subscriptions.
func (c *Channel[T]) SubscriberCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *Channel[T]) unsubscribe(s *Subscription[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := slices.Index(c.subs, s); i >= 0 {
		c.subs = slices.Delete(c.subs, i, i+1)
	}
}

// Subscription is a pull-based, order-preserving view of a Channel.
type Subscription[T any] struct {
	channel *Channel[T]

	mu      sync.Mutex
	buf     ring[T]
	dropped uint64
	closed  bool
	ready   chan struct{}
	done    chan struct{}
}

// offer applies the channel's overflow policy. It reports false when an entry
// was dropped.
func (s *Subscription[T]) offer(v T) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return true
	}

	kept := true
	if s.buf.full() {
		kept = false
		s.dropped++
		if s.channel.overflow == DropLatest {
			s.mu.Unlock()
			return false
		}
		s.buf.pop()
	}
	s.buf.push(v)
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
	return kept
}

// Next blocks until an entry is available or ctx is done. Once the
// subscription is closed and its buffer is empty, Next returns
// errors.ErrSubscriptionClosed.
func (s *Subscription[T]) Next(ctx context.Context) (T, error) {
	for {
		if v, ok := s.TryNext(); ok {
			return v, nil
		}

		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			var zero T
			return zero, errors.ErrSubscriptionClosed
		}

		select {
		case <-s.ready:
		case <-s.done:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// TryNext returns the oldest buffered entry without blocking.
func (s *Subscription[T]) TryNext() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.pop()
}

// Drain removes and returns every buffered entry, oldest first.
func (s *Subscription[T]) Drain() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]T, 0, s.buf.len())
	for {
		v, ok := s.buf.pop()
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

// Len returns the number of buffered entries.
func (s *Subscription[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.len()
}

// Dropped returns how many entries this subscription lost to overflow.
func (s *Subscription[T]) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close detaches the subscription from its channel and wakes any blocked
// Next. Entries still buffered can be read with TryNext or Drain. Closing
// twice is safe.
func (s *Subscription[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	s.channel.unsubscribe(s)
}
