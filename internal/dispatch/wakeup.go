package dispatch

import "sync"

// wakeup is an unbounded, payload-free signal counter. Each signal is consumed
// by exactly one wait; signals never block and are never lost.
type wakeup struct {
	mu      sync.Mutex
	pending int
	bell    chan struct{}
}

func newWakeup() *wakeup {
	return &wakeup{bell: make(chan struct{}, 1)}
}

func (w *wakeup) signal() {
	w.mu.Lock()
	w.pending++
	w.mu.Unlock()
	w.ring()
}

func (w *wakeup) ring() {
	select {
	case w.bell <- struct{}{}:
	default:
	}
}

// wait blocks until at least one signal is pending and consumes it.
func (w *wakeup) wait() {
	for {
		w.mu.Lock()
		if w.pending > 0 {
			w.pending--
			more := w.pending > 0
			w.mu.Unlock()
			if more {
				w.ring()
			}
			return
		}
		w.mu.Unlock()
		<-w.bell
	}
}

func (w *wakeup) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}
