package event

// ring is a fixed-capacity FIFO. It is not safe for concurrent use.
type ring[T any] struct {
	items []T
	head  int
	size  int
}

func newRing[T any](capacity int) ring[T] {
	return ring[T]{items: make([]T, capacity)}
}

func (r *ring[T]) len() int   { return r.size }
func (r *ring[T]) full() bool { return r.size == len(r.items) }

// push appends v. The caller must check full first.
func (r *ring[T]) push(v T) {
	r.items[(r.head+r.size)%len(r.items)] = v
	r.size++
}

func (r *ring[T]) pop() (T, bool) {
	var zero T
	if r.size == 0 {
		return zero, false
	}
	v := r.items[r.head]
	r.items[r.head] = zero
	r.head = (r.head + 1) % len(r.items)
	r.size--
	return v, true
}
