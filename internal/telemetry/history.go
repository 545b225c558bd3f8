package telemetry

// ring is a fixed-capacity FIFO buffer. Once full, each write overwrites the
// oldest entry. It is not safe for concurrent use; Recorder serializes access.
type ring[T any] struct {
	entries    []T
	capacity   int
	head       int // index of the next write once the buffer is full
	totalAdded int64
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{
		entries:  make([]T, 0, capacity),
		capacity: capacity,
	}
}

// add appends entry and reports whether an older entry was evicted.
func (r *ring[T]) add(entry T) bool {
	evicted := false
	if len(r.entries) < r.capacity {
		r.entries = append(r.entries, entry)
	} else {
		r.entries[r.head] = entry
		evicted = true
	}
	r.head = (r.head + 1) % r.capacity
	r.totalAdded++
	return evicted
}

func (r *ring[T]) len() int {
	return len(r.entries)
}

// all returns the retained entries, oldest first.
func (r *ring[T]) all() []T {
	out := make([]T, 0, len(r.entries))
	if len(r.entries) < r.capacity {
		return append(out, r.entries...)
	}
	out = append(out, r.entries[r.head:]...)
	return append(out, r.entries[:r.head]...)
}

// findLast returns the newest entry matching fn.
func (r *ring[T]) findLast(fn func(T) bool) (T, bool) {
	n := len(r.entries)
	for i := 0; i < n; i++ {
		// head-1 is the most recent write whether or not the buffer has wrapped
		idx := (r.head - 1 - i + n) % n
		if fn(r.entries[idx]) {
			return r.entries[idx], true
		}
	}
	var zero T
	return zero, false
}
