// Package ringqueue provides a growable circular double-ended queue.
//
// The queue is not safe for concurrent use. It is built for the node I/O path,
// where whole batches of sent operations move between queues and the backing
// arrays are reused instead of reallocated.
package ringqueue

const minCapacity = 8

// Queue is a FIFO over a circular buffer that also supports O(1) insertion at
// the head and bulk absorption of another queue.
type Queue[T any] struct {
	buf   []T
	head  int // index of the first element
	count int
}

// New creates a queue with room for at least capacity items before growing.
func New[T any](capacity int) *Queue[T] {
	if capacity < minCapacity {
		capacity = minCapacity
	}
	return &Queue[T]{buf: make([]T, capacity)}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	return q.count
}

// Enqueue appends v at the tail.
func (q *Queue[T]) Enqueue(v T) {
	q.ensure(q.count + 1)
	q.buf[q.index(q.count)] = v
	q.count++
}

// Dequeue removes and returns the head item.
func (q *Queue[T]) Dequeue() (T, bool) {
	var zero T
	if q.count == 0 {
		return zero, false
	}
	v := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = q.index(1)
	q.count--
	return v, true
}

// Peek returns the head item without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	return q.At(0)
}

// At returns the i-th item counted from the head.
func (q *Queue[T]) At(i int) (T, bool) {
	var zero T
	if i < 0 || i >= q.count {
		return zero, false
	}
	return q.buf[q.index(i)], true
}

// InsertHead puts v in front of every queued item.
func (q *Queue[T]) InsertHead(v T) {
	q.ensure(q.count + 1)
	q.head = (q.head - 1 + len(q.buf)) % len(q.buf)
	q.buf[q.head] = v
	q.count++
}

// Absorb moves every item of src to the tail of q, preserving their order,
// and leaves src empty. Items are copied region by region rather than one at
// a time.
func (q *Queue[T]) Absorb(src *Queue[T]) {
	if src == nil || src == q || src.count == 0 {
		return
	}
	q.ensure(q.count + src.count)

	// src occupies at most two contiguous regions.
	first := src.buf[src.head:min(src.head+src.count, len(src.buf))]
	second := src.buf[:src.count-len(first)]
	q.copyIn(first)
	q.copyIn(second)

	src.Clear()
}

// Drain removes every item, calling fn for each in FIFO order.
func (q *Queue[T]) Drain(fn func(T)) {
	for q.count > 0 {
		v, _ := q.Dequeue()
		fn(v)
	}
}

// Clear drops every item and releases references held by the backing array.
func (q *Queue[T]) Clear() {
	clear(q.buf)
	q.head = 0
	q.count = 0
}

// copyIn appends a contiguous run of items; capacity must already suffice.
func (q *Queue[T]) copyIn(items []T) {
	for len(items) > 0 {
		tail := q.index(q.count)
		end := len(q.buf)
		if tail < q.head {
			end = q.head
		}
		n := copy(q.buf[tail:end], items)
		q.count += n
		items = items[n:]
	}
}

func (q *Queue[T]) index(offset int) int {
	return (q.head + offset) % len(q.buf)
}

func (q *Queue[T]) ensure(size int) {
	if size <= len(q.buf) {
		return
	}
	capacity := len(q.buf) * 2
	for capacity < size {
		capacity *= 2
	}

	buf := make([]T, capacity)
	first := copy(buf, q.buf[q.head:min(q.head+q.count, len(q.buf))])
	copy(buf[first:], q.buf[:q.count-first])
	q.buf = buf
	q.head = 0
}
