// Package queue provides a minimal FIFO queue. It carries no locking of its
// own; the owner is responsible for serializing access.
package queue

// Queue is an insertion-ordered sequence of items. The zero value is an
// empty queue ready to use.
type Queue[T comparable] struct {
	items []T
}

// New creates an empty queue.
func New[T comparable]() *Queue[T] {
	return &Queue[T]{}
}

// Peek returns the head of the queue without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	return q.items[0], true
}

// Enqueue appends item to the tail.
func (q *Queue[T]) Enqueue(item T) {
	q.items = append(q.items, item)
}

// Dequeue removes and returns the head of the queue.
func (q *Queue[T]) Dequeue() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	head := q.items[0]
	// Clear the vacated slot so the backing array does not pin the value.
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return head, true
}

// Contains reports whether item is anywhere in the queue.
func (q *Queue[T]) Contains(item T) bool {
	for _, v := range q.items {
		if v == item {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the queue holds no items.
func (q *Queue[T]) IsEmpty() bool {
	return len(q.items) == 0
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	return len(q.items)
}

// Clear drops every queued item.
func (q *Queue[T]) Clear() {
	q.items = nil
}
