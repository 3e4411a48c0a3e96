// Package window provides bounded sliding-window containers used by the
// rate controller: a count-bounded ring and a time-bounded queue.
//
// Neither container is safe for concurrent use; the owning controller
// serializes access under its own mutex.
package window

import "time"

// Ring is a count-bounded FIFO window. Appending beyond capacity evicts the
// oldest element.
type Ring[T any] struct {
	items []T
	cap   int
}

// NewRing creates a ring with the given capacity. A capacity below 1 is
// treated as 1.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}

	return &Ring[T]{
		items: make([]T, 0, capacity),
		cap:   capacity,
	}
}

// Append adds an element, evicting the oldest if the ring is full.
func (r *Ring[T]) Append(item T) {
	if len(r.items) == r.cap {
		copy(r.items, r.items[1:])
		r.items[len(r.items)-1] = item

		return
	}

	r.items = append(r.items, item)
}

// Len returns the number of elements currently held.
func (r *Ring[T]) Len() int {
	return len(r.items)
}

// Items returns the window contents, oldest first. The returned slice is
// backed by the ring; callers must not retain it across an Append.
func (r *Ring[T]) Items() []T {
	return r.items
}

// Last returns the most recent n elements, oldest first. If fewer than n are
// held, all elements are returned.
func (r *Ring[T]) Last(n int) []T {
	if n >= len(r.items) {
		return r.items
	}

	return r.items[len(r.items)-n:]
}

// Clear removes all elements, retaining capacity.
func (r *Ring[T]) Clear() {
	r.items = r.items[:0]
}

// TimeQueue is a time-bounded FIFO queue. Elements older than the retention
// window are dropped on Prune.
type TimeQueue[T any] struct {
	items []T
	at    func(T) time.Time
}

// NewTimeQueue creates a queue whose element timestamps are extracted by at.
func NewTimeQueue[T any](at func(T) time.Time) *TimeQueue[T] {
	return &TimeQueue[T]{
		at: at,
	}
}

// Append adds an element. Elements are assumed to arrive in timestamp order.
func (q *TimeQueue[T]) Append(item T) {
	q.items = append(q.items, item)
}

// Prune drops all elements with a timestamp before cutoff.
func (q *TimeQueue[T]) Prune(cutoff time.Time) {
	drop := 0
	for drop < len(q.items) && q.at(q.items[drop]).Before(cutoff) {
		drop++
	}

	if drop > 0 {
		q.items = q.items[:copy(q.items, q.items[drop:])]
	}
}

// Len returns the number of elements currently held.
func (q *TimeQueue[T]) Len() int {
	return len(q.items)
}

// Clear removes all elements.
func (q *TimeQueue[T]) Clear() {
	q.items = q.items[:0]
}
