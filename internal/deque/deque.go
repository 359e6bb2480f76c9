// Package deque implements a Chase-Lev lock-free work-stealing deque.
//
// The owner goroutine pushes and pops at the bottom end; any other
// goroutine may steal from the top end. Steal is wait-free with respect
// to the owner's push; pop and steal race only over the deque's last
// element, and that race is resolved with a single CAS on top.
package deque

import "sync/atomic"

// ErrAbort is returned by Steal when the caller lost a race with the
// owner's PopBottom or with another thief. The caller should retry
// against a different victim or back off; ABORT does not mean the
// deque was empty.
var ErrAbort = abortError{}

type abortError struct{}

func (abortError) Error() string { return "deque: steal aborted, race lost" }

// Deque is a Chase-Lev deque of T. The zero value is not usable; use New.
type Deque[T any] struct {
	top    atomic.Uint64
	bottom atomic.Uint64
	buf    atomic.Pointer[buffer[T]]
}

type buffer[T any] struct {
	mask  uint64
	slots []T
}

func newBuffer[T any](size int) *buffer[T] {
	return &buffer[T]{
		mask:  uint64(size - 1),
		slots: make([]T, size),
	}
}

func (b *buffer[T]) get(i uint64) T {
	return b.slots[i&b.mask]
}

func (b *buffer[T]) put(i uint64, v T) {
	b.slots[i&b.mask] = v
}

func (b *buffer[T]) grow(bottom, top uint64) *buffer[T] {
	grown := newBuffer[T](len(b.slots) * 2)
	for i := top; i < bottom; i++ {
		grown.put(i, b.get(i))
	}
	return grown
}

// New creates a deque with the given initial capacity, rounded up to a
// power of two. A capacity <= 0 defaults to 64, matching typical
// subtask fan-out per loop.
func New[T any](capacity int) *Deque[T] {
	if capacity <= 0 {
		capacity = 64
	}
	d := &Deque[T]{}
	d.buf.Store(newBuffer[T](nextPow2(capacity)))
	return d
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// PushBottom appends v at the bottom. Owner-only; never fails, growing
// the backing array as needed.
func (d *Deque[T]) PushBottom(v T) {
	b := d.bottom.Load()
	t := d.top.Load()
	buf := d.buf.Load()

	if b-t >= uint64(len(buf.slots)) {
		buf = buf.grow(b, t)
		d.buf.Store(buf)
	}

	buf.put(b, v)
	d.bottom.Store(b + 1)
}

// PopBottom returns the most recently pushed item, or false if the
// deque is empty. Owner-only. Resolves the last-element race against a
// concurrent Steal with a CAS on top: exactly one of the two calls
// obtains the element.
func (d *Deque[T]) PopBottom() (v T, ok bool) {
	b := d.bottom.Load()
	if b == 0 {
		return v, false
	}
	b--
	d.bottom.Store(b)

	t := d.top.Load()
	if t > b {
		// Deque was already empty; restore bottom.
		d.bottom.Store(b + 1)
		return v, false
	}

	buf := d.buf.Load()
	v = buf.get(b)
	if t == b {
		// Last element: race the owner's claim against a thief's CAS.
		if !d.top.CompareAndSwap(t, t+1) {
			d.bottom.Store(b + 1)
			return v, false
		}
		d.bottom.Store(b + 1)
	}
	return v, true
}

// StealTop returns the oldest item, false if the deque is empty, or
// ErrAbort if a concurrent PopBottom or another Steal won the race for
// the element this call observed.
func (d *Deque[T]) StealTop() (v T, ok bool, err error) {
	t := d.top.Load()
	b := d.bottom.Load()
	if t >= b {
		return v, false, nil
	}

	buf := d.buf.Load()
	v = buf.get(t)
	if !d.top.CompareAndSwap(t, t+1) {
		var zero T
		return zero, false, ErrAbort
	}
	return v, true, nil
}

// Empty reports whether the deque currently holds no items. The result
// may be stale the instant it is read; callers use it only as a hint
// (e.g. to decide whether to enter the acquire phase), never as a
// synchronization primitive.
func (d *Deque[T]) Empty() bool {
	b := d.bottom.Load()
	t := d.top.Load()
	return int64(b-t) <= 0
}

// Size returns a snapshot of the number of items in the deque.
func (d *Deque[T]) Size() int {
	b := d.bottom.Load()
	t := d.top.Load()
	if b < t {
		return 0
	}
	return int(b - t)
}
