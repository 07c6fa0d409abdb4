// Package borrow implements the graph-borrow primitive: a runtime
// checked handoff of an application-owned value into the graph for one
// frame and back, replacing explicit lifetime plumbing with a single
// exclusive-access flag.
package borrow

import "runtime"

type meta struct {
	borrowed bool
}

// GraphBorrowable owns a value of type T that the graph may borrow for
// one frame at a time. It must not be garbage-collected while a borrow
// taken from it is still outstanding; doing so is fatal.
type GraphBorrowable[T any] struct {
	value *T
	meta  *meta
}

// New wraps value for borrowing.
func New[T any](value T) *GraphBorrowable[T] {
	b := &GraphBorrowable[T]{value: &value, meta: &meta{}}
	runtime.SetFinalizer(b, finalizeBorrowable[T])
	return b
}

func finalizeBorrowable[T any](b *GraphBorrowable[T]) {
	if b.meta.borrowed {
		panic("borrow: GraphBorrowable collected while a borrow is still outstanding")
	}
}

// TakeBorrow asserts the value is not already borrowed, marks it
// borrowed, and returns a unique handle usable for the rest of the
// frame. Calling TakeBorrow on an already-borrowed value is fatal.
func (b *GraphBorrowable[T]) TakeBorrow() *GraphBorrow[T] {
	if b.meta.borrowed {
		panic("borrow: value is already borrowed")
	}
	b.meta.borrowed = true
	return &GraphBorrow[T]{value: b.value, meta: b.meta}
}

// TryBorrow returns the wrapped value for direct (non-graph) access,
// or false if the graph currently holds a borrow.
func (b *GraphBorrowable[T]) TryBorrow() (*T, bool) {
	if b.meta.borrowed {
		return nil, false
	}
	return b.value, true
}

// GraphBorrow is a unique, frame-scoped handle to a borrowed value.
// Release must be called exactly once before the frame that took the
// borrow retires; a live GraphBorrow whose GraphBorrowable is dropped
// without a matching Release is a fatal contract violation, not a
// leak the runtime silently tolerates.
type GraphBorrow[T any] struct {
	value    *T
	meta     *meta
	released bool
}

// Get returns the borrowed value.
func (g *GraphBorrow[T]) Get() *T { return g.value }

// Release clears the borrow, allowing the value to be borrowed again.
// Calling Release more than once is a no-op.
func (g *GraphBorrow[T]) Release() {
	if g.released {
		return
	}
	g.meta.borrowed = false
	g.released = true
}

// Into erases the borrow's static type for heterogeneous storage
// inside the executor, which tracks every outstanding borrow of a
// frame in one slice regardless of T.
func (g *GraphBorrow[T]) Into() DynGraphBorrow {
	g.released = true // ownership of the release moves to the DynGraphBorrow
	return DynGraphBorrow{value: g.value, meta: g.meta}
}

// DynGraphBorrow is a type-erased GraphBorrow.
type DynGraphBorrow struct {
	value    any
	meta     *meta
	released bool
}

// Get returns the borrowed value as any. It holds the same *T that
// GraphBorrow.Get returned, so the caller type-asserts it back to *T
// for the T it knows was borrowed.
func (d *DynGraphBorrow) Get() any { return d.value }

// Release clears the borrow. Calling Release more than once is a
// no-op.
func (d *DynGraphBorrow) Release() {
	if d.released {
		return
	}
	d.meta.borrowed = false
	d.released = true
}
