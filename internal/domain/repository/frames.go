package repository

import "context"

// FrameStore holds one item per frame index of a single media file.
//
// Indices passed to Put, Get and Range are normalized modulo the declared
// count before use. Items returned by Get and Range are owned by the caller:
// stores that keep items by reference retain them before handing them out.
type FrameStore[T any] interface {
	// Init declares the size of the index space and discards any content
	// left over from a previous media file. count must be positive.
	Init(ctx context.Context, count int) error

	// Put stores item at index. Overwriting an existing index is allowed.
	// Returns ErrInvalidState before Init.
	Put(ctx context.Context, index int, item T) error

	// Get returns the item at index, or ErrFrameNotFound.
	Get(ctx context.Context, index int) (T, error)

	// Range returns an ascending iterator over [from, to]. When from > to
	// after normalization, stores whose Wraps reports true yield
	// [from, count-1] followed by [0, to]; other stores return ErrInvalidRange.
	Range(ctx context.Context, from, to int) (Iterator[T], error)

	// Len returns the declared count, 0 before Init.
	Len() int

	// Wraps reports whether Range accepts from > to.
	Wraps() bool
}

// Iterator is a finite, pull-based, non-restartable sequence of frames.
type Iterator[T any] interface {
	// Next advances to the next item and reports whether one is available.
	Next() bool
	// Item returns the current item.
	Item() T
	// Index returns the frame index of the current item.
	Index() int
	// Err returns the error that stopped iteration, if any.
	Err() error
	// Close releases resources held by the iterator.
	Close() error
}

// Lifecycle describes how items that own an external resource are shared.
// A zero Lifecycle treats items as plain values.
type Lifecycle[T any] struct {
	Retain  func(T)
	Release func(T) error
}

// RetainItem adds a reference to item if a Retain hook is set.
func (l Lifecycle[T]) RetainItem(item T) {
	if l.Retain != nil {
		l.Retain(item)
	}
}

// ReleaseItem drops a reference to item if a Release hook is set.
func (l Lifecycle[T]) ReleaseItem(item T) error {
	if l.Release == nil {
		return nil
	}
	return l.Release(item)
}
