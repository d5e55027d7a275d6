package framestore

import "github.com/hszk-dev/framestream/internal/domain/repository"

// sliceIterator walks items that were read eagerly. Items the caller never
// reached are released on Close.
type sliceIterator[T any] struct {
	items   []T
	indices []int
	pos     int
	life    repository.Lifecycle[T]
	err     error
	closed  bool
}

func newSliceIterator[T any](items []T, indices []int, life repository.Lifecycle[T]) *sliceIterator[T] {
	return &sliceIterator[T]{items: items, indices: indices, pos: -1, life: life}
}

func (it *sliceIterator[T]) Next() bool {
	if it.closed || it.err != nil || it.pos+1 >= len(it.items) {
		return false
	}
	it.pos++
	return true
}

func (it *sliceIterator[T]) Item() T {
	return it.items[it.pos]
}

func (it *sliceIterator[T]) Index() int {
	return it.indices[it.pos]
}

func (it *sliceIterator[T]) Err() error {
	return it.err
}

func (it *sliceIterator[T]) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	var firstErr error
	for i := it.pos + 1; i < len(it.items); i++ {
		if err := it.life.ReleaseItem(it.items[i]); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	it.items = nil
	return firstErr
}

// rangeIndices expands a normalized from/to pair into the ascending index
// order a wrapping store yields.
func rangeIndices(from, to, count int) []int {
	var out []int
	if from <= to {
		out = make([]int, 0, to-from+1)
		for i := from; i <= to; i++ {
			out = append(out, i)
		}
		return out
	}
	out = make([]int, 0, count-from+to+1)
	for i := from; i < count; i++ {
		out = append(out, i)
	}
	for i := 0; i <= to; i++ {
		out = append(out, i)
	}
	return out
}
