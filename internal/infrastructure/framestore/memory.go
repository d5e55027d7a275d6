package framestore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hszk-dev/framestream/internal/domain/model"
	"github.com/hszk-dev/framestream/internal/domain/repository"
	"github.com/hszk-dev/framestream/internal/infrastructure/metrics"
)

// MemoryStore keeps items by reference in a slice that grows as frames
// arrive. It holds one reference per stored item and hands out a new one
// on every read. Range wraps around the end of the index space.
type MemoryStore[T any] struct {
	life repository.Lifecycle[T]

	mu      sync.RWMutex
	count   int
	items   []T
	present []bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore[T any](life repository.Lifecycle[T]) *MemoryStore[T] {
	return &MemoryStore[T]{life: life}
}

var _ repository.FrameStore[*model.Frame] = (*MemoryStore[*model.Frame])(nil)

func (s *MemoryStore[T]) Init(_ context.Context, count int) error {
	if count <= 0 {
		return fmt.Errorf("init with count %d: %w", count, repository.ErrInvalidState)
	}

	s.mu.Lock()
	old, oldPresent := s.items, s.present
	s.count = count
	s.items = nil
	s.present = nil
	s.mu.Unlock()

	s.releaseAll(old, oldPresent)
	metrics.FrameStoreOperationsTotal.WithLabelValues(metrics.StoreBackendMemory, metrics.StoreOpInit, metrics.CacheStatusSuccess).Inc()
	return nil
}

func (s *MemoryStore[T]) Put(_ context.Context, index int, item T) error {
	s.mu.Lock()
	if s.count == 0 {
		s.mu.Unlock()
		return repository.ErrInvalidState
	}
	index = model.NormalizeIndex(index, s.count)
	if index >= len(s.items) {
		grown := make([]T, index+1)
		copy(grown, s.items)
		s.items = grown
		present := make([]bool, index+1)
		copy(present, s.present)
		s.present = present
	}

	old, hadOld := s.items[index], s.present[index]
	s.life.RetainItem(item)
	s.items[index] = item
	s.present[index] = true
	s.mu.Unlock()

	if hadOld {
		if err := s.life.ReleaseItem(old); err != nil {
			return fmt.Errorf("release overwritten frame %d: %w", index, err)
		}
	}
	metrics.FrameStoreOperationsTotal.WithLabelValues(metrics.StoreBackendMemory, metrics.StoreOpPut, metrics.CacheStatusSuccess).Inc()
	return nil
}

func (s *MemoryStore[T]) Get(_ context.Context, index int) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var zero T
	if s.count == 0 {
		return zero, repository.ErrInvalidState
	}
	index = model.NormalizeIndex(index, s.count)
	if index >= len(s.items) || !s.present[index] {
		metrics.FrameStoreOperationsTotal.WithLabelValues(metrics.StoreBackendMemory, metrics.StoreOpGet, metrics.CacheStatusMiss).Inc()
		return zero, fmt.Errorf("frame %d: %w", index, repository.ErrFrameNotFound)
	}
	item := s.items[index]
	s.life.RetainItem(item)
	metrics.FrameStoreOperationsTotal.WithLabelValues(metrics.StoreBackendMemory, metrics.StoreOpGet, metrics.CacheStatusHit).Inc()
	return item, nil
}

// Range snapshots the requested run under the read lock. A gap anywhere in
// the run fails the whole call with ErrFrameNotFound.
func (s *MemoryStore[T]) Range(_ context.Context, from, to int) (repository.Iterator[T], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.count == 0 {
		return nil, repository.ErrInvalidState
	}
	from = model.NormalizeIndex(from, s.count)
	to = model.NormalizeIndex(to, s.count)

	indices := rangeIndices(from, to, s.count)
	for _, i := range indices {
		if i >= len(s.items) || !s.present[i] {
			metrics.FrameStoreOperationsTotal.WithLabelValues(metrics.StoreBackendMemory, metrics.StoreOpRange, metrics.CacheStatusError).Inc()
			return nil, fmt.Errorf("frame %d: %w", i, repository.ErrFrameNotFound)
		}
	}

	items := make([]T, len(indices))
	for k, i := range indices {
		items[k] = s.items[i]
		s.life.RetainItem(items[k])
	}
	metrics.FrameStoreOperationsTotal.WithLabelValues(metrics.StoreBackendMemory, metrics.StoreOpRange, metrics.CacheStatusSuccess).Inc()
	return newSliceIterator(items, indices, s.life), nil
}

func (s *MemoryStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

func (s *MemoryStore[T]) Wraps() bool {
	return true
}

// Drop releases every stored item and returns the store to its state
// before Init.
func (s *MemoryStore[T]) Drop(_ context.Context) error {
	s.mu.Lock()
	old, oldPresent := s.items, s.present
	s.count = 0
	s.items = nil
	s.present = nil
	s.mu.Unlock()

	return s.releaseAll(old, oldPresent)
}

func (s *MemoryStore[T]) releaseAll(items []T, present []bool) error {
	var errs []error
	for i, item := range items {
		if present[i] {
			if err := s.life.ReleaseItem(item); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
