package framecache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hszk-dev/framestream/internal/domain/repository"
)

// testItem is a frame stand-in. Every store read materializes a new one.
type testItem struct {
	index    int
	value    int
	releases atomic.Int32
}

// mockStore is an in-memory FrameStore that records range reads and can be
// made to fail or block.
type mockStore struct {
	mu      sync.Mutex
	count   int
	values  map[int]int
	ranges  [][2]int
	created []*testItem

	rangeErr error
	gate     chan struct{}
	entered  chan struct{}
}

func newMockStore(count int) *mockStore {
	s := &mockStore{count: count, values: make(map[int]int)}
	for i := 0; i < count; i++ {
		s.values[i] = i * 10
	}
	return s
}

func (s *mockStore) newItem(index int) *testItem {
	it := &testItem{index: index, value: s.values[index]}
	s.created = append(s.created, it)
	return it
}

func (s *mockStore) Init(_ context.Context, count int) error {
	if count <= 0 {
		return repository.ErrInvalidState
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count = count
	s.values = make(map[int]int)
	return nil
}

func (s *mockStore) Put(_ context.Context, index int, item *testItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[index%s.count] = item.value
	return nil
}

func (s *mockStore) Get(_ context.Context, index int) (*testItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[index]; !ok {
		return nil, repository.ErrFrameNotFound
	}
	return s.newItem(index), nil
}

func (s *mockStore) Range(_ context.Context, from, to int) (repository.Iterator[*testItem], error) {
	s.mu.Lock()
	gate, entered := s.gate, s.entered
	s.ranges = append(s.ranges, [2]int{from, to})
	err := s.rangeErr
	s.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	if from > to {
		return nil, repository.ErrInvalidRange
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	it := &mockIterator{pos: -1}
	for i := from; i <= to; i++ {
		if _, ok := s.values[i]; !ok {
			break
		}
		it.items = append(it.items, s.newItem(i))
	}
	return it, nil
}

func (s *mockStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *mockStore) Wraps() bool { return false }

func (s *mockStore) rangeCalls() [][2]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][2]int(nil), s.ranges...)
}

func (s *mockStore) remove(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, index)
}

func (s *mockStore) items() []*testItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*testItem(nil), s.created...)
}

type mockIterator struct {
	items []*testItem
	pos   int
}

func (it *mockIterator) Next() bool {
	if it.pos+1 >= len(it.items) {
		return false
	}
	it.pos++
	return true
}

func (it *mockIterator) Item() *testItem { return it.items[it.pos] }
func (it *mockIterator) Index() int      { return it.items[it.pos].index }
func (it *mockIterator) Err() error      { return nil }
func (it *mockIterator) Close() error    { return nil }

// releaseCounter counts release hook calls per item.
func releaseCounter() repository.Lifecycle[*testItem] {
	return repository.Lifecycle[*testItem]{
		Release: func(it *testItem) error {
			it.releases.Add(1)
			return nil
		},
	}
}

func span2(from, to int) [2]int { return [2]int{from, to} }

func seq(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func describe(r []int) string {
	if len(r) == 0 {
		return "[]"
	}
	return fmt.Sprintf("[%d..%d] (%d items)", r[0], r[len(r)-1], len(r))
}
