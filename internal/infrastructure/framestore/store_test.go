package framestore

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/hszk-dev/framestream/internal/domain/model"
	"github.com/hszk-dev/framestream/internal/domain/repository"
)

// newTestFrame returns a 4x4 frame whose pixels all equal byte(index).
func newTestFrame(t *testing.T, index int) *model.Frame {
	t.Helper()

	f, err := model.NewFrame(index, time.Duration(index)*40*time.Millisecond, 4, 4)
	if err != nil {
		t.Fatalf("NewFrame failed: %v", err)
	}
	for i := range f.Pix {
		f.Pix[i] = byte(index)
	}
	return f
}

func fillStore(t *testing.T, store repository.FrameStore[*model.Frame], count int) {
	t.Helper()
	ctx := context.Background()

	if err := store.Init(ctx, count); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	// Out of order on purpose.
	for i := count - 1; i >= 0; i-- {
		f := newTestFrame(t, i)
		if err := store.Put(ctx, i, f); err != nil {
			t.Fatalf("Put(%d) failed: %v", i, err)
		}
		_ = f.Release()
	}
}

func collect(t *testing.T, it repository.Iterator[*model.Frame]) []int {
	t.Helper()

	var got []int
	for it.Next() {
		f := it.Item()
		if f.Pix[0] != byte(it.Index()) {
			t.Errorf("frame at %d has pixel %d", it.Index(), f.Pix[0])
		}
		got = append(got, it.Index())
		_ = f.Release()
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}
	if err := it.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return got
}

// testStoreContract exercises the behavior every backend shares.
func testStoreContract(t *testing.T, store repository.FrameStore[*model.Frame]) {
	ctx := context.Background()

	t.Run("before init", func(t *testing.T) {
		if store.Len() != 0 {
			t.Errorf("Len() = %d, want 0", store.Len())
		}
		if err := store.Put(ctx, 0, newTestFrame(t, 0)); !errors.Is(err, repository.ErrInvalidState) {
			t.Errorf("Put() before Init error = %v, want %v", err, repository.ErrInvalidState)
		}
		if err := store.Init(ctx, 0); !errors.Is(err, repository.ErrInvalidState) {
			t.Errorf("Init(0) error = %v, want %v", err, repository.ErrInvalidState)
		}
	})

	fillStore(t, store, 10)

	t.Run("length", func(t *testing.T) {
		if store.Len() != 10 {
			t.Errorf("Len() = %d, want 10", store.Len())
		}
	})

	t.Run("get normalizes index", func(t *testing.T) {
		tests := []struct {
			index int
			want  int
		}{
			{3, 3},
			{13, 3},
			{-1, 9},
		}
		for _, tt := range tests {
			f, err := store.Get(ctx, tt.index)
			if err != nil {
				t.Fatalf("Get(%d) failed: %v", tt.index, err)
			}
			if f.Index != tt.want || f.Pix[0] != byte(tt.want) {
				t.Errorf("Get(%d) = frame %d, want %d", tt.index, f.Index, tt.want)
			}
			_ = f.Release()
		}
	})

	t.Run("ascending range", func(t *testing.T) {
		it, err := store.Range(ctx, 2, 6)
		if err != nil {
			t.Fatalf("Range failed: %v", err)
		}
		if got, want := collect(t, it), []int{2, 3, 4, 5, 6}; !slices.Equal(got, want) {
			t.Errorf("Range(2, 6) = %v, want %v", got, want)
		}
	})

	t.Run("single item range", func(t *testing.T) {
		it, err := store.Range(ctx, 9, 9)
		if err != nil {
			t.Fatalf("Range failed: %v", err)
		}
		if got := collect(t, it); !slices.Equal(got, []int{9}) {
			t.Errorf("Range(9, 9) = %v, want [9]", got)
		}
	})

	t.Run("overwrite wins", func(t *testing.T) {
		f := newTestFrame(t, 4)
		f.Pix[0] = 200
		if err := store.Put(ctx, 4, f); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		_ = f.Release()

		got, err := store.Get(ctx, 4)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Pix[0] != 200 {
			t.Errorf("Get(4).Pix[0] = %d, want 200", got.Pix[0])
		}
		_ = got.Release()

		restore := newTestFrame(t, 4)
		_ = store.Put(ctx, 4, restore)
		_ = restore.Release()
	})

	t.Run("init clears previous media", func(t *testing.T) {
		if err := store.Init(ctx, 5); err != nil {
			t.Fatalf("Init failed: %v", err)
		}
		if _, err := store.Get(ctx, 1); !errors.Is(err, repository.ErrFrameNotFound) {
			t.Errorf("Get after Init error = %v, want %v", err, repository.ErrFrameNotFound)
		}
		if _, err := store.Range(ctx, 0, 2); !errors.Is(err, repository.ErrFrameNotFound) {
			t.Errorf("Range after Init error = %v, want %v", err, repository.ErrFrameNotFound)
		}
	})
}

// testStoreWrap checks the declared wrap capability at both boundaries
// of a ten frame space.
func testStoreWrap(t *testing.T, store repository.FrameStore[*model.Frame]) {
	ctx := context.Background()
	fillStore(t, store, 10)

	tests := []struct {
		name     string
		from, to int
		want     []int
	}{
		{"wrapping range", 8, 2, []int{8, 9, 0, 1, 2}},
		{"last to first", 9, 0, []int{9, 0}},
		{"unnormalized bounds", -2, 12, []int{8, 9, 0, 1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it, err := store.Range(ctx, tt.from, tt.to)
			if !store.Wraps() {
				if !errors.Is(err, repository.ErrInvalidRange) {
					t.Fatalf("Range(%d, %d) error = %v, want %v", tt.from, tt.to, err, repository.ErrInvalidRange)
				}
				return
			}
			if err != nil {
				t.Fatalf("Range(%d, %d) failed: %v", tt.from, tt.to, err)
			}
			if got := collect(t, it); !slices.Equal(got, tt.want) {
				t.Errorf("Range(%d, %d) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}
