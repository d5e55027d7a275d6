package framestore

import (
	"context"
	"errors"
	"testing"

	"github.com/hszk-dev/framestream/internal/domain/model"
	"github.com/hszk-dev/framestream/internal/domain/repository"
)

func TestMemoryStore_Contract(t *testing.T) {
	testStoreContract(t, NewMemoryStore(FrameLifecycle()))
}

func TestMemoryStore_Wrap(t *testing.T) {
	store := NewMemoryStore(FrameLifecycle())
	if !store.Wraps() {
		t.Fatal("MemoryStore should wrap")
	}
	testStoreWrap(t, store)
}

func TestMemoryStore_References(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(FrameLifecycle())
	if err := store.Init(ctx, 3); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	f := newTestFrame(t, 1)
	if err := store.Put(ctx, 1, f); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if f.Refs() != 2 {
		t.Fatalf("Refs() after Put = %d, want 2", f.Refs())
	}
	_ = f.Release()

	got, err := store.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != f || f.Refs() != 2 {
		t.Fatalf("Get should hand out a new reference, Refs() = %d", f.Refs())
	}
	_ = got.Release()

	it, err := store.Range(ctx, 1, 1)
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	// Closing without consuming gives the reference back.
	if err := it.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if f.Refs() != 1 {
		t.Errorf("Refs() after unconsumed Close = %d, want 1", f.Refs())
	}

	replacement := newTestFrame(t, 1)
	if err := store.Put(ctx, 1, replacement); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	_ = replacement.Release()
	if !f.Released() {
		t.Error("overwritten frame should be released")
	}

	if err := store.Init(ctx, 3); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if !replacement.Released() {
		t.Error("Init should release stored frames")
	}
}

func TestMemoryStore_Drop(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(FrameLifecycle())
	if err := store.Init(ctx, 4); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	frames := make([]*model.Frame, 0, 2)
	for _, i := range []int{0, 2} {
		f := newTestFrame(t, i)
		if err := store.Put(ctx, i, f); err != nil {
			t.Fatalf("Put(%d) failed: %v", i, err)
		}
		_ = f.Release()
		frames = append(frames, f)
	}

	if err := store.Drop(ctx); err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	for _, f := range frames {
		if !f.Released() {
			t.Errorf("frame %d not released by Drop", f.Index)
		}
	}
	if store.Len() != 0 {
		t.Errorf("Len() after Drop = %d, want 0", store.Len())
	}
	if err := store.Put(ctx, 0, newTestFrame(t, 0)); !errors.Is(err, repository.ErrInvalidState) {
		t.Errorf("Put after Drop error = %v, want ErrInvalidState", err)
	}
}

func TestMemoryStore_PlainValues(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(repository.Lifecycle[string]{})
	_ = store.Init(ctx, 2)
	_ = store.Put(ctx, 0, "a")
	_ = store.Put(ctx, 3, "b")

	got, err := store.Get(ctx, 1)
	if err != nil || got != "b" {
		t.Errorf("Get(1) = %q, %v, want %q", got, err, "b")
	}
}
