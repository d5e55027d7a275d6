package framestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{in: "memory", want: BackendMemory},
		{in: "bolt", want: BackendBolt},
		{in: "redis", want: BackendRedis},
		{in: "", wantErr: true},
		{in: "Memory", wantErr: true},
		{in: "s3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBackend(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownBackend) {
					t.Errorf("ParseBackend(%q) error = %v, want ErrUnknownBackend", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseBackend(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestFactory_Open(t *testing.T) {
	db, err := OpenBolt(filepath.Join(t.TempDir(), "frames.db"), time.Second)
	if err != nil {
		t.Fatalf("OpenBolt failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	_, client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	tests := []struct {
		name    string
		factory *Factory
		wraps   bool
	}{
		{name: "memory", factory: NewMemoryFactory(), wraps: true},
		{name: "bolt", factory: NewBoltFactory(db), wraps: false},
		{name: "redis", factory: NewRedisFactory(client, time.Minute), wraps: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store, err := tt.factory.Open("media-1")
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if store.Wraps() != tt.wraps {
				t.Errorf("Wraps() = %v, want %v", store.Wraps(), tt.wraps)
			}
			if string(tt.factory.Backend()) != tt.name {
				t.Errorf("Backend() = %q, want %q", tt.factory.Backend(), tt.name)
			}

			fillStore(t, store, 3)
			if err := store.Drop(ctx); err != nil {
				t.Fatalf("Drop failed: %v", err)
			}
			if store.Len() != 0 {
				t.Errorf("Len() after Drop = %d, want 0", store.Len())
			}
		})
	}
}

func TestFactory_OpenUnknown(t *testing.T) {
	f := &Factory{backend: "tape"}
	if _, err := f.Open("x"); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("Open() error = %v, want ErrUnknownBackend", err)
	}
}
