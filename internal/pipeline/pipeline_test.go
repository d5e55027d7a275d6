package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/hszk-dev/framestream/internal/decoder"
	"github.com/hszk-dev/framestream/internal/domain/model"
	"github.com/hszk-dev/framestream/internal/domain/repository"
	"github.com/hszk-dev/framestream/internal/framecache"
	"github.com/hszk-dev/framestream/internal/infrastructure/framestore"
)

// fakeDecoder probes count frames and decodes frames of them, each filled
// with its own index.
type fakeDecoder struct {
	count     int
	frames    int
	width     int
	height    int
	probeErr  error
	decodeErr error

	opts decoder.DecodeOptions
}

func (d *fakeDecoder) Probe(_ context.Context, _ string) (*decoder.ProbeResult, error) {
	if d.probeErr != nil {
		return nil, d.probeErr
	}
	return &decoder.ProbeResult{
		FrameCount: d.count,
		FPS:        25,
		Width:      d.width,
		Height:     d.height,
	}, nil
}

func (d *fakeDecoder) Decode(_ context.Context, _ string, opts decoder.DecodeOptions, fn func(decoder.RawFrame) error) error {
	d.opts = opts
	size := d.width * d.height * model.BytesPerPixel
	for i := range d.frames {
		data := make([]byte, size)
		for k := range data {
			data[k] = byte(i)
		}
		raw := decoder.RawFrame{
			Index:     i,
			Timestamp: time.Duration(i) * 40 * time.Millisecond,
			Width:     d.width,
			Height:    d.height,
			Data:      data,
		}
		if err := fn(raw); err != nil {
			return err
		}
	}
	return d.decodeErr
}

func newFakeDecoder(count, frames int) *fakeDecoder {
	return &fakeDecoder{count: count, frames: frames, width: 1, height: 1}
}

// labelConverter renders "index:source" where source is the frame the
// pixels came from.
func labelConverter(raw decoder.RawFrame) (string, error) {
	return fmt.Sprintf("%d:%d", raw.Index, raw.Data[0]), nil
}

// recordingSink records the calls made by a Source.
type recordingSink struct {
	mu        sync.Mutex
	prepared  []int
	pushed    map[int]string
	finalized []int
	pushErr   error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{pushed: make(map[int]string)}
}

func (s *recordingSink) Prepare(_ context.Context, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prepared = append(s.prepared, count)
	return nil
}

func (s *recordingSink) Push(_ context.Context, index int, item string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pushErr != nil {
		return s.pushErr
	}
	s.pushed[index] = item
	return nil
}

func (s *recordingSink) Finalize(_ context.Context, center int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized = append(s.finalized, center)
	return nil
}

func newTestSource[T any](dec decoder.Decoder, sink Sink[T], conv Converter[T], life repository.Lifecycle[T], cfg Config) *Source[T] {
	return NewSource(dec, sink, conv, life, cfg, nil)
}

func TestSource_Load(t *testing.T) {
	tests := []struct {
		name       string
		count      int
		frames     int
		allowShort bool
		wantErr    error
		wantPushed int
	}{
		{"exact decode", 100, 100, false, nil, 100},
		{"partial last batch", 47, 47, false, nil, 47},
		{"extra frames are dropped", 50, 55, false, nil, 50},
		{"short decode fails", 50, 40, false, ErrIncompleteDecode, 30},
		{"short decode padded", 50, 40, true, nil, 50},
		{"empty decode fails even when padding", 10, 0, true, ErrIncompleteDecode, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := newRecordingSink()
			cfg := DefaultConfig()
			cfg.AllowShort = tt.allowShort
			dec := newFakeDecoder(tt.count, tt.frames)
			src := newTestSource[string](dec, sink, labelConverter, repository.Lifecycle[string]{}, cfg)

			info, err := src.Load(context.Background(), "/media.mp4", 7)
			if dec.opts.Probe == nil || dec.opts.Probe.FrameCount != tt.count {
				t.Errorf("Decode got probe result %+v, want the one from Probe", dec.opts.Probe)
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Load() error = %v, want %v", err, tt.wantErr)
				}
				if len(sink.finalized) != 0 {
					t.Errorf("Finalize called after failed load: %v", sink.finalized)
				}
			} else {
				if err != nil {
					t.Fatalf("Load() unexpected error = %v", err)
				}
				if info.FrameCount != tt.count {
					t.Errorf("FrameCount = %d, want %d", info.FrameCount, tt.count)
				}
				if !slices.Equal(sink.finalized, []int{7}) {
					t.Errorf("finalized = %v, want [7]", sink.finalized)
				}
			}

			if !slices.Equal(sink.prepared, []int{tt.count}) {
				t.Errorf("prepared = %v, want [%d]", sink.prepared, tt.count)
			}
			if len(sink.pushed) != tt.wantPushed {
				t.Errorf("pushed %d frames, want %d", len(sink.pushed), tt.wantPushed)
			}
		})
	}
}

func TestSource_Load_PadsWithLastFrame(t *testing.T) {
	sink := newRecordingSink()
	cfg := DefaultConfig()
	cfg.AllowShort = true
	src := newTestSource[string](newFakeDecoder(50, 40), sink, labelConverter, repository.Lifecycle[string]{}, cfg)

	if _, err := src.Load(context.Background(), "/media.mp4", 0); err != nil {
		t.Fatalf("Load() unexpected error = %v", err)
	}

	for i := 40; i < 50; i++ {
		if want := fmt.Sprintf("%d:39", i); sink.pushed[i] != want {
			t.Errorf("pushed[%d] = %q, want %q", i, sink.pushed[i], want)
		}
	}
	if sink.pushed[39] != "39:39" {
		t.Errorf("pushed[39] = %q", sink.pushed[39])
	}
}

func TestSource_Load_Errors(t *testing.T) {
	probeErr := errors.New("probe failed")
	decodeErr := errors.New("decoder crashed")
	pushErr := errors.New("store down")
	convErr := errors.New("bad pixels")

	t.Run("probe error", func(t *testing.T) {
		dec := newFakeDecoder(10, 10)
		dec.probeErr = probeErr
		sink := newRecordingSink()
		src := newTestSource[string](dec, sink, labelConverter, repository.Lifecycle[string]{}, DefaultConfig())

		if _, err := src.Load(context.Background(), "/media.mp4", 0); !errors.Is(err, probeErr) {
			t.Fatalf("Load() error = %v, want %v", err, probeErr)
		}
		if len(sink.prepared) != 0 {
			t.Error("Prepare called after probe failure")
		}
	})

	t.Run("decode error", func(t *testing.T) {
		dec := newFakeDecoder(10, 10)
		dec.decodeErr = decodeErr
		src := newTestSource[string](dec, newRecordingSink(), labelConverter, repository.Lifecycle[string]{}, DefaultConfig())

		if _, err := src.Load(context.Background(), "/media.mp4", 0); !errors.Is(err, decodeErr) {
			t.Fatalf("Load() error = %v, want %v", err, decodeErr)
		}
	})

	t.Run("push error", func(t *testing.T) {
		sink := newRecordingSink()
		sink.pushErr = pushErr
		src := newTestSource[string](newFakeDecoder(10, 10), sink, labelConverter, repository.Lifecycle[string]{}, DefaultConfig())

		if _, err := src.Load(context.Background(), "/media.mp4", 0); !errors.Is(err, pushErr) {
			t.Fatalf("Load() error = %v, want %v", err, pushErr)
		}
		if len(sink.finalized) != 0 {
			t.Error("Finalize called after push failure")
		}
	})

	t.Run("convert error", func(t *testing.T) {
		conv := func(raw decoder.RawFrame) (string, error) {
			if raw.Index == 3 {
				return "", convErr
			}
			return labelConverter(raw)
		}
		src := newTestSource[string](newFakeDecoder(10, 10), newRecordingSink(), conv, repository.Lifecycle[string]{}, DefaultConfig())

		if _, err := src.Load(context.Background(), "/media.mp4", 0); !errors.Is(err, convErr) {
			t.Fatalf("Load() error = %v, want %v", err, convErr)
		}
	})
}

func TestSource_Load_IntoCache(t *testing.T) {
	ctx := context.Background()
	life := framestore.FrameLifecycle()
	store := framestore.NewMemoryStore(life)
	cache := framecache.New(store, framecache.DefaultConfig(), framecache.WithLifecycle(life))

	dec := newFakeDecoder(100, 100)
	dec.width, dec.height = 2, 2
	cfg := DefaultConfig()
	cfg.BatchSize = 16
	src := newTestSource[*model.Frame](dec, cache, FrameConverter, life, cfg)

	if _, err := src.Load(ctx, "/media.mp4", 50); err != nil {
		t.Fatalf("Load() unexpected error = %v", err)
	}

	want := make([]int, 0, 31)
	for i := 35; i <= 65; i++ {
		want = append(want, i)
	}
	if got := cache.Resident(); !slices.Equal(got, want) {
		t.Fatalf("Resident() = %v, want %v", got, want)
	}

	for _, tc := range []struct {
		index int
		refs  int
	}{
		{0, 1},
		{34, 1},
		{35, 2},
		{50, 2},
		{65, 2},
		{66, 1},
		{99, 1},
	} {
		f, err := cache.Get(ctx, tc.index, true)
		if err != nil {
			t.Fatalf("Get(%d) unexpected error = %v", tc.index, err)
		}
		// Get added one reference for this caller.
		if f.Refs() != tc.refs+1 {
			t.Errorf("frame %d refs = %d, want %d", tc.index, f.Refs(), tc.refs+1)
		}
		if f.Index != tc.index || f.Pix[0] != byte(tc.index) {
			t.Errorf("frame %d: index %d, pixel %d", tc.index, f.Index, f.Pix[0])
		}
		if err := f.Release(); err != nil {
			t.Errorf("Release() error = %v", err)
		}
	}
}

func TestFrameConverter(t *testing.T) {
	raw := decoder.RawFrame{
		Index:     4,
		Timestamp: 160 * time.Millisecond,
		Width:     2,
		Height:    1,
		Data:      []byte{1, 2, 3, 4, 5, 6, 7, 8},
	}

	f, err := FrameConverter(raw)
	if err != nil {
		t.Fatalf("FrameConverter() unexpected error = %v", err)
	}
	if f.Index != 4 || f.Timestamp != raw.Timestamp || f.Width != 2 || f.Height != 1 {
		t.Errorf("FrameConverter() = %+v", f)
	}
	if !slices.Equal(f.Pix, raw.Data) {
		t.Errorf("Pix = %v, want %v", f.Pix, raw.Data)
	}
	if f.Refs() != 1 {
		t.Errorf("Refs() = %d, want 1", f.Refs())
	}

	raw.Data = raw.Data[:5]
	if _, err := FrameConverter(raw); err == nil {
		t.Error("expected error for short pixel data")
	}
}
