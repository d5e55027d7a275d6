// Package pipeline feeds decoded frames into a frame cache.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hszk-dev/framestream/internal/decoder"
	"github.com/hszk-dev/framestream/internal/domain/repository"
	"github.com/hszk-dev/framestream/internal/infrastructure/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultBatchSize is the number of raw frames converted together.
	DefaultBatchSize = 30
	// DefaultWorkers bounds concurrent conversions within a batch.
	DefaultWorkers = 4
)

// ErrIncompleteDecode is returned when the decoder yields fewer frames than probed.
var ErrIncompleteDecode = errors.New("decoder produced fewer frames than probed")

// Sink receives the frames of one media file. framecache.Cache implements it.
type Sink[T any] interface {
	Prepare(ctx context.Context, count int) error
	Push(ctx context.Context, index int, item T) error
	Finalize(ctx context.Context, center int) error
}

// Converter turns a raw decoded picture into a cache item.
type Converter[T any] func(raw decoder.RawFrame) (T, error)

// Config controls batching and decode output.
type Config struct {
	BatchSize int
	Workers   int

	// AllowShort pads a short decode by repeating the last decoded frame
	// instead of failing with ErrIncompleteDecode.
	AllowShort bool

	// Decode is passed through to the decoder.
	Decode decoder.DecodeOptions
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize: DefaultBatchSize,
		Workers:   DefaultWorkers,
	}
}

// Source decodes a media file and pushes its frames into a Sink.
type Source[T any] struct {
	dec     decoder.Decoder
	sink    Sink[T]
	convert Converter[T]
	life    repository.Lifecycle[T]
	cfg     Config
	logger  *slog.Logger
}

// NewSource creates a Source. life describes the items produced by convert;
// the Source drops its own reference once an item has been pushed.
func NewSource[T any](
	dec decoder.Decoder,
	sink Sink[T],
	convert Converter[T],
	life repository.Lifecycle[T],
	cfg Config,
	logger *slog.Logger,
) *Source[T] {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source[T]{
		dec:     dec,
		sink:    sink,
		convert: convert,
		life:    life,
		cfg:     cfg,
		logger:  logger.With("component", "pipeline"),
	}
}

// Load probes path, sizes the sink, pushes every decoded frame and finally
// centers the sink's window on start.
func (s *Source[T]) Load(ctx context.Context, path string, start int) (*decoder.ProbeResult, error) {
	info, err := s.dec.Probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}
	count := info.FrameCount

	if err := s.sink.Prepare(ctx, count); err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}

	batch := make([]decoder.RawFrame, 0, s.cfg.BatchSize)
	var last decoder.RawFrame
	decoded, dropped := 0, 0

	opts := s.cfg.Decode
	opts.Probe = info
	err = s.dec.Decode(ctx, path, opts, func(raw decoder.RawFrame) error {
		if raw.Index >= count {
			dropped++
			return nil
		}
		decoded++
		last = raw
		batch = append(batch, raw)
		if len(batch) < s.cfg.BatchSize {
			return nil
		}
		err := s.flush(ctx, batch)
		batch = batch[:0]
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	if decoded < count {
		if !s.cfg.AllowShort || decoded == 0 {
			return nil, fmt.Errorf("%w: got %d of %d", ErrIncompleteDecode, decoded, count)
		}
		s.logger.Warn("padding short decode",
			"decoded", decoded,
			"expected", count,
		)
		for i := decoded; i < count; i++ {
			pad := last
			pad.Index = i
			batch = append(batch, pad)
			if len(batch) == s.cfg.BatchSize {
				if err := s.flush(ctx, batch); err != nil {
					return nil, err
				}
				batch = batch[:0]
			}
		}
	}

	if len(batch) > 0 {
		if err := s.flush(ctx, batch); err != nil {
			return nil, err
		}
	}

	if dropped > 0 {
		s.logger.Debug("dropped frames beyond probed count", "dropped", dropped, "count", count)
	}

	if err := s.sink.Finalize(ctx, start); err != nil {
		return nil, fmt.Errorf("finalize: %w", err)
	}

	s.logger.Info("media loaded",
		"path", path,
		"frames", count,
		"start", start,
	)
	return info, nil
}

// flush converts batch concurrently and pushes each item as soon as it is
// ready, so pushes arrive out of order.
func (s *Source[T]) flush(ctx context.Context, batch []decoder.RawFrame) error {
	start := time.Now()
	defer func() {
		metrics.DecodeBatchDuration.Observe(time.Since(start).Seconds())
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for _, raw := range batch {
		g.Go(func() error {
			item, err := s.convert(raw)
			if err != nil {
				return fmt.Errorf("convert frame %d: %w", raw.Index, err)
			}
			pushErr := s.sink.Push(gctx, raw.Index, item)
			if err := s.life.ReleaseItem(item); err != nil {
				s.logger.Warn("failed to release converted frame",
					"index", raw.Index,
					"error", errors.Join(repository.ErrResourceRelease, err),
				)
			}
			if pushErr != nil {
				return fmt.Errorf("push frame %d: %w", raw.Index, pushErr)
			}
			metrics.DecodedFramesTotal.Inc()
			return nil
		})
	}
	return g.Wait()
}
