// Package player drives frame-by-frame playback over a frame cache.
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hszk-dev/framestream/internal/domain/model"
	"github.com/hszk-dev/framestream/internal/domain/repository"
	"github.com/hszk-dev/framestream/internal/infrastructure/metrics"
)

// DefaultFPS is the playback rate used when none is configured.
const DefaultFPS = 25

var ErrInvalidFPS = errors.New("fps must be positive")

// Painter displays one frame.
type Painter[T any] interface {
	Paint(ctx context.Context, index int, item T) error
}

// PainterFunc adapts a function to Painter.
type PainterFunc[T any] func(ctx context.Context, index int, item T) error

func (f PainterFunc[T]) Paint(ctx context.Context, index int, item T) error {
	return f(ctx, index, item)
}

// FrameSource is the part of framecache.Cache the player needs.
type FrameSource[T any] interface {
	Get(ctx context.Context, index int, once bool) (T, error)
	SetDirection(d model.Direction) error
	Finalize(ctx context.Context, center int) error
	Len() int
}

// State is a snapshot of the player.
type State struct {
	Position  int             `json:"position"`
	Direction model.Direction `json:"direction"`
	Playing   bool            `json:"playing"`
	FPS       float64         `json:"fps"`
	Frames    int             `json:"frames"`
}

// Player paints frames from a FrameSource at a fixed rate.
type Player[T any] struct {
	src     FrameSource[T]
	painter Painter[T]
	life    repository.Lifecycle[T]
	logger  *slog.Logger

	painting atomic.Bool

	mu      sync.Mutex
	pos     int
	dir     model.Direction
	fps     float64
	playing bool
	stopFn  context.CancelFunc
	done    chan struct{}
	err     error
}

// Option configures a Player.
type Option[T any] func(*Player[T])

// WithLifecycle releases each item once it has been painted.
func WithLifecycle[T any](l repository.Lifecycle[T]) Option[T] {
	return func(p *Player[T]) {
		p.life = l
	}
}

func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(p *Player[T]) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithFPS[T any](fps float64) Option[T] {
	return func(p *Player[T]) {
		if fps > 0 {
			p.fps = fps
		}
	}
}

// WithPosition sets the index considered painted before playback starts.
func WithPosition[T any](index int) Option[T] {
	return func(p *Player[T]) {
		p.pos = index
	}
}

// New creates a paused player moving forward.
func New[T any](src FrameSource[T], painter Painter[T], opts ...Option[T]) *Player[T] {
	p := &Player[T]{
		src:     src,
		painter: painter,
		logger:  slog.Default(),
		dir:     model.Forward,
		fps:     DefaultFPS,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "player")
	return p
}

// Play starts the playback loop. The loop outlives ctx's cancellation and
// runs until Pause or Close; ctx only contributes its values.
func (p *Player[T]) Play(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		return
	}
	p.startLocked(context.WithoutCancel(ctx))
}

func (p *Player[T]) startLocked(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	interval := time.Duration(float64(time.Second) / p.fps)

	p.playing = true
	p.err = nil
	p.stopFn = cancel
	p.done = done

	go p.loop(ctx, interval, done)
}

// loop fires a tick per interval without waiting for the previous paint;
// the painting guard drops ticks that overlap it.
func (p *Player[T]) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	var wg sync.WaitGroup
	defer close(done)
	defer wg.Wait()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			wg.Go(func() { p.tick(ctx) })
		}
	}
}

// tick paints the next frame in the current direction. A tick that finds
// the previous paint still running is dropped.
func (p *Player[T]) tick(ctx context.Context) {
	if !p.painting.CompareAndSwap(false, true) {
		metrics.PlayerTicksTotal.WithLabelValues(metrics.TickSkipped).Inc()
		return
	}
	defer p.painting.Store(false)

	p.mu.Lock()
	next := model.NormalizeIndex(p.pos+int(p.dir), p.src.Len())
	p.mu.Unlock()

	err := p.paint(ctx, next, false)
	switch {
	case err == nil:
		metrics.PlayerTicksTotal.WithLabelValues(metrics.TickPainted).Inc()
	case ctx.Err() != nil:
		// paused mid-paint
	case errors.Is(err, repository.ErrFrameNotFound):
		metrics.PlayerTicksTotal.WithLabelValues(metrics.TickError).Inc()
		p.stop()
		p.logger.Warn("frame missing, resetting window", "index", next, "error", err)

		p.mu.Lock()
		pos := p.pos
		p.mu.Unlock()
		if ferr := p.src.Finalize(context.WithoutCancel(ctx), pos); ferr != nil {
			p.fail(fmt.Errorf("reset window at %d: %w", pos, ferr))
		}
	default:
		metrics.PlayerTicksTotal.WithLabelValues(metrics.TickError).Inc()
		p.stop()
		p.fail(err)
	}
}

func (p *Player[T]) fail(err error) {
	p.logger.Error("playback stopped", "error", err)
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

// paint fetches index, hands it to the painter and advances the position.
func (p *Player[T]) paint(ctx context.Context, index int, once bool) error {
	item, err := p.src.Get(ctx, index, once)
	if err != nil {
		return fmt.Errorf("get frame %d: %w", index, err)
	}
	defer func() {
		if err := p.life.ReleaseItem(item); err != nil {
			p.logger.Warn("failed to release painted frame",
				"index", index,
				"error", errors.Join(repository.ErrResourceRelease, err),
			)
		}
	}()

	if err := p.painter.Paint(ctx, index, item); err != nil {
		return fmt.Errorf("paint frame %d: %w", index, err)
	}

	p.mu.Lock()
	p.pos = index
	p.mu.Unlock()
	return nil
}

// stop cancels the loop without waiting for it. It returns the channel
// closed when the loop exits, or nil when nothing was playing.
func (p *Player[T]) stop() chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return nil
	}
	p.playing = false
	p.stopFn()
	return p.done
}

// Pause stops playback and waits for the loop to exit.
func (p *Player[T]) Pause() {
	if done := p.stop(); done != nil {
		<-done
	}
}

// Toggle switches between playing and paused.
func (p *Player[T]) Toggle(ctx context.Context) {
	p.mu.Lock()
	playing := p.playing
	p.mu.Unlock()

	if playing {
		p.Pause()
		return
	}
	p.Play(ctx)
}

// SetDirection changes the playback direction.
func (p *Player[T]) SetDirection(d model.Direction) error {
	if err := p.src.SetDirection(d); err != nil {
		return err
	}
	p.mu.Lock()
	p.dir = d
	p.mu.Unlock()
	return nil
}

// SetFPS changes the playback rate, restarting the loop if it is running.
func (p *Player[T]) SetFPS(fps float64) error {
	if fps <= 0 {
		return ErrInvalidFPS
	}

	done := p.stop()
	if done != nil {
		<-done
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.fps = fps
	if done != nil && !p.playing {
		p.startLocked(context.Background())
	}
	return nil
}

// Step pauses playback and paints the neighbouring frame in direction d.
func (p *Player[T]) Step(ctx context.Context, d model.Direction) error {
	p.Pause()
	if err := p.SetDirection(d); err != nil {
		return err
	}

	p.mu.Lock()
	next := model.NormalizeIndex(p.pos+int(d), p.src.Len())
	p.mu.Unlock()

	return p.paint(ctx, next, false)
}

// Seek paints index straight from storage and recenters the window on it,
// so streaming continues from there.
func (p *Player[T]) Seek(ctx context.Context, index int) error {
	n := p.src.Len()
	if n == 0 {
		return repository.ErrInvalidState
	}
	index = model.NormalizeIndex(index, n)

	if err := p.paint(ctx, index, true); err != nil {
		return err
	}
	if err := p.src.Finalize(ctx, index); err != nil {
		return fmt.Errorf("recenter on %d: %w", index, err)
	}
	return nil
}

// Snapshot returns the current state.
func (p *Player[T]) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return State{
		Position:  p.pos,
		Direction: p.dir,
		Playing:   p.playing,
		FPS:       p.fps,
		Frames:    p.src.Len(),
	}
}

// Err returns the error that stopped playback, if any.
func (p *Player[T]) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Close stops playback.
func (p *Player[T]) Close() {
	p.Pause()
}
