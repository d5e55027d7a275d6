// Package framecache keeps a bounded, direction-aware window of frames
// resident in memory in front of a frame store and refills it ahead of
// the playback cursor.
package framecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hszk-dev/framestream/internal/domain/model"
	"github.com/hszk-dev/framestream/internal/domain/repository"
	"github.com/hszk-dev/framestream/internal/infrastructure/metrics"
	"golang.org/x/sync/singleflight"
)

const prefetchKey = "prefetch"

// Cache serves items by frame index from a sliding window over a FrameStore.
//
// Streaming reads (Get with once=false) move the window: a miss rebuilds it
// around the index, and an access closer than Threshold to the leading edge
// reads the next run from the store and trims the trailing edge. Only one
// prefetch runs at a time; callers arriving meanwhile wait for it and share
// its outcome. Once-reads never move the window.
type Cache[T any] struct {
	store repository.FrameStore[T]
	cfg   Config
	life  repository.Lifecycle[T]

	logger *slog.Logger
	name   string

	flight singleflight.Group

	mu  sync.RWMutex
	win window[T]
	dir model.Direction
	gen uint64
}

// New creates a Cache over store.
func New[T any](store repository.FrameStore[T], cfg Config, opts ...Option[T]) *Cache[T] {
	c := &Cache[T]{
		store:  store,
		cfg:    cfg.withDefaults(),
		logger: slog.Default(),
		name:   "default",
		dir:    model.Forward,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "framecache", "cache", c.name)
	return c
}

// Prepare sizes the underlying store for count frames and drops the
// current window.
func (c *Cache[T]) Prepare(ctx context.Context, count int) error {
	if err := c.store.Init(ctx, count); err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	c.mu.Lock()
	evicted := c.win.items
	c.win = window[T]{}
	c.gen++
	c.mu.Unlock()

	c.release(evicted)
	return nil
}

// Reset drops the window and releases every resident item. The store is
// left as it is.
func (c *Cache[T]) Reset() {
	c.mu.Lock()
	evicted := c.win.items
	c.win = window[T]{}
	c.gen++
	c.mu.Unlock()

	c.release(evicted)
}

// Push writes item through to the store. A resident item at the same index
// is replaced by item and released, and any window transition planned
// before the write is discarded and planned again.
func (c *Cache[T]) Push(ctx context.Context, index int, item T) error {
	if err := c.store.Put(ctx, index, item); err != nil {
		return err
	}
	n := c.store.Len()
	if n == 0 {
		return nil
	}
	index = model.NormalizeIndex(index, n)

	c.mu.Lock()
	old, ok := c.win.get(index)
	if ok {
		c.life.RetainItem(item)
		c.win.items[index-c.win.lo] = item
	}
	c.gen++
	c.mu.Unlock()

	if ok {
		c.release([]T{old})
	}
	return nil
}

// Len returns the size of the index space.
func (c *Cache[T]) Len() int {
	return c.store.Len()
}

// Config returns the window geometry.
func (c *Cache[T]) Config() Config {
	return c.cfg
}

// Direction returns the current playback direction.
func (c *Cache[T]) Direction() model.Direction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dir
}

// SetDirection changes which window edge is treated as leading. The
// resident window is kept.
func (c *Cache[T]) SetDirection(d model.Direction) error {
	if !d.Valid() {
		return model.ErrInvalidDirection
	}
	c.mu.Lock()
	c.dir = d
	c.mu.Unlock()
	return nil
}

// Resident returns the resident indices in ascending order.
func (c *Cache[T]) Resident() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.win.indices()
}

// Finalize rebuilds the window centered on center, clamped at both ends of
// the index space. Indices already resident are kept, so a repeated call
// changes nothing.
func (c *Cache[T]) Finalize(ctx context.Context, center int) error {
	n := c.store.Len()
	if n == 0 {
		return repository.ErrInvalidState
	}
	center = model.NormalizeIndex(center, n)

	_, _, err := c.run(ctx, noPin, func() (plan, bool) {
		lo, hi := centered(center, n, c.cfg.Radius)
		return plan{lo: lo, hi: hi, kind: planCenter}, true
	})
	return err
}

// Extend moves the leading edge one refill run further in the current
// direction, trimming the trailing edge back to the window size. An empty
// window is built around index 0.
func (c *Cache[T]) Extend(ctx context.Context) error {
	n := c.store.Len()
	if n == 0 {
		return repository.ErrInvalidState
	}

	_, _, err := c.run(ctx, noPin, func() (plan, bool) {
		if c.win.empty() {
			lo, hi := centered(0, n, c.cfg.Radius)
			return plan{lo: lo, hi: hi, kind: planCold}, true
		}
		lo, hi, ok := extended(c.win.lo, c.win.hi(), n, c.cfg.Radius, c.cfg.Total(), c.dir)
		return plan{lo: lo, hi: hi, kind: planExtend}, ok
	})
	return err
}

// Get returns the item at index.
//
// With once=false the window is prefetched for index first and the resident
// item is returned; ErrFrameNotFound means the store could not supply it.
// With once=true a resident item is returned if present, otherwise the item
// is read straight from the store and the window is left alone.
func (c *Cache[T]) Get(ctx context.Context, index int, once bool) (T, error) {
	var zero T

	n := c.store.Len()
	if n == 0 {
		return zero, repository.ErrInvalidState
	}
	index = model.NormalizeIndex(index, n)

	if once {
		return c.getOnce(ctx, index)
	}

	item, ok, err := c.prefetch(ctx, index)
	if err != nil {
		metrics.FrameLookupsTotal.WithLabelValues(c.name, metrics.LookupPathStream, metrics.CacheStatusError).Inc()
		return zero, err
	}
	if !ok {
		metrics.FrameLookupsTotal.WithLabelValues(c.name, metrics.LookupPathStream, metrics.CacheStatusMiss).Inc()
		return zero, fmt.Errorf("frame %d not resident after prefetch: %w", index, repository.ErrFrameNotFound)
	}
	metrics.FrameLookupsTotal.WithLabelValues(c.name, metrics.LookupPathStream, metrics.CacheStatusHit).Inc()
	return item, nil
}

func (c *Cache[T]) getOnce(ctx context.Context, index int) (T, error) {
	c.mu.RLock()
	item, ok := c.pin(index)
	c.mu.RUnlock()

	if ok {
		metrics.FrameLookupsTotal.WithLabelValues(c.name, metrics.LookupPathOnce, metrics.CacheStatusHit).Inc()
		return item, nil
	}

	item, err := c.store.Get(ctx, index)
	if err != nil {
		metrics.FrameLookupsTotal.WithLabelValues(c.name, metrics.LookupPathOnce, metrics.CacheStatusError).Inc()
		var zero T
		return zero, err
	}
	metrics.FrameLookupsTotal.WithLabelValues(c.name, metrics.LookupPathOnce, metrics.CacheStatusMiss).Inc()
	return item, nil
}

// prefetch makes sure index is resident with enough runway ahead of it and
// returns the item there, retained while the window still held it.
// Calls that join an in-flight prefetch take the item if the shared one
// covered them and otherwise try again.
func (c *Cache[T]) prefetch(ctx context.Context, index int) (T, bool, error) {
	for {
		// shared is reported to every caller of a flight that had joiners,
		// including the one that ran it, so track execution separately.
		var (
			ran    bool
			item   T
			pinned bool
		)
		_, err, _ := c.flight.Do(prefetchKey, func() (any, error) {
			ran = true
			var err error
			item, pinned, err = c.refill(ctx, index)
			return nil, err
		})

		if ran {
			metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightGroupPrefetch, metrics.SingleflightInitiated).Inc()
			return item, pinned, err
		}
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightGroupPrefetch, metrics.SingleflightShared).Inc()

		c.mu.RLock()
		item, pinned = c.pin(index)
		c.mu.RUnlock()
		if pinned {
			return item, true, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			var zero T
			return zero, false, ctxErr
		}
	}
}

// pin retains and returns the resident item at index. c.mu must be held.
func (c *Cache[T]) pin(index int) (T, bool) {
	item, ok := c.win.get(index)
	if ok {
		c.life.RetainItem(item)
	}
	return item, ok
}

func (c *Cache[T]) refill(ctx context.Context, index int) (T, bool, error) {
	n := c.store.Len()
	return c.run(ctx, index, func() (plan, bool) {
		if !c.win.contains(index) {
			lo, hi := centered(index, n, c.cfg.Radius)
			return plan{lo: lo, hi: hi, kind: planCold}, true
		}

		runway := c.win.hi() - index
		if c.dir == model.Backward {
			runway = index - c.win.lo
		}
		if runway >= c.cfg.Threshold {
			return plan{}, false
		}

		lo, hi, ok := extended(c.win.lo, c.win.hi(), n, c.cfg.Radius, c.cfg.Total(), c.dir)
		return plan{lo: lo, hi: hi, kind: planExtend}, ok
	})
}

// noPin tells run not to hand out any item.
const noPin = -1

// run plans a window transition under the read lock, reads the missing runs
// without holding any lock and applies the result atomically. A plan made
// stale by a concurrent transition or push is recomputed. Unless pin is
// noPin, the item at pin is retained under the same lock that left the
// window in its final state and returned.
func (c *Cache[T]) run(ctx context.Context, pin int, target func() (plan, bool)) (T, bool, error) {
	var zero T
	for {
		var (
			item   T
			pinned bool
		)
		c.mu.RLock()
		p, ok := target()
		if ok {
			p.fetch = c.win.missing(p.lo, p.hi)
			p.gen = c.gen
		} else if pin != noPin {
			item, pinned = c.pin(pin)
		}
		c.mu.RUnlock()

		if !ok {
			return item, pinned, nil
		}

		fetched, err := c.fetch(ctx, p)
		if err != nil {
			metrics.FramePrefetchesTotal.WithLabelValues(c.name, p.kind, metrics.CacheStatusError).Inc()
			return zero, false, err
		}

		res, applied := c.apply(p, fetched, pin)
		if !applied {
			c.discard(fetched)
			continue
		}

		c.release(res.evicted)
		metrics.FramePrefetchesTotal.WithLabelValues(c.name, p.kind, metrics.CacheStatusSuccess).Inc()
		if len(res.evicted) > 0 {
			c.logger.Debug("window moved",
				"kind", p.kind,
				"from", p.lo,
				"to", p.hi,
				"evicted", len(res.evicted),
			)
		}
		return res.item, res.pinned, nil
	}
}

// fetch reads every span of p from the store. On failure everything read
// so far is released and the window is left untouched.
func (c *Cache[T]) fetch(ctx context.Context, p plan) ([]T, error) {
	if len(p.fetch) == 0 {
		return nil, nil
	}

	start := time.Now()
	defer func() {
		metrics.FramePrefetchDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	}()

	var out []T
	for _, s := range p.fetch {
		c.logger.Debug("prefetch", "from", s.from, "to", s.to, "kind", p.kind)

		items, err := c.readSpan(ctx, s)
		out = append(out, items...)
		if err != nil {
			c.discard(out)
			return nil, fmt.Errorf("read frames %d..%d: %w", s.from, s.to, err)
		}
	}
	return out, nil
}

func (c *Cache[T]) readSpan(ctx context.Context, s span) (items []T, err error) {
	it, err := c.store.Range(ctx, s.from, s.to)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := it.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	items = make([]T, 0, s.len())
	want := s.from
	for it.Next() {
		if it.Index() != want {
			return items, fmt.Errorf("frame %d: %w", want, repository.ErrFrameNotFound)
		}
		items = append(items, it.Item())
		want++
	}
	if err := it.Err(); err != nil {
		return items, err
	}
	if want != s.to+1 {
		return items, fmt.Errorf("frame %d: %w", want, repository.ErrFrameNotFound)
	}
	return items, nil
}

// transition is the outcome of an applied plan.
type transition[T any] struct {
	evicted []T
	item    T
	pinned  bool
}

// apply installs the window [p.lo, p.hi] built from resident items and the
// freshly fetched ones, and pins the item at pin. It returns false when the
// window changed since p was planned.
func (c *Cache[T]) apply(p plan, fetched []T, pin int) (transition[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != p.gen {
		return transition[T]{}, false
	}

	items := make([]T, 0, p.hi-p.lo+1)
	next := 0
	for i := p.lo; i <= p.hi; i++ {
		if item, ok := c.win.get(i); ok {
			items = append(items, item)
			continue
		}
		items = append(items, fetched[next])
		next++
	}

	var res transition[T]
	for i, item := range c.win.items {
		idx := c.win.lo + i
		if idx < p.lo || idx > p.hi {
			res.evicted = append(res.evicted, item)
		}
	}

	c.win = window[T]{lo: p.lo, items: items}
	c.gen++
	if pin != noPin {
		res.item, res.pinned = c.pin(pin)
	}
	return res, true
}

// release drops the window's reference to each item. Failures are logged
// and counted; bookkeeping has already moved on.
func (c *Cache[T]) release(items []T) {
	for _, item := range items {
		err := c.life.ReleaseItem(item)
		metrics.FrameEvictionsTotal.WithLabelValues(c.name, metrics.StatusLabel(err)).Inc()
		if err != nil {
			c.logger.Warn("failed to release frame",
				"error", errors.Join(repository.ErrResourceRelease, err),
			)
		}
	}
}

// discard drops items that were read but never became resident.
func (c *Cache[T]) discard(items []T) {
	for _, item := range items {
		if err := c.life.ReleaseItem(item); err != nil {
			c.logger.Warn("failed to release unused frame",
				"error", errors.Join(repository.ErrResourceRelease, err),
			)
		}
	}
}
