package framecache

import (
	"log/slog"

	"github.com/hszk-dev/framestream/internal/domain/repository"
)

const (
	// DefaultRadius is the number of items kept on each side of the access point.
	DefaultRadius = 15
	// DefaultThreshold is the distance to the leading edge that triggers a refill.
	DefaultThreshold = 5
)

// Config holds the window geometry.
type Config struct {
	Radius    int
	Threshold int
}

// DefaultConfig returns the default window geometry: 31 resident items,
// refilled when fewer than 5 remain ahead of the access point.
func DefaultConfig() Config {
	return Config{
		Radius:    DefaultRadius,
		Threshold: DefaultThreshold,
	}
}

// Total is the maximum number of resident items.
func (c Config) Total() int {
	return 2*c.Radius + 1
}

func (c Config) withDefaults() Config {
	if c.Radius <= 0 {
		c.Radius = DefaultRadius
	}
	if c.Threshold < 0 {
		c.Threshold = DefaultThreshold
	}
	return c
}

// Option configures a Cache.
type Option[T any] func(*Cache[T])

// WithLogger sets the logger used for prefetch and release diagnostics.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(c *Cache[T]) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLifecycle sets the hooks used to share items that own resources.
// Resident items hold one reference, released exactly once on eviction;
// items returned by Get carry a reference owned by the caller.
func WithLifecycle[T any](l repository.Lifecycle[T]) Option[T] {
	return func(c *Cache[T]) {
		c.life = l
	}
}

// WithName labels the cache in metrics.
func WithName[T any](name string) Option[T] {
	return func(c *Cache[T]) {
		c.name = name
	}
}
