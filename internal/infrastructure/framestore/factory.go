package framestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	bolt "go.etcd.io/bbolt"

	"github.com/hszk-dev/framestream/internal/domain/model"
	"github.com/hszk-dev/framestream/internal/domain/repository"
)

// Backend names a frame store implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendBolt   Backend = "bolt"
	BackendRedis  Backend = "redis"
)

var ErrUnknownBackend = errors.New("unknown frame store backend")

// ParseBackend parses a backend name.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(s); b {
	case BackendMemory, BackendBolt, BackendRedis:
		return b, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
	}
}

// Store is a frame store whose content can be discarded when a playback
// session ends.
type Store interface {
	repository.FrameStore[*model.Frame]
	Drop(ctx context.Context) error
}

var (
	_ Store = (*MemoryStore[*model.Frame])(nil)
	_ Store = (*BoltStore)(nil)
	_ Store = (*RedisStore)(nil)
)

// Factory opens one Store per media file on a configured backend.
type Factory struct {
	backend Backend
	db      *bolt.DB
	client  redis.UniversalClient
	ttl     time.Duration
}

func NewMemoryFactory() *Factory {
	return &Factory{backend: BackendMemory}
}

// NewBoltFactory stores each media file in its own bucket of db.
func NewBoltFactory(db *bolt.DB) *Factory {
	return &Factory{backend: BackendBolt, db: db}
}

// NewRedisFactory namespaces keys by media file. Keys expire after ttl when
// it is positive.
func NewRedisFactory(client redis.UniversalClient, ttl time.Duration) *Factory {
	return &Factory{backend: BackendRedis, client: client, ttl: ttl}
}

func (f *Factory) Backend() Backend {
	return f.backend
}

// Open returns the store for name.
func (f *Factory) Open(name string) (Store, error) {
	switch f.backend {
	case BackendMemory:
		return NewMemoryStore(FrameLifecycle()), nil
	case BackendBolt:
		return NewBoltStore(f.db, name)
	case BackendRedis:
		return NewRedisStore(f.client, name, f.ttl), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, f.backend)
	}
}
