package framestore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/hszk-dev/framestream/internal/domain/model"
	"github.com/hszk-dev/framestream/internal/domain/repository"
	"github.com/hszk-dev/framestream/internal/infrastructure/metrics"
	"github.com/redis/go-redis/v9"
)

const (
	// frameKeyPrefix is the prefix for frame keys in Redis.
	frameKeyPrefix = "frames:"

	scanBatch = 500
)

// RedisStore keeps encoded frames in Redis under frames:{namespace}:{index}.
// Range reads the whole run with one MGET and wraps around the end of the
// index space. With a positive ttl every read pushes the expiry of the keys
// it touched forward, so frames of a session in use do not expire.
type RedisStore struct {
	client    redis.UniversalClient
	namespace string
	ttl       time.Duration

	mu    sync.RWMutex
	count int
}

var _ repository.FrameStore[*model.Frame] = (*RedisStore)(nil)

// NewRedisStore creates a store for one media file. Keys expire after ttl
// without reads when it is positive.
func NewRedisStore(client redis.UniversalClient, namespace string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client:    client,
		namespace: namespace,
		ttl:       ttl,
	}
}

func (s *RedisStore) buildKey(index int) string {
	return frameKeyPrefix + s.namespace + ":" + strconv.Itoa(index)
}

// Init deletes every frame key of the namespace.
func (s *RedisStore) Init(ctx context.Context, count int) error {
	if count <= 0 {
		return fmt.Errorf("init with count %d: %w", count, repository.ErrInvalidState)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.clear(ctx)
	metrics.FrameStoreOperationsTotal.WithLabelValues(metrics.StoreBackendRedis, metrics.StoreOpInit, metrics.StatusLabel(err)).Inc()
	if err != nil {
		return err
	}
	s.count = count
	return nil
}

func (s *RedisStore) clear(ctx context.Context) error {
	pattern := frameKeyPrefix + s.namespace + ":*"
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (s *RedisStore) Put(ctx context.Context, index int, f *model.Frame) error {
	count := s.Len()
	if count == 0 {
		return repository.ErrInvalidState
	}
	index = model.NormalizeIndex(index, count)

	data, err := EncodeFrame(f)
	if err != nil {
		return fmt.Errorf("encode frame %d: %w", index, err)
	}

	err = s.client.Set(ctx, s.buildKey(index), data, s.ttl).Err()
	metrics.FrameStoreOperationsTotal.WithLabelValues(metrics.StoreBackendRedis, metrics.StoreOpPut, metrics.StatusLabel(err)).Inc()
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, index int) (*model.Frame, error) {
	count := s.Len()
	if count == 0 {
		return nil, repository.ErrInvalidState
	}
	index = model.NormalizeIndex(index, count)

	var cmd *redis.StringCmd
	if s.ttl > 0 {
		cmd = s.client.GetEx(ctx, s.buildKey(index), s.ttl)
	} else {
		cmd = s.client.Get(ctx, s.buildKey(index))
	}
	data, err := cmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.FrameStoreOperationsTotal.WithLabelValues(metrics.StoreBackendRedis, metrics.StoreOpGet, metrics.CacheStatusMiss).Inc()
			return nil, fmt.Errorf("frame %d: %w", index, repository.ErrFrameNotFound)
		}
		metrics.FrameStoreOperationsTotal.WithLabelValues(metrics.StoreBackendRedis, metrics.StoreOpGet, metrics.CacheStatusError).Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}
	metrics.FrameStoreOperationsTotal.WithLabelValues(metrics.StoreBackendRedis, metrics.StoreOpGet, metrics.CacheStatusHit).Inc()

	f, err := DecodeFrame(data)
	if err != nil {
		return nil, fmt.Errorf("decode frame %d: %w", index, err)
	}
	return f, nil
}

// Range returns frames [from, to], wrapping to the start of the index
// space when from > to.
func (s *RedisStore) Range(ctx context.Context, from, to int) (repository.Iterator[*model.Frame], error) {
	count := s.Len()
	if count == 0 {
		return nil, repository.ErrInvalidState
	}
	from = model.NormalizeIndex(from, count)
	to = model.NormalizeIndex(to, count)

	indices := rangeIndices(from, to, count)
	keys := make([]string, len(indices))
	for k, i := range indices {
		keys[k] = s.buildKey(i)
	}

	values, err := s.mget(ctx, keys)
	metrics.FrameStoreOperationsTotal.WithLabelValues(metrics.StoreBackendRedis, metrics.StoreOpRange, metrics.StatusLabel(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	frames := make([]*model.Frame, 0, len(values))
	release := func() {
		for _, f := range frames {
			_ = f.Release()
		}
	}
	for k, v := range values {
		str, ok := v.(string)
		if !ok {
			release()
			return nil, fmt.Errorf("frame %d: %w", indices[k], repository.ErrFrameNotFound)
		}
		f, err := DecodeFrame([]byte(str))
		if err != nil {
			release()
			return nil, fmt.Errorf("decode frame %d: %w", indices[k], err)
		}
		frames = append(frames, f)
	}
	return newSliceIterator(frames, indices, FrameLifecycle()), nil
}

// mget reads keys and, with a positive ttl, refreshes their expiry in the
// same round trip.
func (s *RedisStore) mget(ctx context.Context, keys []string) ([]any, error) {
	if s.ttl <= 0 {
		return s.client.MGet(ctx, keys...).Result()
	}

	var values *redis.SliceCmd
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		values = pipe.MGet(ctx, keys...)
		for _, key := range keys {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values.Val(), nil
}

func (s *RedisStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

func (s *RedisStore) Wraps() bool {
	return true
}

// Drop deletes every key of the namespace.
func (s *RedisStore) Drop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.clear(ctx); err != nil {
		return err
	}
	s.count = 0
	return nil
}
