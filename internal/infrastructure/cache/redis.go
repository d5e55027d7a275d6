package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hszk-dev/framestream/internal/domain/model"
	"github.com/hszk-dev/framestream/internal/infrastructure/metrics"
	"github.com/redis/go-redis/v9"
)

const (
	// mediaCacheKeyPrefix is the prefix for media cache keys in Redis.
	mediaCacheKeyPrefix = "media:"
)

// mediaJSON is the cached representation of Media, kept separate from the
// domain model so the model carries no serialization tags.
type mediaJSON struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Hash       string  `json:"hash,omitempty"`
	FrameCount int     `json:"frame_count"`
	FPS        float64 `json:"fps"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Status     string  `json:"status"`
	ObjectKey  string  `json:"object_key"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

// RedisMediaCache implements MediaCache using Redis as the backing store.
type RedisMediaCache struct {
	client redis.UniversalClient
}

var _ MediaCache = (*RedisMediaCache)(nil)

// NewRedisMediaCache creates a new Redis-backed media cache.
func NewRedisMediaCache(client redis.UniversalClient) *RedisMediaCache {
	return &RedisMediaCache{
		client: client,
	}
}

// Get retrieves media from Redis cache.
// Returns nil, nil on cache miss.
func (c *RedisMediaCache) Get(ctx context.Context, mediaID uuid.UUID) (*model.Media, error) {
	data, err := c.client.Get(ctx, c.buildKey(mediaID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			record(metrics.CacheOpGet, metrics.CacheStatusMiss)
			return nil, nil
		}
		record(metrics.CacheOpGet, metrics.CacheStatusError)
		return nil, fmt.Errorf("redis get: %w", err)
	}

	media, err := c.deserialize(data)
	if err != nil {
		record(metrics.CacheOpGet, metrics.CacheStatusError)
		return nil, fmt.Errorf("deserialize media: %w", err)
	}

	record(metrics.CacheOpGet, metrics.CacheStatusHit)
	return media, nil
}

// Set stores media in Redis cache with the specified TTL.
func (c *RedisMediaCache) Set(ctx context.Context, media *model.Media, ttl time.Duration) error {
	data, err := c.serialize(media)
	if err != nil {
		return fmt.Errorf("serialize media: %w", err)
	}

	err = c.client.Set(ctx, c.buildKey(media.ID), data, ttl).Err()
	record(metrics.CacheOpSet, metrics.StatusLabel(err))
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes media from Redis cache.
func (c *RedisMediaCache) Delete(ctx context.Context, mediaID uuid.UUID) error {
	err := c.client.Del(ctx, c.buildKey(mediaID)).Err()
	record(metrics.CacheOpDelete, metrics.StatusLabel(err))
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func record(op, status string) {
	metrics.CacheOperationsTotal.WithLabelValues(op, status, metrics.CacheTypeRedis).Inc()
}

// buildKey constructs the Redis key for a media record.
func (c *RedisMediaCache) buildKey(mediaID uuid.UUID) string {
	return mediaCacheKeyPrefix + mediaID.String()
}

func (c *RedisMediaCache) serialize(m *model.Media) ([]byte, error) {
	return json.Marshal(mediaJSON{
		ID:         m.ID.String(),
		Name:       m.Name,
		Hash:       m.Hash,
		FrameCount: m.FrameCount,
		FPS:        m.FPS,
		Width:      m.Width,
		Height:     m.Height,
		Status:     string(m.Status),
		ObjectKey:  m.ObjectKey,
		CreatedAt:  m.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:  m.UpdatedAt.Format(time.RFC3339Nano),
	})
}

func (c *RedisMediaCache) deserialize(data []byte) (*model.Media, error) {
	var v mediaJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(v.ID)
	if err != nil {
		return nil, fmt.Errorf("parse media ID: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, v.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &model.Media{
		ID:         id,
		Name:       v.Name,
		Hash:       v.Hash,
		FrameCount: v.FrameCount,
		FPS:        v.FPS,
		Width:      v.Width,
		Height:     v.Height,
		Status:     model.Status(v.Status),
		ObjectKey:  v.ObjectKey,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}, nil
}
