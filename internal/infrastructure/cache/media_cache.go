package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hszk-dev/framestream/internal/domain/model"
)

// MediaCache defines the interface for caching media metadata.
// Implementations should handle serialization/deserialization transparently.
type MediaCache interface {
	// Get retrieves media from cache by ID.
	// Returns nil, nil if the media is not found in cache (cache miss).
	Get(ctx context.Context, mediaID uuid.UUID) (*model.Media, error)

	// Set stores media in cache with the specified TTL.
	Set(ctx context.Context, media *model.Media, ttl time.Duration) error

	// Delete removes media from cache by ID.
	// Returns nil if the media was not in cache.
	Delete(ctx context.Context, mediaID uuid.UUID) error
}
