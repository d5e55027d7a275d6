package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hszk-dev/framestream/internal/domain/model"
	"github.com/hszk-dev/framestream/internal/infrastructure/cache"
	"github.com/hszk-dev/framestream/internal/infrastructure/metrics"
	"golang.org/x/sync/singleflight"
)

// CachedMediaServiceConfig holds configuration for CachedMediaService.
type CachedMediaServiceConfig struct {
	// CacheTTL is the TTL for cached media metadata.
	CacheTTL time.Duration
}

// DefaultCachedMediaServiceConfig returns the default configuration.
func DefaultCachedMediaServiceConfig() CachedMediaServiceConfig {
	return CachedMediaServiceConfig{
		CacheTTL: 5 * time.Minute,
	}
}

// cachedMediaService wraps MediaService with a cache-aside layer for GetMedia.
type cachedMediaService struct {
	delegate MediaService
	cache    cache.MediaCache
	sfGroup  singleflight.Group
	logger   *slog.Logger

	cacheTTL time.Duration
}

// NewCachedMediaService creates a new CachedMediaService wrapping the provided MediaService.
func NewCachedMediaService(
	delegate MediaService,
	mediaCache cache.MediaCache,
	cfg CachedMediaServiceConfig,
	logger *slog.Logger,
) MediaService {
	if logger == nil {
		logger = slog.Default()
	}
	return &cachedMediaService{
		delegate: delegate,
		cache:    mediaCache,
		logger:   logger.With("component", "cached_media_service"),
		cacheTTL: cfg.CacheTTL,
	}
}

func (s *cachedMediaService) CreateMedia(ctx context.Context, input CreateMediaInput) (*CreateMediaOutput, error) {
	return s.delegate.CreateMedia(ctx, input)
}

// TriggerProbe invalidates the cache before delegating so a stale
// PENDING_UPLOAD entry is not served during the transition to PROBING.
func (s *cachedMediaService) TriggerProbe(ctx context.Context, mediaID uuid.UUID) error {
	s.invalidate(ctx, mediaID, "trigger probe")
	return s.delegate.TriggerProbe(ctx, mediaID)
}

func (s *cachedMediaService) ListMedia(ctx context.Context, limit, offset int) ([]*model.Media, error) {
	return s.delegate.ListMedia(ctx, limit, offset)
}

func (s *cachedMediaService) DeleteMedia(ctx context.Context, mediaID uuid.UUID) error {
	if err := s.delegate.DeleteMedia(ctx, mediaID); err != nil {
		return err
	}
	s.invalidate(ctx, mediaID, "delete")
	return nil
}

// GetMedia coalesces concurrent requests for the same media with singleflight.
func (s *cachedMediaService) GetMedia(ctx context.Context, mediaID uuid.UUID) (*model.Media, error) {
	result, err, shared := s.sfGroup.Do(mediaID.String(), func() (any, error) {
		return s.getMediaWithCache(ctx, mediaID)
	})

	if shared {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightGroupMedia, metrics.SingleflightShared).Inc()
	} else {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightGroupMedia, metrics.SingleflightInitiated).Inc()
	}

	if err != nil {
		return nil, err
	}

	// Callers may mutate the result; shared results must not alias.
	media := *result.(*model.Media)
	return &media, nil
}

func (s *cachedMediaService) getMediaWithCache(ctx context.Context, mediaID uuid.UUID) (*model.Media, error) {
	media, err := s.cache.Get(ctx, mediaID)
	if err != nil {
		s.logger.Warn("cache get failed, falling back to database",
			"media_id", mediaID,
			"error", err,
		)
	}
	if media != nil {
		return media, nil
	}

	media, err = s.delegate.GetMedia(ctx, mediaID)
	if err != nil {
		return nil, err
	}

	// Media still being probed changes soon; only settled states are cached.
	if media.Status == model.StatusProbing {
		return media, nil
	}

	if err := s.cache.Set(ctx, media, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache media",
			"media_id", mediaID,
			"error", err,
		)
	}

	return media, nil
}

func (s *cachedMediaService) invalidate(ctx context.Context, mediaID uuid.UUID, op string) {
	if err := s.cache.Delete(ctx, mediaID); err != nil {
		s.logger.Warn("failed to invalidate cache",
			"media_id", mediaID,
			"operation", op,
			"error", err,
		)
	}
}
