package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/hszk-dev/framestream/internal/domain/model"
	"github.com/hszk-dev/framestream/internal/domain/repository"
)

var (
	// ErrMediaAlreadyProbed is returned when probing is requested for media that is already READY or FAILED.
	ErrMediaAlreadyProbed = errors.New("media has already been probed")

	// ErrUploadIncomplete is returned when probing is requested before the blob was uploaded.
	ErrUploadIncomplete = errors.New("media upload has not completed")

	// ErrInvalidFileName is returned for an upload file name that is empty or contains a path.
	ErrInvalidFileName = errors.New("file name must be a plain, non-empty name")
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// CreateMediaInput contains the input parameters for creating a media record.
type CreateMediaInput struct {
	Name     string
	FileName string
}

// CreateMediaOutput contains the result of creating a media record.
type CreateMediaOutput struct {
	Media     *model.Media
	UploadURL string
}

// MediaService defines the interface for media business logic operations.
type MediaService interface {
	// CreateMedia creates media metadata and returns a presigned upload URL.
	CreateMedia(ctx context.Context, input CreateMediaInput) (*CreateMediaOutput, error)

	// TriggerProbe queues probing of an uploaded media file.
	// This operation is idempotent - calling it on media already being probed returns nil.
	TriggerProbe(ctx context.Context, mediaID uuid.UUID) error

	// GetMedia retrieves media information by ID.
	GetMedia(ctx context.Context, mediaID uuid.UUID) (*model.Media, error)

	// ListMedia returns media newest first.
	ListMedia(ctx context.Context, limit, offset int) ([]*model.Media, error)

	// DeleteMedia removes the uploaded blob and the record.
	DeleteMedia(ctx context.Context, mediaID uuid.UUID) error
}

// MediaServiceConfig holds configuration for MediaService.
type MediaServiceConfig struct {
	UploadURLExpiry time.Duration
}

// DefaultMediaServiceConfig returns the default configuration.
func DefaultMediaServiceConfig() MediaServiceConfig {
	return MediaServiceConfig{
		UploadURLExpiry: 15 * time.Minute,
	}
}

type mediaService struct {
	repo    repository.MediaRepository
	storage repository.ObjectStorage
	queue   repository.MessageQueue
	logger  *slog.Logger

	uploadURLExpiry time.Duration
}

// NewMediaService creates a new MediaService instance.
func NewMediaService(
	repo repository.MediaRepository,
	storage repository.ObjectStorage,
	queue repository.MessageQueue,
	cfg MediaServiceConfig,
	logger *slog.Logger,
) MediaService {
	if logger == nil {
		logger = slog.Default()
	}
	return &mediaService{
		repo:            repo,
		storage:         storage,
		queue:           queue,
		logger:          logger.With("component", "media_service"),
		uploadURLExpiry: cfg.UploadURLExpiry,
	}
}

func (s *mediaService) CreateMedia(ctx context.Context, input CreateMediaInput) (*CreateMediaOutput, error) {
	media, err := model.NewMedia(input.Name)
	if err != nil {
		return nil, err
	}

	if input.FileName == "" || path.Base(input.FileName) != input.FileName || input.FileName == "." || input.FileName == ".." {
		return nil, ErrInvalidFileName
	}

	key := originalKey(media.ID, input.FileName)

	uploadURL, err := s.storage.GeneratePresignedUploadURL(ctx, key, s.uploadURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("generate presigned upload URL: %w", err)
	}

	media.SetObjectKey(key)

	if err := s.repo.Create(ctx, media); err != nil {
		return nil, fmt.Errorf("create media: %w", err)
	}

	return &CreateMediaOutput{
		Media:     media,
		UploadURL: uploadURL,
	}, nil
}

// TriggerProbe moves the media to PROBING and publishes a ProbeTask.
// Idempotency: returns nil if the media is already being probed.
func (s *mediaService) TriggerProbe(ctx context.Context, mediaID uuid.UUID) error {
	media, err := s.repo.GetByID(ctx, mediaID)
	if err != nil {
		return err
	}

	switch media.Status {
	case model.StatusProbing:
		return nil
	case model.StatusReady, model.StatusFailed:
		return ErrMediaAlreadyProbed
	}

	if _, err := s.storage.Stat(ctx, media.ObjectKey); err != nil {
		if errors.Is(err, repository.ErrObjectNotFound) {
			return ErrUploadIncomplete
		}
		return fmt.Errorf("stat upload: %w", err)
	}

	if err := media.TransitionTo(model.StatusProbing); err != nil {
		return err
	}

	if err := s.repo.Update(ctx, media); err != nil {
		return fmt.Errorf("update media status: %w", err)
	}

	task := repository.ProbeTask{
		MediaID:   media.ID,
		ObjectKey: media.ObjectKey,
	}

	if err := s.queue.PublishProbeTask(ctx, task); err != nil {
		return fmt.Errorf("publish probe task: %w", err)
	}

	return nil
}

func (s *mediaService) GetMedia(ctx context.Context, mediaID uuid.UUID) (*model.Media, error) {
	return s.repo.GetByID(ctx, mediaID)
}

// ListMedia clamps limit to (0, MaxListLimit] and offset to >= 0.
func (s *mediaService) ListMedia(ctx context.Context, limit, offset int) ([]*model.Media, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	offset = max(offset, 0)

	media, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	return media, nil
}

// DeleteMedia removes the blob first so a failed blob delete leaves the
// record in place for a retry.
func (s *mediaService) DeleteMedia(ctx context.Context, mediaID uuid.UUID) error {
	media, err := s.repo.GetByID(ctx, mediaID)
	if err != nil {
		return err
	}

	if media.ObjectKey != "" {
		if err := s.storage.Delete(ctx, media.ObjectKey); err != nil {
			return fmt.Errorf("delete blob: %w", err)
		}
	}

	if err := s.repo.Delete(ctx, mediaID); err != nil {
		return fmt.Errorf("delete media: %w", err)
	}

	s.logger.Info("media deleted", "media_id", mediaID)
	return nil
}

// originalKey creates the storage key for uploaded media files.
// Format: originals/{media_id}/{filename}
func originalKey(mediaID uuid.UUID, filename string) string {
	return path.Join("originals", mediaID.String(), filename)
}
