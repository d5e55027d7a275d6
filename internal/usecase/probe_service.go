package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hszk-dev/framestream/internal/decoder"
	"github.com/hszk-dev/framestream/internal/domain/model"
	"github.com/hszk-dev/framestream/internal/domain/repository"
)

const (
	// DefaultMaxRetries is the default maximum number of retry attempts before marking as failed.
	DefaultMaxRetries = 3
)

// Prober reads stream properties of a local media file.
// decoder.FFmpegDecoder satisfies it.
type Prober interface {
	Probe(ctx context.Context, path string) (*decoder.ProbeResult, error)
}

// ProbeServiceConfig holds configuration for ProbeService.
type ProbeServiceConfig struct {
	// TempDir is the base directory for downloaded blobs.
	TempDir string
	// MaxRetries is the maximum number of retry attempts before marking media as failed.
	MaxRetries int
}

// DefaultProbeServiceConfig returns the default configuration.
func DefaultProbeServiceConfig() ProbeServiceConfig {
	return ProbeServiceConfig{
		TempDir:    os.TempDir(),
		MaxRetries: DefaultMaxRetries,
	}
}

// ProbeService defines the interface for media probing operations.
type ProbeService interface {
	// ProcessTask handles a probe task from the message queue.
	// Returns nil on success or permanent failure (max retries exceeded).
	// Returns error for transient failures that should trigger a retry.
	ProcessTask(ctx context.Context, task repository.ProbeTask) error
}

type probeService struct {
	repo    repository.MediaRepository
	storage repository.ObjectStorage
	prober  Prober
	logger  *slog.Logger

	tempDir    string
	maxRetries int
}

// NewProbeService creates a new ProbeService instance.
func NewProbeService(
	repo repository.MediaRepository,
	storage repository.ObjectStorage,
	prober Prober,
	cfg ProbeServiceConfig,
	logger *slog.Logger,
) ProbeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &probeService{
		repo:       repo,
		storage:    storage,
		prober:     prober,
		logger:     logger.With("component", "probe_service"),
		tempDir:    cfg.TempDir,
		maxRetries: cfg.MaxRetries,
	}
}

// ProcessTask downloads the blob while hashing it, reads its stream
// properties and marks the media READY. Content already probed under
// another media id reuses that probe result.
func (s *probeService) ProcessTask(ctx context.Context, task repository.ProbeTask) error {
	logger := s.logger.With("media_id", task.MediaID, "retry_count", task.RetryCount)

	if task.RetryCount >= s.maxRetries {
		if err := s.markFailed(ctx, task.MediaID); err != nil {
			// The media stays PROBING; the message is still acked.
			logger.Error("failed to mark media as failed", "error", err)
		}
		return nil
	}

	workDir, err := s.createWorkDir(task.MediaID)
	if err != nil {
		return fmt.Errorf("create work directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	localPath, hash, err := downloadBlob(ctx, s.storage, task.ObjectKey, workDir)
	if err != nil {
		return fmt.Errorf("download blob: %w", err)
	}

	info, err := s.probe(ctx, task.MediaID, localPath, hash)
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}

	if err := s.markReady(ctx, task.MediaID, info, hash); err != nil {
		return fmt.Errorf("update media status: %w", err)
	}

	logger.Info("media probed",
		"frames", info.FrameCount,
		"fps", info.FPS,
		"width", info.Width,
		"height", info.Height,
	)
	return nil
}

func (s *probeService) probe(ctx context.Context, mediaID uuid.UUID, localPath, hash string) (model.ProbeInfo, error) {
	existing, err := s.repo.GetByHash(ctx, hash)
	switch {
	case err == nil && existing.ID != mediaID:
		s.logger.Debug("reusing probe result of identical media",
			"media_id", mediaID,
			"source_id", existing.ID,
		)
		return model.ProbeInfo{
			FrameCount: existing.FrameCount,
			FPS:        existing.FPS,
			Width:      existing.Width,
			Height:     existing.Height,
		}, nil
	case err != nil && !errors.Is(err, repository.ErrMediaNotFound):
		s.logger.Warn("hash lookup failed, probing file", "media_id", mediaID, "error", err)
	}

	res, err := s.prober.Probe(ctx, localPath)
	if err != nil {
		return model.ProbeInfo{}, err
	}
	return model.ProbeInfo{
		FrameCount: res.FrameCount,
		FPS:        res.FPS,
		Width:      res.Width,
		Height:     res.Height,
	}, nil
}

func (s *probeService) createWorkDir(mediaID uuid.UUID) (string, error) {
	workDir := filepath.Join(s.tempDir, "framestream", mediaID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}
	return workDir, nil
}

// markReady stores the probe result and moves the media to READY.
// Media no longer PROBING is left untouched.
func (s *probeService) markReady(ctx context.Context, mediaID uuid.UUID, info model.ProbeInfo, hash string) error {
	media, err := s.repo.GetByID(ctx, mediaID)
	if err != nil {
		return fmt.Errorf("get media: %w", err)
	}

	if media.Status != model.StatusProbing {
		return nil
	}

	if err := media.SetProbe(info, hash); err != nil {
		return err
	}
	if err := media.TransitionTo(model.StatusReady); err != nil {
		return fmt.Errorf("transition to ready: %w", err)
	}

	if err := s.repo.Update(ctx, media); err != nil {
		return fmt.Errorf("update media: %w", err)
	}
	return nil
}

func (s *probeService) markFailed(ctx context.Context, mediaID uuid.UUID) error {
	media, err := s.repo.GetByID(ctx, mediaID)
	if err != nil {
		return fmt.Errorf("get media: %w", err)
	}

	if media.Status != model.StatusProbing {
		return nil
	}

	if err := media.TransitionTo(model.StatusFailed); err != nil {
		return fmt.Errorf("transition to failed: %w", err)
	}

	if err := s.repo.Update(ctx, media); err != nil {
		return fmt.Errorf("update media: %w", err)
	}
	return nil
}
