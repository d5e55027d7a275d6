package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/hszk-dev/framestream/internal/domain/model"
)

// MediaRepository defines the interface for media metadata persistence.
// Implementations should be provided by the infrastructure layer (e.g., PostgreSQL).
type MediaRepository interface {
	// Create persists a new media entity.
	// Returns ErrDuplicateMedia if the media already exists.
	Create(ctx context.Context, media *model.Media) error

	// GetByID retrieves a media record by its unique identifier.
	// Returns nil and ErrMediaNotFound if the media does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Media, error)

	// GetByHash retrieves a ready media record by content hash.
	// Returns nil and ErrMediaNotFound if no media with that hash exists.
	GetByHash(ctx context.Context, hash string) (*model.Media, error)

	// List returns media records ordered by creation time, newest first.
	List(ctx context.Context, limit, offset int) ([]*model.Media, error)

	// Update persists changes to an existing media entity.
	// Returns ErrMediaNotFound if the media does not exist.
	Update(ctx context.Context, media *model.Media) error

	// Delete removes a media record.
	// Returns ErrMediaNotFound if the media does not exist.
	Delete(ctx context.Context, id uuid.UUID) error
}
