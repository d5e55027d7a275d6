package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hszk-dev/framestream/internal/domain/model"
	"github.com/hszk-dev/framestream/internal/domain/repository"
	"github.com/hszk-dev/framestream/internal/infrastructure/metrics"
)

// DBTX is an interface that abstracts pgxpool.Pool and pgx.Tx for testability.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const mediaColumns = `id, name, hash, frame_count, fps, width, height, status, object_key, created_at, updated_at`

// MediaRepository implements repository.MediaRepository using PostgreSQL.
type MediaRepository struct {
	db DBTX
}

// NewMediaRepository creates a new MediaRepository instance.
func NewMediaRepository(db DBTX) *MediaRepository {
	return &MediaRepository{db: db}
}

// Create persists a new media entity.
func (r *MediaRepository) Create(ctx context.Context, media *model.Media) error {
	const query = `
		INSERT INTO media (` + mediaColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	countQuery(metrics.DBQueryInsert)
	_, err := r.db.Exec(ctx, query,
		media.ID,
		media.Name,
		nullString(media.Hash),
		media.FrameCount,
		media.FPS,
		media.Width,
		media.Height,
		media.Status.String(),
		nullString(media.ObjectKey),
		media.CreatedAt,
		media.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repository.ErrDuplicateMedia
		}
		return fmt.Errorf("failed to create media: %w", err)
	}

	return nil
}

// GetByID retrieves media by its unique identifier.
func (r *MediaRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Media, error) {
	const query = `
		SELECT ` + mediaColumns + `
		FROM media
		WHERE id = $1
	`

	countQuery(metrics.DBQuerySelect)
	media, err := scanMedia(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrMediaNotFound
		}
		return nil, fmt.Errorf("failed to get media by ID: %w", err)
	}

	return media, nil
}

// GetByHash returns the most recently probed ready media with the given
// content hash.
func (r *MediaRepository) GetByHash(ctx context.Context, hash string) (*model.Media, error) {
	const query = `
		SELECT ` + mediaColumns + `
		FROM media
		WHERE hash = $1 AND status = 'READY'
		ORDER BY updated_at DESC
		LIMIT 1
	`

	countQuery(metrics.DBQuerySelect)
	media, err := scanMedia(r.db.QueryRow(ctx, query, hash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrMediaNotFound
		}
		return nil, fmt.Errorf("failed to get media by hash: %w", err)
	}

	return media, nil
}

// List returns media ordered by creation time, newest first.
func (r *MediaRepository) List(ctx context.Context, limit, offset int) ([]*model.Media, error) {
	const query = `
		SELECT ` + mediaColumns + `
		FROM media
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	countQuery(metrics.DBQuerySelect)
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	defer rows.Close()

	var list []*model.Media
	for rows.Next() {
		media, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media: %w", err)
		}
		list = append(list, media)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating media: %w", err)
	}

	return list, nil
}

// Update persists changes to an existing media entity.
func (r *MediaRepository) Update(ctx context.Context, media *model.Media) error {
	const query = `
		UPDATE media
		SET name = $2, hash = $3, frame_count = $4, fps = $5, width = $6, height = $7,
			status = $8, object_key = $9, updated_at = $10
		WHERE id = $1
	`

	media.UpdatedAt = time.Now()

	countQuery(metrics.DBQueryUpdate)
	tag, err := r.db.Exec(ctx, query,
		media.ID,
		media.Name,
		nullString(media.Hash),
		media.FrameCount,
		media.FPS,
		media.Width,
		media.Height,
		media.Status.String(),
		nullString(media.ObjectKey),
		media.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update media: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrMediaNotFound
	}

	return nil
}

// Delete removes a media record.
func (r *MediaRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM media WHERE id = $1`

	countQuery(metrics.DBQueryDelete)
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete media: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrMediaNotFound
	}

	return nil
}

// scanMedia scans one row; pgx.Rows satisfies pgx.Row.
func scanMedia(row pgx.Row) (*model.Media, error) {
	var (
		media     model.Media
		status    string
		hash      *string
		objectKey *string
	)

	err := row.Scan(
		&media.ID,
		&media.Name,
		&hash,
		&media.FrameCount,
		&media.FPS,
		&media.Width,
		&media.Height,
		&status,
		&objectKey,
		&media.CreatedAt,
		&media.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	media.Status = model.Status(status)
	if hash != nil {
		media.Hash = *hash
	}
	if objectKey != nil {
		media.ObjectKey = *objectKey
	}

	return &media, nil
}

func countQuery(queryType string) {
	metrics.DBQueriesTotal.WithLabelValues(queryType, metrics.TableMedia).Inc()
}

// nullString returns nil for empty strings, otherwise returns a pointer to the string.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Compile-time verification that MediaRepository implements repository.MediaRepository.
var _ repository.MediaRepository = (*MediaRepository)(nil)
