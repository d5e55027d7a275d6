package repository

import (
	"context"
	"io"
	"time"
)

// ObjectStorage defines the interface for media blob storage.
// Implementations should be provided by the infrastructure layer (e.g., MinIO, S3).
type ObjectStorage interface {
	// GeneratePresignedUploadURL creates a presigned URL for direct client upload.
	// key is the object path within the bucket (e.g., "originals/{media_id}/clip.mp4").
	GeneratePresignedUploadURL(ctx context.Context, key string, expiry time.Duration) (string, error)

	// Download retrieves an object from the storage.
	// Returns ErrObjectNotFound if the object does not exist.
	// Caller is responsible for closing the returned ReadCloser.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Stat returns metadata of a stored object.
	// Returns ErrObjectNotFound if the object does not exist.
	Stat(ctx context.Context, key string) (*ObjectInfo, error)

	// Delete removes an object from the storage.
	Delete(ctx context.Context, key string) error
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}
