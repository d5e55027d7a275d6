package repository

import "errors"

var (
	// ErrMediaNotFound is returned when a media record cannot be found.
	ErrMediaNotFound = errors.New("media not found")

	// ErrDuplicateMedia is returned when attempting to create a media record that already exists.
	ErrDuplicateMedia = errors.New("media already exists")

	// ErrObjectNotFound is returned when a blob is missing from object storage.
	ErrObjectNotFound = errors.New("object not found")

	// ErrBucketNotFound is returned when the configured bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrFrameNotFound is returned when no frame has been stored at an index.
	ErrFrameNotFound = errors.New("frame not found")

	// ErrInvalidRange is returned for a from/to pair a frame store cannot serve.
	ErrInvalidRange = errors.New("invalid frame range")

	// ErrInvalidState is returned when a frame store or cache is used before
	// it has been sized, or when its index space is empty.
	ErrInvalidState = errors.New("frame index space not initialized")

	// ErrResourceRelease wraps failures of an item's release hook.
	ErrResourceRelease = errors.New("release evicted item")

	// ErrSessionNotFound is returned when no playback session is open for a media.
	ErrSessionNotFound = errors.New("playback session not found")
)
