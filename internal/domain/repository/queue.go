package repository

import (
	"context"

	"github.com/google/uuid"
)

// ProbeTask asks the worker to hash and probe an uploaded media blob.
type ProbeTask struct {
	MediaID    uuid.UUID `json:"media_id"`
	ObjectKey  string    `json:"object_key"`
	RetryCount int       `json:"retry_count"`
}

// MessageQueue defines the interface for message queue operations.
// Implementations should be provided by the infrastructure layer (e.g., RabbitMQ).
type MessageQueue interface {
	// PublishProbeTask sends a probe task to the queue.
	PublishProbeTask(ctx context.Context, task ProbeTask) error

	// ConsumeProbeTasks consumes probe tasks until ctx is cancelled.
	// The handler is called for each task; a handler error triggers a retry.
	ConsumeProbeTasks(ctx context.Context, handler func(task ProbeTask) error) error

	// Close gracefully closes the connection to the message queue.
	Close() error
}
