package queue

import (
	"context"
	"time"
)

// MessageInterface defines the interface for queue messages.
// Enables mock implementations in worker tests.
type MessageInterface interface {
	Ack() error
	Nack(requeue bool) error
	GetJob() *Job
}

// JobQueue is the interface for job queues
type JobQueue interface {
	// Enqueue adds a job to the queue
	Enqueue(ctx context.Context, job *Job) error

	// Consume returns a channel of messages delivered asynchronously as they
	// arrive. The caller acknowledges each message. Prefetch controls how
	// many unacknowledged messages each consumer can hold. The returned
	// channels close when the context is cancelled or the connection drops.
	Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error)

	// Close closes the queue connection
	Close() error

	// HealthCheck verifies the queue connection is healthy
	HealthCheck(ctx context.Context) error
}

// DLQPurger removes dead-lettered messages older than the retention window.
type DLQPurger interface {
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error)
}
