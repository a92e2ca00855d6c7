package queue

import (
	"context"

	"github.com/mwangaza7/message-scheduler-backend/internal/models"
)

// Client defines the interface for queue operations
type Client interface {
	// Enqueue publishes a dispatch job for the given scheduled send
	// and returns the opaque handle identifying the enqueued job.
	Enqueue(ctx context.Context, scheduleID int64) (handle string, err error)

	// Consume receives dispatch jobs from the queue and processes them
	// with the handler. concurrency controls how many jobs may run
	// simultaneously.
	Consume(ctx context.Context, handler JobHandler, concurrency int) error

	// Close closes the queue connection
	Close() error

	// Health checks if the queue is healthy
	Health(ctx context.Context) error
}

// JobHandler is a function that processes one dispatch job
type JobHandler func(ctx context.Context, job *models.DispatchJob) error
