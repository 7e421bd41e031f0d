// Package store wraps the external key/value store (Redis) that backs the
// job queue, rate-limit buckets, and ambient counters. Its implementation
// is assumed external per the specification; this package only names and
// exercises the contract.
package store

import (
	"context"
	"time"

	"audiolevel/internal/models"
)

// QueueCounts mirrors the job-state breakdown the queue health endpoint
// reports.
type QueueCounts struct {
	Waiting   int64
	Active    int64
	Completed int64
	Failed    int64
	Delayed   int64
}

// Store is the durable backing the Job Queue, rate limiter, and ambient
// counters are built on.
type Store interface {
	// SaveJob persists a job record, replacing any prior state.
	SaveJob(ctx context.Context, job *models.Job) error
	// GetJob returns a job by id, apperr.ErrJobNotFound if absent.
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	// DeleteJob removes a job record.
	DeleteJob(ctx context.Context, jobID string) error

	// Enqueue adds a job id to the priority queue.
	Enqueue(ctx context.Context, jobID string, priority models.Priority) error
	// Dequeue blocks up to timeout for the next job id in priority order,
	// returns ok=false on timeout with no error.
	Dequeue(ctx context.Context, timeout time.Duration) (jobID string, ok bool, err error)
	// Requeue re-admits a job id (used for stalled-job recovery and
	// exponential-backoff retries); delay defers visibility.
	Requeue(ctx context.Context, jobID string, priority models.Priority, delay time.Duration) error

	// AdjustCount adjusts the named queue-state counter by delta.
	AdjustCount(ctx context.Context, state models.JobState, delta int64) error
	// Counts returns the current queue-state breakdown.
	Counts(ctx context.Context) (QueueCounts, error)

	// CheckRateLimit atomically evaluates and updates a sliding-window
	// bucket for the given client identifier.
	CheckRateLimit(ctx context.Context, clientID string, windowMs, maxRequests int) (allowed bool, retryAfterSec int, err error)
	// PeekRateLimit reports the current in-window request count for a
	// client without admitting or recording a new request.
	PeekRateLimit(ctx context.Context, clientID string, windowMs int) (count int, err error)

	// IncrCounter increments an ambient named counter and returns its new value.
	IncrCounter(ctx context.Context, name string) (int64, error)

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Close releases underlying resources.
	Close() error
}
