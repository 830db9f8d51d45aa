package repository

import (
	"context"
	"time"

	"seatwatch-service/internal/domain/entity"
)

// TaskRepository defines the interface for the durable work queue
type TaskRepository interface {
	// Enqueue stores a new PENDING task. A missing id is generated.
	Enqueue(ctx context.Context, task *entity.Task) error

	// Claim atomically takes up to limit runnable tasks of the given kind,
	// moving them to PROCESSING and incrementing attempts. A task is
	// runnable when it is PENDING and run_at <= now. Concurrent callers
	// never receive the same task.
	Claim(ctx context.Context, kind string, now time.Time, limit int) ([]*entity.Task, error)

	Complete(ctx context.Context, taskID string) error

	// Fail returns the task to PENDING with a new run_at so it retries later.
	Fail(ctx context.Context, taskID string, runAt time.Time, lastError string) error

	MarkDead(ctx context.Context, taskID string, lastError string) error

	// RequeueStale returns PROCESSING tasks whose lease started before
	// olderThan to PENDING, recovering work lost to crashed workers.
	RequeueStale(ctx context.Context, olderThan time.Time) (int64, error)
}
