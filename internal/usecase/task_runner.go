package usecase

import (
	"context"
	"sync"
	"time"

	"seatwatch-service/internal/domain/entity"
	"seatwatch-service/internal/domain/repository"
	"seatwatch-service/pkg/logger"
	"seatwatch-service/pkg/metrics"

	"github.com/sethvargo/go-retry"
)

// TaskHandler processes one claimed task. A nil return completes the task;
// an error marked with entity.Permanent dead-letters it immediately; any
// other error schedules a retry until the attempt budget runs out.
type TaskHandler interface {
	Handle(ctx context.Context, task *entity.Task) error
}

// RetryPolicy controls the worker pool and retry pacing for one task kind
type RetryPolicy struct {
	Workers   int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DelayFor returns the backoff delay applied after the given number of
// attempts: BaseDelay doubling per attempt, capped at MaxDelay.
func (p RetryPolicy) DelayFor(attempts int) time.Duration {
	backoff := retry.WithCappedDuration(p.MaxDelay, retry.NewExponential(p.BaseDelay))
	var delay time.Duration
	for i := 0; i < attempts; i++ {
		next, stop := backoff.Next()
		if stop {
			break
		}
		delay = next
	}
	return delay
}

// TaskRunner drives worker pools over the durable task queue. Workers
// coordinate purely through the store, so any number of service replicas can
// run the same pools.
type TaskRunner struct {
	tasks       repository.TaskRepository
	deadLetters repository.DeadLetterRepository
	logger      logger.Logger
	metrics     *metrics.Metrics

	pollInterval    time.Duration
	lease           time.Duration
	requeueInterval time.Duration

	handlers map[string]TaskHandler
	policies map[string]RetryPolicy
}

// NewTaskRunner creates a new task runner
func NewTaskRunner(
	tasks repository.TaskRepository,
	deadLetters repository.DeadLetterRepository,
	logger logger.Logger,
	metrics *metrics.Metrics,
	pollInterval time.Duration,
	lease time.Duration,
	requeueInterval time.Duration,
) *TaskRunner {
	return &TaskRunner{
		tasks:           tasks,
		deadLetters:     deadLetters,
		logger:          logger,
		metrics:         metrics,
		pollInterval:    pollInterval,
		lease:           lease,
		requeueInterval: requeueInterval,
		handlers:        make(map[string]TaskHandler),
		policies:        make(map[string]RetryPolicy),
	}
}

// Register binds a handler and retry policy to a task kind. Must be called
// before Run.
func (r *TaskRunner) Register(kind string, handler TaskHandler, policy RetryPolicy) {
	r.handlers[kind] = handler
	r.policies[kind] = policy
}

// Run starts all worker pools and the lease recovery loop, blocking until
// ctx is cancelled
func (r *TaskRunner) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for kind := range r.handlers {
		workers := r.policies[kind].Workers
		if workers < 1 {
			workers = 1
		}
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(kind string) {
				defer wg.Done()
				r.workerLoop(ctx, kind)
			}(kind)
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		r.requeueLoop(ctx)
	}()

	wg.Wait()
	r.logger.Info("Task runner stopped")
}

func (r *TaskRunner) workerLoop(ctx context.Context, kind string) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Drain everything runnable before going back to sleep.
			for r.runPending(ctx, kind) {
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// runPending claims and settles at most one task; reports whether one was handled
func (r *TaskRunner) runPending(ctx context.Context, kind string) bool {
	claimed, err := r.tasks.Claim(ctx, kind, time.Now().UTC(), 1)
	if err != nil {
		r.logger.Error("Failed to claim task", "kind", kind, "error", err)
		r.metrics.ErrorsCount.WithLabelValues("claim_task").Inc()
		return false
	}
	if len(claimed) == 0 {
		return false
	}
	task := claimed[0]

	if err := r.handlers[kind].Handle(ctx, task); err != nil {
		r.settleFailure(ctx, task, err)
		return true
	}

	if err := r.tasks.Complete(ctx, task.ID); err != nil {
		r.logger.Error("Failed to complete task", "kind", kind, "taskId", task.ID, "error", err)
	}
	return true
}

func (r *TaskRunner) settleFailure(ctx context.Context, task *entity.Task, handleErr error) {
	if entity.IsPermanent(handleErr) || task.Attempts >= task.MaxAttempts {
		r.logger.Error("Task moved to dead letters",
			"kind", task.Kind,
			"taskId", task.ID,
			"attempts", task.Attempts,
			"error", handleErr)
		r.metrics.TasksDead.WithLabelValues(task.Kind).Inc()

		if err := r.tasks.MarkDead(ctx, task.ID, handleErr.Error()); err != nil {
			r.logger.Error("Failed to mark task dead", "taskId", task.ID, "error", err)
			return
		}
		letter := &entity.DeadLetter{
			TaskID:    task.ID,
			Kind:      task.Kind,
			Payload:   task.Payload,
			Attempts:  task.Attempts,
			LastError: handleErr.Error(),
			DeadAt:    time.Now().UTC(),
		}
		if err := r.deadLetters.Archive(ctx, letter); err != nil {
			r.logger.Error("Failed to archive dead letter", "taskId", task.ID, "error", err)
		}
		return
	}

	delay := r.policies[task.Kind].DelayFor(task.Attempts)
	runAt := time.Now().UTC().Add(delay)
	r.logger.Warn("Task failed, scheduling retry",
		"kind", task.Kind,
		"taskId", task.ID,
		"attempts", task.Attempts,
		"nextRunAt", runAt,
		"error", handleErr)
	if err := r.tasks.Fail(ctx, task.ID, runAt, handleErr.Error()); err != nil {
		r.logger.Error("Failed to reschedule task", "taskId", task.ID, "error", err)
	}
}

// requeueLoop recovers tasks whose workers died mid-lease
func (r *TaskRunner) requeueLoop(ctx context.Context) {
	ticker := time.NewTicker(r.requeueInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := r.tasks.RequeueStale(ctx, time.Now().UTC().Add(-r.lease))
			if err != nil {
				r.logger.Error("Failed to requeue stale tasks", "error", err)
				r.metrics.ErrorsCount.WithLabelValues("requeue_stale").Inc()
				continue
			}
			if count > 0 {
				r.logger.Warn("Requeued tasks from expired leases", "count", count)
			}
		}
	}
}
