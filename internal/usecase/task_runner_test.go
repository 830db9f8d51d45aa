package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"seatwatch-service/internal/domain/entity"
	gormRepo "seatwatch-service/internal/interface/repository"
	"seatwatch-service/pkg/logger"
)

// fakeHandler records handled tasks and fails with queued errors first, one per call
type fakeHandler struct {
	mu    sync.Mutex
	calls []*entity.Task
	errs  []error
}

func (h *fakeHandler) Handle(_ context.Context, task *entity.Task) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, task)
	if len(h.errs) > 0 {
		err := h.errs[0]
		h.errs = h.errs[1:]
		return err
	}
	return nil
}

func (h *fakeHandler) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

func TestRunPendingCompletesTask(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	tasks := gormRepo.NewGormTaskRepository(db)
	deadLetters := &fakeDeadLetters{}
	handler := &fakeHandler{}

	runner := NewTaskRunner(tasks, deadLetters, logger.NewNop(), newTestMetrics(),
		10*time.Millisecond, time.Minute, 10*time.Millisecond)
	runner.Register(entity.TaskKindRouteCheck, handler, RetryPolicy{Workers: 1, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond})

	task := &entity.Task{Kind: entity.TaskKindRouteCheck, Payload: `{"routeId":7}`, MaxAttempts: 3}
	if err := tasks.Enqueue(ctx, task); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if !runner.runPending(ctx, entity.TaskKindRouteCheck) {
		t.Fatal("expected a task to be handled")
	}
	if handler.callCount() != 1 {
		t.Fatalf("expected 1 handler call, got %d", handler.callCount())
	}

	var model gormRepo.Tasks
	if err := db.First(&model, "id = ?", task.ID).Error; err != nil {
		t.Fatalf("reload task: %v", err)
	}
	if model.Status != entity.TaskStatusCompleted {
		t.Errorf("expected status %s, got %s", entity.TaskStatusCompleted, model.Status)
	}

	// Nothing left to do.
	if runner.runPending(ctx, entity.TaskKindRouteCheck) {
		t.Error("expected an idle pass on a drained queue")
	}
}

func TestRunPendingRetriesTransientFailure(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	tasks := gormRepo.NewGormTaskRepository(db)
	deadLetters := &fakeDeadLetters{}
	handler := &fakeHandler{errs: []error{errors.New("provider timeout")}}

	runner := NewTaskRunner(tasks, deadLetters, logger.NewNop(), newTestMetrics(),
		10*time.Millisecond, time.Minute, 10*time.Millisecond)
	runner.Register(entity.TaskKindRouteCheck, handler, RetryPolicy{Workers: 1, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond})

	task := &entity.Task{Kind: entity.TaskKindRouteCheck, Payload: `{"routeId":7}`, MaxAttempts: 3}
	if err := tasks.Enqueue(ctx, task); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if !runner.runPending(ctx, entity.TaskKindRouteCheck) {
		t.Fatal("expected the failing task to be handled")
	}

	var model gormRepo.Tasks
	if err := db.First(&model, "id = ?", task.ID).Error; err != nil {
		t.Fatalf("reload task: %v", err)
	}
	if model.Status != entity.TaskStatusPending {
		t.Fatalf("expected status %s after transient failure, got %s", entity.TaskStatusPending, model.Status)
	}
	if model.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", model.Attempts)
	}
	if model.LastError != "provider timeout" {
		t.Errorf("expected last error recorded, got %q", model.LastError)
	}

	// Wait out the backoff, then the retry succeeds.
	time.Sleep(20 * time.Millisecond)
	if !runner.runPending(ctx, entity.TaskKindRouteCheck) {
		t.Fatal("expected the retry to be handled")
	}
	if handler.callCount() != 2 {
		t.Fatalf("expected 2 handler calls, got %d", handler.callCount())
	}

	if err := db.First(&model, "id = ?", task.ID).Error; err != nil {
		t.Fatalf("reload task: %v", err)
	}
	if model.Status != entity.TaskStatusCompleted {
		t.Errorf("expected status %s, got %s", entity.TaskStatusCompleted, model.Status)
	}
	if len(deadLetters.archived()) != 0 {
		t.Errorf("expected no dead letters, got %d", len(deadLetters.archived()))
	}
}

func TestRunPendingDeadLettersExhaustedTask(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	tasks := gormRepo.NewGormTaskRepository(db)
	deadLetters := &fakeDeadLetters{}
	handler := &fakeHandler{errs: []error{errors.New("provider down")}}

	runner := NewTaskRunner(tasks, deadLetters, logger.NewNop(), newTestMetrics(),
		10*time.Millisecond, time.Minute, 10*time.Millisecond)
	runner.Register(entity.TaskKindRouteCheck, handler, RetryPolicy{Workers: 1, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond})

	now := time.Now().UTC()
	poison := &entity.Task{Kind: entity.TaskKindRouteCheck, Payload: `{"routeId":1}`, MaxAttempts: 1, RunAt: now.Add(-2 * time.Minute)}
	healthy := &entity.Task{Kind: entity.TaskKindRouteCheck, Payload: `{"routeId":2}`, MaxAttempts: 1, RunAt: now.Add(-time.Minute)}
	for _, task := range []*entity.Task{poison, healthy} {
		if err := tasks.Enqueue(ctx, task); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	// First pass dead-letters the poison task, second completes its sibling.
	runner.runPending(ctx, entity.TaskKindRouteCheck)
	runner.runPending(ctx, entity.TaskKindRouteCheck)

	var poisonRow gormRepo.Tasks
	if err := db.First(&poisonRow, "id = ?", poison.ID).Error; err != nil {
		t.Fatalf("reload poison task: %v", err)
	}
	if poisonRow.Status != entity.TaskStatusDead {
		t.Errorf("expected status %s, got %s", entity.TaskStatusDead, poisonRow.Status)
	}

	var healthyRow gormRepo.Tasks
	if err := db.First(&healthyRow, "id = ?", healthy.ID).Error; err != nil {
		t.Fatalf("reload healthy task: %v", err)
	}
	if healthyRow.Status != entity.TaskStatusCompleted {
		t.Errorf("sibling task: expected status %s, got %s", entity.TaskStatusCompleted, healthyRow.Status)
	}

	archived := deadLetters.archived()
	if len(archived) != 1 {
		t.Fatalf("expected 1 dead letter, got %d", len(archived))
	}
	want := &entity.DeadLetter{
		TaskID:    poison.ID,
		Kind:      entity.TaskKindRouteCheck,
		Payload:   `{"routeId":1}`,
		Attempts:  1,
		LastError: "provider down",
	}
	ignoreDeadAt := cmp.FilterPath(func(p cmp.Path) bool {
		return p.String() == "DeadAt"
	}, cmp.Ignore())
	if diff := cmp.Diff(want, archived[0], ignoreDeadAt); diff != "" {
		t.Errorf("dead letter mismatch (-want +got):\n%s", diff)
	}
	if archived[0].DeadAt.IsZero() {
		t.Error("expected DeadAt set")
	}
}

func TestRunPendingDeadLettersPermanentFailureImmediately(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	tasks := gormRepo.NewGormTaskRepository(db)
	deadLetters := &fakeDeadLetters{}
	handler := &fakeHandler{errs: []error{entity.Permanent(errors.New("recipient rejected"))}}

	runner := NewTaskRunner(tasks, deadLetters, logger.NewNop(), newTestMetrics(),
		10*time.Millisecond, time.Minute, 10*time.Millisecond)
	runner.Register(entity.TaskKindRouteCheck, handler, RetryPolicy{Workers: 1, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond})

	// Plenty of attempts left; the permanent marker must win anyway.
	task := &entity.Task{Kind: entity.TaskKindRouteCheck, Payload: `{"routeId":7}`, MaxAttempts: 5}
	if err := tasks.Enqueue(ctx, task); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	runner.runPending(ctx, entity.TaskKindRouteCheck)

	var model gormRepo.Tasks
	if err := db.First(&model, "id = ?", task.ID).Error; err != nil {
		t.Fatalf("reload task: %v", err)
	}
	if model.Status != entity.TaskStatusDead {
		t.Errorf("expected status %s, got %s", entity.TaskStatusDead, model.Status)
	}
	if model.Attempts != 1 {
		t.Errorf("expected a single attempt, got %d", model.Attempts)
	}
	if len(deadLetters.archived()) != 1 {
		t.Errorf("expected 1 dead letter, got %d", len(deadLetters.archived()))
	}
}

func TestRetryPolicyDelayFor(t *testing.T) {
	policy := RetryPolicy{BaseDelay: 10 * time.Second, MaxDelay: 2 * time.Minute}

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{attempts: 1, want: 10 * time.Second},
		{attempts: 2, want: 20 * time.Second},
		{attempts: 3, want: 40 * time.Second},
		{attempts: 4, want: 80 * time.Second},
		{attempts: 5, want: 2 * time.Minute},
		{attempts: 6, want: 2 * time.Minute},
	}

	for _, tt := range tests {
		if got := policy.DelayFor(tt.attempts); got != tt.want {
			t.Errorf("DelayFor(%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}

func TestRunProcessesQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db := newTestDB(t)
	tasks := gormRepo.NewGormTaskRepository(db)
	deadLetters := &fakeDeadLetters{}
	handler := &fakeHandler{}

	runner := NewTaskRunner(tasks, deadLetters, logger.NewNop(), newTestMetrics(),
		5*time.Millisecond, time.Minute, 50*time.Millisecond)
	runner.Register(entity.TaskKindRouteCheck, handler, RetryPolicy{Workers: 2, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond})

	const total = 5
	for i := 0; i < total; i++ {
		task := &entity.Task{Kind: entity.TaskKindRouteCheck, Payload: `{"routeId":1}`, MaxAttempts: 3}
		if err := tasks.Enqueue(ctx, task); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	done := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for handler.callCount() < total {
		select {
		case <-deadline:
			t.Fatalf("timed out, handled %d of %d tasks", handler.callCount(), total)
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}

	var completed int64
	db.Model(&gormRepo.Tasks{}).Where("status = ?", entity.TaskStatusCompleted).Count(&completed)
	if completed != total {
		t.Errorf("expected %d completed tasks, got %d", total, completed)
	}
}

func TestRunRecoversExpiredLeases(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db := newTestDB(t)
	tasks := gormRepo.NewGormTaskRepository(db)
	deadLetters := &fakeDeadLetters{}
	handler := &fakeHandler{}

	// Lease of 50ms, recovery sweep every 10ms.
	runner := NewTaskRunner(tasks, deadLetters, logger.NewNop(), newTestMetrics(),
		5*time.Millisecond, 50*time.Millisecond, 10*time.Millisecond)
	runner.Register(entity.TaskKindRouteCheck, handler, RetryPolicy{Workers: 1, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond})

	// A task stuck in PROCESSING, as left behind by a crashed worker.
	stuckAt := time.Now().UTC().Add(-time.Minute)
	stuck := gormRepo.Tasks{
		ID: "stuck-1", Kind: entity.TaskKindRouteCheck, Payload: `{"routeId":9}`,
		Status: entity.TaskStatusProcessing, Attempts: 1, MaxAttempts: 3,
		RunAt: stuckAt, LockedAt: &stuckAt,
	}
	if err := db.Create(&stuck).Error; err != nil {
		t.Fatalf("seed stuck task: %v", err)
	}

	done := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for handler.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("stuck task was never recovered and handled")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done

	var model gormRepo.Tasks
	if err := db.First(&model, "id = ?", "stuck-1").Error; err != nil {
		t.Fatalf("reload task: %v", err)
	}
	if model.Status != entity.TaskStatusCompleted {
		t.Errorf("expected recovered task completed, got %s", model.Status)
	}
}
