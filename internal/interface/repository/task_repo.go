package repository

import (
	"context"
	"fmt"
	"time"

	"seatwatch-service/internal/domain/entity"
	"seatwatch-service/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormTaskRepository implements the TaskRepository interface
type GormTaskRepository struct {
	db *gorm.DB
}

// NewGormTaskRepository creates a new GORM task repository
func NewGormTaskRepository(db *gorm.DB) repository.TaskRepository {
	return &GormTaskRepository{
		db: db,
	}
}

// Tasks GORM model for database mapping
type Tasks struct {
	ID          string     `gorm:"column:id;primaryKey"`
	Kind        string     `gorm:"column:kind;index:ix_tasks_kind_status_run_at,priority:1"`
	Payload     string     `gorm:"column:payload"`
	Status      string     `gorm:"column:status;index:ix_tasks_kind_status_run_at,priority:2"`
	Attempts    int        `gorm:"column:attempts"`
	MaxAttempts int        `gorm:"column:max_attempts"`
	RunAt       time.Time  `gorm:"column:run_at;index:ix_tasks_kind_status_run_at,priority:3"`
	LockedAt    *time.Time `gorm:"column:locked_at"`
	LastError   string     `gorm:"column:last_error"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName overrides the default table name
func (Tasks) TableName() string {
	return "tasks"
}

func toTaskEntity(model *Tasks) *entity.Task {
	return &entity.Task{
		ID:          model.ID,
		Kind:        model.Kind,
		Payload:     model.Payload,
		Status:      model.Status,
		Attempts:    model.Attempts,
		MaxAttempts: model.MaxAttempts,
		RunAt:       model.RunAt,
		LockedAt:    model.LockedAt,
		LastError:   model.LastError,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

// Enqueue inserts a new PENDING task into the queue
func (r *GormTaskRepository) Enqueue(ctx context.Context, task *entity.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.RunAt.IsZero() {
		task.RunAt = time.Now().UTC()
	}
	if task.MaxAttempts <= 0 {
		task.MaxAttempts = 1
	}

	model := Tasks{
		ID:          task.ID,
		Kind:        task.Kind,
		Payload:     task.Payload,
		Status:      entity.TaskStatusPending,
		Attempts:    0,
		MaxAttempts: task.MaxAttempts,
		RunAt:       task.RunAt,
	}

	result := r.db.WithContext(ctx).Create(&model)
	if result.Error != nil {
		return fmt.Errorf("enqueue task: %w", result.Error)
	}

	task.Status = model.Status
	task.CreatedAt = model.CreatedAt
	task.UpdatedAt = model.UpdatedAt

	return nil
}

// Claim leases up to limit runnable tasks in a single statement, moving them
// to PROCESSING and incrementing attempts. postgres locks candidates with
// SKIP LOCKED so worker replicas skip over each other; sqlite serializes
// writers, making the plain subselect equivalent.
func (r *GormTaskRepository) Claim(ctx context.Context, kind string, now time.Time, limit int) ([]*entity.Task, error) {
	sub := `SELECT id FROM tasks
		WHERE kind = ? AND status = ? AND run_at <= ?
		ORDER BY run_at LIMIT ?`
	if r.db.Dialector.Name() == "postgres" {
		sub += " FOR UPDATE SKIP LOCKED"
	}
	query := fmt.Sprintf(
		`UPDATE tasks SET status = ?, attempts = attempts + 1, locked_at = ?, updated_at = ?
		WHERE id IN (%s)
		RETURNING id, kind, payload, status, attempts, max_attempts, run_at, locked_at, last_error, created_at, updated_at`,
		sub)

	var models []Tasks
	result := r.db.WithContext(ctx).
		Raw(query, entity.TaskStatusProcessing, now, now, kind, entity.TaskStatusPending, now, limit).
		Scan(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("claim tasks: %w", result.Error)
	}

	tasks := make([]*entity.Task, 0, len(models))
	for i := range models {
		tasks = append(tasks, toTaskEntity(&models[i]))
	}
	return tasks, nil
}

// Complete marks a task as successfully handled
func (r *GormTaskRepository) Complete(ctx context.Context, taskID string) error {
	result := r.db.WithContext(ctx).Model(&Tasks{}).
		Where("id = ?", taskID).
		Updates(map[string]interface{}{
			"status":    entity.TaskStatusCompleted,
			"locked_at": nil,
		})
	if result.Error != nil {
		return fmt.Errorf("complete task: %w", result.Error)
	}
	return nil
}

// Fail releases the task back to PENDING with a future run_at for retry
func (r *GormTaskRepository) Fail(ctx context.Context, taskID string, runAt time.Time, lastError string) error {
	result := r.db.WithContext(ctx).Model(&Tasks{}).
		Where("id = ?", taskID).
		Updates(map[string]interface{}{
			"status":     entity.TaskStatusPending,
			"run_at":     runAt,
			"locked_at":  nil,
			"last_error": lastError,
		})
	if result.Error != nil {
		return fmt.Errorf("fail task: %w", result.Error)
	}
	return nil
}

// MarkDead parks the task permanently
func (r *GormTaskRepository) MarkDead(ctx context.Context, taskID string, lastError string) error {
	result := r.db.WithContext(ctx).Model(&Tasks{}).
		Where("id = ?", taskID).
		Updates(map[string]interface{}{
			"status":     entity.TaskStatusDead,
			"locked_at":  nil,
			"last_error": lastError,
		})
	if result.Error != nil {
		return fmt.Errorf("mark task dead: %w", result.Error)
	}
	return nil
}

// RequeueStale resets tasks stuck in PROCESSING past their lease back to PENDING
func (r *GormTaskRepository) RequeueStale(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&Tasks{}).
		Where("status = ? AND locked_at IS NOT NULL AND locked_at < ?", entity.TaskStatusProcessing, olderThan).
		Updates(map[string]interface{}{
			"status":     entity.TaskStatusPending,
			"locked_at":  nil,
			"last_error": "requeued from stale PROCESSING state",
		})
	if result.Error != nil {
		return 0, fmt.Errorf("requeue stale tasks: %w", result.Error)
	}
	return result.RowsAffected, nil
}
