package usecase

import (
	"context"
	"encoding/json"
	"time"

	"seatwatch-service/internal/domain/entity"
	"seatwatch-service/internal/domain/repository"
	"seatwatch-service/pkg/logger"
	"seatwatch-service/pkg/metrics"
)

// Scheduler periodically expires routes past departure and dispatches
// availability check tasks for due routes. It keeps no state of its own;
// replicas can run side by side because ClaimDue is atomic in the store.
type Scheduler struct {
	routes  repository.RouteRepository
	tasks   repository.TaskRepository
	logger  logger.Logger
	metrics *metrics.Metrics

	tick             time.Duration
	checkInterval    time.Duration
	batchLimit       int
	checkMaxAttempts int
}

// NewScheduler creates a new scheduler
func NewScheduler(
	routes repository.RouteRepository,
	tasks repository.TaskRepository,
	logger logger.Logger,
	metrics *metrics.Metrics,
	tick time.Duration,
	checkInterval time.Duration,
	batchLimit int,
	checkMaxAttempts int,
) *Scheduler {
	return &Scheduler{
		routes:           routes,
		tasks:            tasks,
		logger:           logger,
		metrics:          metrics,
		tick:             tick,
		checkInterval:    checkInterval,
		batchLimit:       batchLimit,
		checkMaxAttempts: checkMaxAttempts,
	}
}

// Run starts the scheduling loop, blocking until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	now := time.Now().UTC()

	expired, err := s.routes.ExpireStale(ctx, now)
	if err != nil {
		s.logger.Error("Failed to expire stale routes", "error", err)
		s.metrics.ErrorsCount.WithLabelValues("expire_stale").Inc()
	} else if expired > 0 {
		s.logger.Info("Expired routes past departure", "count", expired)
		s.metrics.RoutesExpired.Add(float64(expired))
	}

	ids, err := s.routes.ClaimDue(ctx, now, s.checkInterval, s.batchLimit)
	if err != nil {
		s.logger.Error("Failed to claim due routes", "error", err)
		s.metrics.ErrorsCount.WithLabelValues("claim_due").Inc()
		return
	}
	if len(ids) == 0 {
		return
	}

	s.metrics.RoutesClaimed.Add(float64(len(ids)))
	s.logger.Debug("Claimed due routes", "count", len(ids))

	for _, routeID := range ids {
		if ctx.Err() != nil {
			return
		}

		payload, err := json.Marshal(entity.CheckTaskPayload{RouteID: routeID})
		if err != nil {
			s.logger.Error("Failed to encode check payload", "routeId", routeID, "error", err)
			continue
		}

		task := &entity.Task{
			Kind:        entity.TaskKindRouteCheck,
			Payload:     string(payload),
			MaxAttempts: s.checkMaxAttempts,
			RunAt:       now,
		}
		if err := s.tasks.Enqueue(ctx, task); err != nil {
			// The route keeps its claim stamp and becomes due again next interval.
			s.logger.Error("Failed to enqueue route check", "routeId", routeID, "error", err)
			s.metrics.ErrorsCount.WithLabelValues("enqueue_check").Inc()
		}
	}
}
