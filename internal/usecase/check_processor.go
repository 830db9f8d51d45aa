package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"seatwatch-service/internal/domain/entity"
	"seatwatch-service/internal/domain/repository"
	"seatwatch-service/pkg/logger"
	"seatwatch-service/pkg/metrics"
	"seatwatch-service/templates"
)

// CheckProcessor handles route_check tasks: it asks the provider for seats
// and, when some are free, transitions the route to FOUND and fans out one
// notification task per verified subscriber.
type CheckProcessor struct {
	routes  repository.RouteRepository
	tasks   repository.TaskRepository
	checker repository.AvailabilityChecker
	logger  logger.Logger
	metrics *metrics.Metrics

	notifyMaxAttempts int
	displayLocation   *time.Location
}

// NewCheckProcessor creates a new check processor
func NewCheckProcessor(
	routes repository.RouteRepository,
	tasks repository.TaskRepository,
	checker repository.AvailabilityChecker,
	logger logger.Logger,
	metrics *metrics.Metrics,
	notifyMaxAttempts int,
	displayLocation *time.Location,
) *CheckProcessor {
	return &CheckProcessor{
		routes:            routes,
		tasks:             tasks,
		checker:           checker,
		logger:            logger,
		metrics:           metrics,
		notifyMaxAttempts: notifyMaxAttempts,
		displayLocation:   displayLocation,
	}
}

// Handle processes one route check task. Tasks for routes that vanished or
// already left MONITORING are discarded quietly: under at-least-once
// delivery a duplicate or stale check is normal, not an error.
func (p *CheckProcessor) Handle(ctx context.Context, task *entity.Task) error {
	var payload entity.CheckTaskPayload
	if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
		return entity.Permanent(fmt.Errorf("decode check payload: %w", err))
	}

	route, err := p.routes.GetByID(ctx, payload.RouteID)
	if errors.Is(err, entity.ErrRouteNotFound) {
		p.logger.Warn("Check task for missing route", "routeId", payload.RouteID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load route: %w", err)
	}
	if route.Status != entity.RouteStatusMonitoring {
		p.logger.Debug("Skipping route no longer monitored",
			"routeId", route.ID, "status", route.Status)
		return nil
	}

	start := time.Now()
	avail, err := p.checker.Check(ctx, route)
	p.metrics.CheckDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.ErrorsCount.WithLabelValues("availability_check").Inc()
		return fmt.Errorf("availability check: %w", err)
	}
	p.metrics.ChecksPerformed.Inc()

	if !avail.Available {
		return nil
	}

	foundAt := time.Now().UTC()
	emails, err := p.routes.MarkFound(ctx, route.ID, foundAt)
	if errors.Is(err, entity.ErrRouteNotMonitoring) {
		// A concurrent check won the transition; its fan-out covers the subscribers.
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark route found: %w", err)
	}

	p.metrics.SeatsFound.Inc()
	p.logger.Info("Free seats found",
		"routeId", route.ID,
		"providerRouteId", route.ProviderRouteID,
		"freeSeats", avail.FreeSeats,
		"subscribers", len(emails))

	subject, body, err := templates.RenderSeatNotification(templates.SeatNotificationData{
		FromName:    route.FromDisplayName(),
		ToName:      route.ToDisplayName(),
		DepartureAt: route.DepartureAt,
		FreeSeats:   avail.FreeSeats,
		PriceFrom:   avail.PriceFrom,
		PriceTo:     avail.PriceTo,
		Currency:    avail.Currency,
		BookingLink: avail.BookingLink,
	}, p.displayLocation)
	if err != nil {
		return entity.Permanent(fmt.Errorf("render notification: %w", err))
	}

	snapshot := entity.RouteSnapshot{
		RouteID:         route.ID,
		ProviderRouteID: route.ProviderRouteID,
		FromName:        route.FromDisplayName(),
		ToName:          route.ToDisplayName(),
		DepartureAt:     route.DepartureAt,
	}

	for _, email := range emails {
		notifyPayload, err := json.Marshal(entity.NotifyTaskPayload{
			Recipient: email,
			Subject:   subject,
			Body:      body,
			Route:     snapshot,
		})
		if err != nil {
			p.logger.Error("Failed to encode notification payload",
				"routeId", route.ID, "recipient", email, "error", err)
			continue
		}

		notifyTask := &entity.Task{
			Kind:        entity.TaskKindNotification,
			Payload:     string(notifyPayload),
			MaxAttempts: p.notifyMaxAttempts,
			RunAt:       foundAt,
		}
		if err := p.tasks.Enqueue(ctx, notifyTask); err != nil {
			// One lost recipient must not block the rest of the fan-out.
			p.logger.Error("Failed to enqueue notification",
				"routeId", route.ID, "recipient", email, "error", err)
			p.metrics.ErrorsCount.WithLabelValues("enqueue_notification").Inc()
		}
	}

	return nil
}
