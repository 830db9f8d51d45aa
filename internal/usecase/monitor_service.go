package usecase

import (
	"context"
	"fmt"
	"time"

	"seatwatch-service/internal/domain/entity"
	"seatwatch-service/internal/domain/repository"
	"seatwatch-service/pkg/logger"
)

// MonitorService coordinates the user-facing monitoring operations
type MonitorService struct {
	routes  repository.RouteRepository
	users   repository.UserRepository
	subs    repository.SubscriptionRepository
	checker repository.AvailabilityChecker
	logger  logger.Logger
}

// NewMonitorService creates a new monitor service
func NewMonitorService(
	routes repository.RouteRepository,
	users repository.UserRepository,
	subs repository.SubscriptionRepository,
	checker repository.AvailabilityChecker,
	logger logger.Logger,
) *MonitorService {
	return &MonitorService{
		routes:  routes,
		users:   users,
		subs:    subs,
		checker: checker,
		logger:  logger,
	}
}

// StartMonitoring checks availability right away and only creates a watch
// when the segment is actually sold out. Re-requesting a watched segment
// subscribes the user to the existing route row.
func (s *MonitorService) StartMonitoring(ctx context.Context, userID uint, req *entity.MonitorRequest) (*entity.MonitorResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.Verified {
		return nil, entity.ErrUserNotVerified
	}

	route, err := routeFromRequest(req)
	if err != nil {
		return nil, err
	}

	avail, err := s.checker.Check(ctx, route)
	if err != nil {
		return nil, fmt.Errorf("initial availability check: %w", err)
	}
	if avail.Available {
		return &entity.MonitorResult{Monitoring: false, Details: avail}, nil
	}

	stored, created, err := s.routes.GetOrCreate(ctx, route)
	if err != nil {
		return nil, err
	}
	if _, err := s.subs.Create(ctx, userID, stored.ID); err != nil {
		return nil, err
	}

	s.logger.Info("Monitoring started",
		"routeId", stored.ID,
		"providerRouteId", stored.ProviderRouteID,
		"userId", userID,
		"created", created)

	return &entity.MonitorResult{Monitoring: true, Created: created, Route: stored}, nil
}

// ListMonitoredRoutes returns the routes the user is subscribed to
func (s *MonitorService) ListMonitoredRoutes(ctx context.Context, userID uint) ([]*entity.MonitoredRoute, error) {
	return s.routes.ListForUser(ctx, userID)
}

// CancelSubscription removes the user's watch. A route left with no
// subscribers is deleted; nobody is waiting for it anymore.
func (s *MonitorService) CancelSubscription(ctx context.Context, userID, routeID uint) error {
	deleted, err := s.subs.Delete(ctx, userID, routeID)
	if err != nil {
		return err
	}
	if !deleted {
		return entity.ErrNotSubscribed
	}

	removed, err := s.routes.DeleteIfOrphaned(ctx, routeID)
	if err != nil {
		// The subscription is already gone; cleanup failure must not fail the cancel.
		s.logger.Error("Failed to clean up orphaned route", "routeId", routeID, "error", err)
		return nil
	}
	if removed {
		s.logger.Info("Removed route with no subscribers", "routeId", routeID)
	}
	return nil
}

// RestartMonitoring resumes the watch on a FOUND route. When seats are still
// available the route stays FOUND and the caller gets the current offer.
func (s *MonitorService) RestartMonitoring(ctx context.Context, userID, routeID uint) (*entity.RestartResult, error) {
	route, err := s.routes.GetByID(ctx, routeID)
	if err != nil {
		return nil, err
	}

	subscribed, err := s.subs.Exists(ctx, userID, routeID)
	if err != nil {
		return nil, err
	}
	if !subscribed {
		return nil, entity.ErrNotSubscribed
	}

	if route.Status != entity.RouteStatusFound {
		return nil, entity.ErrRouteNotRestartable
	}

	avail, err := s.checker.Check(ctx, route)
	if err != nil {
		return nil, fmt.Errorf("availability check: %w", err)
	}
	if avail.Available {
		return &entity.RestartResult{Restarted: false, Details: avail}, nil
	}

	if err := s.routes.Reactivate(ctx, routeID, time.Now().UTC()); err != nil {
		return nil, err
	}

	s.logger.Info("Monitoring restarted", "routeId", routeID, "userId", userID)
	return &entity.RestartResult{Restarted: true}, nil
}

// routeFromRequest validates the request and applies provider defaults
func routeFromRequest(req *entity.MonitorRequest) (*entity.MonitoredRoute, error) {
	switch {
	case req.ProviderRouteID == "":
		return nil, fmt.Errorf("%w: routeId is required", entity.ErrInvalidRequest)
	case req.FromLocationID == "":
		return nil, fmt.Errorf("%w: fromStationId is required", entity.ErrInvalidRequest)
	case req.ToLocationID == "":
		return nil, fmt.Errorf("%w: toStationId is required", entity.ErrInvalidRequest)
	case req.DepartureAt.IsZero():
		return nil, fmt.Errorf("%w: departureTime is required", entity.ErrInvalidRequest)
	case !req.DepartureAt.After(time.Now()):
		return nil, fmt.Errorf("%w: departureTime must be in the future", entity.ErrInvalidRequest)
	}

	fromType := req.FromLocationType
	if fromType == "" {
		fromType = entity.LocationTypeStation
	}
	toType := req.ToLocationType
	if toType == "" {
		toType = entity.LocationTypeStation
	}
	tariffs := req.TariffClasses
	if tariffs == "" {
		tariffs = entity.DefaultTariff
	}

	var arrival *time.Time
	if req.ArrivalAt != nil {
		utc := req.ArrivalAt.UTC()
		arrival = &utc
	}

	return &entity.MonitoredRoute{
		ProviderRouteID:  req.ProviderRouteID,
		FromLocationID:   req.FromLocationID,
		FromLocationType: fromType,
		FromLocationName: req.FromLocationName,
		ToLocationID:     req.ToLocationID,
		ToLocationType:   toType,
		ToLocationName:   req.ToLocationName,
		TariffClasses:    tariffs,
		DepartureAt:      req.DepartureAt.UTC(),
		ArrivalAt:        arrival,
		Status:           entity.RouteStatusMonitoring,
	}, nil
}
