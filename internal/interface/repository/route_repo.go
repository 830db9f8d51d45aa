package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"seatwatch-service/internal/domain/entity"
	"seatwatch-service/internal/domain/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRouteRepository implements the RouteRepository interface
type GormRouteRepository struct {
	db *gorm.DB
}

// NewGormRouteRepository creates a new GORM monitored route repository
func NewGormRouteRepository(db *gorm.DB) repository.RouteRepository {
	return &GormRouteRepository{
		db: db,
	}
}

// MonitoredRoutes GORM model for database mapping
type MonitoredRoutes struct {
	ID               uint       `gorm:"primaryKey"`
	ProviderRouteID  string     `gorm:"column:provider_route_id;uniqueIndex:uq_monitored_route_segment"`
	FromLocationID   string     `gorm:"column:from_location_id;uniqueIndex:uq_monitored_route_segment"`
	FromLocationType string     `gorm:"column:from_location_type"`
	FromLocationName string     `gorm:"column:from_location_name"`
	ToLocationID     string     `gorm:"column:to_location_id;uniqueIndex:uq_monitored_route_segment"`
	ToLocationType   string     `gorm:"column:to_location_type"`
	ToLocationName   string     `gorm:"column:to_location_name"`
	TariffClasses    string     `gorm:"column:tariff_classes"`
	DepartureAt      time.Time  `gorm:"column:departure_at;index:ix_monitored_routes_status_departure,priority:2"`
	ArrivalAt        *time.Time `gorm:"column:arrival_at"`
	Status           string     `gorm:"column:status;index:ix_monitored_routes_status_departure,priority:1"`
	LastCheckedAt    *time.Time `gorm:"column:last_checked_at"`
	FoundAt          *time.Time `gorm:"column:found_at"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName overrides the default table name
func (MonitoredRoutes) TableName() string {
	return "monitored_routes"
}

func toRouteEntity(model *MonitoredRoutes) *entity.MonitoredRoute {
	return &entity.MonitoredRoute{
		ID:               model.ID,
		ProviderRouteID:  model.ProviderRouteID,
		FromLocationID:   model.FromLocationID,
		FromLocationType: model.FromLocationType,
		FromLocationName: model.FromLocationName,
		ToLocationID:     model.ToLocationID,
		ToLocationType:   model.ToLocationType,
		ToLocationName:   model.ToLocationName,
		TariffClasses:    model.TariffClasses,
		DepartureAt:      model.DepartureAt,
		ArrivalAt:        model.ArrivalAt,
		Status:           model.Status,
		LastCheckedAt:    model.LastCheckedAt,
		FoundAt:          model.FoundAt,
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}
}

// GetOrCreate returns the row for the segment, inserting it when absent.
// The insert races with other replicas, so it goes through ON CONFLICT DO
// NOTHING on the segment's unique constraint and re-reads on conflict.
func (r *GormRouteRepository) GetOrCreate(ctx context.Context, route *entity.MonitoredRoute) (*entity.MonitoredRoute, bool, error) {
	var (
		out     *entity.MonitoredRoute
		created bool
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model MonitoredRoutes
		result := tx.
			Where("provider_route_id = ? AND from_location_id = ? AND to_location_id = ?",
				route.ProviderRouteID, route.FromLocationID, route.ToLocationID).
			First(&model)

		if result.Error == nil {
			if model.Status != entity.RouteStatusMonitoring {
				updates := map[string]interface{}{
					"status":          entity.RouteStatusMonitoring,
					"found_at":        nil,
					"last_checked_at": nil,
					"departure_at":    route.DepartureAt,
					"arrival_at":      route.ArrivalAt,
				}
				if err := tx.Model(&MonitoredRoutes{}).Where("id = ?", model.ID).Updates(updates).Error; err != nil {
					return err
				}
				model.Status = entity.RouteStatusMonitoring
				model.FoundAt = nil
				model.LastCheckedAt = nil
				model.DepartureAt = route.DepartureAt
				model.ArrivalAt = route.ArrivalAt
			}
			out = toRouteEntity(&model)
			return nil
		}
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return result.Error
		}

		model = MonitoredRoutes{
			ProviderRouteID:  route.ProviderRouteID,
			FromLocationID:   route.FromLocationID,
			FromLocationType: route.FromLocationType,
			FromLocationName: route.FromLocationName,
			ToLocationID:     route.ToLocationID,
			ToLocationType:   route.ToLocationType,
			ToLocationName:   route.ToLocationName,
			TariffClasses:    route.TariffClasses,
			DepartureAt:      route.DepartureAt,
			ArrivalAt:        route.ArrivalAt,
			Status:           entity.RouteStatusMonitoring,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "provider_route_id"},
				{Name: "from_location_id"},
				{Name: "to_location_id"},
			},
			DoNothing: true,
		}).Create(&model).Error; err != nil {
			return err
		}

		if model.ID == 0 {
			// Lost the insert race; the winner's row is authoritative.
			if err := tx.
				Where("provider_route_id = ? AND from_location_id = ? AND to_location_id = ?",
					route.ProviderRouteID, route.FromLocationID, route.ToLocationID).
				First(&model).Error; err != nil {
				return err
			}
		} else {
			created = true
		}

		out = toRouteEntity(&model)
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("get or create route: %w", err)
	}

	return out, created, nil
}

// GetByID finds a monitored route by id
func (r *GormRouteRepository) GetByID(ctx context.Context, routeID uint) (*entity.MonitoredRoute, error) {
	var model MonitoredRoutes
	result := r.db.WithContext(ctx).First(&model, routeID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, entity.ErrRouteNotFound
		}
		return nil, fmt.Errorf("get route: %w", result.Error)
	}
	return toRouteEntity(&model), nil
}

// ListForUser returns the routes the user is subscribed to
func (r *GormRouteRepository) ListForUser(ctx context.Context, userID uint) ([]*entity.MonitoredRoute, error) {
	var models []MonitoredRoutes
	result := r.db.WithContext(ctx).
		Joins("JOIN route_subscriptions ON route_subscriptions.route_id = monitored_routes.id").
		Where("route_subscriptions.user_id = ?", userID).
		Order("monitored_routes.departure_at").
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("list routes for user: %w", result.Error)
	}

	routes := make([]*entity.MonitoredRoute, 0, len(models))
	for i := range models {
		routes = append(routes, toRouteEntity(&models[i]))
	}
	return routes, nil
}

// ClaimDue stamps and returns due routes in a single statement so that
// concurrent scheduler replicas never pick the same route. On postgres the
// inner select locks candidate rows with SKIP LOCKED; sqlite runs writes on a
// single connection, which makes the plain subselect just as safe.
func (r *GormRouteRepository) ClaimDue(ctx context.Context, now time.Time, checkInterval time.Duration, limit int) ([]uint, error) {
	cutoff := now.Add(-checkInterval)

	sub := `SELECT id FROM monitored_routes
		WHERE status = ? AND departure_at > ? AND (last_checked_at IS NULL OR last_checked_at <= ?)
		ORDER BY id LIMIT ?`
	if r.db.Dialector.Name() == "postgres" {
		sub += " FOR UPDATE SKIP LOCKED"
	}
	query := fmt.Sprintf(
		"UPDATE monitored_routes SET last_checked_at = ?, updated_at = ? WHERE id IN (%s) RETURNING id", sub)

	var ids []uint
	result := r.db.WithContext(ctx).
		Raw(query, now, now, entity.RouteStatusMonitoring, now, cutoff, limit).
		Scan(&ids)
	if result.Error != nil {
		return nil, fmt.Errorf("claim due routes: %w", result.Error)
	}
	return ids, nil
}

// MarkFound transitions MONITORING -> FOUND and snapshots the verified
// subscriber emails inside the same transaction. The conditional update makes
// duplicate check tasks lose the race instead of fanning out twice.
func (r *GormRouteRepository) MarkFound(ctx context.Context, routeID uint, foundAt time.Time) ([]string, error) {
	var emails []string

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&MonitoredRoutes{}).
			Where("id = ? AND status = ?", routeID, entity.RouteStatusMonitoring).
			Updates(map[string]interface{}{
				"status":   entity.RouteStatusFound,
				"found_at": foundAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return entity.ErrRouteNotMonitoring
		}

		return tx.Table("route_subscriptions").
			Select("users.email").
			Joins("JOIN users ON users.id = route_subscriptions.user_id").
			Where("route_subscriptions.route_id = ? AND users.verified = ?", routeID, true).
			Order("users.email").
			Scan(&emails).Error
	})
	if err != nil {
		if errors.Is(err, entity.ErrRouteNotMonitoring) {
			return nil, err
		}
		return nil, fmt.Errorf("mark route found: %w", err)
	}

	return emails, nil
}

// ExpireStale moves MONITORING routes past departure to EXPIRED
func (r *GormRouteRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&MonitoredRoutes{}).
		Where("status = ? AND departure_at <= ?", entity.RouteStatusMonitoring, now).
		Update("status", entity.RouteStatusExpired)
	if result.Error != nil {
		return 0, fmt.Errorf("expire stale routes: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Reactivate flips a FOUND route back to MONITORING. last_checked_at is
// stamped so the next scheduled check waits a full interval; the caller just
// checked availability itself.
func (r *GormRouteRepository) Reactivate(ctx context.Context, routeID uint, now time.Time) error {
	result := r.db.WithContext(ctx).Model(&MonitoredRoutes{}).
		Where("id = ? AND status = ?", routeID, entity.RouteStatusFound).
		Updates(map[string]interface{}{
			"status":          entity.RouteStatusMonitoring,
			"found_at":        nil,
			"last_checked_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("reactivate route: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return entity.ErrRouteNotRestartable
	}
	return nil
}

// DeleteIfOrphaned removes the route when no subscriptions reference it
func (r *GormRouteRepository) DeleteIfOrphaned(ctx context.Context, routeID uint) (bool, error) {
	result := r.db.WithContext(ctx).Exec(
		`DELETE FROM monitored_routes
		WHERE id = ? AND NOT EXISTS (SELECT 1 FROM route_subscriptions WHERE route_id = ?)`,
		routeID, routeID)
	if result.Error != nil {
		return false, fmt.Errorf("delete orphaned route: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}
