package repository

import (
	"context"
	"fmt"
	"time"

	"seatwatch-service/internal/domain/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSubscriptionRepository implements the SubscriptionRepository interface
type GormSubscriptionRepository struct {
	db *gorm.DB
}

// NewGormSubscriptionRepository creates a new GORM route subscription repository
func NewGormSubscriptionRepository(db *gorm.DB) repository.SubscriptionRepository {
	return &GormSubscriptionRepository{
		db: db,
	}
}

// RouteSubscriptions GORM model for database mapping
type RouteSubscriptions struct {
	UserID    uint `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	RouteID   uint `gorm:"column:route_id;primaryKey;autoIncrement:false"`
	CreatedAt time.Time
}

// TableName overrides the default table name
func (RouteSubscriptions) TableName() string {
	return "route_subscriptions"
}

// Create subscribes the user to the route; duplicate subscriptions are a no-op
func (r *GormSubscriptionRepository) Create(ctx context.Context, userID, routeID uint) (bool, error) {
	model := RouteSubscriptions{
		UserID:  userID,
		RouteID: routeID,
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "route_id"},
		},
		DoNothing: true,
	}).Create(&model)
	if result.Error != nil {
		return false, fmt.Errorf("create subscription: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Delete removes the subscription; reports whether one existed
func (r *GormSubscriptionRepository) Delete(ctx context.Context, userID, routeID uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND route_id = ?", userID, routeID).
		Delete(&RouteSubscriptions{})
	if result.Error != nil {
		return false, fmt.Errorf("delete subscription: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Exists reports whether the user is subscribed to the route
func (r *GormSubscriptionRepository) Exists(ctx context.Context, userID, routeID uint) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&RouteSubscriptions{}).
		Where("user_id = ? AND route_id = ?", userID, routeID).
		Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("check subscription: %w", result.Error)
	}
	return count > 0, nil
}
