package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"seatwatch-service/internal/domain/entity"
	"seatwatch-service/internal/domain/repository"

	"gorm.io/gorm"
)

// GormUserRepository implements the UserRepository interface
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM user repository
func NewGormUserRepository(db *gorm.DB) repository.UserRepository {
	return &GormUserRepository{
		db: db,
	}
}

// Users GORM model for database mapping
type Users struct {
	ID        uint   `gorm:"primaryKey"`
	Email     string `gorm:"column:email;uniqueIndex"`
	Verified  bool   `gorm:"column:verified"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the default table name
func (Users) TableName() string {
	return "users"
}

// GetByID finds a user by id
func (r *GormUserRepository) GetByID(ctx context.Context, userID uint) (*entity.User, error) {
	var model Users
	result := r.db.WithContext(ctx).First(&model, userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, entity.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", result.Error)
	}

	return &entity.User{
		ID:        model.ID,
		Email:     model.Email,
		Verified:  model.Verified,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}, nil
}
