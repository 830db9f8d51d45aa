package repository

import (
	"context"

	"seatwatch-service/internal/domain/entity"
)

// UserRepository defines the interface for user lookups
type UserRepository interface {
	// GetByID returns the user or ErrUserNotFound.
	GetByID(ctx context.Context, userID uint) (*entity.User, error)
}
