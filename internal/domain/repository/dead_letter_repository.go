package repository

import (
	"context"

	"seatwatch-service/internal/domain/entity"
)

// DeadLetterRepository archives tasks the queue gave up on
type DeadLetterRepository interface {
	Archive(ctx context.Context, letter *entity.DeadLetter) error
}
