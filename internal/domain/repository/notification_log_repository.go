package repository

import (
	"context"

	"seatwatch-service/internal/domain/entity"
)

// NotificationLogRepository records notification deliveries for auditing
type NotificationLogRepository interface {
	Record(ctx context.Context, record *entity.DeliveryRecord) error
}
