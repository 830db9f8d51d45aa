package repository

import (
	"context"

	"seatwatch-service/internal/domain/entity"
)

// AvailabilityChecker asks the provider whether seats are free on a route
// segment. Transient provider failures are reported with an error wrapping
// entity.ErrProviderUnavailable; a definitive "nothing bookable" answer is
// an Availability with Available=false and a nil error.
type AvailabilityChecker interface {
	Check(ctx context.Context, route *entity.MonitoredRoute) (*entity.Availability, error)
}
