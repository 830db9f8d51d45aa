package repository

import (
	"context"
	"time"

	"seatwatch-service/internal/domain/entity"
)

// RouteRepository defines the interface for monitored route operations
type RouteRepository interface {
	// GetOrCreate returns the route row for the request's segment, creating
	// it when absent. A row found in FOUND or EXPIRED state is flipped back
	// to MONITORING. The bool reports whether a new row was inserted.
	GetOrCreate(ctx context.Context, route *entity.MonitoredRoute) (*entity.MonitoredRoute, bool, error)

	GetByID(ctx context.Context, routeID uint) (*entity.MonitoredRoute, error)

	// ListForUser returns the routes the user is subscribed to, soonest departure first.
	ListForUser(ctx context.Context, userID uint) ([]*entity.MonitoredRoute, error)

	// ClaimDue atomically selects up to limit MONITORING routes whose last
	// check is older than checkInterval (or never happened) and whose
	// departure is still ahead, stamps last_checked_at = now on them, and
	// returns their ids. Concurrent callers never receive the same route.
	ClaimDue(ctx context.Context, now time.Time, checkInterval time.Duration, limit int) ([]uint, error)

	// MarkFound transitions the route from MONITORING to FOUND and returns
	// the email addresses of its verified subscribers, snapshotted in the
	// same transaction. Returns ErrRouteNotMonitoring when the route already
	// left the MONITORING state.
	MarkFound(ctx context.Context, routeID uint, foundAt time.Time) ([]string, error)

	// ExpireStale moves MONITORING routes whose departure has passed to
	// EXPIRED and returns how many rows changed. Safe to call repeatedly.
	ExpireStale(ctx context.Context, now time.Time) (int64, error)

	// Reactivate flips a FOUND route back to MONITORING, clearing found_at
	// and stamping last_checked_at = now. Returns ErrRouteNotRestartable
	// when the route is not in FOUND state.
	Reactivate(ctx context.Context, routeID uint, now time.Time) error

	// DeleteIfOrphaned removes the route row when no subscriptions reference
	// it anymore; reports whether a row was deleted.
	DeleteIfOrphaned(ctx context.Context, routeID uint) (bool, error)
}
