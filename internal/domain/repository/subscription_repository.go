package repository

import "context"

// SubscriptionRepository defines the interface for route subscription operations
type SubscriptionRepository interface {
	// Create subscribes the user to the route; reports whether a new
	// subscription was inserted. Subscribing twice is not an error.
	Create(ctx context.Context, userID, routeID uint) (bool, error)

	// Delete removes the subscription; reports whether one existed.
	Delete(ctx context.Context, userID, routeID uint) (bool, error)

	Exists(ctx context.Context, userID, routeID uint) (bool, error)
}
