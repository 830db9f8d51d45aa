package entity

import "time"

// RouteSubscription links a user to a monitored route
type RouteSubscription struct {
	UserID    uint
	RouteID   uint
	CreatedAt time.Time
}
