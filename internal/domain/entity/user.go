package entity

import "time"

// User represents an account provisioned by the upstream auth service.
// Only users with a verified email address receive notifications.
type User struct {
	ID        uint
	Email     string
	Verified  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
