package entity

import "time"

// Task statuses
const (
	TaskStatusPending    = "PENDING"
	TaskStatusProcessing = "PROCESSING"
	TaskStatusCompleted  = "COMPLETED"
	TaskStatusDead       = "DEAD"
)

// Task kinds
const (
	TaskKindRouteCheck   = "route_check"
	TaskKindNotification = "notification"
)

// Task is one unit of deferred work in the durable queue. Delivery is
// at-least-once: a task claimed by a crashed worker is requeued after its
// lease expires, so handlers must tolerate duplicate execution.
type Task struct {
	ID          string
	Kind        string
	Payload     string
	Status      string
	Attempts    int
	MaxAttempts int
	RunAt       time.Time
	LockedAt    *time.Time
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CheckTaskPayload is the payload of a route_check task
type CheckTaskPayload struct {
	RouteID uint `json:"routeId"`
}

// RouteSnapshot carries the route fields a notification needs, captured at
// the moment seats were found so later route changes cannot alter the email.
type RouteSnapshot struct {
	RouteID         uint      `json:"routeId"`
	ProviderRouteID string    `json:"providerRouteId"`
	FromName        string    `json:"fromName"`
	ToName          string    `json:"toName"`
	DepartureAt     time.Time `json:"departureAt"`
}

// NotifyTaskPayload is the payload of a notification task
type NotifyTaskPayload struct {
	Recipient string        `json:"recipient"`
	Subject   string        `json:"subject"`
	Body      string        `json:"body"`
	Route     RouteSnapshot `json:"route"`
}
