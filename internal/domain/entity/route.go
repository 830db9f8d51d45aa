package entity

import "time"

// Route monitoring statuses
const (
	RouteStatusMonitoring = "MONITORING"
	RouteStatusFound      = "FOUND"
	RouteStatusExpired    = "EXPIRED"
)

// Location types understood by the provider
const (
	LocationTypeStation = "STATION"
	LocationTypeCity    = "CITY"
)

// DefaultTariff is used when a monitor request names no fare classes
const DefaultTariff = "REGULAR"

// MonitoredRoute represents a sold-out route segment under observation.
// A segment is identified by the provider route plus the boarding and
// alighting locations; one row exists per segment regardless of how many
// users subscribed to it.
type MonitoredRoute struct {
	ID               uint
	ProviderRouteID  string
	FromLocationID   string
	FromLocationType string
	FromLocationName string
	ToLocationID     string
	ToLocationType   string
	ToLocationName   string
	TariffClasses    string
	DepartureAt      time.Time
	ArrivalAt        *time.Time
	Status           string
	LastCheckedAt    *time.Time
	FoundAt          *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// FromDisplayName returns the boarding location name, falling back to the raw id
func (r *MonitoredRoute) FromDisplayName() string {
	if r.FromLocationName != "" {
		return r.FromLocationName
	}
	return "stop " + r.FromLocationID
}

// ToDisplayName returns the alighting location name, falling back to the raw id
func (r *MonitoredRoute) ToDisplayName() string {
	if r.ToLocationName != "" {
		return r.ToLocationName
	}
	return "stop " + r.ToLocationID
}
