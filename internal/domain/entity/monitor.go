package entity

import "time"

// MonitorRequest describes a route segment a user wants watched
type MonitorRequest struct {
	ProviderRouteID  string     `json:"routeId"`
	FromLocationID   string     `json:"fromStationId"`
	FromLocationType string     `json:"fromStationType"`
	FromLocationName string     `json:"fromStationName"`
	ToLocationID     string     `json:"toStationId"`
	ToLocationType   string     `json:"toStationType"`
	ToLocationName   string     `json:"toStationName"`
	TariffClasses    string     `json:"tariffs"`
	DepartureAt      time.Time  `json:"departureTime"`
	ArrivalAt        *time.Time `json:"arrivalTime,omitempty"`
}

// MonitorResult is the outcome of a start-monitoring request. When seats are
// available right away no watch is created and Details carries the offer.
type MonitorResult struct {
	Monitoring bool
	Created    bool
	Route      *MonitoredRoute
	Details    *Availability
}

// RestartResult is the outcome of a restart-monitoring request
type RestartResult struct {
	Restarted bool
	Details   *Availability
}
