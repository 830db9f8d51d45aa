package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"seatwatch-service/internal/domain/entity"
	"seatwatch-service/pkg/logger"

	"github.com/gorilla/mux"
)

// MonitorAPI is the usecase surface the HTTP handlers depend on
type MonitorAPI interface {
	StartMonitoring(ctx context.Context, userID uint, req *entity.MonitorRequest) (*entity.MonitorResult, error)
	ListMonitoredRoutes(ctx context.Context, userID uint) ([]*entity.MonitoredRoute, error)
	CancelSubscription(ctx context.Context, userID, routeID uint) error
	RestartMonitoring(ctx context.Context, userID, routeID uint) (*entity.RestartResult, error)
}

// Handler serves the seat monitoring HTTP API
type Handler struct {
	monitor MonitorAPI
	logger  logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(monitor MonitorAPI, logger logger.Logger) *Handler {
	return &Handler{
		monitor: monitor,
		logger:  logger,
	}
}

type routePayload struct {
	ID              uint       `json:"id"`
	ProviderRouteID string     `json:"routeId"`
	FromStationID   string     `json:"fromStationId"`
	FromStationName string     `json:"fromStationName,omitempty"`
	ToStationID     string     `json:"toStationId"`
	ToStationName   string     `json:"toStationName,omitempty"`
	DepartureTime   time.Time  `json:"departureTime"`
	ArrivalTime     *time.Time `json:"arrivalTime,omitempty"`
	Status          string     `json:"status"`
	LastCheckedAt   *time.Time `json:"lastCheckedAt,omitempty"`
	FoundAt         *time.Time `json:"foundAt,omitempty"`
}

type availabilityPayload struct {
	FreeSeats   int     `json:"freeSeatsCount"`
	PriceFrom   float64 `json:"priceFrom"`
	PriceTo     float64 `json:"priceTo"`
	Currency    string  `json:"currency"`
	BookingLink string  `json:"bookingLink"`
}

type monitorResponse struct {
	Monitoring   bool                 `json:"monitoring"`
	Message      string               `json:"message"`
	Route        *routePayload        `json:"route,omitempty"`
	Availability *availabilityPayload `json:"availability,omitempty"`
}

type restartResponse struct {
	Restarted    bool                 `json:"restarted"`
	Availability *availabilityPayload `json:"availability,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toRoutePayload(route *entity.MonitoredRoute) *routePayload {
	return &routePayload{
		ID:              route.ID,
		ProviderRouteID: route.ProviderRouteID,
		FromStationID:   route.FromLocationID,
		FromStationName: route.FromLocationName,
		ToStationID:     route.ToLocationID,
		ToStationName:   route.ToLocationName,
		DepartureTime:   route.DepartureAt,
		ArrivalTime:     route.ArrivalAt,
		Status:          route.Status,
		LastCheckedAt:   route.LastCheckedAt,
		FoundAt:         route.FoundAt,
	}
}

func toAvailabilityPayload(avail *entity.Availability) *availabilityPayload {
	if avail == nil {
		return nil
	}
	return &availabilityPayload{
		FreeSeats:   avail.FreeSeats,
		PriceFrom:   avail.PriceFrom,
		PriceTo:     avail.PriceTo,
		Currency:    avail.Currency,
		BookingLink: avail.BookingLink,
	}
}

// StartMonitoring handles POST /api/routes/monitor
func (h *Handler) StartMonitoring(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req entity.MonitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.monitor.StartMonitoring(r.Context(), userID, &req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if !result.Monitoring {
		writeJSON(w, http.StatusOK, monitorResponse{
			Monitoring:   false,
			Message:      "seats are currently available, no monitoring needed",
			Availability: toAvailabilityPayload(result.Details),
		})
		return
	}

	writeJSON(w, http.StatusCreated, monitorResponse{
		Monitoring: true,
		Message:    "monitoring started",
		Route:      toRoutePayload(result.Route),
	})
}

// ListMonitored handles GET /api/routes/monitored
func (h *Handler) ListMonitored(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	routes, err := h.monitor.ListMonitoredRoutes(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	payload := make([]*routePayload, 0, len(routes))
	for _, route := range routes {
		payload = append(payload, toRoutePayload(route))
	}
	writeJSON(w, http.StatusOK, payload)
}

// CancelMonitoring handles DELETE /api/routes/monitor/{routeID}
func (h *Handler) CancelMonitoring(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	routeID, ok := h.routeID(w, r)
	if !ok {
		return
	}

	if err := h.monitor.CancelSubscription(r.Context(), userID, routeID); err != nil {
		if errors.Is(err, entity.ErrNotSubscribed) {
			writeError(w, http.StatusNotFound, "no subscription for this route")
			return
		}
		h.writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RestartMonitoring handles POST /api/routes/monitor/{routeID}/restart
func (h *Handler) RestartMonitoring(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	routeID, ok := h.routeID(w, r)
	if !ok {
		return
	}

	result, err := h.monitor.RestartMonitoring(r.Context(), userID, routeID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, restartResponse{
		Restarted:    result.Restarted,
		Availability: toAvailabilityPayload(result.Details),
	})
}

// userID reads the identity set by the upstream auth proxy
func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		writeError(w, http.StatusUnauthorized, "missing X-User-ID header")
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusUnauthorized, "invalid X-User-ID header")
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) routeID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	raw := mux.Vars(r)["routeID"]
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "invalid route id")
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entity.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, entity.ErrUserNotFound):
		writeError(w, http.StatusUnauthorized, "unknown user")
	case errors.Is(err, entity.ErrUserNotVerified):
		writeError(w, http.StatusForbidden, "email address not verified")
	case errors.Is(err, entity.ErrRouteNotFound):
		writeError(w, http.StatusNotFound, "route is not monitored")
	case errors.Is(err, entity.ErrNotSubscribed):
		writeError(w, http.StatusForbidden, "not subscribed to this route")
	case errors.Is(err, entity.ErrRouteNotRestartable):
		writeError(w, http.StatusConflict, "monitoring is still active for this route")
	case errors.Is(err, entity.ErrProviderUnavailable):
		writeError(w, http.StatusBadGateway, "seat availability provider unavailable")
	default:
		h.logger.Error("Request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
