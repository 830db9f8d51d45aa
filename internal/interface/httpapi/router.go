// internal/interface/httpapi/router.go
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes wires the monitoring API onto the router
func SetupRoutes(router *mux.Router, handler *Handler) {
	router.HandleFunc("/api/routes/monitor", handler.StartMonitoring).Methods(http.MethodPost)
	router.HandleFunc("/api/routes/monitored", handler.ListMonitored).Methods(http.MethodGet)
	router.HandleFunc("/api/routes/monitor/{routeID}", handler.CancelMonitoring).Methods(http.MethodDelete)
	router.HandleFunc("/api/routes/monitor/{routeID}/restart", handler.RestartMonitoring).Methods(http.MethodPost)
}
