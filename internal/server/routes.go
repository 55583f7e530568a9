// Package server wires HTTP handlers into a ServeMux for the relay via
// routing helpers.
package server

import (
	"net/http"

	"github.com/Tyrowin/gorelay/internal/telemetry"
)

// SetupRoutes configures and returns an HTTP ServeMux with all application routes:
// health check, WebSocket gateway and metrics.
func (s *Server) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/", telemetry.Instrument("health", http.HandlerFunc(s.HealthHandler)))
	mux.HandleFunc("/ws", s.WebSocketHandler)
	mux.Handle("/metrics", telemetry.MetricsHandler())
	return mux
}
