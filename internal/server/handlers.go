// Package server exposes HTTP handlers: the WebSocket gateway and the health
// check.
package server

import (
	"fmt"
	"net/http"

	"github.com/Tyrowin/gorelay/internal/logging"
)

// WebSocketHandler upgrades GET requests to WebSocket and serves the peer
// until it disconnects.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithFields(logging.Fields{
			"at":    "server.WebSocketHandler",
			"addr":  r.RemoteAddr,
			"error": err.Error(),
		}).Warn("websocket_upgrade_failed")
		return
	}

	client := NewClient(conn, s.hub, r.RemoteAddr, s.cfg)
	if !s.track(client.Run) {
		log.WithFields(logging.Fields{
			"at":   "server.WebSocketHandler",
			"addr": r.RemoteAddr,
		}).Debug("websocket_rejected_shutting_down")
		_ = conn.Close()
	}
}

// HealthHandler reports that the relay is up and how many peers it holds.
func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	peers := s.hub.PeerCount()
	if peers < 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = fmt.Fprint(w, "Relay is shutting down")
		return
	}
	_, _ = fmt.Fprintf(w, "Relay is running! %d peers connected", peers)
}
