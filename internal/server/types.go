// Package server defines shared errors and utility helpers that are reused
// across the TCP and WebSocket clients.
package server

import (
	"errors"
	"strings"

	"github.com/Tyrowin/gorelay/internal/logging"
)

var log = logging.GetLogger()

var (
	// ErrClientClosed is returned by Send after the relay closed the client.
	ErrClientClosed = errors.New("server: client closed")
	// ErrSendBufferFull is returned by Send when the outbound queue is full.
	// The payload is dropped.
	ErrSendBufferFull = errors.New("server: send buffer full")
)

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset by peer")
}
