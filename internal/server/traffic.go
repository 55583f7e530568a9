// Package server logs relayed traffic for operators.
package server

import (
	"github.com/Tyrowin/gorelay/internal/logging"
	"github.com/Tyrowin/gorelay/internal/relay"
	"github.com/Tyrowin/gorelay/internal/telemetry"
)

// TrafficObserver logs and counts every parsed inbound message. Plug it into
// relay.Config.Observer.
func TrafficObserver(from *relay.Session, m relay.Message) {
	telemetry.ObservedTotal.WithLabelValues(from.Codec().Name()).Inc()
	log.WithFields(logging.Fields{
		"at":    "server.TrafficObserver",
		"from":  from.ID(),
		"codec": from.Codec().Name(),
		"cmd":   m.Cmd(),
		"to":    m[relay.FieldTo],
	}).Debug("message_received")
}
