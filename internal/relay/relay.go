package relay

import (
	"github.com/Tyrowin/gorelay/internal/codec"
	"github.com/Tyrowin/gorelay/internal/logging"
	"github.com/Tyrowin/gorelay/internal/telemetry"
)

// Codecs resolves a handshake token to a codec.
type Codecs interface {
	Lookup(name string) (codec.Codec, bool)
}

// IDSource hands out identifiers that are never reused while a session lives.
type IDSource interface {
	NewID() string
}

// Observer sees every successfully parsed inbound message before it is routed.
type Observer func(from *Session, m Message)

// Config wires a Relay to its collaborators.
type Config struct {
	Codecs   Codecs
	IDs      IDSource
	Observer Observer
}

// Relay holds the session registry and applies the routing and voting rules.
// Its methods must be called from one goroutine at a time.
type Relay struct {
	codecs   Codecs
	ids      IDSource
	observe  Observer
	sessions *Registry
}

// New returns a Relay with an empty registry.
func New(cfg Config) *Relay {
	return &Relay{
		codecs:   cfg.Codecs,
		ids:      cfg.IDs,
		observe:  cfg.Observer,
		sessions: NewRegistry(),
	}
}

// Sessions exposes the registry for inspection.
func (r *Relay) Sessions() *Registry { return r.sessions }

// Open starts the state machine for a new transport connection.
func (r *Relay) Open(out Outbound, addr string) *Connection {
	return &Connection{relay: r, out: out, addr: addr, state: StateHandshaking}
}

// broadcast delivers m to every session except the one with id exclude.
func (r *Relay) broadcast(exclude string, m Message) {
	r.sessions.ForEach(exclude, func(s *Session) {
		s.deliver(m)
	})
}

// terminate ends s: unregister, tell it why, release its connection and
// notify everyone left. A session already gone is left alone.
func (r *Relay) terminate(s *Session, reason Reason) {
	if _, ok := r.sessions.Unregister(s.id); !ok {
		return
	}
	telemetry.SessionsActive.Dec()

	s.deliver(endMessage(reason))
	s.close()
	r.broadcast("", peerLeftMessage(s.id, reason))

	log.WithFields(logging.Fields{
		"at":        "relay.terminate",
		"session":   s.id,
		"why":       reason.Why,
		"by":        reason.By,
		"remaining": r.sessions.Size(),
	}).Info("session_terminated")
}
