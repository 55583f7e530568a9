package relay

import (
	"bytes"

	"github.com/samber/oops"

	"github.com/Tyrowin/gorelay/internal/logging"
	"github.com/Tyrowin/gorelay/internal/telemetry"
)

// State is the lifecycle position of a Connection.
type State int

const (
	StateHandshaking State = iota
	StateActive
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateActive:
		return "active"
	default:
		return "terminated"
	}
}

// Connection drives one transport connection from handshake to termination.
// It is advanced by Receive (bytes arrived) and Close (transport closed).
type Connection struct {
	relay   *Relay
	out     Outbound
	addr    string
	state   State
	session *Session
}

// State returns the current state. An active connection whose session was
// ended elsewhere (quit, eviction) reports StateTerminated.
func (c *Connection) State() State {
	if c.state == StateActive && c.session.finished {
		c.state = StateTerminated
	}
	return c.state
}

// Session returns the session bound at handshake, or nil before it.
func (c *Connection) Session() *Session { return c.session }

// Receive feeds one inbound payload to the state machine.
func (c *Connection) Receive(payload []byte) {
	switch c.State() {
	case StateHandshaking:
		c.handshake(payload)
	case StateActive:
		c.handle(payload)
	}
}

// Close handles transport closure.
func (c *Connection) Close() {
	c.End(WhyConnectionClose)
}

// End terminates the connection with the given reason. Before the handshake
// there is no session to announce, so the transport is simply released.
func (c *Connection) End(why string) {
	switch c.State() {
	case StateHandshaking:
		c.state = StateTerminated
		_ = c.out.Close()
	case StateActive:
		c.relay.terminate(c.session, Reason{Why: why})
		c.state = StateTerminated
	}
}

func (c *Connection) handshake(payload []byte) {
	r := c.relay
	name := string(bytes.TrimSpace(payload))

	cd, ok := r.codecs.Lookup(name)
	if !ok {
		telemetry.HandshakesTotal.WithLabelValues("rejected").Inc()
		log.WithFields(logging.Fields{
			"at":    "relay.Connection.handshake",
			"addr":  c.addr,
			"codec": name,
		}).Warn("handshake_rejected")
		c.reject(handshakeErrorLine(name))
		return
	}

	s := newSession(r.ids.NewID(), cd, c.out, c.addr)
	if err := r.sessions.Register(s); err != nil {
		telemetry.HandshakesTotal.WithLabelValues("rejected").Inc()
		log.WithFields(logging.Fields{
			"at":    "relay.Connection.handshake",
			"addr":  c.addr,
			"error": err.Error(),
		}).Error("session_register_failed")
		c.reject([]byte("ERROR: could not create session"))
		return
	}
	telemetry.HandshakesTotal.WithLabelValues("accepted").Inc()
	telemetry.SessionsActive.Inc()

	c.session = s
	c.state = StateActive
	s.deliver(welcomeMessage(s.id))
	r.broadcast(s.id, peerConnectedMessage(s.id))

	log.WithFields(logging.Fields{
		"at":      "relay.Connection.handshake",
		"addr":    c.addr,
		"session": s.id,
		"codec":   cd.Name(),
		"peers":   r.sessions.Size(),
	}).Info("session_registered")
}

func (c *Connection) reject(line []byte) {
	if err := c.out.Send(line); err != nil {
		log.WithFields(logging.Fields{
			"at":    "relay.Connection.reject",
			"addr":  c.addr,
			"error": err.Error(),
		}).Debug("send_failed")
	}
	_ = c.out.Close()
	c.state = StateTerminated
}

// handle processes one payload in StateActive. Every failure, a panic
// included, ends here and is reported to the sender only.
func (c *Connection) handle(payload []byte) {
	var err error
	if perr := oops.In("relay").With("session", c.session.id).Recoverf(func() {
		err = c.process(payload)
	}, "message handling panicked"); perr != nil {
		err = internalFailure(perr)
	}
	if err != nil {
		c.report(err)
	}
}

func (c *Connection) process(payload []byte) error {
	s := c.session
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return syntaxFailure(trimmed, nil)
	}

	parsed, err := s.codec.Parse(trimmed)
	if err != nil {
		return syntaxFailure(trimmed, err)
	}

	m := Message(parsed)
	m[FieldFrom] = s.id
	if obs := c.relay.observe; obs != nil {
		obs(s, m)
	}
	return c.relay.route(s, m)
}

func (c *Connection) report(err error) {
	f := asFailure(err)
	telemetry.FailuresTotal.WithLabelValues(f.Kind.String()).Inc()

	entry := log.WithFields(logging.Fields{
		"at":      "relay.Connection.report",
		"session": c.session.id,
		"kind":    f.Kind.String(),
		"type":    f.Type,
		"error":   err.Error(),
	})
	if f.Kind == InternalFailure {
		entry.Error("message_failed")
	} else {
		entry.Debug("message_rejected")
	}

	if c.State() != StateActive {
		return
	}
	c.session.deliver(f.wire())
}
