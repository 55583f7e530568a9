package relay

import (
	"slices"

	"github.com/Tyrowin/gorelay/internal/codec"
	"github.com/Tyrowin/gorelay/internal/logging"
)

var log = logging.GetLogger()

// Outbound is the write side of one peer connection. Send queues a single
// payload; the transport adds its own framing.
type Outbound interface {
	Send(payload []byte) error
	Close() error
}

// Session is the server-side record of one connected peer.
type Session struct {
	id       string
	codec    codec.Codec
	out      Outbound
	addr     string
	deniers  []string
	finished bool
}

func newSession(id string, c codec.Codec, out Outbound, addr string) *Session {
	return &Session{id: id, codec: c, out: out, addr: addr}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Codec returns the codec negotiated at handshake.
func (s *Session) Codec() codec.Codec { return s.codec }

// Deniers returns the ids that voted against this session, in vote order.
func (s *Session) Deniers() []string { return slices.Clone(s.deniers) }

func (s *Session) deniedBy(voter string) bool {
	return slices.Contains(s.deniers, voter)
}

// deliver renders m with the session's codec and queues it. Delivery errors
// only affect this session, so they are logged and not propagated.
func (s *Session) deliver(m Message) bool {
	payload, err := s.codec.Render(m)
	if err != nil {
		log.WithFields(logging.Fields{
			"at":      "relay.Session.deliver",
			"session": s.id,
			"addr":    s.addr,
			"cmd":     m.Cmd(),
			"error":   err.Error(),
		}).Error("render_failed")
		return false
	}
	if err := s.out.Send(payload); err != nil {
		log.WithFields(logging.Fields{
			"at":      "relay.Session.deliver",
			"session": s.id,
			"addr":    s.addr,
			"error":   err.Error(),
		}).Debug("send_failed")
		return false
	}
	return true
}

func (s *Session) close() {
	s.finished = true
	if err := s.out.Close(); err != nil {
		log.WithFields(logging.Fields{
			"at":      "relay.Session.close",
			"session": s.id,
			"error":   err.Error(),
		}).Debug("close_failed")
	}
}
