package relay

import "github.com/Tyrowin/gorelay/internal/telemetry"

// route dispatches m from s. Commands are checked first, then the
// destination; the first match wins.
func (r *Relay) route(s *Session, m Message) error {
	switch m.Cmd() {
	case CmdQuit:
		telemetry.MessagesTotal.WithLabelValues("quit").Inc()
		r.terminate(s, Reason{Why: WhyClientRequest})
		return nil

	case CmdListPeers:
		telemetry.MessagesTotal.WithLabelValues("list_peers").Inc()
		s.deliver(listPeersMessage(r.sessions.IDs(s.id)))
		return nil

	case CmdDeny:
		telemetry.MessagesTotal.WithLabelValues("deny").Inc()
		return r.deny(s, m)
	}

	dest, err := m.destination()
	if err != nil {
		return err
	}

	switch dest.Kind {
	case ManyTargets:
		telemetry.MessagesTotal.WithLabelValues("multicast").Inc()
		for _, id := range dest.IDs {
			// Unknown ids in a list are skipped without an error.
			if peer, ok := r.sessions.Get(id); ok {
				peer.deliver(m)
			}
		}
		return nil

	case OneTarget:
		telemetry.MessagesTotal.WithLabelValues("unicast").Inc()
		peer, ok := r.sessions.Get(dest.IDs[0])
		if !ok {
			return targetNotFound(dest.IDs[0])
		}
		peer.deliver(m)
		return nil

	default:
		telemetry.MessagesTotal.WithLabelValues("broadcast").Inc()
		r.broadcast(s.id, m)
		return nil
	}
}

func (r *Relay) deny(s *Session, m Message) error {
	id, ok := m[FieldID].(string)
	if !ok {
		return targetNotFound(m[FieldID])
	}
	target, ok := r.sessions.Get(id)
	if !ok {
		return targetNotFound(id)
	}

	votes, err := r.castVote(target, s)
	if err != nil {
		return err
	}
	s.deliver(denyAckMessage(votes))
	return nil
}
