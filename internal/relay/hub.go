package relay

import (
	"context"
	"time"

	"github.com/Tyrowin/gorelay/internal/logging"
)

// Link is a transport's handle on one connection. Only the hub loop touches
// the Connection behind it.
type Link struct {
	out  Outbound
	addr string
	conn *Connection
}

type eventKind int

const (
	eventOpen eventKind = iota
	eventPayload
	eventClose
	eventCall
)

type event struct {
	kind    eventKind
	link    *Link
	payload []byte
	call    func(*Relay)
	done    chan struct{}
}

// Hub serializes every registry and session mutation onto the goroutine
// running Run. Transports submit events; payloads from one link are handled
// in the order they were submitted.
type Hub struct {
	relay  *Relay
	events chan event
	links  map[*Link]struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a Hub around a new Relay.
func NewHub(cfg Config) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		relay:  New(cfg),
		events: make(chan event),
		links:  make(map[*Link]struct{}),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Run is the hub's event loop. It returns after Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownLinks()
			return
		case ev := <-h.events:
			h.apply(ev)
		}
	}
}

func (h *Hub) apply(ev event) {
	switch ev.kind {
	case eventOpen:
		ev.link.conn = h.relay.Open(ev.link.out, ev.link.addr)
		h.links[ev.link] = struct{}{}
	case eventPayload:
		if ev.link.conn != nil {
			ev.link.conn.Receive(ev.payload)
			h.forgetIfDone(ev.link)
		}
	case eventClose:
		if ev.link.conn != nil {
			ev.link.conn.Close()
			delete(h.links, ev.link)
		}
	case eventCall:
		ev.call(h.relay)
		close(ev.done)
	}
}

// A link whose connection ended from inside the relay (quit, eviction,
// rejected handshake) will still get a close event from its transport; until
// then it stays in the map so shutdown can reach it.
func (h *Hub) forgetIfDone(l *Link) {
	if l.conn.State() == StateTerminated {
		delete(h.links, l)
	}
}

func (h *Hub) submit(ev event) bool {
	select {
	case h.events <- ev:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Attach registers a new transport connection and returns its link. The
// returned link is usable even if the hub is already shutting down; its
// events are then ignored.
func (h *Hub) Attach(out Outbound, addr string) *Link {
	l := &Link{out: out, addr: addr}
	h.submit(event{kind: eventOpen, link: l})
	return l
}

// Deliver hands one inbound payload to the link's connection. It reports
// false once the hub has stopped.
func (h *Hub) Deliver(l *Link, payload []byte) bool {
	return h.submit(event{kind: eventPayload, link: l, payload: payload})
}

// Detach reports transport closure for the link.
func (h *Hub) Detach(l *Link) bool {
	return h.submit(event{kind: eventClose, link: l})
}

// Do runs fn on the hub loop and waits for it to finish. It reports false
// without running fn if the hub has stopped.
func (h *Hub) Do(fn func(*Relay)) bool {
	done := make(chan struct{})
	if !h.submit(event{kind: eventCall, call: fn, done: done}) {
		return false
	}
	<-done
	return true
}

// PeerCount returns the number of registered sessions, or -1 once the hub
// has stopped.
func (h *Hub) PeerCount() int {
	n := -1
	h.Do(func(r *Relay) { n = r.Sessions().Size() })
	return n
}

func (h *Hub) shutdownLinks() {
	log.WithFields(logging.Fields{
		"at":    "relay.Hub.shutdownLinks",
		"links": len(h.links),
	}).Info("closing_connections")

	for l := range h.links {
		l.conn.End(WhyServerShutdown)
	}
	clear(h.links)
}

// Shutdown stops the loop, ending every connection with reason
// "server shutdown", and waits up to timeout for Run to return.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.WithField("at", "relay.Hub.Shutdown").Info("hub_shutdown_started")
	h.cancel()

	select {
	case <-h.done:
		log.WithField("at", "relay.Hub.Shutdown").Info("hub_shutdown_completed")
		return nil
	case <-time.After(timeout):
		log.WithField("at", "relay.Hub.Shutdown").Warn("hub_shutdown_timeout")
		return context.DeadlineExceeded
	}
}
