package relay

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gorelay/internal/codec"
)

var errRecorderClosed = errors.New("recorder closed")

// recorder is an Outbound that keeps every payload it is sent.
type recorder struct {
	sent   [][]byte
	closed bool
}

func (r *recorder) Send(payload []byte) error {
	if r.closed {
		return errRecorderClosed
	}
	r.sent = append(r.sent, append([]byte(nil), payload...))
	return nil
}

func (r *recorder) Close() error {
	r.closed = true
	return nil
}

// messages decodes every recorded payload as JSON.
func (r *recorder) messages(t *testing.T) []Message {
	t.Helper()
	out := make([]Message, 0, len(r.sent))
	for _, p := range r.sent {
		m, err := codec.JSON{}.Parse(p)
		require.NoError(t, err, "payload %q", p)
		out = append(out, Message(m))
	}
	return out
}

func (r *recorder) last(t *testing.T) Message {
	t.Helper()
	msgs := r.messages(t)
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

func (r *recorder) reset() { r.sent = nil }

// fixedIDs hands out a predetermined list of ids.
type fixedIDs struct {
	ids []string
}

func (f *fixedIDs) NewID() string {
	id := f.ids[0]
	f.ids = f.ids[1:]
	return id
}

type peer struct {
	id   string
	out  *recorder
	conn *Connection
}

func (p *peer) send(t *testing.T, raw string) {
	t.Helper()
	p.conn.Receive([]byte(raw))
}

func newTestRelay(ids ...string) *Relay {
	return New(Config{Codecs: codec.Default(), IDs: &fixedIDs{ids: ids}})
}

// connect opens a connection and completes the json handshake.
func connect(t *testing.T, r *Relay, id string) *peer {
	t.Helper()
	out := &recorder{}
	conn := r.Open(out, "test:"+id)
	conn.Receive([]byte("json\n"))
	require.Equal(t, StateActive, conn.State())
	require.Equal(t, id, conn.Session().ID())
	return &peer{id: id, out: out, conn: conn}
}

// connectAll connects peers in order and clears their recorders.
func connectAll(t *testing.T, r *Relay, ids ...string) map[string]*peer {
	t.Helper()
	peers := make(map[string]*peer, len(ids))
	for _, id := range ids {
		peers[id] = connect(t, r, id)
	}
	for _, p := range peers {
		p.out.reset()
	}
	return peers
}

func cmds(msgs []Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Cmd())
	}
	return out
}
