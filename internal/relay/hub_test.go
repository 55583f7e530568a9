package relay

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gorelay/internal/codec"
)

// syncRecorder is a recorder the test goroutine can read while the hub
// writes to it.
type syncRecorder struct {
	mu sync.Mutex
	recorder
}

func (r *syncRecorder) Send(p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recorder.Send(p)
}

func (r *syncRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recorder.Close()
}

func (r *syncRecorder) snapshot(t *testing.T) ([]Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recorder.messages(t), r.recorder.closed
}

func startHub(t *testing.T, ids ...string) *Hub {
	t.Helper()
	h := NewHub(Config{Codecs: codec.Default(), IDs: &fixedIDs{ids: ids}})
	go h.Run()
	t.Cleanup(func() { _ = h.Shutdown(time.Second) })
	return h
}

func TestHubRoutesBetweenLinks(t *testing.T) {
	h := startHub(t, "a", "b")

	outA, outB := &syncRecorder{}, &syncRecorder{}
	la := h.Attach(outA, "a")
	lb := h.Attach(outB, "b")
	require.True(t, h.Deliver(la, []byte("json")))
	require.True(t, h.Deliver(lb, []byte("json")))
	require.True(t, h.Deliver(la, []byte(`{"to": "b", "text": "hi"}`)))

	assert.Equal(t, 2, h.PeerCount())

	msgs, _ := outB.snapshot(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, "welcome", msgs[0].Cmd())
	assert.Equal(t, Message{"to": "b", "text": "hi", "from": "a"}, msgs[1])
}

func TestHubDetachAnnouncesDeparture(t *testing.T) {
	h := startHub(t, "a", "b")

	outA, outB := &syncRecorder{}, &syncRecorder{}
	la := h.Attach(outA, "a")
	lb := h.Attach(outB, "b")
	h.Deliver(la, []byte("json"))
	h.Deliver(lb, []byte("json"))
	require.True(t, h.Detach(la))

	assert.Equal(t, 1, h.PeerCount())
	msgs, _ := outB.snapshot(t)
	assert.Equal(t, "peer left", msgs[len(msgs)-1].Cmd())
	_, closed := outA.snapshot(t)
	assert.True(t, closed)
}

func TestHubShutdownEndsEveryConnection(t *testing.T) {
	h := NewHub(Config{Codecs: codec.Default(), IDs: &fixedIDs{ids: []string{"a", "b"}}})
	go h.Run()

	outA, outB, pending := &syncRecorder{}, &syncRecorder{}, &syncRecorder{}
	h.Deliver(h.Attach(outA, "a"), []byte("json"))
	h.Deliver(h.Attach(outB, "b"), []byte("json"))
	h.Attach(pending, "pending")
	require.Equal(t, 2, h.PeerCount())

	require.NoError(t, h.Shutdown(time.Second))

	for _, out := range []*syncRecorder{outA, outB} {
		msgs, closed := out.snapshot(t)
		assert.True(t, closed)
		assert.Contains(t, msgs, Message{"cmd": "end", "why": "server shutdown"})
	}
	_, closed := pending.snapshot(t)
	assert.True(t, closed, "handshaking links are closed too")

	assert.False(t, h.Deliver(&Link{}, []byte("json")))
	assert.Equal(t, -1, h.PeerCount())
}

func TestHubSerializesConcurrentSenders(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	h := startHub(t, ids...)

	outs := make([]*syncRecorder, len(ids))
	links := make([]*Link, len(ids))
	for i := range ids {
		outs[i] = &syncRecorder{}
		links[i] = h.Attach(outs[i], ids[i])
		h.Deliver(links[i], []byte("json"))
	}

	const perSender = 50
	var wg sync.WaitGroup
	for i := range links {
		wg.Add(1)
		go func(l *Link) {
			defer wg.Done()
			for n := 0; n < perSender; n++ {
				h.Deliver(l, []byte(`{"text": "x"}`))
			}
		}(links[i])
	}
	wg.Wait()
	require.Equal(t, len(ids), h.PeerCount())

	for i, out := range outs {
		msgs, _ := out.snapshot(t)
		relayed := 0
		for _, m := range msgs {
			if m["text"] == "x" {
				relayed++
			}
		}
		assert.Equal(t, perSender*(len(ids)-1), relayed, "peer %s", ids[i])
	}
}
