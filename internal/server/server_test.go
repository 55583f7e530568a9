package server

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gorelay/internal/codec"
	"github.com/Tyrowin/gorelay/internal/ids"
	"github.com/Tyrowin/gorelay/internal/relay"
)

func TestStartStopsHubWhenHTTPListenFails(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = taken.Close() })

	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.HTTPAddr = taken.Addr().String()

	hub := relay.NewHub(relay.Config{Codecs: codec.Default(), IDs: ids.NewGenerator()})
	srv := NewServer(cfg, hub)
	require.Error(t, srv.Start())

	assert.Equal(t, -1, hub.PeerCount(), "hub loop should be stopped")

	_, err = net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	assert.Error(t, err, "tcp listener should be closed")
}

func TestWebSocketAfterShutdownIsClosed(t *testing.T) {
	srv := startTestServer(t, nil)
	ts := startHTTP(t, srv)
	require.NoError(t, srv.Shutdown(2*time.Second))

	conn, _, err := dialWS(t, ts, testOrigin)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	var netErr net.Error
	if errors.As(err, &netErr) {
		assert.False(t, netErr.Timeout(), "connection should be closed, not idle")
	}
}
