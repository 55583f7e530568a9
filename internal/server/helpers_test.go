package server

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gorelay/internal/codec"
	"github.com/Tyrowin/gorelay/internal/ids"
	"github.com/Tyrowin/gorelay/internal/relay"
)

const (
	testOrigin  = "http://allowed.test"
	readTimeout = 2 * time.Second
)

// startTestServer runs a server on a loopback port with the HTTP listener
// disabled; WebSocket tests mount SetupRoutes on httptest instead.
func startTestServer(t *testing.T, tweak func(*Config)) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.HTTPAddr = ""
	cfg.AllowedOrigins = []string{testOrigin}
	if tweak != nil {
		tweak(&cfg)
	}

	hub := relay.NewHub(relay.Config{
		Codecs:   codec.Default(),
		IDs:      ids.NewGenerator(),
		Observer: TrafficObserver,
	})
	srv := NewServer(cfg, hub)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Shutdown(2 * time.Second) })
	return srv
}

// tcpPeer is a line-oriented test client.
type tcpPeer struct {
	id     string
	conn   net.Conn
	reader *bufio.Reader
	codec  codec.Codec
}

func dialTCP(t *testing.T, srv *Server) *tcpPeer {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &tcpPeer{conn: conn, reader: bufio.NewReader(conn)}
}

// joinTCP dials and completes the handshake with the named codec.
func joinTCP(t *testing.T, srv *Server, codecName string) *tcpPeer {
	t.Helper()
	p := dialTCP(t, srv)
	p.writeLine(t, codecName)

	c, ok := codec.Default().Lookup(codecName)
	require.True(t, ok)
	p.codec = c

	welcome := p.read(t)
	require.Equal(t, "welcome", welcome["cmd"])
	p.id = welcome["id"].(string)
	return p
}

func (p *tcpPeer) writeLine(t *testing.T, line string) {
	t.Helper()
	_, err := p.conn.Write([]byte(line + "\n"))
	require.NoError(t, err)
}

func (p *tcpPeer) readLine(t *testing.T) (string, error) {
	t.Helper()
	require.NoError(t, p.conn.SetReadDeadline(time.Now().Add(readTimeout)))
	line, err := p.reader.ReadString('\n')
	return strings.TrimRight(line, "\r\n"), err
}

func (p *tcpPeer) read(t *testing.T) map[string]any {
	t.Helper()
	line, err := p.readLine(t)
	require.NoError(t, err)
	m, err := p.codec.Parse([]byte(line))
	require.NoError(t, err, "line %q", line)
	return m
}

// expect reads until a message with the given cmd shows up.
func (p *tcpPeer) expect(t *testing.T, cmd string) map[string]any {
	t.Helper()
	for {
		m := p.read(t)
		if m["cmd"] == cmd {
			return m
		}
	}
}

// expectClosed reads until the server closes the connection.
func (p *tcpPeer) expectClosed(t *testing.T) {
	t.Helper()
	for {
		_, err := p.readLine(t)
		if err == nil {
			continue
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			t.Fatalf("connection still open: %v", err)
		}
		return
	}
}

// waitForPeers polls the hub until it holds n sessions.
func waitForPeers(t *testing.T, srv *Server, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return srv.Hub().PeerCount() == n }, readTimeout, 10*time.Millisecond)
}

func readWS(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	msgType, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, msgType)
	m, err := codec.JSON{}.Parse(payload)
	require.NoError(t, err, "frame %q", payload)
	return m
}
