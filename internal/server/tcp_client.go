// Package server manages raw TCP peers: a line reader feeding the hub and a
// writer draining the outbound queue.
package server

import (
	"bufio"
	"bytes"
	"errors"
	"net"
	"os"
	"sync"
	"time"

	"github.com/Tyrowin/gorelay/internal/logging"
	"github.com/Tyrowin/gorelay/internal/relay"
	"github.com/Tyrowin/gorelay/internal/telemetry"
)

var lineBreak = []byte{'\n'}

// TCPClient is one raw TCP peer. Send and Close are called from the hub loop
// only.
type TCPClient struct {
	conn        net.Conn
	send        chan []byte
	stop        chan struct{}
	stopOnce    sync.Once
	hub         *relay.Hub
	link        *relay.Link
	addr        string
	closed      bool
	cfg         Config
	rateLimiter *rateLimiter
}

// NewTCPClient wraps an accepted connection.
func NewTCPClient(conn net.Conn, hub *relay.Hub, cfg Config) *TCPClient {
	return &TCPClient{
		conn:        conn,
		send:        make(chan []byte, cfg.SendBuffer),
		stop:        make(chan struct{}),
		hub:         hub,
		addr:        conn.RemoteAddr().String(),
		cfg:         cfg,
		rateLimiter: newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
	}
}

// Send queues one payload. It never blocks.
func (c *TCPClient) Send(payload []byte) error {
	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		telemetry.DroppedTotal.WithLabelValues("send_buffer_full").Inc()
		log.WithFields(logging.Fields{
			"at":   "server.TCPClient.Send",
			"addr": c.addr,
		}).Warn("send_buffer_full")
		return ErrSendBufferFull
	}
}

// Close lets the writer flush what is queued and then closes the socket.
func (c *TCPClient) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.send)
	return nil
}

// Run attaches the client to the hub and serves it until the connection ends.
func (c *TCPClient) Run() {
	c.link = c.hub.Attach(c, c.addr)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writePump()
	}()
	c.readPump()
	wg.Wait()
}

func (c *TCPClient) readPump() {
	defer func() {
		if !c.hub.Detach(c.link) {
			c.halt()
		}
	}()

	if c.cfg.HandshakeTimeout > 0 {
		c.setReadDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	}

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 4096), int(c.cfg.MaxMessageSize)+2)

	first := true
	for scanner.Scan() {
		payload := bytes.Clone(scanner.Bytes())
		if first {
			first = false
			if c.cfg.HandshakeTimeout > 0 {
				c.setReadDeadline(time.Time{})
			}
		} else if !c.rateLimiter.allow() {
			telemetry.DroppedTotal.WithLabelValues("rate_limited").Inc()
			log.WithFields(logging.Fields{
				"at":       "server.TCPClient.readPump",
				"addr":     c.addr,
				"burst":    c.cfg.RateLimit.Burst,
				"interval": c.cfg.RateLimit.RefillInterval.String(),
			}).Warn("rate_limit_exceeded")
			continue
		}

		if !c.hub.Deliver(c.link, payload) {
			return
		}
	}
	c.logReadError(scanner.Err())
}

func (c *TCPClient) logReadError(err error) {
	entry := log.WithFields(logging.Fields{"at": "server.TCPClient.readPump", "addr": c.addr})
	switch {
	case err == nil:
		entry.Debug("connection_closed")
	case errors.Is(err, bufio.ErrTooLong):
		entry.WithField("max", c.cfg.MaxMessageSize).Warn("message_too_large")
	case errors.Is(err, os.ErrDeadlineExceeded):
		entry.Info("handshake_timeout")
	case isExpectedCloseError(err):
		entry.Debug("connection_closed")
	default:
		entry.WithError(err).Warn("read_failed")
	}
}

func (c *TCPClient) setReadDeadline(t time.Time) {
	if err := c.conn.SetReadDeadline(t); err != nil {
		log.WithFields(logging.Fields{
			"at":    "server.TCPClient.setReadDeadline",
			"addr":  c.addr,
			"error": err.Error(),
		}).Debug("set_deadline_failed")
	}
}

// halt is used when the hub is gone and will never close the client.
func (c *TCPClient) halt() {
	c.stopOnce.Do(func() { close(c.stop) })
	c.closeConnection()
}

func (c *TCPClient) writePump() {
	defer c.closeConnection()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				return
			}
			if !c.write(payload) {
				return
			}
		case <-c.stop:
			return
		}
	}
}

func (c *TCPClient) write(payload []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		log.WithFields(logging.Fields{
			"at":    "server.TCPClient.write",
			"addr":  c.addr,
			"error": err.Error(),
		}).Debug("set_deadline_failed")
		return false
	}
	bufs := net.Buffers{payload, lineBreak}
	if _, err := bufs.WriteTo(c.conn); err != nil {
		if !isExpectedCloseError(err) {
			log.WithFields(logging.Fields{
				"at":    "server.TCPClient.write",
				"addr":  c.addr,
				"error": err.Error(),
			}).Warn("write_failed")
		}
		return false
	}
	return true
}

func (c *TCPClient) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		log.WithFields(logging.Fields{
			"at":    "server.TCPClient.closeConnection",
			"addr":  c.addr,
			"error": err.Error(),
		}).Debug("close_failed")
	}
}
