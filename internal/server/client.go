// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/gorelay/internal/logging"
	"github.com/Tyrowin/gorelay/internal/relay"
	"github.com/Tyrowin/gorelay/internal/telemetry"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Client represents a WebSocket peer. Every text frame it sends is one relay
// payload and every payload the relay sends it becomes one text frame. Send
// and Close are called from the hub loop only.
type Client struct {
	conn           *websocket.Conn
	send           chan []byte
	stop           chan struct{}
	stopOnce       sync.Once
	hub            *relay.Hub
	link           *relay.Link
	addr           string
	closed         bool
	maxMessageSize int64
	writeTimeout   time.Duration
	rateLimiter    *rateLimiter
	rateLimit      RateLimitConfig
}

// NewClient creates a new Client instance with the provided WebSocket connection,
// hub reference, and client address. The client's send channel is buffered
// to handle message queuing.
func NewClient(conn *websocket.Conn, hub *relay.Hub, addr string, cfg Config) *Client {
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Client{
		conn:           conn,
		send:           make(chan []byte, cfg.SendBuffer),
		stop:           make(chan struct{}),
		hub:            hub,
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		writeTimeout:   cfg.WriteTimeout,
		rateLimiter:    newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rateLimit:      cfg.RateLimit,
	}
}

// Send queues one payload. It never blocks.
func (c *Client) Send(payload []byte) error {
	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		telemetry.DroppedTotal.WithLabelValues("send_buffer_full").Inc()
		log.WithFields(logging.Fields{
			"at":   "server.Client.Send",
			"addr": c.addr,
		}).Warn("send_buffer_full")
		return ErrSendBufferFull
	}
}

// Close lets the write pump flush what is queued, send a close frame and
// close the connection.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.send)
	return nil
}

// Run attaches the client to the hub and pumps until the connection ends.
func (c *Client) Run() {
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

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logDebug("server.Client.setupReadConnection", "set_deadline_failed", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.logDebug("server.Client.pongHandler", "set_deadline_failed", err)
		}
		return nil
	})
}

// handleReadError logs the reason the read loop ended.
func (c *Client) handleReadError(err error) {
	entry := log.WithFields(logging.Fields{"at": "server.Client.readPump", "addr": c.addr})

	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		entry.WithField("max", c.maxMessageSize).Warn("message_too_large")
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		entry.Debug("client_disconnected")
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		entry.Debug("connection_closed")
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		entry.WithError(err).Warn("unexpected_close")
	default:
		entry.WithError(err).Warn("read_failed")
	}
}

// checkRateLimit verifies if the client has exceeded rate limits
// and returns true if the message should be processed
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		telemetry.DroppedTotal.WithLabelValues("rate_limited").Inc()
		log.WithFields(logging.Fields{
			"at":       "server.Client.checkRateLimit",
			"addr":     c.addr,
			"burst":    c.rateLimit.Burst,
			"interval": c.rateLimit.RefillInterval.String(),
		}).Warn("rate_limit_exceeded")
		return false
	}
	return true
}

func (c *Client) readPump() {
	defer func() {
		if !c.hub.Detach(c.link) {
			c.stopOnce.Do(func() { close(c.stop) })
			c.closeConnection()
		}
	}()

	c.setupReadConnection()

	first := true
	for {
		msgType, payload, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		// The handshake frame is never throttled.
		if !first && !c.checkRateLimit() {
			continue
		}
		first = false

		if !c.hub.Deliver(c.link, payload) {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	case <-c.stop:
		return false
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.logDebug("server.Client.closeConnection", "close_failed", err)
	}
}

// handleMessage processes outgoing messages and returns false if the connection should be closed
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		c.logDebug("server.Client.handleMessage", "set_deadline_failed", err)
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			log.WithFields(logging.Fields{
				"at":    "server.Client.handleMessage",
				"addr":  c.addr,
				"error": err.Error(),
			}).Warn("write_failed")
		}
		return false
	}
	return true
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteMessage(websocket.CloseMessage, msg); err != nil && !isExpectedCloseError(err) {
		c.logDebug("server.Client.writeCloseMessage", "close_frame_failed", err)
	}
	return false
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		c.logDebug("server.Client.handlePing", "set_deadline_failed", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logDebug("server.Client.handlePing", "ping_failed", err)
		return false
	}
	return true
}

func (c *Client) logDebug(at, event string, err error) {
	log.WithFields(logging.Fields{
		"at":    at,
		"addr":  c.addr,
		"error": err.Error(),
	}).Debug(event)
}
