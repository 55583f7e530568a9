// Package server constructs and starts the relay listeners with helpers
// that apply sensible production defaults.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/oops"

	"github.com/Tyrowin/gorelay/internal/logging"
	"github.com/Tyrowin/gorelay/internal/relay"
)

// Server owns the listeners and the hub behind them.
type Server struct {
	cfg        Config
	hub        *relay.Hub
	upgrader   websocket.Upgrader
	listener   net.Listener
	httpServer *http.Server
	wg         sync.WaitGroup
	mu         sync.Mutex
	closing    bool
}

// NewServer prepares a server for hub. Nothing is bound until Start.
func NewServer(cfg Config, hub *relay.Hub) *Server {
	cfg = sanitizeConfig(cfg)
	origins := newOriginPolicy(cfg.AllowedOrigins)
	return &Server{
		cfg: cfg,
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
	}
}

// CreateServer creates and configures an HTTP server with the specified address and handler.
// It sets reasonable timeout values for production use.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Hub returns the hub the server feeds.
func (s *Server) Hub() *relay.Hub { return s.hub }

// Addr returns the bound TCP address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start runs the hub, binds the TCP listener and, when configured, the HTTP
// listener. It returns once both are accepting.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return oops.In("server").With("addr", s.cfg.Addr).Wrapf(err, "listen tcp")
	}
	s.listener = ln

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.Run()
	}()
	log.WithField("at", "server.Start").Info("hub_started")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop()
	}()
	log.WithFields(logging.Fields{"at": "server.Start", "addr": ln.Addr().String()}).Info("tcp_listening")

	if s.cfg.HTTPAddr == "" {
		return nil
	}

	httpLn, err := net.Listen("tcp", s.cfg.HTTPAddr)
	if err != nil {
		_ = ln.Close()
		if herr := s.hub.Shutdown(time.Second); herr != nil {
			log.WithFields(logging.Fields{"at": "server.Start", "error": herr.Error()}).Warn("hub_shutdown_failed")
		}
		return oops.In("server").With("addr", s.cfg.HTTPAddr).Wrapf(err, "listen http")
	}
	s.httpServer = CreateServer(s.cfg.HTTPAddr, s.SetupRoutes())
	go func() {
		if err := s.httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithFields(logging.Fields{"at": "server.Start", "error": err.Error()}).Error("http_serve_failed")
		}
	}()
	log.WithFields(logging.Fields{"at": "server.Start", "addr": httpLn.Addr().String()}).Info("http_listening")
	return nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.WithFields(logging.Fields{"at": "server.acceptLoop", "error": err.Error()}).Warn("accept_failed")
			time.Sleep(50 * time.Millisecond)
			continue
		}

		client := NewTCPClient(conn, s.hub, s.cfg)
		if !s.track(client.Run) {
			_ = conn.Close()
		}
	}
}

// track runs fn on a goroutine counted by Shutdown. It reports false, without
// running fn, once Shutdown has begun waiting.
func (s *Server) track(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
	return true
}

// Shutdown stops accepting, ends every session with reason "server shutdown"
// and waits for connection goroutines, all within timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	log.WithField("at", "server.Shutdown").Info("shutdown_started")
	deadline := time.Now().Add(timeout)

	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.WithFields(logging.Fields{"at": "server.Shutdown", "error": err.Error()}).Warn("listener_close_failed")
		}
	}

	if s.httpServer != nil {
		ctx, cancel := context.WithDeadline(context.Background(), deadline)
		err := s.httpServer.Shutdown(ctx)
		cancel()
		if err != nil {
			return oops.In("server").Wrapf(err, "http shutdown")
		}
	}

	if err := s.hub.Shutdown(time.Until(deadline)); err != nil {
		return oops.In("server").Wrapf(err, "hub shutdown")
	}

	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.WithField("at", "server.Shutdown").Info("shutdown_completed")
		return nil
	case <-time.After(time.Until(deadline)):
		log.WithField("at", "server.Shutdown").Warn("shutdown_timeout")
		return context.DeadlineExceeded
	}
}
