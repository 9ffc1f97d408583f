// Package server accepts TCP connections and runs one session per connection
// against a shared board.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/dyluth/corkboard/internal/logging"
	"github.com/dyluth/corkboard/internal/metrics"
	"github.com/dyluth/corkboard/internal/session"
	"github.com/dyluth/corkboard/pkg/board"
	"github.com/sirupsen/logrus"
)

// Accept backoff bounds for temporary errors such as EMFILE
const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Server is the corkboard TCP server.
type Server struct {
	board   *board.Board
	events  session.EventSink
	metrics *metrics.Metrics
	log     *logrus.Entry

	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	closing  bool
	listener net.Listener
	wg       sync.WaitGroup
}

// Option configures optional Server collaborators.
type Option func(*Server)

// WithEvents publishes every successful mutation to sink.
func WithEvents(sink session.EventSink) Option {
	return func(s *Server) { s.events = sink }
}

// WithMetrics records sessions and commands in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a server for b.
func New(b *board.Board, opts ...Option) *Server {
	s := &Server{
		board: b,
		conns: make(map[net.Conn]struct{}),
		log:   logging.Component("server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListenAndServe listens on the TCP address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then closes the
// listener and every open connection and waits for all sessions to return.
// Returns nil after a cancellation-driven shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-stop:
		}
	}()

	s.log.WithField("addr", ln.Addr().String()).Info("Accepting connections")

	var serveErr error
	var tempDelay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			if isTemporary(err) {
				if tempDelay == 0 {
					tempDelay = minAcceptDelay
				} else {
					tempDelay *= 2
				}
				tempDelay = min(tempDelay, maxAcceptDelay)

				s.log.WithError(err).WithField("retry_in", tempDelay).Warn("Accept failed, retrying")
				select {
				case <-time.After(tempDelay):
				case <-ctx.Done():
				}
				continue
			}
			serveErr = fmt.Errorf("failed to accept connection: %w", err)
			break
		}
		tempDelay = 0

		if !s.track(conn) {
			conn.Close()
			break
		}

		s.wg.Add(1)
		go s.handle(ctx, conn)
	}

	s.shutdown()
	s.log.Info("Server stopped")
	return serveErr
}

// Addr returns the listening address, or nil before Serve has started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ActiveSessions returns the number of connections currently being served.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	opts := []session.Option{}
	if s.events != nil {
		opts = append(opts, session.WithEvents(s.events))
	}
	if s.metrics != nil {
		opts = append(opts, session.WithRecorder(s.metrics))
		s.metrics.SessionOpened()
		defer s.metrics.SessionClosed()
	}

	sess := session.New(s.board, conn, opts...)
	log := s.log.WithFields(logrus.Fields{"session": sess.ID(), "remote": conn.RemoteAddr().String()})
	log.Info("Client connected")

	if err := sess.Run(ctx); err != nil {
		log.WithError(err).Warn("Session ended with transport error")
		return
	}
	log.Info("Client disconnected")
}

// track registers conn unless the server is shutting down.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

// shutdown closes every tracked connection, unblocking their sessions, and waits.
func (s *Server) shutdown() {
	s.mu.Lock()
	s.closing = true
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// isTemporary reports whether an Accept error is worth retrying.
func isTemporary(err error) bool {
	var te interface{ Temporary() bool }
	return errors.As(err, &te) && te.Temporary()
}
