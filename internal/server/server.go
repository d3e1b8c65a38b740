// Package server exposes the daemon's unix-socket protocol: a JSON
// handshake, then either a rendered-unit stream (subscribe) or a
// one-shot re-poll request (update).
package server

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/statline/internal/render"
	"github.com/jmylchreest/statline/internal/status"
)

// Triggerer is the scheduler surface the server needs.
type Triggerer interface {
	Trigger(name string)
	Has(name string) bool
	Names() []string
}

// Server accepts client connections and fans rendered snapshots out to
// subscribed sessions.
type Server struct {
	socketPath string
	composite  *status.Composite
	sched      Triggerer
	logger     *slog.Logger

	mu       sync.Mutex
	palette  render.Palette
	sessions map[string]*session
	listener net.Listener
}

// New creates a Server. Call Listen before Serve.
func New(socketPath string, composite *status.Composite, sched Triggerer, palette render.Palette, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		composite:  composite,
		sched:      sched,
		logger:     logger,
		palette:    palette,
		sessions:   make(map[string]*session),
	}
}

// Listen binds the unix socket. A stale socket file left by a dead
// daemon is removed; a live daemon on the socket is an error.
func (s *Server) Listen() error {
	if _, err := os.Stat(s.socketPath); err == nil {
		if conn, err := net.Dial("unix", s.socketPath); err == nil {
			conn.Close()
			return fmt.Errorf("socket %s is in use by another daemon", s.socketPath)
		}
		if err := os.Remove(s.socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket: %w", err)
		}
		s.logger.Debug("removed stale socket", "path", s.socketPath)
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.socketPath, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.logger.Info("listening", "socket", s.socketPath)
	return nil
}

// Addr returns the bound socket path.
func (s *Server) Addr() string {
	return s.socketPath
}

// Serve accepts connections until ctx is canceled, then tears down all
// sessions and removes the socket file.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return fmt.Errorf("server not listening")
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.shutdown()
				return nil
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}
		go s.handleConn(conn)
	}
}

func (s *Server) shutdown() {
	s.mu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
	os.Remove(s.socketPath)
}

func (s *Server) handleConn(conn net.Conn) {
	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		conn.Close()
		return
	}

	var hs Handshake
	if err := json.Unmarshal(line, &hs); err != nil {
		s.reject(conn, fmt.Sprintf("malformed handshake: %v", err))
		return
	}

	switch hs.Action {
	case ActionSubscribe:
		s.handleSubscribe(conn, hs)
	case ActionUpdate:
		s.handleUpdate(conn, hs)
	default:
		s.reject(conn, fmt.Sprintf("unknown action %q", hs.Action))
	}
}

func (s *Server) reject(conn net.Conn, reason string) {
	s.reply(conn, Reply{OK: false, Error: reason})
	conn.Close()
}

func (s *Server) reply(conn net.Conn, r Reply) {
	payload, err := json.Marshal(r)
	if err != nil {
		return
	}
	conn.Write(append(payload, '\n'))
}

func (s *Server) handleSubscribe(conn net.Conn, hs Handshake) {
	format, err := render.ParseFormat(hs.Format)
	if err != nil {
		s.reject(conn, err.Error())
		return
	}

	s.reply(conn, Reply{OK: true})

	id := ulid.MustNew(ulid.Now(), rand.Reader).String()
	sess := newSession(id, format, conn, s.logger)
	sess.onClose = s.unregister

	s.mu.Lock()
	s.sessions[id] = sess
	palette := s.palette
	s.mu.Unlock()

	go sess.writeLoop()
	s.logger.Info("session subscribed", "session", id, "format", format)

	// New subscribers see the current state right away, even before
	// the first revision after they join.
	snap := s.composite.Snapshot()
	unit, err := render.Render(format, snap, palette)
	if err != nil {
		s.logger.Warn("initial render failed", "session", id, "error", err)
		return
	}
	sess.queue(renderUnit{revision: snap.Revision, payload: unit}, true)
}

func (s *Server) handleUpdate(conn net.Conn, hs Handshake) {
	defer conn.Close()

	names := hs.Modules
	if len(names) == 0 {
		names = s.sched.Names()
	}

	var unknown []string
	for _, name := range names {
		if !s.sched.Has(name) {
			unknown = append(unknown, name)
			continue
		}
		s.sched.Trigger(name)
	}

	s.logger.Debug("update request", "modules", names, "unknown", unknown)
	s.reply(conn, Reply{OK: true, Unknown: unknown})
}

func (s *Server) unregister(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	s.logger.Info("session closed", "session", id)
}

// SetPalette swaps the render palette and pushes a re-render of the
// current revision to every session.
func (s *Server) SetPalette(p render.Palette) {
	s.mu.Lock()
	s.palette = p
	s.mu.Unlock()
	s.broadcast(true)
}

// Broadcast renders the current snapshot once per live format and
// queues it to every session. Called on every change signal.
func (s *Server) Broadcast() {
	s.broadcast(false)
}

func (s *Server) broadcast(force bool) {
	s.mu.Lock()
	palette := s.palette
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	if len(sessions) == 0 {
		return
	}

	snap := s.composite.Snapshot()
	cache := make(map[render.Format]string, 2)

	for _, sess := range sessions {
		unit, ok := cache[sess.format]
		if !ok {
			rendered, err := render.Render(sess.format, snap, palette)
			if err != nil {
				s.logger.Warn("render failed", "format", sess.format, "error", err)
				continue
			}
			unit = rendered
			cache[sess.format] = unit
		}
		sess.queue(renderUnit{revision: snap.Revision, payload: unit}, force)
	}
}

// SessionCount reports the number of live sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
