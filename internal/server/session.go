package server

import (
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/jmylchreest/statline/internal/render"
)

// renderUnit is one rendered line queued for delivery.
type renderUnit struct {
	revision uint64
	payload  string
}

// session is one subscribed client. Its mailbox holds at most the
// latest undelivered unit, so a slow reader only ever skips forward.
type session struct {
	id     string
	format render.Format
	conn   net.Conn
	logger *slog.Logger

	mailbox   chan renderUnit
	done      chan struct{}
	closeOnce sync.Once

	// Highest revision ever queued; guards monotonic delivery.
	lastQueued atomic.Uint64

	onClose func(id string)
}

func newSession(id string, format render.Format, conn net.Conn, logger *slog.Logger) *session {
	return &session{
		id:      id,
		format:  format,
		conn:    conn,
		logger:  logger,
		mailbox: make(chan renderUnit, 1),
		done:    make(chan struct{}),
	}
}

// queue hands a unit to the writer without ever blocking the caller.
// A unit already superseded in the mailbox is dropped.
func (s *session) queue(u renderUnit, force bool) {
	if !force && u.revision <= s.lastQueued.Load() && u.revision != 0 {
		return
	}
	s.lastQueued.Store(u.revision)

	select {
	case s.mailbox <- u:
		return
	default:
	}
	// Mailbox full: replace the stale unit with the newer one.
	select {
	case <-s.mailbox:
	default:
	}
	select {
	case s.mailbox <- u:
	default:
	}
}

// writeLoop delivers mailbox units until the connection dies or the
// session is closed. Runs on its own goroutine; a stuck client only
// stalls this loop.
func (s *session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case u := <-s.mailbox:
			if _, err := s.conn.Write([]byte(u.payload + "\n")); err != nil {
				s.logger.Debug("session write failed, closing", "session", s.id, "error", err)
				s.close()
				if s.onClose != nil {
					s.onClose(s.id)
				}
				return
			}
		}
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}
