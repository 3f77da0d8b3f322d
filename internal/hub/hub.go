// Package hub maintains the set of connected live-view sessions and fans
// poll-cycle deltas out to all of them. Each new session receives one cache
// snapshot per stream on connect; a session that fails or falls behind is
// detached without affecting delivery to the others.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soclens/soclens/internal/logging"
	"github.com/soclens/soclens/internal/metrics"
	"github.com/soclens/soclens/internal/model"
)

const maxInboundMessageSize = 4096

// Stream couples a stream name with its snapshot provider, queried once
// per connecting session.
type Stream struct {
	Name     string
	Snapshot func() []model.Entity
}

// Options tunes session buffering and keepalive behavior.
type Options struct {
	SendBuffer   int
	WriteTimeout time.Duration
	PingInterval time.Duration
	// Origins allowed to open a session. Empty allows any origin.
	AllowedOrigins []string
}

// Hub is the fan-out broadcaster.
type Hub struct {
	streams      []Stream
	log          *logging.Logger
	upgrader     websocket.Upgrader
	sendBuffer   int
	writeTimeout time.Duration
	pingInterval time.Duration

	mu       sync.RWMutex
	sessions map[*Session]struct{}
}

// New creates a Hub serving the given streams.
func New(streams []Stream, opts Options, log *logging.Logger) *Hub {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}

	h := &Hub{
		streams:      streams,
		log:          log.With("component", "hub"),
		sendBuffer:   opts.SendBuffer,
		writeTimeout: opts.WriteTimeout,
		pingInterval: opts.PingInterval,
		sessions:     make(map[*Session]struct{}),
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}

	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeWS upgrades the request and runs the session until its transport
// closes. The snapshot for every stream is queued before the session is
// marked active, so a client connecting mid-broadcast sees either a
// snapshot already containing the new records or the snapshot followed by
// the delta, never neither.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	s := newSession(conn, h)

	h.mu.Lock()
	for _, stream := range h.streams {
		data, err := json.Marshal(model.NewSnapshot(stream.Name, stream.Snapshot()))
		if err != nil {
			h.mu.Unlock()
			h.log.Error("marshal snapshot failed", "stream", stream.Name, "error", err)
			_ = conn.Close()
			return
		}
		s.send <- data
	}
	s.state.Store(StateActive)
	h.sessions[s] = struct{}{}
	h.mu.Unlock()

	metrics.ActiveSessions.Set(float64(h.SessionCount()))
	h.log.Info("session connected", "session_id", s.id, "remote", r.RemoteAddr)

	go s.writePump()
	s.readPump()
}

// Deliver broadcasts a delta to every active session. It implements the
// pipeline Sink. A session whose buffer is full is detached; delivery to
// the remaining sessions is unaffected.
func (h *Hub) Deliver(ctx context.Context, stream string, delta []model.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(model.NewDelta(stream, delta))
	if err != nil {
		return fmt.Errorf("marshal delta: %w", err)
	}

	var slow []*Session
	h.mu.RLock()
	for s := range h.sessions {
		if !s.enqueue(data) {
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		h.log.Warn("dropping slow session", "session_id", s.id)
		metrics.SessionSendFailures.Inc()
		h.detach(s)
	}

	metrics.BroadcastsTotal.WithLabelValues(stream).Inc()
	return nil
}

// detach transitions a session to Disconnected, removes it from the
// broadcast set and releases its resources. Safe to call more than once.
func (h *Hub) detach(s *Session) {
	if !s.state.CompareAndSwap(StateActive, StateDisconnected) &&
		!s.state.CompareAndSwap(StateConnecting, StateDisconnected) {
		return
	}

	h.mu.Lock()
	delete(h.sessions, s)
	h.mu.Unlock()

	close(s.send)
	_ = s.conn.Close()

	metrics.ActiveSessions.Set(float64(h.SessionCount()))
	h.log.Info("session disconnected", "session_id", s.id)
}

// SessionCount returns the number of currently connected sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Close detaches every session, typically during shutdown.
func (h *Hub) Close() {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		h.detach(s)
	}
}
