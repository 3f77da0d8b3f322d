package hub

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/google/uuid"
)

// Session states. A session is Connecting until its snapshots are queued,
// Active while it receives broadcasts, and Disconnected terminally once its
// transport closes or a send fails.
const (
	StateConnecting int32 = iota
	StateActive
	StateDisconnected
)

// Session is one connected live-view client. It owns nothing beyond its
// connection handle and outbound queue.
type Session struct {
	id    string
	conn  *websocket.Conn
	send  chan []byte
	state atomic.Int32
	hub   *Hub
}

func newSession(conn *websocket.Conn, h *Hub) *Session {
	s := &Session{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, h.sendBuffer),
		hub:  h,
	}
	s.state.Store(StateConnecting)
	return s
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// Active reports whether the session still receives broadcasts.
func (s *Session) Active() bool { return s.state.Load() == StateActive }

// enqueue attempts a non-blocking send. It returns false when the outbound
// buffer is full, which marks the client too slow to keep.
func (s *Session) enqueue(data []byte) bool {
	if s.state.Load() != StateActive {
		return true
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

// writePump drains the outbound queue onto the connection and keeps the
// client alive with pings. It exits on the first write error.
func (s *Session) writePump() {
	pingTicker := time.NewTicker(s.hub.pingInterval)
	defer func() {
		pingTicker.Stop()
		s.hub.detach(s)
	}()

	for {
		select {
		case data, ok := <-s.send:
			if !ok {
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.hub.writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-pingTicker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.hub.writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes inbound frames so close and pong control messages are
// processed. This subsystem never acts on client messages.
func (s *Session) readPump() {
	defer s.hub.detach(s)

	s.conn.SetReadLimit(maxInboundMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(2 * s.hub.pingInterval))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(2 * s.hub.pingInterval))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
