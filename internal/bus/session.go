package bus

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"audiolevel/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 70 * time.Second
	idleWindow = 60 * time.Second
)

// Session is one live client connection.
type Session struct {
	ID   string
	conn *websocket.Conn
	send chan []byte

	mu             sync.Mutex
	subscribedJobs map[string]bool
	lastPingAt     time.Time

	closeOnce sync.Once
}

func newSession(conn *websocket.Conn) *Session {
	return &Session{
		ID:             uuid.New().String(),
		conn:           conn,
		send:           make(chan []byte, 64),
		subscribedJobs: make(map[string]bool),
		lastPingAt:     time.Now(),
	}
}

// LastPingAt returns the last time an inbound frame was observed.
func (s *Session) LastPingAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPingAt
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastPingAt = time.Now()
	s.mu.Unlock()
}

func (s *Session) sendMessage(msg ServerMessage) {
	data := marshal(msg)
	select {
	case s.send <- data:
	default:
		logger.Warn("bus: slow client, dropping frame", "session_id", s.ID)
	}
}

// Close closes the underlying connection; safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
	})
}

// ServeWS upgrades the request to a WebSocket session and registers it
// with the bus, then runs its read/write pumps until the connection
// closes.
func ServeWS(b *Bus, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("bus: upgrade failed", "error", err.Error())
		return
	}

	session := newSession(conn)
	b.Register(session)

	done := make(chan struct{})
	go session.writePump(done)
	session.readPump(b)
	close(done)
	b.Unregister(session.ID)
}

func (s *Session) readPump(b *Bus) {
	defer s.Close()
	s.conn.SetReadLimit(64 * 1024)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.touch()
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		s.touch()

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendMessage(ServerMessage{Type: "error", Message: "malformed frame", Code: "BAD_FRAME"})
			continue
		}

		switch msg.Type {
		case "subscribe":
			b.Subscribe(s.ID, msg.JobID)
		case "unsubscribe":
			b.Unsubscribe(s.ID, msg.JobID)
		case "ping":
			s.sendMessage(ServerMessage{Type: "pong", Timestamp: time.Now().UnixMilli()})
		default:
			s.sendMessage(ServerMessage{Type: "error", Message: "unknown message type", Code: "UNKNOWN_TYPE"})
		}
	}
}

func (s *Session) writePump(done <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case data, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
