package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/party-rides/internal/notify"
	"github.com/example/party-rides/internal/observability"
)

var ErrNoSession = errors.New("no websocket session for user")

const writeWait = 5 * time.Second

// wsSession serialises writes; gorilla connections allow one writer at a time.
type wsSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSession) send(env notify.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(env)
}

// WSRegistry holds the live session of each connected user. A user who
// reconnects replaces their previous session.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*wsSession
}

func NewWSRegistry() *WSRegistry { return &WSRegistry{sessions: make(map[string]*wsSession)} }

func (r *WSRegistry) Add(userID string, conn *websocket.Conn) {
	r.mu.Lock()
	prev, ok := r.sessions[userID]
	r.sessions[userID] = &wsSession{conn: conn}
	r.mu.Unlock()
	if ok {
		_ = prev.conn.Close()
		return
	}
	observability.WSSessions.Inc()
}

// Remove drops the session only if conn is still the registered one.
func (r *WSRegistry) Remove(userID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[userID]; ok && s.conn == conn {
		delete(r.sessions, userID)
		observability.WSSessions.Dec()
	}
}

func (r *WSRegistry) Connected(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[userID]
	return ok
}

// Notify writes the envelope to the user's session. A failed write closes
// and unregisters the session.
func (r *WSRegistry) Notify(_ context.Context, env notify.Envelope) error {
	r.mu.RLock()
	s, ok := r.sessions[env.UserID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	if err := s.send(env); err != nil {
		_ = s.conn.Close()
		r.Remove(env.UserID, s.conn)
		return err
	}
	return nil
}

// Serve keeps conn registered until the client goes away. Inbound frames are
// read and discarded so control frames get processed.
func (r *WSRegistry) Serve(userID string, conn *websocket.Conn) {
	r.Add(userID, conn)
	defer func() {
		r.Remove(userID, conn)
		_ = conn.Close()
	}()
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}
