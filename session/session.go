// session implements the connection registry: every websocket connection
// gets a Session tracking its current room membership and role.
package session

import (
	"sync"
	"time"

	"github.com/openracer/raceserver/network"
)

// Role is what a connection is to its room. A connection holds at most one
// membership and cannot be host and player at the same time.
type Role int

const (
	RoleNone Role = iota
	RoleHost
	RolePlayer
)

type Session struct {
	ID         string
	Conn       network.Connection
	CreatedAt  time.Time
	LastActive time.Time

	mutex    sync.RWMutex
	roomCode string
	role     Role
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		LastActive: now,
	}
}

// Join records membership in a room. Leave clears it.
func (s *Session) Join(roomCode string, role Role) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.roomCode = roomCode
	s.role = role
}

func (s *Session) Leave() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.roomCode = ""
	s.role = RoleNone
}

// Membership returns the current room code and role.
func (s *Session) Membership() (string, Role) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.roomCode, s.role
}

func (s *Session) Send(event string, payload interface{}) error {
	s.LastActive = time.Now()
	return s.Conn.Send(event, payload)
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Manager is the registry of live sessions.
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}
