// room implements the in-memory room table: membership, lifecycle phase,
// and the state mutations the message router drives. Every operation is one
// critical section under the store mutex, so handlers running on different
// connection goroutines never observe a half-applied mutation.
package room

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/openracer/raceserver/network"
	"github.com/openracer/raceserver/session"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrGameInProgress = errors.New("game already in progress")
	ErrNotHost        = errors.New("only the host can start the game")
	ErrInvalidName    = errors.New("name must not be empty")
	ErrNotInRoom      = errors.New("not in a room")
)

// Phase is a room's lifecycle stage. Transitions are forward-only;
// PhaseFinished is reserved and never entered by current logic.
type Phase int

const (
	PhaseWaiting Phase = iota
	PhaseRacing
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhaseRacing:
		return "racing"
	case PhaseFinished:
		return "finished"
	}
	return "unknown"
}

// Player is one roster entry. ID is the display-facing sequential slot
// (count of current players + 1 at join time); it is unique only among
// currently-present players and can be reused after departures. The owning
// session's UUID is the stable key.
type Player struct {
	ID       int
	Name     string
	CarColor string
	Position network.Vec3
	Rotation network.Vec3
	Velocity network.Vec3
	Controls network.Controls

	Session *session.Session
}

// Room holds one game session. The host connection is set at creation and
// immutable; the room is destroyed only when the host disconnects. An empty
// roster is a valid room.
type Room struct {
	Code      string
	Host      *session.Session
	Players   map[string]*Player // session ID -> player
	Phase     Phase
	CreatedAt time.Time
}

// Store owns the room table.
type Store struct {
	// LateJoin admits joins after the race has started; when false such
	// joins fail with ErrGameInProgress.
	LateJoin bool

	rooms map[string]*Room
	mutex sync.RWMutex
}

func NewStore() *Store {
	return &Store{
		LateJoin: true,
		rooms:    make(map[string]*Room),
	}
}

const codeLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
const codeLength = 4

// generateCodeLocked produces a 4-letter code not currently in use. Caller
// must hold the store mutex so the uniqueness check and the insertion are
// one atomic step.
func (s *Store) generateCodeLocked() string {
	for {
		b := make([]byte, codeLength)
		for i := range b {
			b[i] = codeLetters[rand.Intn(len(codeLetters))]
		}
		code := string(b)
		if _, taken := s.rooms[code]; !taken {
			return code
		}
	}
}

// CreateRoom inserts a new waiting room hosted by host and returns its code.
func (s *Store) CreateRoom(host *session.Session) string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	code := s.generateCodeLocked()
	s.rooms[code] = &Room{
		Code:      code,
		Host:      host,
		Players:   make(map[string]*Player),
		Phase:     PhaseWaiting,
		CreatedAt: time.Now(),
	}
	host.Join(code, session.RoleHost)
	return code
}

// JoinResult is the snapshot a successful join returns. Phase tells the
// router whether to push game_started straight to the joiner.
type JoinResult struct {
	Player        Player
	Phase         Phase
	HostSessionID string
}

// JoinRoom adds sess to the room's roster. The new player gets the next
// sequential id, a random car color, and a starting position staggered
// along the z axis so cars do not spawn overlapping.
func (s *Store) JoinRoom(code string, sess *session.Session, playerName string) (*JoinResult, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	code = strings.ToUpper(code)
	r, exists := s.rooms[code]
	if !exists {
		return nil, ErrRoomNotFound
	}
	if !s.LateJoin && r.Phase != PhaseWaiting {
		return nil, ErrGameInProgress
	}

	id := len(r.Players) + 1
	p := &Player{
		ID:       id,
		Name:     playerName,
		CarColor: fmt.Sprintf("#%06x", rand.Intn(0x1000000)),
		Position: network.Vec3{0, 0, float64(id) * 2},
		Session:  sess,
	}
	r.Players[sess.ID] = p
	sess.Join(code, session.RolePlayer)

	return &JoinResult{
		Player:        *p,
		Phase:         r.Phase,
		HostSessionID: r.Host.ID,
	}, nil
}

// StartRace transitions the room to racing. Only the host may start;
// starting an already-racing room is a no-op, not an error.
func (s *Store) StartRace(code string, sess *session.Session) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	r, exists := s.rooms[code]
	if !exists {
		return ErrRoomNotFound
	}
	if r.Host.ID != sess.ID {
		return ErrNotHost
	}
	if r.Phase == PhaseWaiting {
		r.Phase = PhaseRacing
	}
	return nil
}

// UpdatePlayerState stores a player's latest pose. Best-effort: returns
// ok=false (and mutates nothing) if the room is absent, the sender is not a
// member, or the race has not started.
func (s *Store) UpdatePlayerState(code string, sess *session.Session, pos, rot, vel network.Vec3) (Player, string, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	r, exists := s.rooms[code]
	if !exists || r.Phase != PhaseRacing {
		return Player{}, "", false
	}
	p, member := r.Players[sess.ID]
	if !member {
		return Player{}, "", false
	}

	p.Position = pos
	p.Rotation = rot
	p.Velocity = vel
	return *p, r.Host.ID, true
}

// UpdatePlayerControls stores a member's latest validated control triple.
func (s *Store) UpdatePlayerControls(code string, sess *session.Session, controls network.Controls) (Player, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	r, exists := s.rooms[code]
	if !exists {
		return Player{}, false
	}
	p, member := r.Players[sess.ID]
	if !member {
		return Player{}, false
	}

	p.Controls = controls
	return *p, true
}

// ResetPlayerPosition moves the player with the given numeric id to a fixed
// pose and zeroes its velocity. Lookup is by id, first match.
func (s *Store) ResetPlayerPosition(code string, playerID int, pos, rot network.Vec3) (Player, string, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	r, exists := s.rooms[code]
	if !exists {
		return Player{}, "", false
	}
	for _, p := range r.Players {
		if p.ID == playerID {
			p.Position = pos
			p.Rotation = rot
			p.Velocity = network.Vec3{}
			return *p, r.Host.ID, true
		}
	}
	return Player{}, "", false
}

// RenamePlayer updates the display name of whatever room membership sess
// currently holds.
func (s *Store) RenamePlayer(sess *session.Session, newName string) (Player, string, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return Player{}, "", ErrInvalidName
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	code, role := sess.Membership()
	if code == "" || role != session.RolePlayer {
		return Player{}, "", ErrNotInRoom
	}
	r, exists := s.rooms[code]
	if !exists {
		return Player{}, "", ErrNotInRoom
	}
	p, member := r.Players[sess.ID]
	if !member {
		return Player{}, "", ErrNotInRoom
	}

	p.Name = newName
	return *p, r.Host.ID, nil
}

// RemoveHost tears a room down after its host disconnects. It returns the
// code and the sessions of the remaining players so the caller can deliver
// host_disconnected to each before they are orphaned.
func (s *Store) RemoveHost(sess *session.Session) (string, []*session.Session, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	code, role := sess.Membership()
	if role != session.RoleHost {
		return "", nil, false
	}
	r, exists := s.rooms[code]
	if !exists {
		return "", nil, false
	}

	remaining := make([]*session.Session, 0, len(r.Players))
	for _, p := range r.Players {
		p.Session.Leave()
		remaining = append(remaining, p.Session)
	}
	sess.Leave()
	delete(s.rooms, code)
	return code, remaining, true
}

// RemovePlayer drops a departing player from its room's roster. The room
// itself survives; only a host disconnect destroys it.
func (s *Store) RemovePlayer(sess *session.Session) (string, Player, string, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	code, role := sess.Membership()
	if role != session.RolePlayer {
		return "", Player{}, "", false
	}
	r, exists := s.rooms[code]
	if !exists {
		return "", Player{}, "", false
	}
	p, member := r.Players[sess.ID]
	if !member {
		return "", Player{}, "", false
	}

	delete(r.Players, sess.ID)
	sess.Leave()
	return code, *p, r.Host.ID, true
}

// Sessions returns every connection subscribed to the room's channel: the
// host plus all players.
func (s *Store) Sessions(code string) []*session.Session {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	r, exists := s.rooms[code]
	if !exists {
		return nil
	}
	sessions := make([]*session.Session, 0, len(r.Players)+1)
	sessions = append(sessions, r.Host)
	for _, p := range r.Players {
		sessions = append(sessions, p.Session)
	}
	return sessions
}

// GetRoom returns a point-in-time copy of a room and its roster.
func (s *Store) GetRoom(code string) (RoomInfo, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	r, exists := s.rooms[strings.ToUpper(code)]
	if !exists {
		return RoomInfo{}, false
	}
	return snapshotLocked(r), true
}

// ListRooms returns a point-in-time copy of every active room.
func (s *Store) ListRooms() []RoomInfo {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	infos := make([]RoomInfo, 0, len(s.rooms))
	for _, r := range s.rooms {
		infos = append(infos, snapshotLocked(r))
	}
	return infos
}

func (s *Store) RoomCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.rooms)
}

func (s *Store) PlayerCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	n := 0
	for _, r := range s.rooms {
		n += len(r.Players)
	}
	return n
}

// RoomInfo is a read-only room snapshot for the admin surface.
type RoomInfo struct {
	Code      string
	Phase     string
	CreatedAt time.Time
	Players   []PlayerInfo
}

type PlayerInfo struct {
	ID       int
	Name     string
	CarColor string
	Position network.Vec3
}

func snapshotLocked(r *Room) RoomInfo {
	info := RoomInfo{
		Code:      r.Code,
		Phase:     r.Phase.String(),
		CreatedAt: r.CreatedAt,
		Players:   make([]PlayerInfo, 0, len(r.Players)),
	}
	for _, p := range r.Players {
		info.Players = append(info.Players, PlayerInfo{
			ID:       p.ID,
			Name:     p.Name,
			CarColor: p.CarColor,
			Position: p.Position,
		})
	}
	return info
}
