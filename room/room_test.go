package room

import (
	"net"
	"testing"
	"time"

	"github.com/openracer/raceserver/network"
	"github.com/openracer/raceserver/session"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct{}

func (m *MockConnection) Send(event string, payload interface{}) error { return nil }
func (m *MockConnection) Close() error                                 { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                         { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)          {}
func (m *MockConnection) ReadMessage() (*network.Message, error)       { return nil, nil }

// newTestSession creates a dummy session for testing purposes.
func newTestSession(id string) *session.Session {
	return session.NewSession(id, &MockConnection{})
}

func TestStore_CreateRoom_UniqueCodes(t *testing.T) {
	store := NewStore()
	seen := make(map[string]bool)

	for i := 0; i < 200; i++ {
		code := store.CreateRoom(newTestSession("host"))
		if len(code) != 4 {
			t.Fatalf("Expected 4-character code, got %q", code)
		}
		for _, c := range code {
			if c < 'A' || c > 'Z' {
				t.Fatalf("Code %q contains non-uppercase character", code)
			}
		}
		if seen[code] {
			t.Fatalf("Code %q returned twice", code)
		}
		seen[code] = true
	}
}

func TestStore_CreateRoom_RegistersHost(t *testing.T) {
	store := NewStore()
	host := newTestSession("host")

	code := store.CreateRoom(host)

	gotCode, role := host.Membership()
	if gotCode != code {
		t.Errorf("Expected host membership %q, got %q", code, gotCode)
	}
	if role != session.RoleHost {
		t.Errorf("Expected host role, got %v", role)
	}
}

func TestStore_JoinRoom_RoomNotFound(t *testing.T) {
	store := NewStore()
	store.CreateRoom(newTestSession("host"))

	_, err := store.JoinRoom("ZZZZZ", newTestSession("p1"), "Alice")
	if err != ErrRoomNotFound {
		t.Fatalf("Expected ErrRoomNotFound, got %v", err)
	}
	if store.PlayerCount() != 0 {
		t.Errorf("Failed join must not mutate the store, player count = %d", store.PlayerCount())
	}
}

func TestStore_JoinRoom_SequentialIDs(t *testing.T) {
	store := NewStore()
	host := newTestSession("host")
	code := store.CreateRoom(host)

	ids := make(map[int]bool)
	for i := 0; i < 5; i++ {
		res, err := store.JoinRoom(code, newTestSession("p"+string(rune('1'+i))), "Player")
		if err != nil {
			t.Fatalf("Join %d failed: %v", i+1, err)
		}
		ids[res.Player.ID] = true
		if res.HostSessionID != host.ID {
			t.Errorf("Expected host session %q, got %q", host.ID, res.HostSessionID)
		}
	}

	for want := 1; want <= 5; want++ {
		if !ids[want] {
			t.Errorf("Expected ids {1..5}, missing %d", want)
		}
	}
}

func TestStore_JoinRoom_StaggersStartingPositions(t *testing.T) {
	store := NewStore()
	code := store.CreateRoom(newTestSession("host"))

	a, _ := store.JoinRoom(code, newTestSession("p1"), "Alice")
	b, _ := store.JoinRoom(code, newTestSession("p2"), "Bob")

	if a.Player.Position == b.Player.Position {
		t.Errorf("Players spawned overlapping at %v", a.Player.Position)
	}
	if a.Player.Position[2] != 2 || b.Player.Position[2] != 4 {
		t.Errorf("Expected z offsets 2 and 4, got %v and %v", a.Player.Position[2], b.Player.Position[2])
	}
}

func TestStore_JoinRoom_LowercaseCode(t *testing.T) {
	store := NewStore()
	code := store.CreateRoom(newTestSession("host"))

	lower := ""
	for _, c := range code {
		lower += string(c + 'a' - 'A')
	}
	if _, err := store.JoinRoom(lower, newTestSession("p1"), "Alice"); err != nil {
		t.Errorf("Join with lowercase code should succeed, got %v", err)
	}
}

func TestStore_JoinRoom_LateJoinAdmitted(t *testing.T) {
	store := NewStore()
	host := newTestSession("host")
	code := store.CreateRoom(host)
	if err := store.StartRace(code, host); err != nil {
		t.Fatalf("StartRace failed: %v", err)
	}

	res, err := store.JoinRoom(code, newTestSession("late"), "Late")
	if err != nil {
		t.Fatalf("Late join should be admitted by default, got %v", err)
	}
	if res.Phase != PhaseRacing {
		t.Errorf("Expected racing phase in join result, got %v", res.Phase)
	}
}

func TestStore_JoinRoom_LateJoinRejected(t *testing.T) {
	store := NewStore()
	store.LateJoin = false
	host := newTestSession("host")
	code := store.CreateRoom(host)
	store.StartRace(code, host)

	_, err := store.JoinRoom(code, newTestSession("late"), "Late")
	if err != ErrGameInProgress {
		t.Fatalf("Expected ErrGameInProgress, got %v", err)
	}
}

func TestStore_StartRace_NotHost(t *testing.T) {
	store := NewStore()
	host := newTestSession("host")
	code := store.CreateRoom(host)
	player := newTestSession("p1")
	store.JoinRoom(code, player, "Alice")

	if err := store.StartRace(code, player); err != ErrNotHost {
		t.Fatalf("Expected ErrNotHost, got %v", err)
	}

	info, _ := store.GetRoom(code)
	if info.Phase != "waiting" {
		t.Errorf("Phase must stay waiting after rejected start, got %s", info.Phase)
	}
}

func TestStore_StartRace_Idempotent(t *testing.T) {
	store := NewStore()
	host := newTestSession("host")
	code := store.CreateRoom(host)

	if err := store.StartRace(code, host); err != nil {
		t.Fatalf("First start failed: %v", err)
	}
	if err := store.StartRace(code, host); err != nil {
		t.Fatalf("Restarting a racing room must be a no-op, got %v", err)
	}

	info, _ := store.GetRoom(code)
	if info.Phase != "racing" {
		t.Errorf("Expected racing phase, got %s", info.Phase)
	}
}

func TestStore_StartRace_RoomNotFound(t *testing.T) {
	store := NewStore()
	if err := store.StartRace("NOPE", newTestSession("host")); err != ErrRoomNotFound {
		t.Fatalf("Expected ErrRoomNotFound, got %v", err)
	}
}

func TestStore_UpdatePlayerState_IgnoredWhileWaiting(t *testing.T) {
	store := NewStore()
	code := store.CreateRoom(newTestSession("host"))
	player := newTestSession("p1")
	res, _ := store.JoinRoom(code, player, "Alice")

	_, _, ok := store.UpdatePlayerState(code, player, network.Vec3{9, 9, 9}, network.Vec3{}, network.Vec3{})
	if ok {
		t.Fatal("Update must be ignored while the room is waiting")
	}

	info, _ := store.GetRoom(code)
	if info.Players[0].Position != res.Player.Position {
		t.Errorf("Stored position mutated by an ignored update: %v", info.Players[0].Position)
	}
}

func TestStore_UpdatePlayerState_Racing(t *testing.T) {
	store := NewStore()
	host := newTestSession("host")
	code := store.CreateRoom(host)
	player := newTestSession("p1")
	store.JoinRoom(code, player, "Alice")
	store.StartRace(code, host)

	pos := network.Vec3{1, 0, 3}
	p, hostID, ok := store.UpdatePlayerState(code, player, pos, network.Vec3{}, network.Vec3{5, 0, 0})
	if !ok {
		t.Fatal("Update during racing should succeed")
	}
	if p.ID != 1 || p.Position != pos {
		t.Errorf("Expected player 1 at %v, got %d at %v", pos, p.ID, p.Position)
	}
	if hostID != host.ID {
		t.Errorf("Expected host session %q, got %q", host.ID, hostID)
	}
}

func TestStore_UpdatePlayerState_NonMemberIgnored(t *testing.T) {
	store := NewStore()
	host := newTestSession("host")
	code := store.CreateRoom(host)
	store.StartRace(code, host)

	if _, _, ok := store.UpdatePlayerState(code, newTestSession("stranger"), network.Vec3{}, network.Vec3{}, network.Vec3{}); ok {
		t.Fatal("Update from a non-member must be ignored")
	}
}

func TestStore_ResetPlayerPosition(t *testing.T) {
	store := NewStore()
	host := newTestSession("host")
	code := store.CreateRoom(host)
	player := newTestSession("p1")
	store.JoinRoom(code, player, "Alice")
	store.StartRace(code, host)
	store.UpdatePlayerState(code, player, network.Vec3{50, 0, 50}, network.Vec3{}, network.Vec3{10, 0, 10})

	pos := network.Vec3{0, 0, 2}
	p, hostID, ok := store.ResetPlayerPosition(code, 1, pos, network.Vec3{})
	if !ok {
		t.Fatal("Reset of an existing player id should succeed")
	}
	if p.Position != pos {
		t.Errorf("Expected position %v, got %v", pos, p.Position)
	}
	if (p.Velocity != network.Vec3{}) {
		t.Errorf("Reset must zero velocity, got %v", p.Velocity)
	}
	if p.Session != player {
		t.Error("Reset must return the target player's session for the unicast")
	}
	if hostID != host.ID {
		t.Errorf("Expected host session %q, got %q", host.ID, hostID)
	}
}

func TestStore_ResetPlayerPosition_UnknownID(t *testing.T) {
	store := NewStore()
	code := store.CreateRoom(newTestSession("host"))

	if _, _, ok := store.ResetPlayerPosition(code, 7, network.Vec3{}, network.Vec3{}); ok {
		t.Fatal("Reset of an unknown player id should fail")
	}
}

func TestStore_RenamePlayer(t *testing.T) {
	store := NewStore()
	host := newTestSession("host")
	code := store.CreateRoom(host)
	player := newTestSession("p1")
	store.JoinRoom(code, player, "Alice")

	p, hostID, err := store.RenamePlayer(player, "  Speedy  ")
	if err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if p.Name != "Speedy" {
		t.Errorf("Expected trimmed name %q, got %q", "Speedy", p.Name)
	}
	if hostID != host.ID {
		t.Errorf("Expected host session %q, got %q", host.ID, hostID)
	}
}

func TestStore_RenamePlayer_EmptyName(t *testing.T) {
	store := NewStore()
	code := store.CreateRoom(newTestSession("host"))
	player := newTestSession("p1")
	store.JoinRoom(code, player, "Alice")

	for _, bad := range []string{"", "   ", "\t\n"} {
		if _, _, err := store.RenamePlayer(player, bad); err != ErrInvalidName {
			t.Errorf("Rename to %q: expected ErrInvalidName, got %v", bad, err)
		}
	}

	info, _ := store.GetRoom(code)
	if info.Players[0].Name != "Alice" {
		t.Errorf("Prior name must survive a rejected rename, got %q", info.Players[0].Name)
	}
}

func TestStore_RenamePlayer_NotInRoom(t *testing.T) {
	store := NewStore()
	if _, _, err := store.RenamePlayer(newTestSession("loner"), "Ghost"); err != ErrNotInRoom {
		t.Fatalf("Expected ErrNotInRoom, got %v", err)
	}
}

func TestStore_RemoveHost_DestroysRoom(t *testing.T) {
	store := NewStore()
	host := newTestSession("host")
	code := store.CreateRoom(host)
	p1 := newTestSession("p1")
	p2 := newTestSession("p2")
	store.JoinRoom(code, p1, "Alice")
	store.JoinRoom(code, p2, "Bob")

	gotCode, remaining, ok := store.RemoveHost(host)
	if !ok {
		t.Fatal("RemoveHost on a host session should succeed")
	}
	if gotCode != code {
		t.Errorf("Expected code %q, got %q", code, gotCode)
	}
	if len(remaining) != 2 {
		t.Errorf("Expected 2 remaining player sessions, got %d", len(remaining))
	}

	if _, err := store.JoinRoom(code, newTestSession("p3"), "Carol"); err != ErrRoomNotFound {
		t.Errorf("Join after teardown must fail with ErrRoomNotFound, got %v", err)
	}
	if c, _ := p1.Membership(); c != "" {
		t.Error("Teardown must clear player memberships")
	}
}

func TestStore_RemoveHost_NotAHost(t *testing.T) {
	store := NewStore()
	code := store.CreateRoom(newTestSession("host"))
	player := newTestSession("p1")
	store.JoinRoom(code, player, "Alice")

	if _, _, ok := store.RemoveHost(player); ok {
		t.Fatal("RemoveHost on a player session must be a no-op")
	}
}

func TestStore_RemovePlayer_RoomSurvives(t *testing.T) {
	store := NewStore()
	host := newTestSession("host")
	code := store.CreateRoom(host)
	alice := newTestSession("p1")
	bob := newTestSession("p2")
	store.JoinRoom(code, alice, "Alice")
	store.JoinRoom(code, bob, "Bob")
	store.StartRace(code, host)

	gotCode, p, hostID, ok := store.RemovePlayer(bob)
	if !ok {
		t.Fatal("RemovePlayer on a player session should succeed")
	}
	if gotCode != code || p.ID != 2 || p.Name != "Bob" {
		t.Errorf("Expected (code=%s, id=2, name=Bob), got (%s, %d, %s)", code, gotCode, p.ID, p.Name)
	}
	if hostID != host.ID {
		t.Errorf("Expected host session %q, got %q", host.ID, hostID)
	}

	info, exists := store.GetRoom(code)
	if !exists {
		t.Fatal("Room must survive a player departure")
	}
	if info.Phase != "racing" {
		t.Errorf("Phase must be untouched by a player departure, got %s", info.Phase)
	}
	if len(info.Players) != 1 || info.Players[0].Name != "Alice" {
		t.Errorf("Expected Alice alone in the roster, got %v", info.Players)
	}
}

func TestStore_RemovePlayer_Unknown(t *testing.T) {
	store := NewStore()
	if _, _, _, ok := store.RemovePlayer(newTestSession("ghost")); ok {
		t.Fatal("RemovePlayer on an unknown session must be a no-op")
	}
}

func TestStore_Sessions_ChannelMembership(t *testing.T) {
	store := NewStore()
	host := newTestSession("host")
	code := store.CreateRoom(host)
	store.JoinRoom(code, newTestSession("p1"), "Alice")
	store.JoinRoom(code, newTestSession("p2"), "Bob")

	sessions := store.Sessions(code)
	if len(sessions) != 3 {
		t.Fatalf("Channel must hold host + players, got %d sessions", len(sessions))
	}

	if store.Sessions("NOPE") != nil {
		t.Error("Sessions of an unknown room must be nil")
	}
}
