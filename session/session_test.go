package session

import (
	"net"
	"testing"
	"time"

	"github.com/openracer/raceserver/network"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct{}

func (m *MockConnection) Send(event string, payload interface{}) error { return nil }
func (m *MockConnection) Close() error                                 { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                         { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)          {}
func (m *MockConnection) ReadMessage() (*network.Message, error)       { return nil, nil }

func TestNewManager(t *testing.T) {
	manager := NewManager()
	if manager == nil {
		t.Fatal("NewManager should not return nil")
	}
	if manager.sessions == nil {
		t.Fatal("NewManager should initialize the sessions map")
	}
}

func TestManager_Add_Get_Remove(t *testing.T) {
	manager := NewManager()
	sessionID := "test_session_1"
	sess := NewSession(sessionID, &MockConnection{})

	// Test Add
	manager.Add(sess)
	if manager.Count() != 1 {
		t.Fatalf("Expected session count to be 1, got %d", manager.Count())
	}

	// Test Get
	retrievedSess, exists := manager.Get(sessionID)
	if !exists {
		t.Fatal("Get should find the added session")
	}
	if retrievedSess != sess {
		t.Fatal("Get should return the same session instance")
	}

	// Test Remove
	manager.Remove(sessionID)
	if manager.Count() != 0 {
		t.Fatalf("Expected session count to be 0 after removal, got %d", manager.Count())
	}

	_, exists = manager.Get(sessionID)
	if exists {
		t.Fatal("Get should not find the removed session")
	}
}

func TestSession_Membership(t *testing.T) {
	sess := NewSession("test_session", &MockConnection{})

	code, role := sess.Membership()
	if code != "" || role != RoleNone {
		t.Fatalf("A fresh session must have no membership, got (%q, %v)", code, role)
	}

	sess.Join("ABCD", RolePlayer)
	code, role = sess.Membership()
	if code != "ABCD" || role != RolePlayer {
		t.Fatalf("Expected (ABCD, player), got (%q, %v)", code, role)
	}

	sess.Leave()
	code, role = sess.Membership()
	if code != "" || role != RoleNone {
		t.Fatalf("Leave must clear membership, got (%q, %v)", code, role)
	}
}

func TestSession_SingleMembership(t *testing.T) {
	sess := NewSession("test_session", &MockConnection{})

	sess.Join("ABCD", RoleHost)
	sess.Join("EFGH", RolePlayer)

	// A connection holds exactly one membership; the latest wins.
	code, role := sess.Membership()
	if code != "EFGH" || role != RolePlayer {
		t.Fatalf("Expected the latest membership (EFGH, player), got (%q, %v)", code, role)
	}
}
