package broadcast

import (
	"errors"

	"github.com/openracer/raceserver/room"
	"github.com/openracer/raceserver/session"
)

var ErrRoomNotFound = errors.New("room not found")

// Broadcaster delivers outbound events. Sends are fire-and-forget: a failed
// delivery to one recipient never blocks or fails the others.
type Broadcaster interface {
	BroadcastToRoom(code, event string, payload interface{}) error
	SendTo(sessionID, event string, payload interface{}) error
}

// RoomBroadcaster resolves a room's channel (host + players) through the
// room store and unicast targets through the session registry.
type RoomBroadcaster struct {
	store    *room.Store
	sessions *session.Manager
}

func NewRoomBroadcaster(store *room.Store, sessions *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		store:    store,
		sessions: sessions,
	}
}

func (b *RoomBroadcaster) BroadcastToRoom(code, event string, payload interface{}) error {
	targets := b.store.Sessions(code)
	if targets == nil {
		return ErrRoomNotFound
	}
	for _, s := range targets {
		if err := s.Send(event, payload); err != nil {
			// The reader side will notice the broken connection and
			// run the disconnect path.
			continue
		}
	}
	return nil
}

func (b *RoomBroadcaster) SendTo(sessionID, event string, payload interface{}) error {
	s, exists := b.sessions.Get(sessionID)
	if !exists {
		return nil
	}
	return s.Send(event, payload)
}
