package server

import (
	"encoding/json"
	"time"

	"github.com/openracer/raceserver/logger"
	"github.com/openracer/raceserver/network"
	"github.com/openracer/raceserver/room"
	"github.com/openracer/raceserver/session"
)

// handleEvent dispatches one inbound event. Handlers run to completion, and
// all room mutations inside them are single critical sections on the store,
// so concurrent connections never interleave partial updates.
func (s *GameServer) handleEvent(sess *session.Session, msg *network.Message) {
	start := time.Now()
	if s.monitor != nil {
		s.monitor.IncMessagesReceived()
		defer func() {
			s.monitor.ObserveHandlerLatency(time.Since(start))
		}()
	}

	switch msg.Event {
	case network.EventCreateRoom:
		s.handleCreateRoom(sess)
	case network.EventJoinGame:
		s.handleJoinGame(sess, msg.Data)
	case network.EventStartGame:
		s.handleStartGame(sess, msg.Data)
	case network.EventPlayerUpdate:
		s.handlePlayerUpdate(sess, msg.Data)
	case network.EventPlayerControlUpdate:
		s.handlePlayerControlUpdate(sess, msg.Data)
	case network.EventResetPlayerPosition:
		s.handleResetPlayerPosition(sess, msg.Data)
	case network.EventUpdatePlayerName:
		s.handleUpdatePlayerName(sess, msg.Data)
	default:
		logger.Log.Infof("Unknown event %q from session %s", msg.Event, sess.GetID())
	}
}

func (s *GameServer) sendError(sess *session.Session, event, message string) {
	sess.Send(event, network.ErrorEvent{Message: message})
}

func (s *GameServer) handleCreateRoom(sess *session.Session) {
	code := s.store.CreateRoom(sess)
	sess.Send(network.EventRoomCreated, network.RoomCreatedEvent{RoomCode: code})
	logger.Log.Infof("Room created: %s", code)
}

func (s *GameServer) handleJoinGame(sess *session.Session, data json.RawMessage) {
	var req network.JoinGameRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(sess, network.EventJoinError, "Malformed join request")
		return
	}
	if req.PlayerName == "" {
		req.PlayerName = "Player"
	}

	res, err := s.store.JoinRoom(req.RoomCode, sess, req.PlayerName)
	switch err {
	case nil:
	case room.ErrRoomNotFound:
		s.sendError(sess, network.EventJoinError, "Room not found")
		return
	case room.ErrGameInProgress:
		s.sendError(sess, network.EventJoinError, "Game already in progress")
		return
	default:
		s.sendError(sess, network.EventJoinError, err.Error())
		return
	}

	p := res.Player
	sess.Send(network.EventGameJoined, network.GameJoinedEvent{
		PlayerID:    p.ID,
		PlayerName:  p.Name,
		CarColor:    p.CarColor,
		GameStarted: res.Phase == room.PhaseRacing,
	})

	// A late joiner finds the race already running; tell it directly so it
	// does not sit in the lobby waiting for a start that already happened.
	if res.Phase == room.PhaseRacing {
		sess.Send(network.EventGameStarted, nil)
	}

	s.broadcaster.SendTo(res.HostSessionID, network.EventPlayerJoined, network.PlayerJoinedEvent{
		ID:       p.ID,
		Name:     p.Name,
		CarColor: p.CarColor,
		Position: p.Position,
		Rotation: p.Rotation,
		Velocity: p.Velocity,
	})

	logger.Log.Infof("Player %s joined room %s as #%d", p.Name, req.RoomCode, p.ID)
}

func (s *GameServer) handleStartGame(sess *session.Session, data json.RawMessage) {
	var req network.StartGameRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(sess, network.EventError, "Malformed start request")
		return
	}

	switch err := s.store.StartRace(req.RoomCode, sess); err {
	case nil:
	case room.ErrRoomNotFound:
		s.sendError(sess, network.EventError, "Room not found")
		return
	case room.ErrNotHost:
		s.sendError(sess, network.EventError, "Only the host can start the game")
		return
	default:
		s.sendError(sess, network.EventError, err.Error())
		return
	}

	s.broadcaster.BroadcastToRoom(req.RoomCode, network.EventGameStarted, nil)
	logger.Log.Infof("Game started in room %s", req.RoomCode)
}

// handlePlayerUpdate forwards a player's pose to the host. Best-effort
// telemetry: anything invalid is dropped with no reply, the next tick will
// carry fresh data anyway.
func (s *GameServer) handlePlayerUpdate(sess *session.Session, data json.RawMessage) {
	var req network.PlayerUpdateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.drop()
		return
	}

	p, hostID, ok := s.store.UpdatePlayerState(req.RoomCode, sess, req.Position, req.Rotation, req.Velocity)
	if !ok {
		s.drop()
		return
	}

	s.broadcaster.SendTo(hostID, network.EventPlayerPositionUpdate, network.PlayerPositionUpdateEvent{
		PlayerID: p.ID,
		Position: p.Position,
		Rotation: p.Rotation,
		Velocity: p.Velocity,
	})
}

// handlePlayerControlUpdate rebroadcasts a player's validated control state
// to the whole room, enabling client-side prediction without server-side
// physics. A message missing player id, room code, controls, or timestamp
// is dropped with a diagnostic log only.
func (s *GameServer) handlePlayerControlUpdate(sess *session.Session, data json.RawMessage) {
	var req network.PlayerControlUpdateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		logger.Log.Debugf("Dropping malformed control update from %s: %v", sess.GetID(), err)
		s.drop()
		return
	}
	if req.PlayerID <= 0 || req.RoomCode == "" || req.Controls == nil || req.Timestamp == 0 {
		logger.Log.Debugf("Dropping incomplete control update from %s", sess.GetID())
		s.drop()
		return
	}

	controls := req.Controls.Clamp()
	p, ok := s.store.UpdatePlayerControls(req.RoomCode, sess, controls)
	if !ok {
		logger.Log.Debugf("Dropping control update from %s: not a member of %s", sess.GetID(), req.RoomCode)
		s.drop()
		return
	}

	s.broadcaster.BroadcastToRoom(req.RoomCode, network.EventPlayerControlsUpdate, network.PlayerControlsUpdateEvent{
		PlayerID:  p.ID,
		Controls:  controls,
		Timestamp: req.Timestamp,
	})
}

func (s *GameServer) handleResetPlayerPosition(sess *session.Session, data json.RawMessage) {
	var req network.ResetPlayerPositionRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}

	p, hostID, ok := s.store.ResetPlayerPosition(req.RoomCode, req.PlayerID, req.Position, req.Rotation)
	if !ok {
		return
	}

	s.broadcaster.SendTo(p.Session.GetID(), network.EventPositionReset, network.PositionResetEvent{
		Position: p.Position,
		Rotation: p.Rotation,
	})

	// The host gets the same pose so its view snaps along with the player.
	s.broadcaster.SendTo(hostID, network.EventPlayerPositionUpdate, network.PlayerPositionUpdateEvent{
		PlayerID: p.ID,
		Position: p.Position,
		Rotation: p.Rotation,
		Velocity: p.Velocity,
	})
}

func (s *GameServer) handleUpdatePlayerName(sess *session.Session, data json.RawMessage) {
	var req network.UpdatePlayerNameRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(sess, network.EventError, "Malformed name update")
		return
	}

	p, hostID, err := s.store.RenamePlayer(sess, req.Name)
	switch err {
	case nil:
	case room.ErrInvalidName:
		s.sendError(sess, network.EventError, "Name must not be empty")
		return
	case room.ErrNotInRoom:
		s.sendError(sess, network.EventError, "Not in a room")
		return
	default:
		s.sendError(sess, network.EventError, err.Error())
		return
	}

	sess.Send(network.EventNameUpdated, network.NameUpdatedEvent{Name: p.Name})
	s.broadcaster.SendTo(hostID, network.EventPlayerNameUpdated, network.PlayerNameUpdatedEvent{
		PlayerID: p.ID,
		Name:     p.Name,
	})
}

func (s *GameServer) drop() {
	if s.monitor != nil {
		s.monitor.IncMessagesDropped()
	}
}
