package network

// Inbound events (client -> server).
const (
	EventCreateRoom          = "create_room"
	EventJoinGame            = "join_game"
	EventStartGame           = "start_game"
	EventPlayerUpdate        = "player_update"
	EventPlayerControlUpdate = "player_control_update"
	EventResetPlayerPosition = "reset_player_position"
	EventUpdatePlayerName    = "update_player_name"
)

// Outbound events (server -> client).
const (
	EventRoomCreated          = "room_created"
	EventGameJoined           = "game_joined"
	EventJoinError            = "join_error"
	EventError                = "error"
	EventPlayerJoined         = "player_joined"
	EventPlayerLeft           = "player_left"
	EventGameStarted          = "game_started"
	EventPlayerPositionUpdate = "player_position_update"
	EventPositionReset        = "position_reset"
	EventPlayerControlsUpdate = "player_controls_update"
	EventHostDisconnected     = "host_disconnected"
	EventNameUpdated          = "name_updated"
	EventPlayerNameUpdated    = "player_name_updated"
)

// Vec3 carries a position, rotation or velocity as [x, y, z].
type Vec3 [3]float64

// Controls is a player's steering/acceleration/braking triple.
type Controls struct {
	Steering     float64 `json:"steering"`
	Acceleration float64 `json:"acceleration"`
	Braking      float64 `json:"braking"`
}

// Clamp bounds steering to [-1, 1], acceleration and braking to [0, 1].
func (c Controls) Clamp() Controls {
	return Controls{
		Steering:     clamp(c.Steering, -1, 1),
		Acceleration: clamp(c.Acceleration, 0, 1),
		Braking:      clamp(c.Braking, 0, 1),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Inbound payloads.

type JoinGameRequest struct {
	RoomCode   string `json:"room_code"`
	PlayerName string `json:"player_name"`
}

type StartGameRequest struct {
	RoomCode string `json:"room_code"`
}

type PlayerUpdateRequest struct {
	RoomCode string `json:"room_code"`
	Position Vec3   `json:"position"`
	Rotation Vec3   `json:"rotation"`
	Velocity Vec3   `json:"velocity"`
}

type PlayerControlUpdateRequest struct {
	PlayerID  int       `json:"player_id"`
	RoomCode  string    `json:"room_code"`
	Controls  *Controls `json:"controls"`
	Timestamp int64     `json:"timestamp"`
}

type ResetPlayerPositionRequest struct {
	RoomCode string `json:"room_code"`
	PlayerID int    `json:"player_id"`
	Position Vec3   `json:"position"`
	Rotation Vec3   `json:"rotation"`
}

type UpdatePlayerNameRequest struct {
	Name string `json:"name"`
}

// Outbound payloads.

type RoomCreatedEvent struct {
	RoomCode string `json:"room_code"`
}

type GameJoinedEvent struct {
	PlayerID    int    `json:"player_id"`
	PlayerName  string `json:"player_name"`
	CarColor    string `json:"car_color"`
	GameStarted bool   `json:"game_started,omitempty"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}

type PlayerJoinedEvent struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	CarColor string `json:"car_color"`
	Position Vec3   `json:"position"`
	Rotation Vec3   `json:"rotation"`
	Velocity Vec3   `json:"velocity"`
}

type PlayerLeftEvent struct {
	PlayerID   int    `json:"player_id"`
	PlayerName string `json:"player_name"`
}

type PlayerPositionUpdateEvent struct {
	PlayerID int  `json:"player_id"`
	Position Vec3 `json:"position"`
	Rotation Vec3 `json:"rotation"`
	Velocity Vec3 `json:"velocity"`
}

type PositionResetEvent struct {
	Position Vec3 `json:"position"`
	Rotation Vec3 `json:"rotation"`
}

type PlayerControlsUpdateEvent struct {
	PlayerID  int      `json:"player_id"`
	Controls  Controls `json:"controls"`
	Timestamp int64    `json:"timestamp"`
}

type NameUpdatedEvent struct {
	Name string `json:"name"`
}

type PlayerNameUpdatedEvent struct {
	PlayerID int    `json:"player_id"`
	Name     string `json:"name"`
}
