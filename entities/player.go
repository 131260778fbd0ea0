package entities

// Player is the per-room session record for one phone connection.
// Identity within a room is the sanitized display name: a later join with the
// same name takes over this record instead of creating a second one.
type Player struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	RoomCode string `json:"roomCode"`
	// Score only accumulates; contracts award deltas through GameEventResult.
	Score        int    `json:"score"`
	IsConnected  bool   `json:"isConnected"`
	ConnectionID string `json:"connectionId"`
}
