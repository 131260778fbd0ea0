package entities

// GameState is the authoritative, broadcast view of a room's game.
// The fixed fields belong to the host core; Data belongs to whichever game
// contract currently governs the room and is replaced wholesale on every
// committed event result.
type GameState struct {
	RoomCode     string `json:"roomCode"`
	GameType     string `json:"gameType,omitempty"`
	CurrentRound int    `json:"currentRound"`
	Phase        string `json:"phase"`
	// Players always shares the room's player records; see Room.SyncStatePlayers.
	Players []*Player      `json:"players"`
	Data    map[string]any `json:"data,omitempty"`
}

const PhaseLobby = "lobby"

func NewGameState(roomCode, gameType string) *GameState {
	return &GameState{
		RoomCode:     roomCode,
		GameType:     gameType,
		CurrentRound: 1,
		Phase:        PhaseLobby,
		Players:      []*Player{},
	}
}
