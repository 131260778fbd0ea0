package contracts

import (
	"context"

	"github.com/partydeck/partydeck/entities"
)

// GameContract is the uniform capability set every game type implements.
// Handlers returning nil signal "this game type does not handle this
// action"; the router reports a non-handled fallback instead of guessing.
type GameContract interface {
	InitializeGame(roomCode string, players []*entities.Player, config map[string]any) *entities.GameState
	HandleSubmit(state *entities.GameState, playerID, playerName string, payload any) *GameEventResult
	HandleVote(state *entities.GameState, playerID, playerName string, payload any) *GameEventResult
	HandleNextRound(state *entities.GameState) *GameEventResult
	// CanRestart reports whether a game:start may replace a game already
	// past the lobby in the given phase.
	CanRestart(phase string) bool
}

// HandlerContext is the bundle a custom-event handler receives. Connection
// is nil for synthetic events (timeouts, generation completions).
type HandlerContext struct {
	Connection *entities.Connection
	Room       *entities.Room
	PlayerID   string
	PlayerName string
	Data       any
}

// CustomEventHandler handles one named, game-specific event. The context is
// room-scoped and is cancelled when the room is torn down.
type CustomEventHandler func(ctx context.Context, event HandlerContext) (*GameEventResult, error)
