package contracts

import (
	"time"

	"github.com/partydeck/partydeck/entities"
)

// SideEffect is a declarative instruction returned by a game contract and
// executed by the event router in list order. The set of cases is closed:
// the unexported marker method keeps other packages from adding variants.
type SideEffect interface {
	sideEffect()
}

// ScheduleTimeout arms a delayed synthetic event named Action for the room,
// tracked by the timeout scheduler so room teardown cancels it.
type ScheduleTimeout struct {
	Action string
	Data   any
	Delay  time.Duration
}

// EmitToRoom fans a one-off event out to every connection in the room
// without re-entering the router.
type EmitToRoom struct {
	Event string
	Data  any
}

// PersistToDB hands an entity to the persistence hook. The call is detached
// from the broadcast path; failure is logged and otherwise ignored.
type PersistToDB struct {
	Entity string
	Data   any
}

// GenerateContent calls the external content generator; its result comes
// back to the game as a synthetic OnComplete event, so downstream logic
// never distinguishes "user action" from "generation finished".
type GenerateContent struct {
	Config     map[string]any
	OnComplete string
}

func (ScheduleTimeout) sideEffect() {}
func (EmitToRoom) sideEffect()      {}
func (PersistToDB) sideEffect()     {}
func (GenerateContent) sideEffect() {}

// GameEventResult is the bundle a contract hands back for one event:
// the replacement state, score deltas by player id, and side effects to
// execute in order. A nil result means "this game does not handle that".
type GameEventResult struct {
	State         *entities.GameState
	ScoresToApply map[string]int
	SideEffects   []SideEffect
}
