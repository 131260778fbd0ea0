package entities

import (
	"context"
	"time"

	"github.com/samber/lo"
)

// Room is the unit of shared game state, keyed by a 4-letter code.
// All fields are mutated on the router's dispatch goroutine only; detached
// side effects observe the room through its context and the broadcast path.
type Room struct {
	Code      string
	Players   []*Player
	GameState *GameState
	// Display is the single big-screen connection, nil until one joins.
	Display     *Connection
	Connections map[string]*Connection
	// LastActivity drives idle reaping; refreshed by every routed event.
	LastActivity time.Time
	CreatedAt    time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

func NewRoom(parent context.Context, code, gameType string) *Room {
	ctx, cancel := context.WithCancel(parent)

	now := time.Now()

	room := &Room{
		Code:         code,
		Players:      []*Player{},
		GameState:    NewGameState(code, gameType),
		Connections:  make(map[string]*Connection),
		LastActivity: now,
		CreatedAt:    now,
		ctx:          ctx,
		cancel:       cancel,
	}

	room.SyncStatePlayers()

	return room
}

// SyncStatePlayers re-aliases the game state's player list to the room's.
// The room owns the single source of truth; every mutation and lookup path
// must leave both fields pointing at the same slice.
func (room *Room) SyncStatePlayers() {
	room.GameState.Players = room.Players
}

func (room *Room) Touch() {
	room.LastActivity = time.Now()
}

func (room *Room) HasConnectedClients() bool {
	if room.Display != nil {
		return true
	}

	return lo.SomeBy(room.Players, func(player *Player) bool {
		return player.IsConnected
	})
}

func (room *Room) FindPlayerByID(id string) *Player {
	// Rooms hold a handful of players; linear scans beat an index here.
	for _, player := range room.Players {
		if player.ID == id {
			return player
		}
	}

	return nil
}

func (room *Room) FindPlayerByConnectionID(connectionID string) *Player {
	for _, player := range room.Players {
		if player.ConnectionID == connectionID {
			return player
		}
	}

	return nil
}

func (room *Room) FindPlayerByName(name string) *Player {
	for _, player := range room.Players {
		if player.Name == name {
			return player
		}
	}

	return nil
}

func (room *Room) Attach(connection *Connection) {
	connection.RoomCode = room.Code
	room.Connections[connection.ID] = connection
}

func (room *Room) Detach(connectionID string) {
	delete(room.Connections, connectionID)
}

// Broadcast fans a payload out to every connection joined to the room,
// display included.
func (room *Room) Broadcast(payload []byte) {
	for _, connection := range room.Connections {
		connection.Send(payload)
	}
}

// Context is cancelled when the room is torn down; detached side effects
// (persistence, content generation) must run under it.
func (room *Room) Context() context.Context {
	return room.ctx
}

// CancelDetached aborts every in-flight detached side effect for the room.
func (room *Room) CancelDetached() {
	room.cancel()
}
