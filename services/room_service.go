package services

import (
	"context"
	"math/rand"
	"regexp"
	"strings"

	"github.com/partydeck/partydeck/entities"
	"github.com/partydeck/partydeck/pkg/syncx"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	roomCodeLength       = 4
	roomCodeLetters      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	maxPlayerNameLength  = 20
	maxPayloadLength     = 1000
	maxPayloadFieldLen   = 500
	strippedNameChars    = `<>'"&`
	strippedPayloadChars = "<>"
)

var roomCodePattern = regexp.MustCompile(`^[A-Z]{4}$`)

// allowedPayloadKeys is the explicit allow-list for object payloads on
// player:submit / player:vote; anything else is dropped.
var allowedPayloadKeys = map[string]struct{}{
	"choice":    {},
	"optionId":  {},
	"answerId":  {},
	"value":     {},
	"text":      {},
	"promptId":  {},
	"answer":    {},
	"timestamp": {},
}

// RoomService is the process-wide room registry and player session manager.
// One instance is owned by the server and injected into the router and the
// reaper; room existence has no other source of truth.
type RoomService struct {
	ctx   context.Context
	rooms syncx.Map[string, *entities.Room]
}

// NewRoomService creates the registry. ctx parents every room's detached
// side-effect context, so server shutdown aborts them all.
func NewRoomService(ctx context.Context) *RoomService {
	return &RoomService{ctx: ctx}
}

// GetOrCreate returns the room for code, lazily creating it in the lobby
// phase. The second return reports whether this call created the room.
// The returned room always has GameState.Players re-aliased.
func (roomService *RoomService) GetOrCreate(code, gameType string) (*entities.Room, bool) {
	if room, ok := roomService.rooms.Load(code); ok {
		room.SyncStatePlayers()
		return room, false
	}

	room := entities.NewRoom(roomService.ctx, code, gameType)

	actual, loaded := roomService.rooms.LoadOrStore(code, room)

	if loaded {
		// Lost the race; release the discarded room's context.
		room.CancelDetached()
	}

	actual.SyncStatePlayers()

	return actual, !loaded
}

func (roomService *RoomService) Find(code string) (*entities.Room, bool) {
	return roomService.rooms.Load(code)
}

func (roomService *RoomService) Delete(code string) {
	roomService.rooms.Delete(code)
}

func (roomService *RoomService) Range(fn func(code string, room *entities.Room) bool) {
	roomService.rooms.Range(fn)
}

func (roomService *RoomService) Len() int {
	return roomService.rooms.Len()
}

// NewRoomCode draws codes until one misses the live registry. The generator
// itself is collision-blind; uniqueness is this caller's job.
func (roomService *RoomService) NewRoomCode() string {
	for {
		code := GenerateRoomCode()

		if _, ok := roomService.rooms.Load(code); !ok {
			return code
		}
	}
}

// JoinPlayer adds a player to the room, or reconnects them when the name is
// already taken: same name means same seat, and the new connection simply
// takes the record over. The second return reports a reconnection.
func (roomService *RoomService) JoinPlayer(room *entities.Room, name, connectionID string) (*entities.Player, bool) {
	if existing := room.FindPlayerByName(name); existing != nil {
		existing.ConnectionID = connectionID
		existing.IsConnected = true
		return existing, true
	}

	player := CreatePlayer(GeneratePlayerID(), name, room.Code, connectionID)

	room.Players = append(room.Players, player)
	room.SyncStatePlayers()

	return player, false
}

func CreatePlayer(id, name, roomCode, connectionID string) *entities.Player {
	return &entities.Player{
		ID:           id,
		Name:         name,
		RoomCode:     roomCode,
		Score:        0,
		IsConnected:  true,
		ConnectionID: connectionID,
	}
}

func GeneratePlayerID() string {
	return bson.NewObjectID().Hex()
}

// GenerateRoomCode draws 4 letters uniformly from A-Z. It does not check
// the registry; use RoomService.NewRoomCode for a committed code.
func GenerateRoomCode() string {
	code := make([]byte, roomCodeLength)

	for i := range code {
		code[i] = roomCodeLetters[rand.Intn(len(roomCodeLetters))]
	}

	return string(code)
}

func IsValidRoomCode(code string) bool {
	return roomCodePattern.MatchString(code)
}

// SanitizePlayerName trims, strips markup-significant characters, collapses
// whitespace runs and truncates to 20 characters. It is idempotent.
func SanitizePlayerName(name string) string {
	cleaned := stripCharacters(name, strippedNameChars)
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	runes := []rune(cleaned)
	if len(runes) > maxPlayerNameLength {
		runes = runes[:maxPlayerNameLength]
	}

	// Truncation can land right after a space; a second pass must not
	// shrink the name further.
	return strings.TrimRight(string(runes), " ")
}

// ValidatePayloadData screens a decoded submit/vote payload. Strings are
// truncated to 1000 characters and stripped of angle brackets. Objects keep
// only allow-listed keys with string (truncated to 500), numeric or boolean
// values. Anything else, nil included, is rejected.
func ValidatePayloadData(data any) (any, bool) {
	switch value := data.(type) {
	case string:
		return sanitizePayloadString(value, maxPayloadLength), true
	case map[string]any:
		cleaned := make(map[string]any, len(value))

		for key, field := range value {
			if _, ok := allowedPayloadKeys[key]; !ok {
				continue
			}

			switch typed := field.(type) {
			case string:
				cleaned[key] = sanitizePayloadString(typed, maxPayloadFieldLen)
			case float64, int, int64, bool:
				cleaned[key] = typed
			default:
				return nil, false
			}
		}

		return cleaned, true
	default:
		return nil, false
	}
}

// ApplyScoresToPlayers increments each player's score by their delta in
// scores; players absent from the map are unaffected. Scores never drop
// below zero.
func ApplyScoresToPlayers(players []*entities.Player, scores map[string]int) {
	if len(scores) == 0 {
		return
	}

	for _, player := range players {
		player.Score += scores[player.ID]

		if player.Score < 0 {
			player.Score = 0
		}
	}
}

// ResetPlayerScores zeroes every score; game contracts call this on restart.
func ResetPlayerScores(players []*entities.Player) {
	for _, player := range players {
		player.Score = 0
	}
}

func sanitizePayloadString(value string, limit int) string {
	cleaned := stripCharacters(value, strippedPayloadChars)

	runes := []rune(cleaned)
	if len(runes) > limit {
		runes = runes[:limit]
	}

	return string(runes)
}

func stripCharacters(value, characters string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(characters, r) {
			return -1
		}
		return r
	}, value)
}
