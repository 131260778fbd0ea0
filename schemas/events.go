package schemas

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/partydeck/partydeck/entities"
)

// Inbound event names. Anything else on the wire is routed to the game
// contract's custom-event handlers.
const (
	EventPing         = "ping"
	EventDisplayJoin  = "display:join"
	EventPlayerJoin   = "player:join"
	EventGameStart    = "game:start"
	EventNextRound    = "game:next-round"
	EventPlayerSubmit = "player:submit"
	EventPlayerVote   = "player:vote"
)

// Outbound event names.
const (
	EventStateUpdate  = "game:state-update"
	EventPlayerJoined = "player:joined"
	EventPong         = "pong"
)

var validate = validator.New()

// Envelope is the wire frame in both directions: an event name plus an
// event-specific payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type DisplayJoinRequest struct {
	RoomCode string `json:"roomCode" validate:"required"`
}

func (request DisplayJoinRequest) Validate() error {
	return validate.Struct(request)
}

type PlayerJoinRequest struct {
	RoomCode string `json:"roomCode" validate:"required"`
	Name     string `json:"name" validate:"required"`
}

func (request PlayerJoinRequest) Validate() error {
	return validate.Struct(request)
}

type GameStartRequest struct {
	RoomCode string         `json:"roomCode" validate:"required"`
	GameType string         `json:"gameType" validate:"required"`
	Config   map[string]any `json:"config,omitempty"`
}

func (request GameStartRequest) Validate() error {
	return validate.Struct(request)
}

// ActionRequest carries player:submit, player:vote, game:next-round and
// custom events; Data stays raw until the router validates it.
type ActionRequest struct {
	RoomCode string          `json:"roomCode" validate:"required"`
	Data     json.RawMessage `json:"data,omitempty"`
}

func (request ActionRequest) Validate() error {
	return validate.Struct(request)
}

type CreateRoomRequest struct {
	GameType string `json:"gameType,omitempty"`
}

type CreateRoomResponse struct {
	RoomCode string `json:"roomCode"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

func StateUpdateEvent(state *entities.GameState) ([]byte, error) {
	return marshalEnvelope(EventStateUpdate, state)
}

func PlayerJoinedEvent(player *entities.Player) ([]byte, error) {
	return marshalEnvelope(EventPlayerJoined, player)
}

func PongEvent() ([]byte, error) {
	return marshalEnvelope(EventPong, nil)
}

// RoomEvent wraps a contract-declared emit_to_room payload.
func RoomEvent(event string, data any) ([]byte, error) {
	return marshalEnvelope(event, data)
}

func marshalEnvelope(event string, data any) ([]byte, error) {
	envelope := Envelope{Event: event}

	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		envelope.Data = payload
	}

	return json.Marshal(envelope)
}
