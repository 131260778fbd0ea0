package schemas

import (
	"encoding/json"
	"testing"

	"github.com/partydeck/partydeck/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateUpdateEvent_WrapsStateInEnvelope(t *testing.T) {
	state := entities.NewGameState("ABCD", "trivia")
	state.Phase = "question"

	payload, err := StateUpdateEvent(state)
	require.NoError(t, err)

	var envelope Envelope
	require.NoError(t, json.Unmarshal(payload, &envelope))

	assert.Equal(t, EventStateUpdate, envelope.Event)

	var decoded entities.GameState
	require.NoError(t, json.Unmarshal(envelope.Data, &decoded))
	assert.Equal(t, "ABCD", decoded.RoomCode)
	assert.Equal(t, "question", decoded.Phase)
}

func TestPongEvent_HasNoData(t *testing.T) {
	payload, err := PongEvent()
	require.NoError(t, err)

	var envelope Envelope
	require.NoError(t, json.Unmarshal(payload, &envelope))

	assert.Equal(t, EventPong, envelope.Event)
	assert.Empty(t, envelope.Data)
}

func TestRequestValidation(t *testing.T) {
	assert.Error(t, DisplayJoinRequest{}.Validate())
	assert.NoError(t, DisplayJoinRequest{RoomCode: "ABCD"}.Validate())

	assert.Error(t, PlayerJoinRequest{RoomCode: "ABCD"}.Validate())
	assert.NoError(t, PlayerJoinRequest{RoomCode: "ABCD", Name: "Sam"}.Validate())

	assert.Error(t, GameStartRequest{RoomCode: "ABCD"}.Validate())
	assert.NoError(t, GameStartRequest{RoomCode: "ABCD", GameType: "trivia"}.Validate())

	assert.Error(t, ActionRequest{}.Validate())
	assert.NoError(t, ActionRequest{RoomCode: "ABCD"}.Validate())
}

func TestPublisherEvents_CarryTypedContent(t *testing.T) {
	message, err := GameStartedEvent("ABCD", "trivia")
	require.NoError(t, err)

	var event PublisherEvent
	require.NoError(t, json.Unmarshal([]byte(message), &event))

	assert.Equal(t, "GameStarted", event.Type)
	assert.JSONEq(t, `{"roomCode":"ABCD","gameType":"trivia"}`, event.Content)

	message, err = RoomReapedEvent("WXYZ")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(message), &event))
	assert.Equal(t, "RoomReaped", event.Type)
}
