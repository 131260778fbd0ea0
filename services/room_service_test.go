package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/partydeck/partydeck/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoomService() *RoomService {
	return NewRoomService(context.Background())
}

func TestGetOrCreate_InitializesLobbyState(t *testing.T) {
	roomService := newRoomService()

	room, created := roomService.GetOrCreate("ABCD", "")

	require.True(t, created)
	assert.Equal(t, "ABCD", room.Code)
	assert.Empty(t, room.Players)
	assert.Equal(t, entities.PhaseLobby, room.GameState.Phase)
	assert.Equal(t, 1, room.GameState.CurrentRound)
	assert.Equal(t, "ABCD", room.GameState.RoomCode)
	assert.Nil(t, room.Display)
	assert.WithinDuration(t, time.Now(), room.CreatedAt, time.Second)
}

func TestGetOrCreate_ReturnsExistingRoom(t *testing.T) {
	roomService := newRoomService()

	first, created := roomService.GetOrCreate("ABCD", "")
	require.True(t, created)

	second, created := roomService.GetOrCreate("ABCD", "trivia")
	assert.False(t, created)
	assert.Same(t, first, second)
	// The game type of an existing room is not silently rewritten.
	assert.Equal(t, "", second.GameState.GameType)
}

func TestGetOrCreate_RealiasesStatePlayers(t *testing.T) {
	roomService := newRoomService()

	room, _ := roomService.GetOrCreate("ABCD", "")
	roomService.JoinPlayer(room, "Sam", "conn-1")

	// Lookup must restore the alias even if a contract replaced the slice.
	room.GameState.Players = []*entities.Player{}
	again, _ := roomService.GetOrCreate("ABCD", "")

	require.Len(t, again.GameState.Players, 1)
	assert.Same(t, again.Players[0], again.GameState.Players[0])
}

func TestJoinPlayer_CreatesThenReconnectsByName(t *testing.T) {
	roomService := newRoomService()
	room, _ := roomService.GetOrCreate("ABCD", "")

	player, reconnected := roomService.JoinPlayer(room, "Sam", "conn-1")

	require.False(t, reconnected)
	assert.NotEmpty(t, player.ID)
	assert.Equal(t, "Sam", player.Name)
	assert.Equal(t, "ABCD", player.RoomCode)
	assert.Equal(t, 0, player.Score)
	assert.True(t, player.IsConnected)
	assert.Equal(t, "conn-1", player.ConnectionID)

	// A second join with the same name is a reconnection, not a new seat.
	player.IsConnected = false

	again, reconnected := roomService.JoinPlayer(room, "Sam", "conn-2")

	require.True(t, reconnected)
	assert.Same(t, player, again)
	assert.True(t, again.IsConnected)
	assert.Equal(t, "conn-2", again.ConnectionID)
	assert.Len(t, room.Players, 1)
	assert.Same(t, room.Players[0], room.GameState.Players[0])
}

func TestNewRoomCode_AvoidsLiveRooms(t *testing.T) {
	roomService := newRoomService()

	code := roomService.NewRoomCode()

	assert.True(t, IsValidRoomCode(code))
	_, exists := roomService.Find(code)
	assert.False(t, exists)
}

func TestGenerateRoomCode_Shape(t *testing.T) {
	for i := 0; i < 100; i++ {
		assert.True(t, IsValidRoomCode(GenerateRoomCode()))
	}
}

func TestIsValidRoomCode(t *testing.T) {
	valid := []string{"ABCD", "ZZZZ", "QWER"}
	invalid := []string{"abcd", "ABC", "ABCDE", "AB12", "", "AB C", "ÄBCD"}

	for _, code := range valid {
		assert.True(t, IsValidRoomCode(code), code)
	}

	for _, code := range invalid {
		assert.False(t, IsValidRoomCode(code), code)
	}
}

func TestSanitizePlayerName(t *testing.T) {
	cases := map[string]string{
		"  Sam   Smith  ":  "Sam Smith",
		"<b>Sam</b>":       "bSam/b",
		`Sa"m & 'Bob'`:     "Sam Bob",
		"":                 "",
		"   ":              "",
		"<script>alert</)": "scriptalert/)",
	}

	for input, expected := range cases {
		assert.Equal(t, expected, SanitizePlayerName(input), input)
	}

	long := strings.Repeat("x", 30)
	assert.Len(t, SanitizePlayerName(long), 20)
}

func TestSanitizePlayerName_Idempotent(t *testing.T) {
	samples := []string{
		"  Sam   Smith  ",
		"<b>Sam</b>",
		strings.Repeat("a", 19) + " xy",
		strings.Repeat("word ", 10),
		"plain",
	}

	for _, sample := range samples {
		once := SanitizePlayerName(sample)
		assert.Equal(t, once, SanitizePlayerName(once), sample)
	}
}

func TestValidatePayloadData_RejectsNilAndOddShapes(t *testing.T) {
	_, ok := ValidatePayloadData(nil)
	assert.False(t, ok)

	_, ok = ValidatePayloadData([]any{"a"})
	assert.False(t, ok)

	_, ok = ValidatePayloadData(42)
	assert.False(t, ok)
}

func TestValidatePayloadData_TruncatesAndStripsStrings(t *testing.T) {
	input := strings.Repeat("a", 750) + "<b>" + strings.Repeat("c", 800)

	cleaned, ok := ValidatePayloadData(input)

	require.True(t, ok)
	value := cleaned.(string)
	assert.Len(t, value, 1000)
	assert.NotContains(t, value, "<")
	assert.NotContains(t, value, ">")
}

func TestValidatePayloadData_FiltersObjectKeys(t *testing.T) {
	cleaned, ok := ValidatePayloadData(map[string]any{
		"choice": "a",
		"evil":   "<img>",
	})

	require.True(t, ok)
	assert.Equal(t, map[string]any{"choice": "a"}, cleaned)
}

func TestValidatePayloadData_ObjectValues(t *testing.T) {
	cleaned, ok := ValidatePayloadData(map[string]any{
		"value":     3.5,
		"timestamp": true,
		"text":      strings.Repeat("x", 600) + "<>",
	})

	require.True(t, ok)

	object := cleaned.(map[string]any)
	assert.Equal(t, 3.5, object["value"])
	assert.Equal(t, true, object["timestamp"])
	assert.Len(t, object["text"], 500)

	// A disallowed value type poisons the whole payload.
	_, ok = ValidatePayloadData(map[string]any{"choice": []any{"a"}})
	assert.False(t, ok)
}

func TestApplyScoresToPlayers(t *testing.T) {
	players := []*entities.Player{
		{ID: "p1", Score: 3},
		{ID: "p2", Score: 7},
	}

	ApplyScoresToPlayers(players, nil)
	ApplyScoresToPlayers(players, map[string]int{})
	assert.Equal(t, 3, players[0].Score)
	assert.Equal(t, 7, players[1].Score)

	ApplyScoresToPlayers(players, map[string]int{"p1": 5})
	assert.Equal(t, 8, players[0].Score)
	assert.Equal(t, 7, players[1].Score)
}

func TestResetPlayerScores(t *testing.T) {
	players := []*entities.Player{
		{ID: "p1", Score: 3},
		{ID: "p2", Score: 7},
	}

	ResetPlayerScores(players)

	assert.Equal(t, 0, players[0].Score)
	assert.Equal(t, 0, players[1].Score)
}

func TestHasConnectedClients(t *testing.T) {
	roomService := newRoomService()
	room, _ := roomService.GetOrCreate("ABCD", "")

	assert.False(t, room.HasConnectedClients())

	player, _ := roomService.JoinPlayer(room, "Sam", "conn-1")
	assert.True(t, room.HasConnectedClients())

	player.IsConnected = false
	assert.False(t, room.HasConnectedClients())

	room.Display = entities.NewConnection(nil)
	assert.True(t, room.HasConnectedClients())
}
