package schemas

import (
	"encoding/json"
)

// PublisherEvent is the envelope published to the broker channel for
// sibling services (narration pipeline, persona picker).
type PublisherEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func RoomCreatedEvent(roomCode string) (string, error) {
	type RoomCreatedContent struct {
		RoomCode string `json:"roomCode"`
	}

	return encode("RoomCreated", RoomCreatedContent{RoomCode: roomCode})
}

func GameStartedEvent(roomCode, gameType string) (string, error) {
	type GameStartedContent struct {
		RoomCode string `json:"roomCode"`
		GameType string `json:"gameType"`
	}

	content := GameStartedContent{
		RoomCode: roomCode,
		GameType: gameType,
	}

	return encode("GameStarted", content)
}

func RoomReapedEvent(roomCode string) (string, error) {
	type RoomReapedContent struct {
		RoomCode string `json:"roomCode"`
	}

	return encode("RoomReaped", RoomReapedContent{RoomCode: roomCode})
}

func encode(eventType string, content any) (string, error) {
	message, err := json.Marshal(content)
	if err != nil {
		return "", err
	}

	event := PublisherEvent{
		Type:    eventType,
		Content: string(message),
	}

	e, err := json.Marshal(event)
	if err != nil {
		return "", err
	}

	return string(e), nil
}
