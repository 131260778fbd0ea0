package entities

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnection_SendQueuesForWritePump(t *testing.T) {
	connection := NewConnection(nil)

	connection.Send([]byte("hello"))

	select {
	case payload := <-connection.Message:
		assert.Equal(t, "hello", string(payload))
	default:
		require.Fail(t, "payload was not queued")
	}
}

func TestConnection_SendDropsWhenBufferIsFull(t *testing.T) {
	connection := NewConnection(nil)

	for i := 0; i < outboundBufferSize+10; i++ {
		connection.Send([]byte("x"))
	}

	assert.Len(t, connection.Message, outboundBufferSize)
}

func TestConnection_KickIsIdempotent(t *testing.T) {
	connection := NewConnection(nil)

	connection.Kick()
	connection.Kick()

	assert.True(t, connection.IsClosed)

	// Sending after a kick is a silent no-op, not a panic on a closed channel.
	connection.Send([]byte("late"))

	_, open := <-connection.Message
	assert.False(t, open)
}

func TestRoom_AttachDetachBroadcast(t *testing.T) {
	room := NewRoom(context.Background(), "ABCD", "")

	first := NewConnection(nil)
	second := NewConnection(nil)

	room.Attach(first)
	room.Attach(second)

	assert.Equal(t, "ABCD", first.RoomCode)
	assert.Len(t, room.Connections, 2)

	room.Broadcast([]byte("update"))

	assert.Len(t, first.Message, 1)
	assert.Len(t, second.Message, 1)

	room.Detach(first.ID)
	room.Broadcast([]byte("update"))

	assert.Len(t, first.Message, 1)
	assert.Len(t, second.Message, 2)
}

func TestRoom_CancelDetachedCancelsContext(t *testing.T) {
	room := NewRoom(context.Background(), "ABCD", "")

	require.NoError(t, room.Context().Err())

	room.CancelDetached()

	assert.ErrorIs(t, room.Context().Err(), context.Canceled)
}

func TestRoom_ParentCancellationPropagates(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())

	room := NewRoom(parent, "ABCD", "")
	cancel()

	assert.ErrorIs(t, room.Context().Err(), context.Canceled)
}
