package entities

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/partydeck/partydeck/pkg/logx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const outboundBufferSize = 50

// Connection wraps one websocket (player phone or display) with a buffered
// outbound channel consumed by WritePump.
type Connection struct {
	ID string
	// RoomCode is set by the router when the connection joins a room.
	// It is only touched on the dispatch goroutine.
	RoomCode string
	// Message is closed by Kick; IsClosed guards against double close.
	Message  chan []byte
	IsClosed bool
	ws       *websocket.Conn
	limiter  *rate.Limiter
	mutex    sync.Mutex
}

func NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		ID:      uuid.NewString(),
		Message: make(chan []byte, outboundBufferSize),
		ws:      ws,
		// Phones emit at human speed; anything faster is a misbehaving client.
		limiter: rate.NewLimiter(rate.Limit(20), 40),
	}
}

// Send queues a payload for the write pump. Messages to a closed connection
// or past a full buffer are dropped; delivery is best effort.
func (connection *Connection) Send(payload []byte) {
	connection.mutex.Lock()
	defer connection.mutex.Unlock()

	if connection.IsClosed {
		return
	}

	select {
	case connection.Message <- payload:
	default:
		logx.Logger.Warn(
			"outbound buffer is full, dropping message",
			zap.String("connectionId", connection.ID),
		)
	}
}

// Different scenarios for 'close of closed channel'
// 1) If user opens duplicate tab and close the first one

func (connection *Connection) Kick() {
	// We are using mutex to make sure IsClosed value is evaluated correctly
	// when reading its value at the same time.
	// https://go101.org/article/channel-closing.html
	connection.mutex.Lock()

	defer connection.mutex.Unlock()

	if !connection.IsClosed {
		close(connection.Message)
		connection.IsClosed = true
	}

	if connection.ws != nil {
		err := connection.ws.Close()

		if err != nil {
			logx.Logger.Error(
				err.Error(),
				zap.String("desc", "could not close websocket connection"),
				zap.String("connectionId", connection.ID),
			)
		}
	}
}

func (connection *Connection) WritePump() {
	defer connection.Kick()

	for {
		message, ok := <-connection.Message

		if !ok {
			logx.Logger.Info(
				"connection channel is closed!",
				zap.String("connectionId", connection.ID),
			)
			break
		}

		err := connection.ws.WriteMessage(websocket.TextMessage, message)

		if err != nil {
			logx.Logger.Error(
				err.Error(),
				zap.String("desc", "could not write connection message"),
				zap.String("connectionId", connection.ID),
			)
		}
	}
}

// ReadPump blocks reading inbound frames and hands each to handle.
// It returns when the peer closes or the read fails; the caller is
// responsible for routing the resulting disconnect.
func (connection *Connection) ReadPump(handle func(payload []byte)) {
	for {
		_, payload, err := connection.ws.ReadMessage()

		if err != nil {
			logx.Logger.Info(
				err.Error(),
				zap.String("desc", "could not read connection message"),
				zap.String("connectionId", connection.ID),
			)
			break
		}

		if !connection.limiter.Allow() {
			logx.Logger.Warn(
				"rate limit exceeded, dropping message",
				zap.String("connectionId", connection.ID),
			)
			continue
		}

		handle(payload)
	}
}
