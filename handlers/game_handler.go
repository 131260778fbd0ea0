package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/partydeck/partydeck/entities"
	"github.com/partydeck/partydeck/pkg/logx"
	"github.com/partydeck/partydeck/schemas"
	"github.com/partydeck/partydeck/services"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

type GameHandler struct {
	router      *services.RouterService
	rooms       *services.RoomService
	joinBaseURL string
}

func NewGameHandler(
	mux *chi.Mux,
	router *services.RouterService,
	rooms *services.RoomService,
	allowedOrigins []string,
	joinBaseURL string,
) {
	gameHandler := GameHandler{
		router:      router,
		rooms:       rooms,
		joinBaseURL: joinBaseURL,
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowedOrigins, origin)
		},
	}

	mux.Get("/rooms/ws", gameHandler.serve(upgrader))
	mux.Post("/rooms", gameHandler.create)
	mux.Get("/rooms/{code}/qr", gameHandler.qr)
	mux.Get("/health", gameHandler.health)
}

// serve upgrades the connection and pumps frames into the router until the
// peer goes away, then routes the disconnect.
func (gameHandler GameHandler) serve(upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)

		if err != nil {
			logx.Logger.Error(
				err.Error(),
				zap.String("desc", "could not upgrade http request"),
			)
			return
		}

		connection := entities.NewConnection(ws)

		go connection.WritePump()

		connection.ReadPump(func(payload []byte) {
			var envelope schemas.Envelope

			if err := json.Unmarshal(payload, &envelope); err != nil {
				logx.Logger.Info(
					err.Error(),
					zap.String("desc", "could not decode inbound frame"),
					zap.String("connectionId", connection.ID),
				)
				return
			}

			gameHandler.router.Dispatch(connection, envelope)
		})

		gameHandler.router.NotifyDisconnect(connection)
		connection.Kick()
	}
}

// create hands a display a fresh, collision-checked room code before it
// opens its websocket.
func (gameHandler GameHandler) create(w http.ResponseWriter, r *http.Request) {
	var payload schemas.CreateRoomRequest

	if r.Body != nil && r.ContentLength != 0 {
		err := decode(&payload, r)
		if err != nil && err != io.EOF {
			w.WriteHeader(http.StatusUnprocessableEntity)
			encode(schemas.ErrorResponse{Message: "Malformed request body."}, w)
			return
		}
	}

	code := gameHandler.rooms.NewRoomCode()
	gameHandler.rooms.GetOrCreate(code, payload.GameType)

	w.WriteHeader(http.StatusCreated)
	encode(schemas.CreateRoomResponse{RoomCode: code}, w)
}

// qr renders the join URL for a live room as a PNG for the display.
func (gameHandler GameHandler) qr(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "code"))

	if !services.IsValidRoomCode(code) {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if _, ok := gameHandler.rooms.Find(code); !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	joinURL := fmt.Sprintf("%s/?room=%s", gameHandler.joinBaseURL, code)

	png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)

	if err != nil {
		logx.Logger.Error(
			err.Error(),
			zap.String("desc", "could not encode join QR"),
			zap.String("roomCode", code),
		)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")

	if _, err := w.Write(png); err != nil {
		logx.Logger.Error(err.Error(), zap.String("desc", "could not write QR response"))
	}
}

func (gameHandler GameHandler) health(w http.ResponseWriter, r *http.Request) {
	encode(map[string]string{"status": "ok"}, w)
}
