package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/partydeck/partydeck/contracts"
	"github.com/partydeck/partydeck/entities"
	"github.com/partydeck/partydeck/pkg/logx"
	"github.com/partydeck/partydeck/schemas"
	"go.uber.org/zap"
)

const defaultDispatchBufferSize = 500

// eventDisconnect is routed internally when a read pump exits; it never
// arrives from a contract because the name is reserved at registration.
const eventDisconnect = "connection:disconnect"

// PersistFunc is the optional async persistence hook; failure is non-fatal.
type PersistFunc func(ctx context.Context, entity string, data any) error

// GenerateFunc is the optional async content generator. Its result re-enters
// the router as a synthetic event named by the effect's OnComplete.
type GenerateFunc func(ctx context.Context, config map[string]any) (any, error)

// dispatch is one queued unit of work for the router loop. Transport events
// carry conn and raw JSON; synthetic events carry room and decoded data;
// loop-scheduled work carries only fn.
type dispatch struct {
	conn  *entities.Connection
	event string
	room  string
	raw   json.RawMessage
	data  any
	fn    func()
}

// RouterService is the single dispatch point: every transport event,
// scheduled timeout and generation completion funnels through one goroutine,
// so the synchronous portion of an event runs to completion before the next
// one starts and room state needs no locks.
type RouterService struct {
	ctx       context.Context
	rooms     *RoomService
	registry  *contracts.Registry
	timeouts  *TimeoutService
	publisher MessagePublisher
	persist   PersistFunc
	generate  GenerateFunc
	events    chan *dispatch
}

func NewRouterService(
	ctx context.Context,
	rooms *RoomService,
	registry *contracts.Registry,
	timeouts *TimeoutService,
	publisher MessagePublisher,
	persist PersistFunc,
	generate GenerateFunc,
	dispatchBufferSize int,
) *RouterService {
	bufferSize := dispatchBufferSize

	if bufferSize <= 0 {
		bufferSize = defaultDispatchBufferSize
	}

	return &RouterService{
		ctx:       ctx,
		rooms:     rooms,
		registry:  registry,
		timeouts:  timeouts,
		publisher: publisher,
		persist:   persist,
		generate:  generate,
		events:    make(chan *dispatch, bufferSize),
	}
}

// Run consumes the event queue until the context is cancelled.
func (router *RouterService) Run() {
	for {
		select {
		case <-router.ctx.Done():
			return
		case d := <-router.events:
			router.route(d)
		}
	}
}

// Dispatch enqueues a transport event from a connection's read pump.
func (router *RouterService) Dispatch(conn *entities.Connection, envelope schemas.Envelope) {
	select {
	case router.events <- &dispatch{conn: conn, event: envelope.Event, raw: envelope.Data}:
	case <-router.ctx.Done():
	}
}

// DispatchSynthetic enqueues a core-generated event (timeout fired,
// generation finished) as a first-class inbound event for the room.
func (router *RouterService) DispatchSynthetic(event, roomCode string, data any) {
	select {
	case router.events <- &dispatch{event: event, room: roomCode, data: data}:
	case <-router.ctx.Done():
	}
}

// NotifyDisconnect enqueues the transport-level disconnect for a connection.
func (router *RouterService) NotifyDisconnect(conn *entities.Connection) {
	select {
	case router.events <- &dispatch{conn: conn, event: eventDisconnect}:
	case <-router.ctx.Done():
	}
}

// RunOnLoop schedules fn onto the dispatch goroutine. Room fields carry no
// locks of their own; collaborators with their own goroutines (the reaper)
// must read and mutate rooms through here.
func (router *RouterService) RunOnLoop(fn func()) {
	select {
	case router.events <- &dispatch{fn: fn}:
	case <-router.ctx.Done():
	}
}

// route is fail-soft: malformed or unrecognized input never crashes the
// dispatch loop.
func (router *RouterService) route(d *dispatch) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logx.Logger.Error(
				"recovered from panic while routing event",
				zap.Any("panic", recovered),
				zap.String("event", d.event),
			)
		}
	}()

	if d.fn != nil {
		d.fn()
		return
	}

	switch d.event {
	case schemas.EventPing:
		router.handlePing(d)
	case schemas.EventDisplayJoin:
		router.handleDisplayJoin(d)
	case schemas.EventPlayerJoin:
		router.handlePlayerJoin(d)
	case schemas.EventGameStart:
		router.handleGameStart(d)
	case schemas.EventPlayerSubmit:
		router.handleAction(d, router.HandleSubmit)
	case schemas.EventPlayerVote:
		router.handleAction(d, router.HandleVote)
	case schemas.EventNextRound:
		router.handleNextRound(d)
	case eventDisconnect:
		router.handleDisconnect(d)
	default:
		router.handleCustom(d)
	}
}

func (router *RouterService) handlePing(d *dispatch) {
	if d.conn == nil {
		return
	}

	payload, err := schemas.PongEvent()

	if err != nil {
		logx.Logger.Error(err.Error(), zap.String("desc", "could not marshal pong"))
		return
	}

	d.conn.Send(payload)
}

func (router *RouterService) handleDisplayJoin(d *dispatch) {
	var request schemas.DisplayJoinRequest

	if !decodeRequest(d.raw, &request, schemas.EventDisplayJoin) {
		return
	}

	if err := request.Validate(); err != nil || !IsValidRoomCode(request.RoomCode) {
		logx.Logger.Info("rejected display join", zap.String("roomCode", request.RoomCode))
		return
	}

	room, created := router.rooms.GetOrCreate(request.RoomCode, "")

	if created {
		router.publishRoomCreated(room.Code)
	}

	// A second display takes over; the stale connection is kicked so it
	// stops receiving broadcasts.
	if room.Display != nil && room.Display.ID != d.conn.ID {
		room.Detach(room.Display.ID)
		room.Display.Kick()
	}

	room.Display = d.conn
	room.Attach(d.conn)
	room.Touch()

	// A newly joined display gets one snapshot; the roster did not change,
	// so nobody else needs a broadcast.
	router.sendState(room, d.conn)
}

func (router *RouterService) handlePlayerJoin(d *dispatch) {
	var request schemas.PlayerJoinRequest

	if !decodeRequest(d.raw, &request, schemas.EventPlayerJoin) {
		return
	}

	name := SanitizePlayerName(request.Name)

	if err := request.Validate(); err != nil || !IsValidRoomCode(request.RoomCode) || name == "" {
		logx.Logger.Info(
			"rejected player join",
			zap.String("roomCode", request.RoomCode),
			zap.String("name", request.Name),
		)
		return
	}

	room, created := router.rooms.GetOrCreate(request.RoomCode, "")

	if created {
		router.publishRoomCreated(room.Code)
	}

	// Same name means same seat; drop the seat's previous connection first.
	if existing := room.FindPlayerByName(name); existing != nil && existing.ConnectionID != d.conn.ID {
		if stale, ok := room.Connections[existing.ConnectionID]; ok {
			room.Detach(stale.ID)
			stale.Kick()
		}
	}

	player, reconnected := router.rooms.JoinPlayer(room, name, d.conn.ID)

	room.Attach(d.conn)
	room.Touch()

	if reconnected {
		logx.Logger.Info(
			"player reconnected",
			zap.String("roomCode", room.Code),
			zap.String("playerId", player.ID),
		)
	}

	if payload, err := schemas.PlayerJoinedEvent(player); err == nil {
		d.conn.Send(payload)
	}

	router.broadcastState(room)
}

func (router *RouterService) handleGameStart(d *dispatch) {
	var request schemas.GameStartRequest

	if !decodeRequest(d.raw, &request, schemas.EventGameStart) {
		return
	}

	if err := request.Validate(); err != nil || !IsValidRoomCode(request.RoomCode) {
		logx.Logger.Info("rejected game start", zap.String("roomCode", request.RoomCode))
		return
	}

	room, created := router.rooms.GetOrCreate(request.RoomCode, request.GameType)

	if created {
		router.publishRoomCreated(room.Code)
	}

	restarting := room.GameState.GameType != "" && room.GameState.Phase != entities.PhaseLobby

	if restarting {
		if !router.registry.CanRestart(request.GameType, room.GameState.Phase) {
			logx.Logger.Info(
				"game start refused mid-game",
				zap.String("roomCode", room.Code),
				zap.String("phase", room.GameState.Phase),
			)
			return
		}

		ResetPlayerScores(room.Players)
	}

	room.GameState.GameType = request.GameType

	if contract, ok := router.registry.Contract(request.GameType); ok {
		if state := contract.InitializeGame(room.Code, room.Players, request.Config); state != nil {
			room.GameState = state
		}
	}

	room.SyncStatePlayers()
	room.Touch()

	if message, err := schemas.GameStartedEvent(room.Code, request.GameType); err == nil {
		router.publish(message)
	}

	router.broadcastState(room)
}

// handleAction decodes a submit/vote frame, screens the payload and routes
// it through the handle func. A false return is "not handled", not an error.
func (router *RouterService) handleAction(d *dispatch, handle func(*entities.Connection, *entities.Room, any) bool) {
	request, room, ok := router.resolveAction(d)

	if !ok {
		return
	}

	payload, ok := decodeActionPayload(request.Data)

	if !ok {
		logx.Logger.Info("rejected action payload", zap.String("roomCode", room.Code))
		return
	}

	if !handle(d.conn, room, payload) {
		logx.Logger.Debug(
			"action not handled by game contract",
			zap.String("event", d.event),
			zap.String("roomCode", room.Code),
		)
	}
}

func (router *RouterService) handleNextRound(d *dispatch) {
	_, room, ok := router.resolveAction(d)

	if !ok {
		return
	}

	if router.HandleNextRound(d.conn, room) {
		return
	}

	// Contracts may model round advance as a custom event instead.
	if !router.HandleCustomEvent(schemas.EventNextRound, d.conn, room, nil) {
		logx.Logger.Debug("next round not handled", zap.String("roomCode", room.Code))
	}
}

func (router *RouterService) handleDisconnect(d *dispatch) {
	if d.conn == nil || d.conn.RoomCode == "" {
		return
	}

	room, ok := router.rooms.Find(d.conn.RoomCode)

	if !ok {
		return
	}

	if player := room.FindPlayerByConnectionID(d.conn.ID); player != nil {
		player.IsConnected = false
	}

	if room.Display != nil && room.Display.ID == d.conn.ID {
		room.Display = nil
	}

	room.Detach(d.conn.ID)
	room.Touch()

	router.broadcastState(room)
}

func (router *RouterService) handleCustom(d *dispatch) {
	room, data, ok := router.resolveCustom(d)

	if !ok {
		return
	}

	room.Touch()

	if !router.HandleCustomEvent(d.event, d.conn, room, data) {
		logx.Logger.Debug(
			"custom event not handled",
			zap.String("event", d.event),
			zap.String("roomCode", room.Code),
		)
	}
}

// HandleSubmit routes a submit through the room's contract. It returns
// false, with no state change, when the room has no game type or the
// contract does not handle submits.
func (router *RouterService) HandleSubmit(conn *entities.Connection, room *entities.Room, data any) bool {
	contract, ok := router.resolveContract(room)

	if !ok {
		return false
	}

	playerID, playerName := router.resolvePlayer(conn, room)

	result := contract.HandleSubmit(room.GameState, playerID, playerName, data)

	if result == nil {
		return false
	}

	router.ApplyResult(room, conn, result)

	return true
}

func (router *RouterService) HandleVote(conn *entities.Connection, room *entities.Room, data any) bool {
	contract, ok := router.resolveContract(room)

	if !ok {
		return false
	}

	playerID, playerName := router.resolvePlayer(conn, room)

	result := contract.HandleVote(room.GameState, playerID, playerName, data)

	if result == nil {
		return false
	}

	router.ApplyResult(room, conn, result)

	return true
}

func (router *RouterService) HandleNextRound(conn *entities.Connection, room *entities.Room) bool {
	contract, ok := router.resolveContract(room)

	if !ok {
		return false
	}

	result := contract.HandleNextRound(room.GameState)

	if result == nil {
		return false
	}

	router.ApplyResult(room, conn, result)

	return true
}

// HandleCustomEvent looks up the named handler for the room's game type and
// runs it. Handler errors are logged and degrade to "not handled"; because
// ApplyResult is only reached after a successful return, a failed handler
// never partially mutates room state.
func (router *RouterService) HandleCustomEvent(event string, conn *entities.Connection, room *entities.Room, data any) bool {
	gameType := room.GameState.GameType

	if gameType == "" {
		return false
	}

	handler, err := router.registry.CustomEventHandler(gameType, event)

	if err != nil {
		if !errors.Is(err, contracts.ErrUnhandledEvent) && !errors.Is(err, contracts.ErrUnknownGameType) {
			logx.Logger.Error(
				err.Error(),
				zap.String("desc", "could not resolve custom event handler"),
				zap.String("event", event),
			)
		}
		return false
	}

	playerID, playerName := router.resolvePlayer(conn, room)

	result, err := handler(room.Context(), contracts.HandlerContext{
		Connection: conn,
		Room:       room,
		PlayerID:   playerID,
		PlayerName: playerName,
		Data:       data,
	})

	if err != nil {
		logx.Logger.Error(
			err.Error(),
			zap.String("desc", "custom event handler failed"),
			zap.String("event", event),
			zap.String("roomCode", room.Code),
		)
		return false
	}

	if result == nil {
		return false
	}

	router.ApplyResult(room, conn, result)

	return true
}

// ApplyResult is the single commit point for a contract result: replace the
// state wholesale, re-alias the player list, apply score deltas, execute
// side effects in order, then broadcast once. A result is never partially
// applied.
func (router *RouterService) ApplyResult(room *entities.Room, conn *entities.Connection, result *contracts.GameEventResult) {
	if result == nil {
		return
	}

	if result.State != nil {
		room.GameState = result.State
	}

	room.SyncStatePlayers()

	ApplyScoresToPlayers(room.Players, result.ScoresToApply)

	for _, effect := range result.SideEffects {
		router.executeSideEffect(room, effect)
	}

	router.broadcastState(room)
}

func (router *RouterService) executeSideEffect(room *entities.Room, effect contracts.SideEffect) {
	switch effect := effect.(type) {
	case contracts.ScheduleTimeout:
		action, data, roomCode := effect.Action, effect.Data, room.Code

		router.timeouts.Schedule(roomCode, func() {
			router.DispatchSynthetic(action, roomCode, data)
		}, effect.Delay)

	case contracts.EmitToRoom:
		payload, err := schemas.RoomEvent(effect.Event, effect.Data)

		if err != nil {
			logx.Logger.Error(
				err.Error(),
				zap.String("desc", "could not marshal room event"),
				zap.String("event", effect.Event),
			)
			return
		}

		room.Broadcast(payload)

	case contracts.PersistToDB:
		if router.persist == nil {
			return
		}

		ctx, entity, data, roomCode := room.Context(), effect.Entity, effect.Data, room.Code

		go func() {
			if err := router.persist(ctx, entity, data); err != nil {
				logx.Logger.Error(
					err.Error(),
					zap.String("desc", "could not persist entity"),
					zap.String("entity", entity),
					zap.String("roomCode", roomCode),
				)
			}
		}()

	case contracts.GenerateContent:
		if router.generate == nil {
			return
		}

		ctx, config, action, roomCode := room.Context(), effect.Config, effect.OnComplete, room.Code

		go func() {
			result, err := router.generate(ctx, config)

			if err != nil {
				logx.Logger.Error(
					err.Error(),
					zap.String("desc", "could not generate content"),
					zap.String("roomCode", roomCode),
					zap.String("onComplete", action),
				)
				return
			}

			router.DispatchSynthetic(action, roomCode, result)
		}()

	default:
		logx.Logger.Warn("unknown side effect", zap.Any("effect", effect))
	}
}

func (router *RouterService) resolveContract(room *entities.Room) (contracts.GameContract, bool) {
	gameType := room.GameState.GameType

	if gameType == "" {
		return nil, false
	}

	return router.registry.Contract(gameType)
}

func (router *RouterService) resolvePlayer(conn *entities.Connection, room *entities.Room) (string, string) {
	if conn == nil {
		return "", ""
	}

	player := room.FindPlayerByConnectionID(conn.ID)

	if player == nil {
		return "", ""
	}

	return player.ID, player.Name
}

// resolveAction decodes the common roomCode frame and finds the live room.
// Actions against unknown rooms are dropped, not lazily created.
func (router *RouterService) resolveAction(d *dispatch) (schemas.ActionRequest, *entities.Room, bool) {
	var request schemas.ActionRequest

	if !decodeRequest(d.raw, &request, d.event) {
		return request, nil, false
	}

	if err := request.Validate(); err != nil || !IsValidRoomCode(request.RoomCode) {
		logx.Logger.Info("rejected action", zap.String("roomCode", request.RoomCode))
		return request, nil, false
	}

	room, ok := router.rooms.Find(request.RoomCode)

	if !ok {
		logx.Logger.Info("action for unknown room", zap.String("roomCode", request.RoomCode))
		return request, nil, false
	}

	room.Touch()

	return request, room, true
}

// resolveCustom finds the room for a custom event. Synthetic events name
// their room directly; transport events carry it in the frame.
func (router *RouterService) resolveCustom(d *dispatch) (*entities.Room, any, bool) {
	if d.room != "" {
		room, ok := router.rooms.Find(d.room)

		if !ok {
			// The room was reaped between scheduling and delivery.
			logx.Logger.Info(
				"synthetic event for unknown room",
				zap.String("event", d.event),
				zap.String("roomCode", d.room),
			)
			return nil, nil, false
		}

		return room, d.data, true
	}

	var request schemas.ActionRequest

	if !decodeRequest(d.raw, &request, d.event) {
		return nil, nil, false
	}

	if err := request.Validate(); err != nil || !IsValidRoomCode(request.RoomCode) {
		return nil, nil, false
	}

	room, ok := router.rooms.Find(request.RoomCode)

	if !ok {
		return nil, nil, false
	}

	var data any

	if len(request.Data) > 0 {
		if err := json.Unmarshal(request.Data, &data); err != nil {
			logx.Logger.Info(err.Error(), zap.String("desc", "could not decode custom event data"))
			return nil, nil, false
		}
	}

	return room, data, true
}

func (router *RouterService) broadcastState(room *entities.Room) {
	payload, err := schemas.StateUpdateEvent(room.GameState)

	if err != nil {
		logx.Logger.Error(
			err.Error(),
			zap.String("desc", "could not marshal state update"),
			zap.String("roomCode", room.Code),
		)
		return
	}

	room.Broadcast(payload)
}

func (router *RouterService) sendState(room *entities.Room, conn *entities.Connection) {
	if conn == nil {
		return
	}

	payload, err := schemas.StateUpdateEvent(room.GameState)

	if err != nil {
		logx.Logger.Error(
			err.Error(),
			zap.String("desc", "could not marshal state update"),
			zap.String("roomCode", room.Code),
		)
		return
	}

	conn.Send(payload)
}

func (router *RouterService) publishRoomCreated(roomCode string) {
	if message, err := schemas.RoomCreatedEvent(roomCode); err == nil {
		router.publish(message)
	}
}

func (router *RouterService) publish(message string) {
	if router.publisher == nil {
		return
	}

	// The publisher logs its own failures; lifecycle events are best effort.
	_ = router.publisher.Publish(message)
}

func decodeRequest(raw json.RawMessage, request interface{ Validate() error }, event string) bool {
	if len(raw) == 0 {
		logx.Logger.Info("event frame has no data", zap.String("event", event))
		return false
	}

	if err := json.Unmarshal(raw, request); err != nil {
		logx.Logger.Info(
			err.Error(),
			zap.String("desc", "could not decode event data"),
			zap.String("event", event),
		)
		return false
	}

	return true
}

func decodeActionPayload(raw json.RawMessage) (any, bool) {
	var payload any

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, false
		}
	}

	return ValidatePayloadData(payload)
}
