package gameserver

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/partydeck/partydeck/contracts"
	"github.com/partydeck/partydeck/handlers"
	"github.com/partydeck/partydeck/pkg/logx"
	"github.com/partydeck/partydeck/services"
	"github.com/partydeck/partydeck/storage"
)

// GameServer wires the room registry, event router, reaper and transport
// into one process-owned unit.
type GameServer struct {
	router   *chi.Mux
	rooms    *services.RoomService
	registry *contracts.Registry
	reaper   *services.ReaperService
	store    *storage.BadgerStore
}

// NewGameServer builds the server from config and starts the dispatch loop
// and the reaper. The caller owns the HTTP listener.
func NewGameServer(config Config) (*GameServer, error) {
	logx.NewLogger()

	ctx := config.Context

	if ctx == nil {
		ctx = context.Background()
	}

	registry := config.Contracts

	if registry == nil {
		registry = contracts.NewRegistry()
	}

	store, err := storage.NewBadgerStore(config.Storage.Path, config.Storage.InMemory)

	if err != nil {
		return nil, err
	}

	publisherService := services.NewPublisherService(
		config.Publisher.Redis.Host,
		config.Publisher.Redis.Port,
		config.Publisher.Redis.Password,
	)

	roomService := services.NewRoomService(ctx)
	timeoutService := services.NewTimeoutService()

	routerService := services.NewRouterService(
		ctx,
		roomService,
		registry,
		timeoutService,
		publisherService,
		store.Persist,
		config.GenerateContent,
		config.DispatchBufferSize,
	)

	reaperConfig := config.Reaper.withDefaults()

	reaperService := services.NewReaperService(
		roomService,
		timeoutService,
		publisherService,
		config.OnRoomCleanup,
		routerService.RunOnLoop,
		reaperConfig.SweepInterval,
		reaperConfig.IdleTimeout,
		reaperConfig.CleanupBuffer,
	)

	router := chi.NewRouter()
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   config.Router.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	handlers.NewGameHandler(
		router,
		routerService,
		roomService,
		config.Router.AllowedOrigins,
		config.JoinBaseURL,
	)

	gameServer := &GameServer{
		router:   router,
		rooms:    roomService,
		registry: registry,
		reaper:   reaperService,
		store:    store,
	}

	go routerService.Run()
	reaperService.Start()

	return gameServer, nil
}

// GetRouter returns the configured HTTP router.
func (gs *GameServer) GetRouter() *chi.Mux {
	return gs.router
}

// GetRooms returns the room registry.
func (gs *GameServer) GetRooms() *services.RoomService {
	return gs.rooms
}

// GetContracts returns the game contract registry.
func (gs *GameServer) GetContracts() *contracts.Registry {
	return gs.registry
}

// Shutdown stops the reaper and flushes the store. The dispatch loop stops
// when the config context is cancelled.
func (gs *GameServer) Shutdown() {
	gs.reaper.Stop()

	if err := gs.store.Close(); err != nil {
		logx.Logger.Error(err.Error())
	}
}
