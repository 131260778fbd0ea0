package gameserver

import (
	"context"
	"time"

	"github.com/partydeck/partydeck/contracts"
	"github.com/partydeck/partydeck/services"
)

// Config contains all configuration options for the party-game host.
type Config struct {
	// Context controls graceful shutdown: cancelling it stops the dispatch
	// loop and aborts every room's detached side effects.
	Context context.Context

	// DispatchBufferSize controls how many events can be queued for the
	// router before enqueuing blocks. Zero means the default.
	DispatchBufferSize int

	// Contracts is the game registry; games register their contracts and
	// custom events before the server starts. Nil gets an empty registry.
	Contracts *contracts.Registry

	Publisher PublisherConfig
	Router    RouterConfig
	Reaper    ReaperConfig
	Storage   StorageConfig

	// JoinBaseURL is the player-facing URL encoded into room QR codes.
	JoinBaseURL string

	// GenerateContent is the optional external content generator invoked by
	// generate_content side effects. Nil disables the effect.
	GenerateContent services.GenerateFunc

	// OnRoomCleanup is an optional teardown hook the reaper invokes with the
	// room code before deleting a room.
	OnRoomCleanup func(roomCode string)
}

// PublisherConfig contains configuration for the lifecycle event broker.
type PublisherConfig struct {
	Redis RedisConfig
}

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

// RouterConfig contains HTTP router configuration.
type RouterConfig struct {
	AllowedOrigins []string
}

// ReaperConfig controls idle-room reclamation. A room is removed when it has
// no connected clients and has been idle longer than IdleTimeout plus
// CleanupBuffer.
type ReaperConfig struct {
	SweepInterval time.Duration
	IdleTimeout   time.Duration
	CleanupBuffer time.Duration
}

// StorageConfig configures the embedded store behind persist_to_db effects.
type StorageConfig struct {
	Path     string
	InMemory bool
}

func (config ReaperConfig) withDefaults() ReaperConfig {
	if config.SweepInterval <= 0 {
		config.SweepInterval = 5 * time.Minute
	}

	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 30 * time.Minute
	}

	if config.CleanupBuffer <= 0 {
		config.CleanupBuffer = 5 * time.Minute
	}

	return config
}
