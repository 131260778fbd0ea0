package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/partydeck/partydeck/gameserver"
)

type Environment struct {
	Host               string        `envconfig:"HOST" default:"0.0.0.0"`
	Port               int           `envconfig:"PORT" default:"8080" validate:"gt=0"`
	AllowedOrigins     []string      `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
	JoinBaseURL        string        `envconfig:"JOIN_BASE_URL" default:"http://localhost:3000" validate:"url"`
	RedisHost          string        `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort          string        `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword      string        `envconfig:"REDIS_PASSWORD"`
	StoragePath        string        `envconfig:"STORAGE_PATH" default:"data/partydeck"`
	DispatchBufferSize int           `envconfig:"DISPATCH_BUFFER_SIZE" default:"500"`
	SweepInterval      time.Duration `envconfig:"SWEEP_INTERVAL" default:"5m" validate:"gt=0"`
	IdleTimeout        time.Duration `envconfig:"IDLE_TIMEOUT" default:"30m" validate:"gt=0"`
	CleanupBuffer      time.Duration `envconfig:"CLEANUP_BUFFER" default:"5m" validate:"gt=0"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Missing .env is fine; the environment may be set by the runtime.
	_ = godotenv.Load()

	var environment Environment

	if err := envconfig.Process("partydeck", &environment); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if err := validator.New().Struct(environment); err != nil {
		return fmt.Errorf("config validation error: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := gameserver.NewGameServer(gameserver.Config{
		Context:            ctx,
		DispatchBufferSize: environment.DispatchBufferSize,
		Publisher: gameserver.PublisherConfig{
			Redis: gameserver.RedisConfig{
				Host:     environment.RedisHost,
				Port:     environment.RedisPort,
				Password: environment.RedisPassword,
			},
		},
		Router: gameserver.RouterConfig{
			AllowedOrigins: environment.AllowedOrigins,
		},
		Reaper: gameserver.ReaperConfig{
			SweepInterval: environment.SweepInterval,
			IdleTimeout:   environment.IdleTimeout,
			CleanupBuffer: environment.CleanupBuffer,
		},
		Storage: gameserver.StorageConfig{
			Path: environment.StoragePath,
		},
		JoinBaseURL: environment.JoinBaseURL,
	})

	if err != nil {
		return fmt.Errorf("could not build game server: %w", err)
	}

	defer server.Shutdown()

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", environment.Host, environment.Port),
		Handler: server.GetRouter(),
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_ = httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}

	return nil
}
