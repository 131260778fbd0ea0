package services

import (
	"sync"
	"time"

	"github.com/partydeck/partydeck/entities"
	"github.com/partydeck/partydeck/pkg/logx"
	"github.com/partydeck/partydeck/schemas"
	"go.uber.org/zap"
)

// ReaperService periodically retires rooms that have no connected clients
// and have been idle past the two-stage threshold: the base idle timeout
// plus one buffer window to tolerate transient reconnects.
type ReaperService struct {
	rooms     *RoomService
	timeouts  *TimeoutService
	publisher MessagePublisher
	// cleanup is an optional cross-cutting teardown hook keyed by room code
	// (agent/session teardown lives outside this core).
	cleanup func(roomCode string)
	// runOnLoop hands each periodic sweep to the router's dispatch
	// goroutine. Room fields are unsynchronized and only safe to touch
	// there; the ticker goroutine never reads them itself.
	runOnLoop func(fn func())

	sweepInterval time.Duration
	idleTimeout   time.Duration
	cleanupBuffer time.Duration

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewReaperService(
	rooms *RoomService,
	timeouts *TimeoutService,
	publisher MessagePublisher,
	cleanup func(roomCode string),
	runOnLoop func(fn func()),
	sweepInterval, idleTimeout, cleanupBuffer time.Duration,
) *ReaperService {
	return &ReaperService{
		rooms:         rooms,
		timeouts:      timeouts,
		publisher:     publisher,
		cleanup:       cleanup,
		runOnLoop:     runOnLoop,
		sweepInterval: sweepInterval,
		idleTimeout:   idleTimeout,
		cleanupBuffer: cleanupBuffer,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

func (reaper *ReaperService) Start() {
	go func() {
		ticker := time.NewTicker(reaper.sweepInterval)

		defer ticker.Stop()
		defer close(reaper.done)

		for {
			select {
			case <-reaper.stop:
				return
			case <-ticker.C:
				reaper.runOnLoop(func() {
					reaper.Sweep(time.Now())
				})
			}
		}
	}()
}

// Stop halts the sweep ticker and waits for it to exit. A sweep already
// handed to the dispatch loop still runs there.
func (reaper *ReaperService) Stop() {
	reaper.stopOnce.Do(func() {
		close(reaper.stop)
	})

	<-reaper.done
}

// Sweep removes every reap-eligible room and returns the removed codes.
// It must run on the dispatch goroutine so its reads of LastActivity and
// the player roster are ordered against the router's writes.
// Removal cancels the room's pending timeouts and detached side effects,
// runs the cleanup hook, then deletes the room from the registry.
func (reaper *ReaperService) Sweep(now time.Time) []string {
	var reaped []string

	reaper.rooms.Range(func(code string, room *entities.Room) bool {
		if room.HasConnectedClients() {
			return true
		}

		if now.Sub(room.LastActivity) <= reaper.idleTimeout+reaper.cleanupBuffer {
			return true
		}

		reaper.timeouts.Clear(code)
		room.CancelDetached()

		if reaper.cleanup != nil {
			reaper.cleanup(code)
		}

		reaper.rooms.Delete(code)
		reaped = append(reaped, code)

		logx.Logger.Info(
			"reaped idle room",
			zap.String("roomCode", code),
			zap.Time("lastActivity", room.LastActivity),
		)

		if reaper.publisher != nil {
			if message, err := schemas.RoomReapedEvent(code); err == nil {
				// Publish failures are logged inside the publisher.
				_ = reaper.publisher.Publish(message)
			}
		}

		return true
	})

	return reaped
}
