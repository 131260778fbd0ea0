package services

import (
	"sync"
	"time"
)

// TimeoutService tracks delayed callbacks per room so teardown can cancel
// them in bulk. Once Clear returns for a room, none of its callbacks will
// fire, even ones already due.
type TimeoutService struct {
	mu      sync.Mutex
	pending map[string][]*TimeoutHandle
}

type TimeoutHandle struct {
	roomCode string
	timer    *time.Timer
}

func NewTimeoutService() *TimeoutService {
	return &TimeoutService{
		pending: make(map[string][]*TimeoutHandle),
	}
}

// Schedule arms fn to run after delay, tagged with roomCode. The handle
// removes itself from the pending list before fn runs, so fired timeouts
// release their memory promptly.
func (timeoutService *TimeoutService) Schedule(roomCode string, fn func(), delay time.Duration) *TimeoutHandle {
	handle := &TimeoutHandle{roomCode: roomCode}

	timeoutService.mu.Lock()
	defer timeoutService.mu.Unlock()

	timeoutService.pending[roomCode] = append(timeoutService.pending[roomCode], handle)

	// Armed inside the critical section: a zero delay must not fire before
	// the handle is registered.
	handle.timer = time.AfterFunc(delay, func() {
		if !timeoutService.take(handle) {
			// Cleared while the timer was in flight.
			return
		}

		fn()
	})

	return handle
}

// Clear cancels and forgets every outstanding timeout for the room.
func (timeoutService *TimeoutService) Clear(roomCode string) {
	timeoutService.mu.Lock()
	defer timeoutService.mu.Unlock()

	for _, handle := range timeoutService.pending[roomCode] {
		handle.timer.Stop()
	}

	delete(timeoutService.pending, roomCode)
}

// Count reports pending timeouts for a room; diagnostic only.
func (timeoutService *TimeoutService) Count(roomCode string) int {
	timeoutService.mu.Lock()
	defer timeoutService.mu.Unlock()

	return len(timeoutService.pending[roomCode])
}

// take removes the handle from its room's list, reporting whether it was
// still pending. The mutex makes firing and clearing mutually exclusive.
func (timeoutService *TimeoutService) take(handle *TimeoutHandle) bool {
	timeoutService.mu.Lock()
	defer timeoutService.mu.Unlock()

	handles := timeoutService.pending[handle.roomCode]

	for i, candidate := range handles {
		if candidate == handle {
			timeoutService.pending[handle.roomCode] = append(handles[:i], handles[i+1:]...)

			if len(timeoutService.pending[handle.roomCode]) == 0 {
				delete(timeoutService.pending, handle.roomCode)
			}

			return true
		}
	}

	return false
}
