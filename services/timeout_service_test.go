package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeoutService_ScheduleFires(t *testing.T) {
	timeoutService := NewTimeoutService()
	fired := make(chan struct{})

	timeoutService.Schedule("ABCD", func() { close(fired) }, 5*time.Millisecond)

	select {
	case <-fired:
	case <-time.After(time.Second):
		require.Fail(t, "scheduled callback never fired")
	}

	// The fired handle must release its slot.
	require.Eventually(t, func() bool {
		return timeoutService.Count("ABCD") == 0
	}, time.Second, 5*time.Millisecond)
}

func TestTimeoutService_ClearPreventsFiring(t *testing.T) {
	timeoutService := NewTimeoutService()
	fired := make(chan struct{}, 2)

	timeoutService.Schedule("ABCD", func() { fired <- struct{}{} }, 20*time.Millisecond)
	timeoutService.Schedule("ABCD", func() { fired <- struct{}{} }, 20*time.Millisecond)
	timeoutService.Clear("ABCD")

	time.Sleep(80 * time.Millisecond)

	select {
	case <-fired:
		require.Fail(t, "callback fired after clear")
	default:
	}

	assert.Equal(t, 0, timeoutService.Count("ABCD"))
}

func TestTimeoutService_ClearOnlyTargetsOneRoom(t *testing.T) {
	timeoutService := NewTimeoutService()
	fired := make(chan string, 2)

	timeoutService.Schedule("ABCD", func() { fired <- "ABCD" }, 10*time.Millisecond)
	timeoutService.Schedule("WXYZ", func() { fired <- "WXYZ" }, 10*time.Millisecond)
	timeoutService.Clear("ABCD")

	select {
	case code := <-fired:
		assert.Equal(t, "WXYZ", code)
	case <-time.After(time.Second):
		require.Fail(t, "surviving room's callback never fired")
	}
}

func TestTimeoutService_CountTracksPendingPerRoom(t *testing.T) {
	timeoutService := NewTimeoutService()

	timeoutService.Schedule("ABCD", func() {}, time.Hour)
	timeoutService.Schedule("ABCD", func() {}, time.Hour)
	timeoutService.Schedule("WXYZ", func() {}, time.Hour)

	assert.Equal(t, 2, timeoutService.Count("ABCD"))
	assert.Equal(t, 1, timeoutService.Count("WXYZ"))
	assert.Equal(t, 0, timeoutService.Count("NONE"))

	timeoutService.Clear("ABCD")
	timeoutService.Clear("WXYZ")
}
