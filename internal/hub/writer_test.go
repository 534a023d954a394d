package hub

import (
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientWriter_IdleTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping idle timeout test in short mode")
	}

	// Fake clock anchored at wall time: the warning write below runs
	// against a real socket whose deadline comes from this clock.
	fakeClock := clockwork.NewFakeClockAt(time.Now())
	server, client := newTestConnPair(t)
	t.Cleanup(func() { client.Close() })

	cw := newClientWriter(server, "idle-test", fakeClock)
	t.Cleanup(func() { cw.stop() })

	// Initially not idle
	shouldDisconnect := cw.checkIdleTimeout()
	assert.False(t, shouldDisconnect)

	// Advance clock to idle warning threshold (4 minutes)
	fakeClock.Advance(idleWarningTime)

	// Should send warning but not disconnect
	shouldDisconnect = cw.checkIdleTimeout()
	assert.False(t, shouldDisconnect, "should not disconnect at warning threshold")

	cw.activityMutex.Lock()
	warningSent := cw.warningSent
	cw.activityMutex.Unlock()
	assert.True(t, warningSent, "warning should be sent")

	// The warning arrives as a typed event
	client.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), "idle.warning")

	// Advance clock beyond idle timeout (5 minutes total)
	fakeClock.Advance(1*time.Minute + 10*time.Second)

	// Should signal disconnect
	shouldDisconnect = cw.checkIdleTimeout()
	assert.True(t, shouldDisconnect, "connection should be marked for disconnect due to idle timeout")
}

func TestClientWriter_ActivityResetsIdleTimer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping activity reset test in short mode")
	}

	fakeClock := clockwork.NewFakeClock()
	server, client := newTestConnPair(t)
	t.Cleanup(func() { client.Close() })

	cw := newClientWriter(server, "activity-test", fakeClock)
	t.Cleanup(func() { cw.stop() })

	// Advance clock partway (3 minutes)
	fakeClock.Advance(3 * time.Minute)

	// Simulate pong response (activity)
	cw.recordActivity()

	// Advance another 3 minutes (total 6 minutes from start, but only 3 from activity)
	fakeClock.Advance(3 * time.Minute)

	// Client should still not timeout (activity reset the timer)
	shouldDisconnect := cw.checkIdleTimeout()
	assert.False(t, shouldDisconnect, "client should not timeout after activity reset")

	// Advance past timeout from the activity reset point
	fakeClock.Advance(3 * time.Minute)

	// Now should timeout
	shouldDisconnect = cw.checkIdleTimeout()
	assert.True(t, shouldDisconnect, "client should timeout 5 minutes after last activity")
}

func TestClientWriter_StopLeavesConnectionOpen(t *testing.T) {
	server, client := newTestConnPair(t)

	cw := newClientWriter(server, "ownership-test", clockwork.NewRealClock())
	cw.stop()

	// The writer goroutine has exited, so the connection is safe to write
	// from here - and it must still be open, because stopping a writer
	// never closes the socket.
	server.SetWriteDeadline(time.Now().Add(time.Second))
	require.NoError(t, server.WriteMessage(websocket.TextMessage, []byte("still alive")))

	client.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "still alive", string(msg))
}

func TestClientWriter_StopWithCloseSendsCloseFrame(t *testing.T) {
	server, client := newTestConnPair(t)

	cw := newClientWriter(server, "close-frame-test", clockwork.NewRealClock())
	cw.stopWithClose(websocket.ClosePolicyViolation, ReasonBufferFull)

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := client.ReadMessage()

	if closeErr, ok := err.(*websocket.CloseError); ok {
		assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
		assert.Contains(t, closeErr.Text, "buffer full")
	} else {
		assert.Error(t, err, "connection should be closing")
	}
}

func TestClientWriter_StopIdempotent(t *testing.T) {
	server, client := newTestConnPair(t)
	t.Cleanup(func() { client.Close() })

	cw := newClientWriter(server, "stop-test", clockwork.NewRealClock())

	// Call stop multiple times - should not panic
	cw.stop()
	cw.stop()
	cw.stop()
}

func TestClientWriter_ConcurrentStop(t *testing.T) {
	server, client := newTestConnPair(t)
	t.Cleanup(func() { client.Close() })

	cw := newClientWriter(server, "concurrent-stop-test", clockwork.NewRealClock())

	// Call stop concurrently from multiple goroutines
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cw.stop()
		}()
	}

	// Should complete without panic or deadlock
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		// Success
	case <-time.After(2 * time.Second):
		t.Fatal("concurrent stop calls deadlocked")
	}
}

func TestClientWriter_DeliversQueuedMessages(t *testing.T) {
	server, client := newTestConnPair(t)

	cw := newClientWriter(server, "delivery-test", clockwork.NewRealClock())
	t.Cleanup(func() { cw.stop() })

	cw.sendChannel <- []byte("first")
	cw.sendChannel <- []byte("second")

	for _, want := range []string{"first", "second"} {
		client.SetReadDeadline(time.Now().Add(time.Second))
		_, msg, err := client.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, want, string(msg))
	}
}

func TestClientWriter_RecordActivity(t *testing.T) {
	fakeClock := clockwork.NewFakeClock()
	server, client := newTestConnPair(t)
	t.Cleanup(func() { client.Close() })

	cw := newClientWriter(server, "record-test", fakeClock)
	t.Cleanup(func() { cw.stop() })

	cw.activityMutex.Lock()
	initialActivity := cw.lastActivity
	cw.activityMutex.Unlock()

	fakeClock.Advance(1 * time.Minute)

	cw.recordActivity()

	cw.activityMutex.Lock()
	newActivity := cw.lastActivity
	cw.activityMutex.Unlock()

	assert.True(t, newActivity.After(initialActivity), "recordActivity should update lastActivity timestamp")
}
