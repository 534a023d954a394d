package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/nikhilpandasgit/Threadbrain/internal/metrics"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	idleTimeout       = 5 * time.Minute
	idleWarningTime   = 4 * time.Minute // Warn 1 minute before disconnect
	messageBufferSize = 16
)

// clientWriter owns all writes to one connection: queued messages, pings,
// idle warnings, close frames. It never calls conn.Close; the acceptor that
// registered the connection owns its lifecycle. Once the writer stops, pings
// stop too, so the acceptor's read deadline expires and it cleans up.
type clientWriter struct {
	clientID      string
	connection    *websocket.Conn
	clock         clockwork.Clock
	sendChannel   chan []byte
	doneChannel   chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
	lastActivity  time.Time
	activityMutex sync.Mutex
	warningSent   bool
}

func newClientWriter(connection *websocket.Conn, clientID string, clock clockwork.Clock) *clientWriter {
	cw := &clientWriter{
		clientID:     clientID,
		connection:   connection,
		clock:        clock,
		sendChannel:  make(chan []byte, messageBufferSize),
		doneChannel:  make(chan struct{}),
		lastActivity: clock.Now(),
	}
	cw.configurePongHandler()
	cw.wg.Add(1)
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	ticker := cw.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer cw.wg.Done()

	for {
		select {
		case msg, ok := <-cw.sendChannel:
			if !ok {
				return
			}
			start := cw.clock.Now()
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
			metrics.WebSocketMessageSendDuration.Observe(cw.clock.Since(start).Seconds())
		case <-ticker.Chan():
			// Check for idle timeout before sending ping
			if cw.checkIdleTimeout() {
				return
			}

			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				// Ping failed - client likely disconnected
				metrics.WebSocketPingFailures.Inc()
				return
			}
		case <-cw.doneChannel:
			return
		}
	}
}

// stop terminates the writer goroutine and waits for it to exit. The
// connection itself is left untouched for its owner to close.
func (cw *clientWriter) stop() {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)
	})
	cw.wg.Wait()
}

// stopWithClose terminates the writer goroutine, then sends a close frame so
// well-behaved peers disconnect promptly. Waiting for the goroutine first
// prevents concurrent writes to the connection. The connection is still not
// closed here; the close frame nudges the peer and the acceptor's read loop
// does the rest.
func (cw *clientWriter) stopWithClose(code int, reason string) {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)
		cw.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(code, reason)
		cw.updateWriteDeadline()
		_ = cw.connection.WriteMessage(websocket.CloseMessage, closeMsg)
	})
	cw.wg.Wait()
}

func (cw *clientWriter) configurePongHandler() {
	cw.updateReadDeadline()
	cw.connection.SetPongHandler(func(string) error {
		cw.updateReadDeadline()
		cw.recordActivity()
		return nil
	})
}

func (cw *clientWriter) updateWriteDeadline() {
	deadline := cw.clock.Now().Add(writeDeadline)
	_ = cw.connection.SetWriteDeadline(deadline)
}

func (cw *clientWriter) updateReadDeadline() {
	deadline := cw.clock.Now().Add(pongDeadline)
	_ = cw.connection.SetReadDeadline(deadline)
}

// recordActivity updates the last activity timestamp.
func (cw *clientWriter) recordActivity() {
	cw.activityMutex.Lock()
	defer cw.activityMutex.Unlock()
	cw.lastActivity = cw.clock.Now()
	cw.warningSent = false
}

// checkIdleTimeout checks if the connection is idle and sends a warning or
// signals disconnect. Returns true if the writer should terminate.
func (cw *clientWriter) checkIdleTimeout() bool {
	cw.activityMutex.Lock()
	idleDuration := cw.clock.Since(cw.lastActivity)
	warningSent := cw.warningSent
	cw.activityMutex.Unlock()

	// Idle beyond timeout - stop writing; the owner's read deadline takes it from here
	if idleDuration >= idleTimeout {
		metrics.WebSocketIdleDisconnects.Inc()
		return true
	}

	// Approaching idle timeout - send warning
	if !warningSent && idleDuration >= idleWarningTime {
		warning := []byte(`{"type":"idle.warning","message":"connection idle, disconnecting in 1 minute without activity"}`)
		cw.updateWriteDeadline()
		if err := cw.connection.WriteMessage(websocket.TextMessage, warning); err == nil {
			cw.activityMutex.Lock()
			cw.warningSent = true
			cw.activityMutex.Unlock()
		}
	}

	return false
}
