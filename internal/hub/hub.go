package hub

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/nikhilpandasgit/Threadbrain/internal/domain"
	"github.com/nikhilpandasgit/Threadbrain/internal/metrics"
	"github.com/rs/xid"
)

const (
	commandTimeout    = 5 * time.Second // Actor command timeout
	stopTimeout       = 10 * time.Second
	commandBufferSize = 256
)

// hubCmd is the command interface for the Hub actor.
type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	connection   *websocket.Conn
	replyChannel chan string
}

type unregisterCmd struct {
	baseHubCmd
	connection *websocket.Conn
}

type broadcastCmd struct {
	baseHubCmd
	data []byte
}

type sendToCmd struct {
	baseHubCmd
	connection   *websocket.Conn
	data         []byte
	errorChannel chan error
}

type clientCountCmd struct {
	baseHubCmd
	replyChannel chan int
}

type statsCmd struct {
	baseHubCmd
	replyChannel chan domain.HubStats
}

type stopCmd struct {
	baseHubCmd
}

// Hub is the connection registry: it tracks every open WebSocket connection
// and fans broadcast messages out to all of them. A single actor goroutine
// owns the membership maps; public methods submit commands over a buffered
// channel and never touch shared state directly.
type Hub struct {
	cmdCh       chan hubCmd
	clock       clockwork.Clock
	clients     map[*websocket.Conn]*clientWriter
	order       []*websocket.Conn
	done        chan struct{}
	stopTimeout time.Duration
	startedAt   time.Time

	// counters owned by the run goroutine
	broadcasts         uint64
	delivered          uint64
	deliveryFailures   uint64
	slowClientsEvicted uint64
}

// New creates a hub and starts its actor goroutine.
func New(clock clockwork.Clock) *Hub {
	h := &Hub{
		cmdCh:       make(chan hubCmd, commandBufferSize),
		clock:       clock,
		clients:     make(map[*websocket.Conn]*clientWriter),
		done:        make(chan struct{}),
		stopTimeout: stopTimeout,
		startedAt:   clock.Now(),
	}
	go h.run()
	return h
}

// Register adds a connection to the registry, starts its writer goroutine,
// and returns the assigned client ID. Registering a connection that is
// already a member is a no-op returning the existing ID.
func (h *Hub) Register(conn *websocket.Conn) (string, error) {
	replyCh := make(chan string, 1)

	select {
	case h.cmdCh <- registerCmd{connection: conn, replyChannel: replyCh}:
	case <-h.done:
		return "", ErrHubStopped
	}

	// Use timeout to prevent blocking forever if the hub is stuck
	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case clientID := <-replyCh:
		return clientID, nil
	case <-h.done:
		return "", ErrHubStopped
	case <-timer.Chan():
		return "", fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister removes a connection from the registry and stops its writer.
// Unregistering a connection that is not a member is a no-op, so handler
// cleanup and broadcast eviction can race harmlessly.
func (h *Hub) Unregister(conn *websocket.Conn) {
	select {
	case h.cmdCh <- unregisterCmd{connection: conn}:
	case <-h.done:
	}
}

// Broadcast queues a message for delivery to every registered connection.
// Failed deliveries are handled inside the actor: the affected clients are
// unregistered once the fan-out completes.
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.cmdCh <- broadcastCmd{data: data}:
	case <-h.done:
	}
}

// SendTo queues a message for one specific connection. Returns a
// *DeliveryError if the connection is not registered or its send buffer
// rejected the message; the connection stays registered either way.
func (h *Hub) SendTo(conn *websocket.Conn, data []byte) error {
	errCh := make(chan error, 1)

	select {
	case h.cmdCh <- sendToCmd{connection: conn, data: data, errorChannel: errCh}:
	case <-h.done:
		return ErrHubStopped
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-h.done:
		return ErrHubStopped
	case <-timer.Chan():
		return fmt.Errorf("send command timed out after %v", commandTimeout)
	}
}

// ClientCount returns the number of registered connections.
// Returns -1 if the command times out.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)

	select {
	case h.cmdCh <- clientCountCmd{replyChannel: replyCh}:
	case <-h.done:
		return 0
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-h.done:
		return 0
	case <-timer.Chan():
		slog.Warn("ClientCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stats returns a snapshot of the hub's counters.
func (h *Hub) Stats() domain.HubStats {
	replyCh := make(chan domain.HubStats, 1)

	select {
	case h.cmdCh <- statsCmd{replyChannel: replyCh}:
	case <-h.done:
		return domain.HubStats{}
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case stats := <-replyCh:
		return stats
	case <-h.done:
		return domain.HubStats{}
	case <-timer.Chan():
		slog.Warn("Stats timed out", "timeout", commandTimeout)
		return domain.HubStats{}
	}
}

// Stop shuts down the hub. Every writer gets a close frame; the connections
// themselves are left for their owners to close. Blocks until the actor
// goroutine has exited or the stop timeout is reached.
func (h *Hub) Stop() {
	select {
	case h.cmdCh <- stopCmd{}:
	case <-h.done:
		return
	}

	timeout := h.clock.NewTimer(h.stopTimeout)
	defer timeout.Stop()

	select {
	case <-h.done:
		slog.Info("Hub stopped gracefully")
	case <-timeout.Chan():
		slog.Warn("Hub stop timeout exceeded, forcing exit",
			"timeout", h.stopTimeout,
		)
		metrics.HubStopTimeoutsTotal.Inc()

		// Force goroutine exit
		close(h.done)

		// Log goroutine leak for debugging
		slog.Error("Hub goroutine may have leaked",
			"connected_clients", len(h.clients),
		)
	}
}

func (h *Hub) run() {
	// Panic recovery wrapper
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Hub panic recovered", "panic", r)
			metrics.HubPanicsTotal.Inc()

			// Attempt graceful cleanup
			h.disconnectAll("hub panic")
		}
	}()

	// Track command channel depth every second
	depthTicker := h.clock.NewTicker(1 * time.Second)
	defer depthTicker.Stop()
	defer close(h.done)

	for {
		select {
		case <-depthTicker.Chan():
			depth := len(h.cmdCh)
			metrics.HubCommandChannelDepth.Set(float64(depth))

			if depth > commandBufferSize*8/10 {
				slog.Warn("Command channel near capacity",
					"depth", depth,
					"capacity", cap(h.cmdCh),
				)
			}

		case cmd := <-h.cmdCh:
			switch c := cmd.(type) {
			case registerCmd:
				h.handleRegister(c)
			case unregisterCmd:
				h.handleUnregister(c)
			case broadcastCmd:
				h.handleBroadcast(c)
			case sendToCmd:
				h.handleSendTo(c)
			case clientCountCmd:
				c.replyChannel <- len(h.clients)
			case statsCmd:
				c.replyChannel <- h.snapshotStats()
			case stopCmd:
				h.handleStop()
				return
			default:
				slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		}
	}
}

func (h *Hub) handleRegister(c registerCmd) {
	if existing, ok := h.clients[c.connection]; ok {
		metrics.HubDuplicateRegistrations.Inc()
		slog.Debug("Connection already registered", "client_id", existing.clientID)
		c.replyChannel <- existing.clientID
		return
	}

	cw := newClientWriter(c.connection, xid.New().String(), h.clock)
	h.clients[c.connection] = cw
	h.order = append(h.order, c.connection)

	metrics.HubConnectedClients.Set(float64(len(h.clients)))
	slog.Debug("Client registered", "client_id", cw.clientID, "total_clients", len(h.clients))
	c.replyChannel <- cw.clientID
}

func (h *Hub) handleUnregister(c unregisterCmd) {
	cw, ok := h.clients[c.connection]
	if !ok {
		return
	}

	cw.stop()
	h.removeFromOrder(c.connection)
	delete(h.clients, c.connection)

	metrics.HubConnectedClients.Set(float64(len(h.clients)))
	slog.Debug("Client unregistered", "client_id", cw.clientID, "remaining_clients", len(h.clients))
}

func (h *Hub) handleBroadcast(c broadcastCmd) {
	start := h.clock.Now()
	h.broadcasts++
	metrics.HubBroadcastsTotal.Inc()

	// Iterate members in registration order. Only this goroutine mutates
	// membership and evictions wait until after the loop, so every client
	// registered at this point gets exactly one delivery attempt.
	var failed []*websocket.Conn
	for _, conn := range h.order {
		writer := h.clients[conn]
		select {
		case writer.sendChannel <- c.data:
			h.delivered++
		default:
			failed = append(failed, conn)
		}
	}

	for _, conn := range failed {
		h.deliveryFailures++
		h.slowClientsEvicted++
		metrics.HubDeliveryFailures.WithLabelValues("broadcast").Inc()
		metrics.HubSlowClientsEvicted.Inc()
		slog.Warn("Evicting slow client", "client_id", h.clients[conn].clientID)
		h.evict(conn, ReasonBufferFull)
	}

	metrics.HubBroadcastDuration.Observe(h.clock.Since(start).Seconds())
}

func (h *Hub) handleSendTo(c sendToCmd) {
	cw, ok := h.clients[c.connection]
	if !ok {
		c.errorChannel <- &DeliveryError{Reason: ReasonNotRegistered}
		return
	}

	select {
	case cw.sendChannel <- c.data:
		h.delivered++
		c.errorChannel <- nil
	default:
		h.deliveryFailures++
		metrics.HubDeliveryFailures.WithLabelValues("send_to").Inc()
		c.errorChannel <- &DeliveryError{ClientID: cw.clientID, Reason: ReasonBufferFull}
	}
}

// evict removes a client whose delivery failed, telling it why with a close
// frame. The socket stays open: the acceptor's read loop observes the close
// frame (or the stopped pings) and performs the actual Close.
func (h *Hub) evict(conn *websocket.Conn, reason string) {
	cw, ok := h.clients[conn]
	if !ok {
		return
	}

	cw.stopWithClose(websocket.ClosePolicyViolation, reason)
	h.removeFromOrder(conn)
	delete(h.clients, conn)
	metrics.HubConnectedClients.Set(float64(len(h.clients)))
}

func (h *Hub) removeFromOrder(conn *websocket.Conn) {
	for i, c := range h.order {
		if c == conn {
			h.order = append(h.order[:i], h.order[i+1:]...)
			return
		}
	}
}

func (h *Hub) snapshotStats() domain.HubStats {
	return domain.HubStats{
		ConnectedClients:   len(h.clients),
		BroadcastsTotal:    h.broadcasts,
		MessagesDelivered:  h.delivered,
		DeliveryFailures:   h.deliveryFailures,
		SlowClientsEvicted: h.slowClientsEvicted,
		UptimeSeconds:      h.clock.Since(h.startedAt).Seconds(),
	}
}

func (h *Hub) handleStop() {
	slog.Info("Hub shutting down", "connected_clients", len(h.clients))
	h.disconnectAll("server shutting down")
	slog.Info("Hub shutdown complete")
}

// disconnectAll stops every writer with a close frame. Used during graceful
// shutdown and panic recovery.
func (h *Hub) disconnectAll(reason string) {
	for _, cw := range h.clients {
		cw.stopWithClose(websocket.CloseGoingAway, reason)
	}
	h.clients = make(map[*websocket.Conn]*clientWriter)
	h.order = nil
	metrics.HubConnectedClients.Set(0)
}
