package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Hub Metrics
var (
	// HubConnectedClients tracks the current number of registered WebSocket clients
	HubConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_connected_clients",
			Help: "Current number of WebSocket clients registered with the hub",
		},
	)

	// HubBroadcastsTotal tracks total broadcast operations processed
	HubBroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_broadcasts_total",
			Help: "Total broadcast operations processed by the hub",
		},
	)

	// HubBroadcastDuration tracks time spent fanning one broadcast out to all clients
	HubBroadcastDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hub_broadcast_duration_seconds",
			Help:    "Duration of one broadcast fan-out in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
		},
	)

	// HubDeliveryFailures tracks deliveries rejected because a client buffer was full
	HubDeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_delivery_failures_total",
			Help: "Total message deliveries rejected by operation (broadcast/send_to)",
		},
		[]string{"operation"},
	)

	// HubSlowClientsEvicted tracks clients unregistered after a failed broadcast delivery
	HubSlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_slow_clients_evicted_total",
			Help: "Total slow WebSocket clients evicted due to full send buffer",
		},
	)

	// HubDuplicateRegistrations tracks register calls for already-registered connections
	HubDuplicateRegistrations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_duplicate_registrations_total",
			Help: "Total register calls that found the connection already registered",
		},
	)

	// HubPanicsTotal tracks hub actor panic recoveries
	HubPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_panics_total",
			Help: "Total hub actor panic recoveries",
		},
	)

	// HubCommandChannelDepth tracks current command channel depth
	HubCommandChannelDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_command_channel_depth",
			Help: "Current hub command channel depth",
		},
	)

	// HubStopTimeoutsTotal tracks hub stops that exceeded the shutdown timeout
	HubStopTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_stop_timeouts_total",
			Help: "Hub stops that exceeded the shutdown timeout",
		},
	)
)

// WebSocket Metrics
var (
	// WebSocketConnectionsCurrent tracks current active WebSocket connections
	WebSocketConnectionsCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_current",
			Help: "Current number of active WebSocket connections",
		},
	)

	// WebSocketConnectionsTotal tracks total WebSocket connection attempts by result
	WebSocketConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_total",
			Help: "Total WebSocket connection attempts by result (success/error/rejected)",
		},
		[]string{"result"},
	)

	// WebSocketConnectionsRejected tracks rejected connection attempts by reason
	WebSocketConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_rejected_total",
			Help: "Total WebSocket connections rejected by reason (rate_limit/per_ip_limit/global_limit/bad_origin)",
		},
		[]string{"reason"},
	)

	// WebSocketConnectionDuration tracks WebSocket connection duration
	WebSocketConnectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "websocket_connection_duration_seconds",
			Help:    "WebSocket connection duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 300, 600, 1800, 3600},
		},
	)

	// WebSocketMessageSendDuration tracks WebSocket message send duration
	WebSocketMessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "websocket_message_send_duration_seconds",
			Help:    "WebSocket message send duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
		},
	)

	// WebSocketMessagesReceived tracks inbound frames by type
	WebSocketMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total inbound WebSocket frames by type (chat/post_message/invalid)",
		},
		[]string{"type"},
	)

	// WebSocketMessagesRateLimited tracks inbound frames dropped by the per-connection rate limit
	WebSocketMessagesRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_rate_limited_total",
			Help: "Total inbound WebSocket frames dropped by the per-connection rate limit",
		},
	)

	// WebSocketPingFailures tracks WebSocket ping failures
	WebSocketPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_ping_failures_total",
			Help: "Total WebSocket ping failures (client not responding)",
		},
	)

	// WebSocketIdleDisconnects tracks disconnects due to idle timeout
	WebSocketIdleDisconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_idle_disconnects_total",
			Help: "Total WebSocket connections dropped due to idle timeout (no pong activity)",
		},
	)

	// WebSocketConnectionCapacity tracks current connection capacity utilization as percentage
	WebSocketConnectionCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connection_capacity_percent",
			Help: "Current WebSocket connection capacity utilization (0-100%)",
		},
	)

	// WebSocketUniqueIPs tracks number of unique IP addresses with active connections
	WebSocketUniqueIPs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_unique_ips",
			Help: "Number of unique IP addresses with active WebSocket connections",
		},
	)
)

// Thread Store Metrics
var (
	// StoreThreadsCurrent tracks current number of threads held in memory
	StoreThreadsCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_threads_current",
			Help: "Current number of threads in the in-memory store",
		},
	)

	// StoreMessagesCurrent tracks current number of messages across all threads
	StoreMessagesCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_messages_current",
			Help: "Current number of messages across all threads",
		},
	)

	// StoreOperationsTotal tracks store mutations by operation
	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operations_total",
			Help: "Total store mutations by operation (create_thread/update_thread/delete_thread/add_message)",
		},
		[]string{"operation"},
	)
)

// Build Information Metrics
var (
	// BuildInfo is a gauge that always returns 1, with build metadata as labels
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build information with version, commit, build_time, and go_version labels (value is always 1)",
		},
		[]string{"version", "commit", "build_time", "go_version"},
	)
)

// HTTP Request Metrics
// Note: These are automatically provided by echoprometheus middleware
// - http_requests_total{method, path, status}
// - http_request_duration_seconds{method, path}

// HTTP Error Metrics
// Note: http_errors_total{type} is provided by internal/platform/errors
