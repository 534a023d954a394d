package domain

// HubStats is a point-in-time snapshot of the connection hub's counters.
type HubStats struct {
	ConnectedClients   int     `json:"connected_clients"`
	BroadcastsTotal    uint64  `json:"broadcasts_total"`
	MessagesDelivered  uint64  `json:"messages_delivered"`
	DeliveryFailures   uint64  `json:"delivery_failures"`
	SlowClientsEvicted uint64  `json:"slow_clients_evicted"`
	UptimeSeconds      float64 `json:"uptime_seconds"`
}

// StoreCounts summarizes the in-memory store.
type StoreCounts struct {
	Threads  int `json:"threads"`
	Messages int `json:"messages"`
	Users    int `json:"users"`
}

// Stats is the /api/stats response body.
type Stats struct {
	Hub   HubStats    `json:"hub"`
	Store StoreCounts `json:"store"`
}
