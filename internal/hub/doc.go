// Package hub implements the central WebSocket connection registry using the actor pattern.
//
// A single goroutine owns all membership state and consumes a command channel (no mutexes).
// Broadcasts make one non-blocking delivery attempt per client and unregister the clients
// whose buffers rejected the message once the fan-out completes. Per-connection write
// goroutines keep slow clients from blocking anyone else. The hub never closes a
// connection; the acceptor that registered it owns the socket.
package hub
