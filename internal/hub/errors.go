package hub

import (
	"errors"
	"fmt"
)

// ErrHubStopped is returned by hub operations issued after Stop.
var ErrHubStopped = errors.New("hub stopped")

// Delivery failure reasons.
const (
	ReasonNotRegistered = "not registered"
	ReasonBufferFull    = "send buffer full"
)

// DeliveryError reports a failed directed delivery. The target connection
// stays registered; whether to unregister it is the caller's decision.
type DeliveryError struct {
	ClientID string
	Reason   string
}

func (e *DeliveryError) Error() string {
	if e.ClientID == "" {
		return fmt.Sprintf("delivery failed: %s", e.Reason)
	}
	return fmt.Sprintf("delivery to client %s failed: %s", e.ClientID, e.Reason)
}
