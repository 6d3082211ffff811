// Package broker publishes chat lifecycle events (matches made, sessions
// ended, connects and disconnects) for out-of-band consumers such as the
// moderation dashboard. Nothing on the realtime path waits on it.
package broker

import (
	"context"
	"encoding/json"
	"time"
)

// Event is one lifecycle record.
type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	UserIDs   []string  `json:"user_ids,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	ServerID  string    `json:"server_id"`
	At        time.Time `json:"at"`
}

// MarshalBinary lets redis clients encode the event directly.
func (e Event) MarshalBinary() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalBinary is the inverse of MarshalBinary.
func (e *Event) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, e)
}

// MessageBroker abstracts the transport carrying lifecycle events.
type MessageBroker interface {
	// Publish sends an event to the named channel.
	Publish(ctx context.Context, channel string, event Event) error
	// Subscribe delivers events from the named channel until ctx ends.
	Subscribe(ctx context.Context, channel string) (<-chan Event, error)
	// Type identifies the backend ("redis" or "kafka") for metrics labels.
	Type() string
	// Close releases broker resources.
	Close() error
}

// Additional event types published outside the hub.
const (
	EventUserConnected    = "user_connected"
	EventUserDisconnected = "user_disconnected"
)
