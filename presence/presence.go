package presence

import (
	"context"
	"time"
)

// Status holds the persisted online state of a user. The rest of the
// platform (profile pages, friend lists) reads this; the matchmaking core
// only writes it.
type Status struct {
	UserID     string    `json:"user_id"`
	ServerID   string    `json:"server_id"` // instance currently holding the connection
	OnlineAt   time.Time `json:"online_at"`
	LastOnline time.Time `json:"last_online"`
}

// Store persists online status. Writes are best-effort: matchmaking
// correctness never depends on this store.
type Store interface {
	// SetOnline records that the user is connected to serverID.
	SetOnline(ctx context.Context, userID, serverID string) error
	// SetOffline records the disconnect time and clears the online flag.
	SetOffline(ctx context.Context, userID string) error
	// Get retrieves the current status, or nil if none is recorded.
	Get(ctx context.Context, userID string) (*Status, error)
	// RefreshTTL extends the online record's lifetime.
	RefreshTTL(ctx context.Context, userID string) error
}
