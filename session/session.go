package session

import (
	"context"
	"time"
)

// Record holds metadata about one live connection. Stored in Redis with
// a TTL so operators (and other instances) can see who is connected
// where even though the authoritative registry is in-memory.
type Record struct {
	ClientID    string    `json:"client_id"`
	Login       string    `json:"login"`
	ServerID    string    `json:"server_id"` // gateway instance handling the connection
	ConnectedAt time.Time `json:"connected_at"`
}

// Store defines the interface for connection-record management.
type Store interface {
	// Create stores a new record.
	Create(ctx context.Context, rec *Record) error
	// Get retrieves a record by client ID; nil when absent.
	Get(ctx context.Context, clientID string) (*Record, error)
	// Delete removes a record.
	Delete(ctx context.Context, clientID string) error
	// RefreshTTL extends the record's lifetime in the store.
	RefreshTTL(ctx context.Context, clientID string) error
}
