// Package daemon provides a client for the launcher daemon (launcherd).
// It implements a transparent fallback pattern: if the daemon is running, use
// its HTTP API; if not, read and edit the item store directly.
package daemon

import (
	"context"
	"encoding/json"
	"time"

	"github.com/grovetools/launcher/pkg/models"
)

// Client defines the interface for interacting with the launcher daemon.
// Both RemoteClient (HTTP) and LocalClient (direct store access) implement it.
type Client interface {
	// State returns the loader and bound-view summary.
	State(ctx context.Context) (*models.StateResponse, error)

	// Workspace returns the placed items in position order.
	Workspace(ctx context.Context) ([]*models.Item, error)

	// Apps returns the all-apps list.
	Apps(ctx context.Context) ([]*models.AppEntry, error)

	// AddItem places a new item.
	AddItem(ctx context.Context, req models.AddItemRequest) (*models.Item, error)

	// MoveItem changes an item's position.
	MoveItem(ctx context.Context, id int64, position int) (*models.Item, error)

	// DeleteItem removes an item.
	DeleteItem(ctx context.Context, id int64) error

	// SendEvent delivers an inbound notification to the model.
	SendEvent(ctx context.Context, ev models.Event) error

	// Reload drops the model's caches and reloads from the stores.
	Reload(ctx context.Context) error

	// StreamState subscribes to bound-view updates.
	// The channel is closed when ctx is cancelled or the connection drops.
	StreamState(ctx context.Context) (<-chan StateUpdate, error)

	// IsRunning returns true if the daemon is available and responding.
	IsRunning() bool

	// Close cleans up any resources used by the client.
	Close() error
}

// StateUpdate is one update pushed from the daemon to subscribers.
type StateUpdate struct {
	UpdateType string          `json:"update_type"`
	Source     string          `json:"source,omitempty"`
	Count      int             `json:"count,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	At         time.Time       `json:"at"`
}
