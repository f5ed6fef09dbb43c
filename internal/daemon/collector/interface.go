// Package collector provides the background producers of inbound launcher events.
package collector

import (
	"context"

	"github.com/grovetools/launcher/internal/daemon/store"
	"github.com/grovetools/launcher/pkg/models"
)

// Collector is a background worker that watches some source and emits events.
type Collector interface {
	// Name returns the collector's name for logging.
	Name() string

	// Run starts the collector. It should block until context is canceled.
	// It emits events via the events channel and may broadcast to the store.
	Run(ctx context.Context, st *store.Store, events chan<- models.Event) error
}

// send delivers ev unless ctx is done first.
func send(ctx context.Context, events chan<- models.Event, ev models.Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
