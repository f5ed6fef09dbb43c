package collector

import (
	"context"

	"github.com/grovetools/launcher/internal/daemon/store"
	"github.com/grovetools/launcher/internal/inventory"
	"github.com/grovetools/launcher/pkg/models"
)

// InventoryCollector turns manifest directory changes into package events.
type InventoryCollector struct {
	dir        *inventory.Dir
	debounceMs int
}

// NewInventoryCollector creates a collector for the manifests under dir.
func NewInventoryCollector(dir *inventory.Dir, debounceMs int) *InventoryCollector {
	return &InventoryCollector{dir: dir, debounceMs: debounceMs}
}

// Name returns the collector's name.
func (c *InventoryCollector) Name() string { return "inventory" }

// Run watches the directory until ctx is cancelled.
func (c *InventoryCollector) Run(ctx context.Context, st *store.Store, events chan<- models.Event) error {
	w, err := inventory.NewWatcher(c.dir, c.debounceMs, func(ev models.Event) {
		if send(ctx, events, ev) {
			st.Broadcast(store.Update{Type: store.UpdateEvent, Source: c.Name(), Payload: ev})
		}
	})
	if err != nil {
		return err
	}
	defer w.Close()

	w.Start(ctx)
	return nil
}
