package launcher

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/launcher/errors"
	"github.com/grovetools/launcher/internal/dispatcher"
	"github.com/grovetools/launcher/internal/itemstore"
	"github.com/grovetools/launcher/internal/model"
	"github.com/grovetools/launcher/pkg/models"
)

// AddItem persists a new item at position and maps it. The id comes from
// the store's counter; the returned copy carries it.
func (m *Model) AddItem(ctx context.Context, item *models.Item, position int) (*models.Item, error) {
	var added *models.Item
	err := m.onWorker(ctx, func(ctx context.Context) error {
		id, err := m.store.GenerateNewID(ctx)
		if err != nil {
			return err
		}
		fresh := item.Clone()
		fresh.ID = id
		fresh.Position = position
		if _, err := m.store.Insert(ctx, fresh.ToRecord()); err != nil {
			return err
		}
		stack := debug.Stack()
		m.state.Locked(func(tx *model.Tx) {
			_ = tx.CheckConsistency(id, fresh, stack)
			tx.Put(fresh)
		})
		added = fresh.Clone()
		return nil
	})
	return added, err
}

// MoveItem moves an item to position. item is checked against the model
// copy before the move.
func (m *Model) MoveItem(ctx context.Context, item *models.Item, position int) error {
	return m.onWorker(ctx, func(ctx context.Context) error {
		stack := debug.Stack()
		if err := m.state.CheckConsistency(item.ID, item, stack); err != nil {
			return err
		}
		if err := m.store.Update(ctx, item.ID, itemstore.Values{itemstore.ColPosition: position}); err != nil {
			return err
		}
		var err error
		m.state.Locked(func(tx *model.Tx) {
			current, ok := tx.Get(item.ID)
			if !ok {
				current = item.Clone()
				tx.Put(current)
			}
			current.Position = position
			err = tx.UpdateItemArrays(current, stack)
		})
		return err
	})
}

// UpdateItem persists every column of item and replaces the model copy.
// Title and position may change; id, type and target are checked against
// the model copy before anything is written.
func (m *Model) UpdateItem(ctx context.Context, item *models.Item) error {
	return m.onWorker(ctx, func(ctx context.Context) error {
		stack := debug.Stack()
		if err := m.state.CheckIdentity(item.ID, item, stack); err != nil {
			return err
		}
		if err := m.store.Update(ctx, item.ID, itemstore.ItemValues(item)); err != nil {
			return err
		}
		m.state.Locked(func(tx *model.Tx) {
			tx.Put(item.Clone())
		})
		return nil
	})
}

// UpdateItems applies several item updates in one store batch. Every item
// is checked first and nothing changes when a check fails. The model is
// updated before the store; a failed batch is logged and returned but the
// model is not rolled back.
func (m *Model) UpdateItems(ctx context.Context, items []*models.Item) error {
	return m.onWorker(ctx, func(ctx context.Context) error {
		changes := make([]itemstore.Change, 0, len(items))
		stack := debug.Stack()
		var err error
		m.state.Locked(func(tx *model.Tx) {
			for _, item := range items {
				if err = tx.CheckIdentity(item.ID, item, stack); err != nil {
					return
				}
			}
			for _, item := range items {
				tx.Put(item.Clone())
				changes = append(changes, itemstore.Change{ID: item.ID, Values: itemstore.ItemValues(item)})
			}
		})
		if err != nil {
			return err
		}
		if err := m.store.BatchUpdate(ctx, changes); err != nil {
			m.logger.WithError(err).WithField("items", len(changes)).Error("Batch update failed, model keeps the new values")
			return err
		}
		return nil
	})
}

// DeleteItem removes an item from the store and the model. item is checked
// against the model copy first.
func (m *Model) DeleteItem(ctx context.Context, item *models.Item) error {
	return m.onWorker(ctx, func(ctx context.Context) error {
		if err := m.state.CheckConsistency(item.ID, item, debug.Stack()); err != nil {
			return err
		}
		if err := m.store.Delete(ctx, item.ID); err != nil {
			return err
		}
		m.state.Remove(item.ID)
		return nil
	})
}

// ItemExists reports whether an item with this title and target is stored.
// A nil target means the browser shortcut.
func (m *Model) ItemExists(ctx context.Context, title string, target *models.LaunchTarget) (bool, error) {
	intent := models.BrowserDescriptor
	if target != nil {
		intent = target.String()
	}
	var exists bool
	err := m.onWorker(ctx, func(ctx context.Context) error {
		var err error
		exists, err = m.store.Exists(ctx, title, intent)
		return err
	})
	return exists, err
}

// CheckItem compares item with the model copy of the same id. A mismatch
// is recorded; it is returned only in strict mode.
func (m *Model) CheckItem(item *models.Item) error {
	return m.state.CheckConsistency(item.ID, item, debug.Stack())
}

// UnbindItemsAndClearQueuedBinds drops every queued binding delivery. It
// must be called from the UI context and returns how many were dropped.
func (m *Model) UnbindItemsAndClearQueuedBinds(ctx context.Context) (int, error) {
	if m.worker.IsCurrent(ctx) {
		return 0, errors.New(errors.ErrCodeWrongContext, "queued binds must be cleared from the UI context, not the worker")
	}
	return m.ui.CancelAll(dispatcher.CategoryBinding), nil
}

// WorkspaceItems returns copies of the workspace items sorted by position.
func (m *Model) WorkspaceItems() []*models.Item {
	items, _ := m.state.Snapshot()
	return items
}

// Item returns a copy of the mapped item with id.
func (m *Model) Item(id int64) (*models.Item, bool) {
	return m.state.Get(id)
}

// AllApps returns a copy of the all-apps list.
func (m *Model) AllApps() []*models.AppEntry {
	return m.apps.Data()
}

// Mismatches returns every recorded consistency failure.
func (m *Model) Mismatches() []model.Mismatch {
	return m.state.Mismatches()
}

// Dump is a point-in-time view of the model for diagnostics.
type Dump struct {
	Phase            string             `json:"phase"`
	WorkspaceLoaded  bool               `json:"workspace_loaded"`
	AllAppsLoaded    bool               `json:"all_apps_loaded"`
	LoadingWorkspace bool               `json:"loading_workspace"`
	LastLoad         time.Time          `json:"last_load,omitempty"`
	Locale           string             `json:"locale"`
	Region           string             `json:"region,omitempty"`
	ItemCount        int                `json:"item_count"`
	Workspace        []*models.Item     `json:"workspace"`
	AllApps          []*models.AppEntry `json:"all_apps"`
	Mismatches       []model.Mismatch   `json:"mismatches,omitempty"`
	PendingWorker    int                `json:"pending_worker"`
	PendingUI        int                `json:"pending_ui"`
	StaleDeliveries  uint64             `json:"stale_deliveries"`
}

// DumpState collects a Dump and logs a summary.
func (m *Model) DumpState() Dump {
	workspace, byID := m.state.Snapshot()

	m.mu.Lock()
	d := Dump{
		WorkspaceLoaded:  m.workspaceLoaded,
		AllAppsLoaded:    m.allAppsLoaded,
		LoadingWorkspace: m.loadingWorkspace,
		LastLoad:         m.lastLoad,
		Region:           m.region,
		Phase:            PhaseIdle.String(),
	}
	if m.loader != nil {
		d.Phase = m.loader.Phase().String()
	}
	m.mu.Unlock()

	d.Locale = m.Locale()
	d.ItemCount = len(byID)
	d.Workspace = workspace
	d.AllApps = m.apps.Data()
	d.Mismatches = m.state.Mismatches()
	d.PendingWorker = m.worker.Pending()
	d.PendingUI = m.ui.Pending()
	d.StaleDeliveries = m.staleDrops.Load()

	m.logger.WithFields(logrus.Fields{
		"phase":      d.Phase,
		"items":      d.ItemCount,
		"workspace":  len(d.Workspace),
		"apps":       len(d.AllApps),
		"mismatches": len(d.Mismatches),
	}).Debug("Model state")
	return d
}
