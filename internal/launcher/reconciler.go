package launcher

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/launcher/internal/dispatcher"
	"github.com/grovetools/launcher/internal/itemstore"
	"github.com/grovetools/launcher/internal/model"
	"github.com/grovetools/launcher/internal/sink"
	"github.com/grovetools/launcher/pkg/models"
)

// Op is a package change operation.
type Op int

const (
	OpAdd Op = iota + 1
	OpUpdate
	OpRemove
	OpUnavailable
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpUpdate:
		return "update"
	case OpRemove:
		return "remove"
	case OpUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// PackageUpdate is one queued reconciliation.
type PackageUpdate struct {
	Op       Op
	Packages []string
}

// EnqueuePackageUpdated queues a reconciliation behind all earlier worker
// tasks, loader work included.
func (m *Model) EnqueuePackageUpdated(u PackageUpdate) error {
	u.Packages = append([]string(nil), u.Packages...)
	return m.worker.Post(func(ctx context.Context) { m.reconcile(ctx, u) })
}

// reconcile applies one package update to the app list, drains the deltas
// once, reconciles placed items with them and delivers the results to the
// consumer captured at the start.
func (m *Model) reconcile(ctx context.Context, u PackageUpdate) {
	start := time.Now()
	c := m.slot.Current()
	log := m.logger.WithFields(logrus.Fields{
		"op":       u.Op.String(),
		"packages": u.Packages,
	})

	for _, pkg := range u.Packages {
		switch u.Op {
		case OpAdd, OpUpdate:
			entries, err := m.inventory.QueryPackage(ctx, pkg)
			if err != nil {
				log.WithError(err).WithField("package", pkg).Warn("Inventory query failed, skipping package")
				continue
			}
			if u.Op == OpAdd {
				m.apps.AddPackage(entries)
			} else {
				m.apps.UpdatePackage(pkg, entries)
			}
		case OpRemove, OpUnavailable:
			m.apps.RemovePackage(pkg)
		default:
			log.Warn("Unknown package operation")
			return
		}
	}

	delta := m.apps.Drain()

	if len(delta.Added) > 0 {
		added := delta.Added
		m.deliver(ctx, c, dispatcher.CategoryNormal, "apps_added", func(cb sink.Callbacks) { cb.BindAppsAdded(added) })
	}

	if len(delta.Modified) > 0 {
		m.retitleItems(ctx, delta.Modified, log)
		modified := delta.Modified
		m.deliver(ctx, c, dispatcher.CategoryNormal, "apps_updated", func(cb sink.Callbacks) { cb.BindAppsUpdated(modified) })
	}

	if u.Op == OpRemove || len(delta.Removed) > 0 {
		permanent := u.Op == OpRemove
		var wholePackages []string
		if permanent {
			wholePackages = u.Packages
		}
		m.deleteItemsOf(ctx, wholePackages, delta.Removed, log)
		packages := append([]string(nil), u.Packages...)
		removed := delta.Removed
		m.deliver(ctx, c, dispatcher.CategoryNormal, "components_removed", func(cb sink.Callbacks) {
			cb.BindComponentsRemoved(packages, removed, permanent)
		})
	}

	log.WithFields(logrus.Fields{
		"added":    len(delta.Added),
		"modified": len(delta.Modified),
		"removed":  len(delta.Removed),
		"duration": time.Since(start).String(),
	}).Info("Reconciled package change")
}

// retitleItems rewrites the title of every update-eligible item launching a
// modified component and persists it.
func (m *Model) retitleItems(ctx context.Context, modified []*models.AppEntry, log *logrus.Entry) {
	titles := make(map[models.ComponentKey]string, len(modified))
	for _, app := range modified {
		titles[app.Component] = app.Title
	}

	var changed []*models.Item
	m.state.Locked(func(tx *model.Tx) {
		items := tx.Items(func(item *models.Item) bool {
			if !item.IsUpdateable() {
				return false
			}
			component, _ := item.Component()
			title, ok := titles[component]
			return ok && title != item.Title
		})
		for _, item := range items {
			component, _ := item.Component()
			item.Title = titles[component]
			item.Icon = nil
			changed = append(changed, item.Clone())
		}
	})

	for _, item := range changed {
		if err := m.store.Update(ctx, item.ID, itemstore.Values{itemstore.ColTitle: item.Title}); err != nil {
			log.WithError(err).WithField("item_id", item.ID).Warn("Failed to persist retitled item")
		}
	}
}

// deleteItemsOf deletes every item of the packages and of the removed components.
func (m *Model) deleteItemsOf(ctx context.Context, packages []string, removed []*models.AppEntry, log *logrus.Entry) {
	pkgs := make(map[string]bool, len(packages))
	for _, p := range packages {
		pkgs[p] = true
	}
	components := make(map[models.ComponentKey]bool, len(removed))
	for _, app := range removed {
		components[app.Component] = true
	}

	var doomed []int64
	m.state.Locked(func(tx *model.Tx) {
		items := tx.Items(func(item *models.Item) bool {
			component, ok := item.Component()
			return ok && (pkgs[component.Package] || components[component])
		})
		for _, item := range items {
			tx.Remove(item.ID)
			doomed = append(doomed, item.ID)
		}
	})

	for _, id := range doomed {
		if err := m.store.Delete(ctx, id); err != nil {
			log.WithError(err).WithField("item_id", id).Warn("Failed to delete item of removed app")
		}
	}
}
