package daemon

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/launcher/config"
	"github.com/grovetools/launcher/errors"
	"github.com/grovetools/launcher/internal/inventory"
	"github.com/grovetools/launcher/internal/itemstore"
	"github.com/grovetools/launcher/pkg/collation"
	"github.com/grovetools/launcher/pkg/models"
	"github.com/grovetools/launcher/pkg/paths"
	"github.com/grovetools/launcher/util/pathutil"
)

// LocalClient implements Client against the item store and the manifest
// directory directly. It is used when the daemon is not running; operations
// that need the live model return ErrCodeDaemonNotRunning.
type LocalClient struct {
	cfg    *config.Config
	logger *logrus.Logger

	once  sync.Once
	store itemstore.Store
	err   error
}

// NewLocalClient creates a new LocalClient. A nil cfg uses the defaults.
func NewLocalClient(cfg *config.Config) *LocalClient {
	if cfg == nil {
		cfg = config.Default()
	}
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return &LocalClient{cfg: cfg, logger: logger}
}

func (c *LocalClient) openStore() (itemstore.Store, error) {
	c.once.Do(func() {
		c.store, c.err = itemstore.OpenSQLite(pathutil.ExpandOr(c.cfg.Store.Path, paths.StorePath()))
	})
	return c.store, c.err
}

func (c *LocalClient) notRunning(op string) error {
	return errors.DaemonNotRunning(SocketPath(c.cfg)).WithDetail("operation", op)
}

// State returns an error since loader state only exists inside the daemon.
func (c *LocalClient) State(ctx context.Context) (*models.StateResponse, error) {
	return nil, c.notRunning("state")
}

// Workspace reads the placed application items from the store. Records with
// a malformed launch target are skipped.
func (c *LocalClient) Workspace(ctx context.Context) ([]*models.Item, error) {
	st, err := c.openStore()
	if err != nil {
		return nil, err
	}
	records, err := st.Query(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]*models.Item, 0, len(records))
	for _, rec := range records {
		item, err := rec.ToItem()
		if err != nil {
			c.logger.WithError(err).WithField("item_id", rec.ID).Warn("Skipping item with malformed launch target")
			continue
		}
		if item.ItemType == models.ItemTypeApplication {
			items = append(items, item)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Position != items[j].Position {
			return items[i].Position < items[j].Position
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

// Apps lists the launchable components of the manifest directory.
func (c *LocalClient) Apps(ctx context.Context) ([]*models.AppEntry, error) {
	dir, err := inventory.NewDir(pathutil.ExpandOr(c.cfg.Inventory.Dir, paths.InventoryDir()), c.cfg.Inventory.Ignore)
	if err != nil {
		return nil, err
	}
	entries, err := dir.QueryLaunchable(ctx)
	if err != nil {
		return nil, err
	}
	excluded := make(map[string]bool, len(c.cfg.Inventory.AppFilter))
	for _, p := range c.cfg.Inventory.AppFilter {
		excluded[p] = true
	}
	apps := make([]*models.AppEntry, 0, len(entries))
	for _, e := range entries {
		if !excluded[e.Component.Package] {
			apps = append(apps, models.NewAppEntry(e))
		}
	}
	collation.New(c.cfg.Locale).SortApps(apps)
	return apps, nil
}

// AddItem inserts the item with a fresh id.
func (c *LocalClient) AddItem(ctx context.Context, req models.AddItemRequest) (*models.Item, error) {
	target, err := models.ParseLaunchTarget(req.Target)
	if err != nil {
		return nil, errors.InvalidTarget(req.Target, err)
	}
	st, err := c.openStore()
	if err != nil {
		return nil, err
	}
	item := &models.Item{
		ItemType:  req.ItemType,
		Position:  req.Position,
		Title:     req.Title,
		Target:    target,
		Container: -100,
	}
	id, err := st.Insert(ctx, item.ToRecord())
	if err != nil {
		return nil, err
	}
	item.ID = id
	return item, nil
}

// MoveItem updates the stored position.
func (c *LocalClient) MoveItem(ctx context.Context, id int64, position int) (*models.Item, error) {
	st, err := c.openStore()
	if err != nil {
		return nil, err
	}
	if err := st.Update(ctx, id, itemstore.Values{itemstore.ColPosition: position}); err != nil {
		return nil, err
	}
	records, err := st.Query(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.ID == id {
			return rec.ToItem()
		}
	}
	return nil, errors.ItemNotFound(id)
}

// DeleteItem removes the stored row.
func (c *LocalClient) DeleteItem(ctx context.Context, id int64) error {
	st, err := c.openStore()
	if err != nil {
		return err
	}
	return st.Delete(ctx, id)
}

// SendEvent returns an error since events are routed by the daemon's model.
func (c *LocalClient) SendEvent(ctx context.Context, ev models.Event) error {
	return c.notRunning("send event")
}

// Reload returns an error since there is no model to reload.
func (c *LocalClient) Reload(ctx context.Context) error {
	return c.notRunning("reload")
}

// StreamState returns an error since streaming is only available via daemon.
func (c *LocalClient) StreamState(ctx context.Context) (<-chan StateUpdate, error) {
	return nil, c.notRunning("stream")
}

// IsRunning returns false since this is the local fallback client.
func (c *LocalClient) IsRunning() bool {
	return false
}

// Close closes the store if it was opened.
func (c *LocalClient) Close() error {
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

var _ Client = (*LocalClient)(nil)
