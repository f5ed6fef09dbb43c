package collector

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/launcher/config"
	"github.com/grovetools/launcher/internal/daemon/store"
	"github.com/grovetools/launcher/logging"
	"github.com/grovetools/launcher/pkg/models"
)

// ConfigCollector watches the config directory and turns locale and region
// edits into locale-changed and configuration-changed events.
type ConfigCollector struct {
	dir        string
	debounce   time.Duration
	load       func() (*config.Config, error)
	logger     *logrus.Entry
	targetLink map[string]string // symlink target -> link name in dir

	mu      sync.Mutex
	locale  string
	region  string
	pending *time.Timer
}

// NewConfigCollector watches dir. load re-reads the effective configuration;
// current is the configuration the daemon started with.
func NewConfigCollector(dir string, debounceMs int, current *config.Config, load func() (*config.Config, error)) *ConfigCollector {
	if debounceMs <= 0 {
		debounceMs = 100
	}
	c := &ConfigCollector{
		dir:        dir,
		debounce:   time.Duration(debounceMs) * time.Millisecond,
		load:       load,
		logger:     logging.NewLogger("config-watcher"),
		targetLink: make(map[string]string),
	}
	if current != nil {
		c.locale = current.Locale
		c.region = current.Region
	}
	return c
}

// Name returns the collector's name.
func (c *ConfigCollector) Name() string { return "config" }

// Run watches until ctx is cancelled.
func (c *ConfigCollector) Run(ctx context.Context, st *store.Store, events chan<- models.Event) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(c.dir); err != nil {
		return err
	}
	c.watchSymlinkTargets(w)

	defer func() {
		c.mu.Lock()
		if c.pending != nil {
			c.pending.Stop()
		}
		c.mu.Unlock()
	}()

	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !config.IsConfigFile(event.Name) {
				continue
			}
			name := event.Name
			if link, ok := c.targetLink[name]; ok {
				name = filepath.Join(c.dir, link)
			}
			c.logger.WithFields(logrus.Fields{"file": name, "op": event.Op.String()}).Debug("Config file event")
			c.schedule(ctx, st, events, name)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.logger.WithError(err).Error("Watcher error")
		case <-ctx.Done():
			return nil
		}
	}
}

// watchSymlinkTargets adds the directories of symlinked config files, since
// fsnotify does not follow links.
func (c *ConfigCollector) watchSymlinkTargets(w *fsnotify.Watcher) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}
	watched := map[string]bool{c.dir: true}
	for _, entry := range entries {
		if !config.IsConfigFile(entry.Name()) || entry.Type()&os.ModeSymlink == 0 {
			continue
		}
		target, err := filepath.EvalSymlinks(filepath.Join(c.dir, entry.Name()))
		if err != nil {
			c.logger.WithError(err).WithField("file", entry.Name()).Warn("Failed to resolve config symlink")
			continue
		}
		c.targetLink[target] = entry.Name()
		if targetDir := filepath.Dir(target); !watched[targetDir] {
			if err := w.Add(targetDir); err != nil {
				c.logger.WithError(err).WithField("dir", targetDir).Warn("Failed to watch symlink target")
				continue
			}
			watched[targetDir] = true
		}
	}
}

func (c *ConfigCollector) schedule(ctx context.Context, st *store.Store, events chan<- models.Event, file string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		c.pending.Stop()
	}
	c.pending = time.AfterFunc(c.debounce, func() { c.reload(ctx, st, events, file) })
}

// reload re-reads the configuration and emits events for what changed.
func (c *ConfigCollector) reload(ctx context.Context, st *store.Store, events chan<- models.Event, file string) {
	if ctx.Err() != nil {
		return
	}
	cfg, err := c.load()
	if err != nil {
		c.logger.WithError(err).WithField("file", filepath.Base(file)).Warn("Ignoring invalid config change")
		return
	}
	c.logger.WithField("file", filepath.Base(file)).Info("Config changed")
	st.BroadcastConfigReload(filepath.Base(file))

	c.mu.Lock()
	localeChanged := cfg.Locale != c.locale
	regionChanged := cfg.Region != c.region
	c.locale, c.region = cfg.Locale, cfg.Region
	c.mu.Unlock()

	if localeChanged {
		send(ctx, events, models.Event{Type: models.EventLocaleChanged, Locale: cfg.Locale})
	}
	if regionChanged {
		send(ctx, events, models.Event{Type: models.EventConfigurationChanged, Region: cfg.Region})
	}
}
