package inventory

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/launcher/logging"
	"github.com/grovetools/launcher/pkg/models"
)

// Watcher turns manifest file changes into package events.
type Watcher struct {
	dir      *Dir
	watcher  *fsnotify.Watcher
	debounce time.Duration
	emit     func(models.Event)
	logger   *logrus.Entry

	mu      sync.Mutex
	known   map[string]string // manifest path -> package
	pending map[string]*time.Timer
	closed  bool
}

// NewWatcher watches the manifest directory of dir. emit is called from the
// watcher's timers, one call per settled file change.
func NewWatcher(dir *Dir, debounceMs int, emit func(models.Event)) (*Watcher, error) {
	if err := os.MkdirAll(dir.Root(), 0o755); err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir.Root()); err != nil {
		fw.Close()
		return nil, err
	}
	if debounceMs <= 0 {
		debounceMs = 100
	}

	w := &Watcher{
		dir:      dir,
		watcher:  fw,
		debounce: time.Duration(debounceMs) * time.Millisecond,
		emit:     emit,
		logger:   logging.NewLogger("inventory-watcher"),
		known:    make(map[string]string),
		pending:  make(map[string]*time.Timer),
	}

	manifests, err := dir.Manifests(context.Background())
	if err != nil {
		fw.Close()
		return nil, err
	}
	for path, m := range manifests {
		w.known[path] = m.Package
	}
	return w, nil
}

// Start processes file events until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !IsManifestFile(event.Name) || w.dir.Ignored(event.Name) {
				continue
			}
			w.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.schedule(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("Watcher error: %v", err)
		case <-ctx.Done():
			w.Close()
			return
		}
	}
}

// schedule (re)arms the per-file debounce timer.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() { w.settle(path) })
}

// settle compares the file on disk with what was last seen for it and
// emits the resulting package events.
func (w *Watcher) settle(path string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	prev, known := w.known[path]

	var events []models.Event
	m, err := ReadManifest(path)
	switch {
	case err != nil && known:
		if _, statErr := os.Stat(path); statErr == nil {
			// Present but unparsable; keep the last good mapping.
			w.logger.WithError(err).Warnf("Ignoring invalid manifest %s", filepath.Base(path))
			break
		}
		delete(w.known, path)
		events = append(events, models.Event{Type: models.EventPackageRemoved, Package: prev})
	case err != nil:
		if _, statErr := os.Stat(path); statErr == nil {
			w.logger.WithError(err).Warnf("Ignoring invalid manifest %s", filepath.Base(path))
		}
	case !known:
		w.known[path] = m.Package
		events = append(events, models.Event{Type: models.EventPackageAdded, Package: m.Package})
	case prev != m.Package:
		w.known[path] = m.Package
		events = append(events,
			models.Event{Type: models.EventPackageRemoved, Package: prev},
			models.Event{Type: models.EventPackageAdded, Package: m.Package})
	default:
		events = append(events, models.Event{Type: models.EventPackageChanged, Package: m.Package})
	}
	w.mu.Unlock()

	for _, ev := range events {
		w.logger.Infof("Package event %s: %s", ev.Type, ev.Package)
		if w.emit != nil {
			w.emit(ev)
		}
	}
}

// Known returns the package last seen for each manifest path.
func (w *Watcher) Known() map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]string, len(w.known))
	for k, v := range w.known {
		out[k] = v
	}
	return out
}

// Close stops the watcher and any pending timers.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for _, t := range w.pending {
		t.Stop()
	}
	w.pending = nil
	w.mu.Unlock()
	return w.watcher.Close()
}
