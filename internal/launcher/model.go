// Package launcher is the loader and model-synchronization engine. It loads
// placed items and the installed-app list on a single background worker,
// keeps the in-memory model consistent with the item store, and publishes
// changes to the attached UI consumer through the UI dispatcher.
package launcher

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/grovetools/launcher/errors"
	"github.com/grovetools/launcher/internal/dispatcher"
	"github.com/grovetools/launcher/internal/inventory"
	"github.com/grovetools/launcher/internal/itemstore"
	"github.com/grovetools/launcher/internal/model"
	"github.com/grovetools/launcher/internal/sink"
	"github.com/grovetools/launcher/internal/worker"
	"github.com/grovetools/launcher/pkg/collation"
	"github.com/grovetools/launcher/pkg/models"
	"github.com/grovetools/launcher/state"
)

const (
	defaultBindBatchSize = 6 // also the upper bound
	defaultIdleRecheck   = time.Second
)

// Preferences persists the locale and region across restarts.
type Preferences interface {
	GetString(key string) (string, error)
	Set(key string, value interface{}) error
}

// Options configures a Model.
type Options struct {
	Store     itemstore.Store
	Inventory inventory.Adapter
	// Prefs is optional.
	Prefs Preferences
	// Defaults are seeded into an empty store on the first load.
	Defaults []models.PersistedItemRecord
	// Exclude lists packages that never enter the all-apps list.
	Exclude []string

	BindBatchSize     int
	IdleRecheck       time.Duration
	StrictConsistency bool
	Locale            string
	Region            string

	Logger *logrus.Entry
}

// Model is the launcher model. All mutation happens on its worker; UI
// deliveries go through its dispatcher.
type Model struct {
	logger    *logrus.Entry
	store     itemstore.Store
	inventory inventory.Adapter
	prefs     Preferences
	defaults  []models.PersistedItemRecord

	worker *worker.Worker
	ui     *dispatcher.Dispatcher
	slot   sink.Slot
	state  *model.State
	apps   *model.AppList

	batchSize   int
	idleRecheck time.Duration

	collatorMu sync.RWMutex
	collator   *collation.Collator

	// mu guards the loader bookkeeping below.
	mu               sync.Mutex
	loader           *loaderTask
	loaderRunning    bool
	workspaceLoaded  bool
	allAppsLoaded    bool
	loadingWorkspace bool
	region           string
	lastLoad         time.Time

	// flushing is non-zero while FlushWorker waits; the idle barrier gives way to it.
	flushing atomic.Int32

	staleDrops atomic.Uint64
	staleLog   rate.Sometimes
}

// New builds a model. Call Start before use and Close when done.
func New(opts Options) (*Model, error) {
	if opts.Store == nil || opts.Inventory == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "launcher model needs an item store and an inventory")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger()).WithField("component", "launcher")
	}
	batch := opts.BindBatchSize
	if batch <= 0 || batch > defaultBindBatchSize {
		if batch > defaultBindBatchSize {
			logger.WithField("bind_batch_size", batch).Warn("Bind batch size capped")
		}
		batch = defaultBindBatchSize
	}
	recheck := opts.IdleRecheck
	if recheck <= 0 {
		recheck = defaultIdleRecheck
	}

	m := &Model{
		logger:      logger,
		store:       opts.Store,
		inventory:   opts.Inventory,
		prefs:       opts.Prefs,
		defaults:    opts.Defaults,
		worker:      worker.New("launcher-loader", logger),
		ui:          dispatcher.New(logger),
		state:       model.NewState(logger.WithField("context", "model")),
		apps:        model.NewAppList(opts.Exclude...),
		batchSize:   batch,
		idleRecheck: recheck,
		region:      opts.Region,
		staleLog:    rate.Sometimes{First: 3, Interval: 30 * time.Second},
	}
	m.state.SetStrict(opts.StrictConsistency)

	locale := opts.Locale
	if m.prefs != nil {
		if saved, err := m.prefs.GetString(state.KeyLocale); err == nil && saved != "" {
			locale = saved
		}
		if saved, err := m.prefs.GetString(state.KeyRegion); err == nil && saved != "" {
			m.region = saved
		}
	}
	m.collator = collation.New(locale)
	return m, nil
}

// Start starts the background worker.
func (m *Model) Start() {
	m.worker.Start()
}

// Close stops any running loader and shuts the worker down after it has
// drained its queue.
func (m *Model) Close() {
	m.StopLoader()
	m.worker.Close()
}

// UI returns the dispatcher whose Run loop is the UI context.
func (m *Model) UI() *dispatcher.Dispatcher {
	return m.ui
}

// Attach installs cb as the consumer. In-flight work captured against an
// earlier consumer no longer delivers.
func (m *Model) Attach(cb sink.Callbacks) sink.Consumer {
	c := m.slot.Set(cb)
	m.logger.WithField("generation", c.Generation).Info("Consumer attached")
	return c
}

// Detach removes the consumer.
func (m *Model) Detach() {
	m.slot.Clear()
	m.logger.Info("Consumer detached")
}

// Consumer returns the current consumer capture.
func (m *Model) Consumer() sink.Consumer {
	return m.slot.Current()
}

func (m *Model) currentCollator() *collation.Collator {
	m.collatorMu.RLock()
	defer m.collatorMu.RUnlock()
	return m.collator
}

// Locale returns the collation locale.
func (m *Model) Locale() string {
	return m.currentCollator().Locale().String()
}

// Region returns the last region reported by a configuration change.
func (m *Model) Region() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.region
}

// IsAllAppsLoaded reports whether the all-apps list is cached.
func (m *Model) IsAllAppsLoaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allAppsLoaded
}

// IsWorkspaceLoaded reports whether the workspace is cached.
func (m *Model) IsWorkspaceLoaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.workspaceLoaded
}

// IsLoadingWorkspace reports whether a workspace load or bind is in progress.
func (m *Model) IsLoadingWorkspace() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadingWorkspace
}

// LoaderPhase returns the phase of the current loader, or PhaseIdle.
func (m *Model) LoaderPhase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loader == nil {
		return PhaseIdle
	}
	return m.loader.Phase()
}

// FlushWorker blocks until every task posted to the worker before the call
// has run. A loader parked at the idle barrier is released so the flush
// does not wait on the UI.
func (m *Model) FlushWorker(ctx context.Context) error {
	m.flushing.Add(1)
	defer m.flushing.Add(-1)

	m.mu.Lock()
	if m.loader != nil {
		m.loader.wake()
	}
	m.mu.Unlock()

	return m.worker.Flush(ctx)
}

// onWorker runs fn on the worker and waits for its result. Called from a
// worker task it runs inline.
func (m *Model) onWorker(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.worker.IsCurrent(ctx) {
		return fn(ctx)
	}
	done := make(chan error, 1)
	err := m.worker.Post(func(wctx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				m.logger.WithFields(logrus.Fields{
					"panic": fmt.Sprint(r),
					"stack": string(debug.Stack()),
				}).Error("model task panicked")
				done <- errors.New(errors.ErrCodeInternal, fmt.Sprintf("model task panicked: %v", r))
			}
		}()
		done <- fn(wctx)
	})
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deliver posts work for the consumer captured in c. The work is dropped at
// delivery time if c is no longer the installed consumer.
func (m *Model) deliver(ctx context.Context, c sink.Consumer, category dispatcher.Category, what string, fn func(sink.Callbacks)) {
	m.ui.RunOnUI(ctx, func(context.Context) {
		cb, ok := m.slot.Resolve(c)
		if !ok {
			m.dropStale(what)
			return
		}
		fn(cb)
	}, category)
}

func (m *Model) dropStale(what string) {
	n := m.staleDrops.Add(1)
	m.staleLog.Do(func() {
		m.logger.WithFields(logrus.Fields{
			"delivery": what,
			"dropped":  n,
		}).Warn("Consumer changed since the work began, dropping delivery")
	})
}

// StaleDeliveries returns how many deliveries the stale-consumer guard dropped.
func (m *Model) StaleDeliveries() uint64 {
	return m.staleDrops.Load()
}
