package launcher

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/launcher/errors"
	"github.com/grovetools/launcher/internal/dispatcher"
	"github.com/grovetools/launcher/internal/model"
	"github.com/grovetools/launcher/internal/sink"
	"github.com/grovetools/launcher/internal/worker"
	"github.com/grovetools/launcher/pkg/collation"
	"github.com/grovetools/launcher/pkg/models"
)

// Phase is the state of a loader task.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseCreated
	PhaseLoadingWorkspace
	PhaseIdleBarrier
	PhaseLoadingAllApps
	PhaseDone
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCreated:
		return "created"
	case PhaseLoadingWorkspace:
		return "loading_workspace"
	case PhaseIdleBarrier:
		return "idle_barrier"
	case PhaseLoadingAllApps:
		return "loading_all_apps"
	case PhaseDone:
		return "done"
	case PhaseStopped:
		return "stopped"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// loaderTask performs one load: workspace, idle barrier, all apps.
// Stopping is cooperative; the flag is checked after every scanned record
// and at every phase boundary.
type loaderTask struct {
	m           *Model
	id          string
	logger      *logrus.Entry
	isLaunching bool

	phase   atomic.Int32
	stopped atomic.Bool
	wakeCh  chan struct{}
}

func newLoaderTask(m *Model, isLaunching bool) *loaderTask {
	id := uuid.NewString()
	t := &loaderTask{
		m:           m,
		id:          id,
		logger:      m.logger.WithField("run", id[:8]),
		isLaunching: isLaunching,
		wakeCh:      make(chan struct{}, 1),
	}
	t.phase.Store(int32(PhaseCreated))
	return t
}

// Phase returns the current phase.
func (t *loaderTask) Phase() Phase {
	return Phase(t.phase.Load())
}

// setPhase moves to p unless the task was stopped; stopped is absorbing.
func (t *loaderTask) setPhase(p Phase) bool {
	for {
		cur := t.phase.Load()
		if Phase(cur) == PhaseStopped {
			return false
		}
		if t.phase.CompareAndSwap(cur, int32(p)) {
			t.logger.WithField("phase", p.String()).Debug("Loader phase")
			return true
		}
	}
}

func (t *loaderTask) isStopped() bool {
	return t.stopped.Load()
}

// stop signals the task and returns whether it was launching, so a
// replacement task keeps that state.
func (t *loaderTask) stop() bool {
	if !t.stopped.Swap(true) {
		t.phase.Store(int32(PhaseStopped))
		t.logger.Debug("Loader stop requested")
	}
	t.wake()
	return t.isLaunching
}

func (t *loaderTask) wake() {
	select {
	case t.wakeCh <- struct{}{}:
	default:
	}
}

// callbacks resolves a capture made by this task. A stopped task delivers nothing.
func (t *loaderTask) callbacks(c sink.Consumer) (sink.Callbacks, bool) {
	if t.isStopped() {
		return nil, false
	}
	return t.m.slot.Resolve(c)
}

// post queues UI work on behalf of this task with the binding category.
func (t *loaderTask) post(ctx context.Context, c sink.Consumer, what string, fn func(sink.Callbacks)) {
	t.m.ui.RunOnUI(ctx, func(context.Context) {
		cb, ok := t.callbacks(c)
		if !ok {
			if !t.isStopped() {
				t.m.dropStale(what)
			}
			return
		}
		fn(cb)
	}, dispatcher.CategoryBinding)
}

func (t *loaderTask) run(ctx context.Context) {
	m := t.m
	m.mu.Lock()
	if t.isStopped() {
		m.mu.Unlock()
		return
	}
	m.loaderRunning = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.loaderRunning = false
		if m.loader == t {
			m.loader = nil
		}
		m.mu.Unlock()
		m.worker.SetPriority(worker.PriorityDefault)
	}()

	start := time.Now()
	if t.isLaunching {
		m.worker.SetPriority(worker.PriorityDefault)
	} else {
		m.worker.SetPriority(worker.PriorityBackground)
	}

	if !t.setPhase(PhaseLoadingWorkspace) {
		return
	}
	t.loadAndBindWorkspace(ctx)
	if t.isStopped() {
		return
	}

	// Workspace is queued for binding; all-apps loading must not compete with it.
	m.worker.SetPriority(worker.PriorityBackground)
	if !t.setPhase(PhaseIdleBarrier) {
		return
	}
	t.waitForIdle(ctx)
	if t.isStopped() {
		return
	}

	if !t.setPhase(PhaseLoadingAllApps) {
		return
	}
	t.loadAndBindAllApps(ctx)
	if t.isStopped() {
		return
	}

	t.setPhase(PhaseDone)
	t.logger.WithField("duration", time.Since(start).String()).Info("Loader finished")
}

func (t *loaderTask) loadAndBindWorkspace(ctx context.Context) {
	m := t.m
	m.mu.Lock()
	m.loadingWorkspace = true
	loaded := m.workspaceLoaded
	m.mu.Unlock()

	if !loaded {
		ok := t.loadWorkspace(ctx)
		m.mu.Lock()
		if t.isStopped() {
			m.loadingWorkspace = false
			m.mu.Unlock()
			m.state.Clear()
			return
		}
		// A failed query binds an empty workspace but leaves it unloaded
		// so the next start retries.
		m.workspaceLoaded = ok
		if ok {
			m.lastLoad = time.Now()
		}
		m.mu.Unlock()
	}

	t.bindWorkspace(ctx)
}

// loadWorkspace rebuilds the model from the item store. Records whose
// component is no longer installed are deleted from the store; records of
// disabled packages are only left out of the model. It reports false when
// the store could not be read or the task was stopped mid-scan.
func (t *loaderTask) loadWorkspace(ctx context.Context) bool {
	m := t.m
	start := time.Now()

	if len(m.defaults) > 0 {
		seeded, err := m.store.LoadDefaultsIfNecessary(ctx, m.defaults)
		if err != nil {
			t.logger.WithError(err).Error("Failed to seed default items")
		} else if seeded {
			t.logger.WithField("count", len(m.defaults)).Info("Seeded default items")
		}
	}

	records, err := m.store.Query(ctx)
	if err != nil {
		t.logger.WithError(err).Error("Failed to query item store")
		m.state.Clear()
		return false
	}

	// Records are resolved against the inventory without the State lock;
	// the lock is only taken to swap in the finished scan.
	var orphans []int64
	scanned := make([]*models.Item, 0, len(records))
	for _, rec := range records {
		if t.isStopped() {
			break
		}
		item, orphan := t.scanRecord(ctx, rec)
		switch {
		case orphan:
			orphans = append(orphans, rec.ID)
		case item != nil:
			scanned = append(scanned, item)
		}
		m.worker.Yield()
	}
	aborted := false
	m.state.Locked(func(tx *model.Tx) {
		tx.Clear()
		if t.isStopped() {
			aborted = true
			return
		}
		for _, item := range scanned {
			tx.Put(item)
		}
	})
	if aborted {
		t.logger.Info("Workspace load stopped before commit")
		return false
	}

	for _, id := range orphans {
		if err := m.store.Delete(ctx, id); err != nil {
			t.logger.WithError(err).WithField("item_id", id).Warn("Failed to delete item of uninstalled app")
		}
	}
	if maxID := m.state.MaxID(); maxID > 0 {
		if err := m.store.UpdateMaxID(ctx, maxID); err != nil {
			t.logger.WithError(err).Warn("Failed to raise item id counter")
		}
	}

	t.logger.WithFields(logrus.Fields{
		"items":    m.state.Len(),
		"removed":  len(orphans),
		"duration": time.Since(start).String(),
	}).Info("Loaded workspace")
	return true
}

// scanRecord turns one record into a model item. orphan reports a record
// that points at an uninstalled component and should be deleted. Any
// failure skips only this record.
func (t *loaderTask) scanRecord(ctx context.Context, rec models.PersistedItemRecord) (item *models.Item, orphan bool) {
	log := t.logger.WithField("item_id", rec.ID)
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logrus.Fields{
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			}).Error("Skipping item after scan failure")
			item, orphan = nil, false
		}
	}()

	parsed, err := rec.ToItem()
	if err != nil {
		log.WithError(errors.InvalidTarget(rec.Intent, err)).Warn("Discarding item with malformed launch target")
		return nil, false
	}

	if component, ok := parsed.Component(); ok {
		enabled, err := t.m.inventory.IsPackageEnabled(ctx, component.Package)
		if err != nil {
			log.WithError(err).Warn("Skipping item, inventory lookup failed")
			return nil, false
		}
		if !enabled {
			log.WithField("package", component.Package).Debug("Skipping item of disabled package")
			return nil, false
		}
		_, found, err := t.m.inventory.Resolve(ctx, component)
		if err != nil {
			log.WithError(err).Warn("Skipping item, inventory lookup failed")
			return nil, false
		}
		if !found {
			log.WithField("component", component.String()).Info("Removing item of uninstalled component")
			return nil, true
		}
	}

	return parsed, false
}

// bindWorkspace delivers the workspace in position order: StartBinding,
// BindItems batches, FinishBindingItems.
func (t *loaderTask) bindWorkspace(ctx context.Context) {
	m := t.m
	c := m.slot.Current()
	if !c.Attached() {
		t.logger.Warn("No consumer attached, skipping workspace bind")
		m.mu.Lock()
		m.loadingWorkspace = false
		m.mu.Unlock()
		return
	}

	start := time.Now()
	items, _ := m.state.Snapshot()

	t.post(ctx, c, "start_binding", func(cb sink.Callbacks) { cb.StartBinding() })
	for i := 0; i < len(items); i += m.batchSize {
		begin, end := i, i+m.batchSize
		if end > len(items) {
			end = len(items)
		}
		t.post(ctx, c, "bind_items", func(cb sink.Callbacks) { cb.BindItems(items, begin, end, false) })
	}
	m.ui.RunOnUI(ctx, func(context.Context) {
		if cb, ok := t.callbacks(c); ok {
			cb.FinishBindingItems()
		}
		m.mu.Lock()
		m.loadingWorkspace = false
		m.mu.Unlock()
		t.logger.WithFields(logrus.Fields{
			"items":    len(items),
			"duration": time.Since(start).String(),
		}).Debug("Bound workspace")
	}, dispatcher.CategoryBinding)
}

// waitForIdle parks the task until the UI dispatcher has drained the
// workspace binds, re-checking at the configured interval. It returns early
// when the task is stopped or a worker flush is waiting.
func (t *loaderTask) waitForIdle(ctx context.Context) {
	m := t.m
	start := time.Now()
	idle := make(chan struct{})
	m.ui.PostIdle(func(context.Context) { close(idle) })

	ticker := time.NewTicker(m.idleRecheck)
	defer ticker.Stop()
	for {
		if t.isStopped() || m.flushing.Load() > 0 {
			break
		}
		select {
		case <-idle:
			t.logger.WithField("waited", time.Since(start).String()).Debug("UI idle, continuing load")
			return
		case <-t.wakeCh:
		case <-ticker.C:
		}
	}
	t.logger.WithField("waited", time.Since(start).String()).Debug("Idle barrier released early")
}

func (t *loaderTask) loadAndBindAllApps(ctx context.Context) {
	m := t.m
	m.mu.Lock()
	loaded := m.allAppsLoaded
	m.mu.Unlock()

	if loaded {
		t.onlyBindAllApps(ctx)
		return
	}
	if !t.loadAllApps(ctx) {
		return
	}
	m.mu.Lock()
	if !t.isStopped() {
		m.allAppsLoaded = true
	}
	m.mu.Unlock()
}

// onlyBindAllApps re-delivers a copy of the cached list.
func (t *loaderTask) onlyBindAllApps(ctx context.Context) {
	c := t.m.slot.Current()
	if !c.Attached() {
		t.logger.Warn("No consumer attached, skipping all-apps bind")
		return
	}
	apps := t.m.apps.Data()
	t.post(ctx, c, "bind_all_apps", func(cb sink.Callbacks) { cb.BindAllApplications(apps) })
}

// loadAllApps enumerates the inventory into the app list and delivers it.
// It reports whether the list was loaded.
func (t *loaderTask) loadAllApps(ctx context.Context) bool {
	m := t.m
	c := m.slot.Current()
	if !c.Attached() {
		t.logger.Warn("No consumer attached, not loading all apps")
		return false
	}

	start := time.Now()
	m.apps.Clear()

	entries, err := m.inventory.QueryLaunchable(ctx)
	if err != nil {
		t.logger.WithError(err).Error("Failed to query launchable apps")
		return false
	}
	if len(entries) == 0 {
		t.logger.Info("Inventory returned no launchable apps")
		return false
	}

	sortStart := time.Now()
	m.currentCollator().SortInventory(entries, collation.NewLabelCache(nil))
	sortTime := time.Since(sortStart)

	for _, e := range entries {
		if t.isStopped() {
			return false
		}
		m.apps.Add(models.NewAppEntry(e))
	}
	added := m.apps.DrainAdded()

	t.post(ctx, c, "bind_all_apps", func(cb sink.Callbacks) { cb.BindAllApplications(added) })

	t.logger.WithFields(logrus.Fields{
		"apps":     len(added),
		"sort":     sortTime.String(),
		"duration": time.Since(start).String(),
	}).Info("Loaded all apps")
	return true
}

// runBindSynchronously binds the cached workspace and app list on the
// caller, draining earlier UI work first.
func (t *loaderTask) runBindSynchronously(ctx context.Context) error {
	m := t.m
	m.mu.Lock()
	switch {
	case !m.workspaceLoaded || !m.allAppsLoaded:
		m.mu.Unlock()
		return errors.New(errors.ErrCodeNotLoaded, "workspace and all apps must be loaded before a synchronous bind")
	case m.loaderRunning:
		m.mu.Unlock()
		return errors.New(errors.ErrCodeLoaderRunning, "background loading is already running")
	}
	m.loadingWorkspace = true
	m.mu.Unlock()

	// Pending binds from an earlier load must land before these.
	m.ui.Flush(ctx)

	t.bindWorkspace(ctx)
	t.onlyBindAllApps(ctx)
	if !m.ui.IsCurrent(ctx) {
		m.ui.Flush(ctx)
	}
	return nil
}

// StartLoader stops any running loader and starts a new one. When the
// workspace and app list are both cached it binds them synchronously on the
// caller instead. Nothing happens when no consumer is attached.
func (m *Model) StartLoader(ctx context.Context, isLaunching bool) error {
	if !m.slot.Current().Attached() {
		m.logger.Debug("StartLoader without a consumer, ignoring")
		return nil
	}

	m.mu.Lock()
	isLaunching = m.stopLoaderLocked() || isLaunching
	t := newLoaderTask(m, isLaunching)
	m.loader = t
	synchronous := m.workspaceLoaded && m.allAppsLoaded
	m.mu.Unlock()

	if synchronous {
		t.logger.Debug("Model cached, binding synchronously")
		err := t.runBindSynchronously(ctx)
		t.setPhase(PhaseDone)
		m.mu.Lock()
		if m.loader == t {
			m.loader = nil
		}
		m.mu.Unlock()
		return err
	}

	m.worker.SetPriority(worker.PriorityDefault)
	t.logger.WithField("launching", isLaunching).Info("Starting loader")
	return m.worker.Post(t.run)
}

// StartLoaderFromBackground asks the consumer whether it will reload on
// resume; the loader runs now only when it will not.
func (m *Model) StartLoaderFromBackground(ctx context.Context) error {
	c := m.slot.Current()
	if !c.Attached() {
		return nil
	}
	if c.Callbacks.SetLoadOnResume() {
		m.logger.Debug("Consumer will reload on resume")
		return nil
	}
	return m.StartLoader(ctx, false)
}

// StopLoader signals the running loader to stop.
func (m *Model) StopLoader() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLoaderLocked()
}

// stopLoaderLocked stops the current loader and reports whether it was launching.
func (m *Model) stopLoaderLocked() bool {
	t := m.loader
	if t == nil {
		return false
	}
	return t.stop()
}

// ResetLoadedState stops the loader and forgets the cached parts so the
// next load rebuilds them.
func (m *Model) ResetLoadedState(resetAllApps, resetWorkspace bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLoaderLocked()
	if resetAllApps {
		m.allAppsLoaded = false
	}
	if resetWorkspace {
		m.workspaceLoaded = false
	}
}

// ForceReload drops every cache and reloads from the stores.
func (m *Model) ForceReload(ctx context.Context) error {
	m.ResetLoadedState(true, true)
	m.logger.Info("Forcing reload")
	return m.StartLoaderFromBackground(ctx)
}
