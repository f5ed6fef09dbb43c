package launcher

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/launcher/errors"
	"github.com/grovetools/launcher/internal/dispatcher"
	"github.com/grovetools/launcher/internal/itemstore"
	"github.com/grovetools/launcher/pkg/models"
	"github.com/grovetools/launcher/testutil"
)

func TestWorkspaceBoundInPositionOrderBatches(t *testing.T) {
	h := newHarness(t)

	const n = 14
	positions := rand.New(rand.NewSource(7)).Perm(n)
	var entries []models.InventoryEntry
	for i := 0; i < n; i++ {
		e := testutil.App(fmt.Sprintf("com.example.app%02d", i), "Main", fmt.Sprintf("App %02d", i))
		entries = append(entries, e)
		h.seed(testutil.AppItem(int64(i+1), positions[i], e))
	}
	h.install(entries...)

	h.load()

	methods := h.cb.Methods()
	require.NotEmpty(t, methods)
	assert.Equal(t, "StartBinding", methods[0])

	batches := h.cb.Of("BindItems")
	require.Len(t, batches, 3)
	for _, b := range batches {
		assert.LessOrEqual(t, b.End-b.Start, 6)
	}

	bound := h.cb.BoundItems()
	require.Len(t, bound, n)
	seen := map[int64]bool{}
	for i, item := range bound {
		assert.False(t, seen[item.ID], "item %d bound twice", item.ID)
		seen[item.ID] = true
		if i > 0 {
			assert.LessOrEqual(t, bound[i-1].Position, item.Position)
		}
	}

	finish := indexOf(methods, "FinishBindingItems")
	allApps := indexOf(methods, "BindAllApplications")
	require.GreaterOrEqual(t, finish, 0)
	require.Greater(t, allApps, finish, "all apps are bound after the workspace")
	assert.Len(t, h.cb.Of("BindAllApplications")[0].Apps, n)

	assert.True(t, h.m.IsWorkspaceLoaded())
	assert.True(t, h.m.IsAllAppsLoaded())
	assert.False(t, h.m.IsLoadingWorkspace())
	assert.Equal(t, PhaseIdle, h.m.LoaderPhase())
}

func TestOversizedBindBatchIsCapped(t *testing.T) {
	h := newHarness(t, withOptions(func(o *Options) { o.BindBatchSize = 50 }))

	var entries []models.InventoryEntry
	for i := 0; i < 8; i++ {
		e := testutil.App(fmt.Sprintf("com.example.app%02d", i), "Main", fmt.Sprintf("App %02d", i))
		entries = append(entries, e)
		h.seed(testutil.AppItem(int64(i+1), i, e))
	}
	h.install(entries...)
	h.load()

	batches := h.cb.Of("BindItems")
	require.Len(t, batches, 2)
	for _, b := range batches {
		assert.LessOrEqual(t, b.End-b.Start, 6)
	}
}

func TestAllAppsSortedByCollatedTitle(t *testing.T) {
	h := newHarness(t)
	h.install(
		testutil.App("com.z", "Main", "zebra"),
		testutil.App("com.e", "Main", "Éclair"),
		testutil.App("com.a", "Main", "apple"),
		testutil.App("com.nolabel", "Main", ""),
	)
	h.load()

	calls := h.cb.Of("BindAllApplications")
	require.Len(t, calls, 1)
	var titles []string
	for _, app := range calls[0].Apps {
		titles = append(titles, app.Title)
	}
	assert.Equal(t, []string{"apple", "com.nolabel", "Éclair", "zebra"}, titles)
}

func TestStopBeforeCommitLeavesModelEmpty(t *testing.T) {
	h := newHarness(t)
	h.install(camera, gallery, notes)
	h.seed(testutil.AppItem(1, 0, camera), testutil.AppItem(2, 1, gallery), testutil.AppItem(3, 2, notes))

	g := newGate()
	h.inv.beforeEnabled = g.hook

	require.NoError(t, h.m.StartLoader(h.ctx, false))
	select {
	case <-g.entered:
	case <-h.ctx.Done():
		t.Fatal("loader never reached the workspace scan")
	}
	h.m.StopLoader()
	close(g.release)
	h.settle()

	assert.Empty(t, h.m.WorkspaceItems())
	assert.Equal(t, 0, h.m.state.Len())
	assert.False(t, h.m.IsWorkspaceLoaded())
	assert.Empty(t, h.cb.Of("BindItems"))
	assert.Empty(t, h.cb.Of("BindAllApplications"))
	assert.Equal(t, PhaseIdle, h.m.LoaderPhase())
}

func TestStateReadableWhileScanWaitsOnInventory(t *testing.T) {
	h := newHarness(t)
	h.install(camera, gallery)
	h.seed(testutil.AppItem(1, 0, camera), testutil.AppItem(2, 1, gallery))

	g := newGate()
	h.inv.beforeEnabled = g.hook
	t.Cleanup(func() {
		select {
		case <-g.release:
		default:
			close(g.release)
		}
	})

	require.NoError(t, h.m.StartLoader(h.ctx, false))
	select {
	case <-g.entered:
	case <-h.ctx.Done():
		t.Fatal("loader never reached the workspace scan")
	}

	read := make(chan int, 1)
	go func() { read <- h.m.state.Len() }()
	select {
	case <-read:
	case <-time.After(2 * time.Second):
		t.Fatal("state lock held across the inventory lookup")
	}

	close(g.release)
	h.settle()
	assert.Len(t, h.m.WorkspaceItems(), 2)
}

func TestMalformedUninstalledAndDisabledItems(t *testing.T) {
	h := newHarness(t)
	h.install(camera, notes)
	h.inv.SetEnabled(notes.Component.Package, false)

	browser := &models.Item{ID: 4, ItemType: models.ItemTypeOther, Position: 3, Title: "Browser"}
	h.seed(testutil.AppItem(1, 0, camera), testutil.AppItem(2, 1, gallery), testutil.AppItem(3, 2, notes), browser)
	h.mem.Seed(models.PersistedItemRecord{ID: 5, Title: "Broken", Intent: "http://nope", Position: 4})

	h.load()

	var ids []int64
	for _, item := range h.m.WorkspaceItems() {
		ids = append(ids, item.ID)
	}
	assert.Equal(t, []int64{1}, ids, "only application items are in the workspace list")
	_, ok := h.m.Item(4)
	assert.True(t, ok, "browser item is mapped")

	_, ok = h.mem.Record(2)
	assert.False(t, ok, "item of uninstalled component is deleted")
	_, ok = h.mem.Record(3)
	assert.True(t, ok, "item of disabled package stays in the store")
	_, ok = h.mem.Record(5)
	assert.True(t, ok, "malformed item is only discarded from the model")

	next, err := h.store.GenerateNewID(h.ctx)
	require.NoError(t, err)
	assert.Greater(t, next, int64(5))
}

func TestDefaultsSeededIntoEmptyStore(t *testing.T) {
	h := newHarness(t, withOptions(func(o *Options) {
		o.Defaults = []models.PersistedItemRecord{
			{Title: "Browser", Intent: models.BrowserDescriptor, ItemType: models.ItemTypeOther, Position: 0, Container: -100},
			testutil.AppItem(0, 1, camera).ToRecord(),
		}
	}))
	h.install(camera)
	h.load()

	items := h.m.WorkspaceItems()
	require.Len(t, items, 1)
	assert.Equal(t, "Camera", items[0].Title)
	assert.Equal(t, 2, h.m.state.Len())
}

func TestStoreRoundTripThroughReload(t *testing.T) {
	dsn := fmt.Sprintf("file:launcher_roundtrip_%s?mode=memory&cache=shared", testutil.RandomString(8))
	s, err := itemstore.OpenSQLite(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	h := newHarness(t, withStore(s))
	h.install(camera, gallery)
	h.load()

	added, err := h.m.AddItem(h.ctx, testutil.AppItem(0, 0, camera), 2)
	require.NoError(t, err)
	require.NotZero(t, added.ID)

	// A second model over the same store sees an equivalent item.
	h2 := newHarness(t, withStore(s))
	h2.install(camera, gallery)
	h2.load()

	reloaded, ok := h2.m.Item(added.ID)
	require.True(t, ok)
	assert.Equal(t, added.ID, reloaded.ID)
	assert.Equal(t, added.ItemType, reloaded.ItemType)
	assert.Equal(t, added.Position, reloaded.Position)
	assert.Equal(t, added.Title, reloaded.Title)
	assert.True(t, added.Matches(reloaded))
}

func TestCachedModelBindsSynchronously(t *testing.T) {
	h := newHarness(t)
	h.install(camera)
	h.seed(testutil.AppItem(1, 0, camera))
	h.load()
	h.cb.Reset()

	var err error
	h.m.UI().Post(func(ctx context.Context) { err = h.m.StartLoader(ctx, false) }, dispatcher.CategoryNormal)
	h.m.UI().Flush(h.ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"StartBinding", "BindItems", "FinishBindingItems", "BindAllApplications"}, h.cb.Methods())
	assert.Equal(t, uint64(0), h.m.StaleDeliveries())
}

func TestSynchronousBindRefusedWhenNotLoaded(t *testing.T) {
	h := newHarness(t)
	task := newLoaderTask(h.m, false)
	err := task.runBindSynchronously(h.ctx)
	assert.True(t, errors.Is(err, errors.ErrCodeNotLoaded))
}

func TestStartLoaderWithoutConsumerDoesNothing(t *testing.T) {
	h := newHarness(t)
	h.m.Detach()
	h.install(camera)
	require.NoError(t, h.m.StartLoader(h.ctx, false))
	h.settle()
	assert.False(t, h.m.IsWorkspaceLoaded())
	assert.Empty(t, h.cb.Calls())
}

func TestStartLoaderFromBackgroundHonoursLoadOnResume(t *testing.T) {
	h := newHarness(t)
	h.install(camera)
	h.cb.LoadOnResume = true

	require.NoError(t, h.m.StartLoaderFromBackground(h.ctx))
	h.settle()
	assert.Equal(t, []string{"SetLoadOnResume"}, h.cb.Methods())
	assert.False(t, h.m.IsWorkspaceLoaded())

	h.cb.LoadOnResume = false
	require.NoError(t, h.m.StartLoaderFromBackground(h.ctx))
	h.settle()
	assert.True(t, h.m.IsWorkspaceLoaded())
}

func TestConsumerReplacedBeforeDeliveryDropsBinds(t *testing.T) {
	h := newHarness(t)
	h.install(camera)
	h.seed(testutil.AppItem(1, 0, camera))

	require.NoError(t, h.m.StartLoader(h.ctx, false))
	require.NoError(t, h.m.FlushWorker(h.ctx))

	replacement := &testutil.RecordingCallbacks{}
	h.m.Attach(replacement)
	h.m.UI().Flush(h.ctx)

	assert.Empty(t, h.cb.Calls())
	assert.Empty(t, replacement.Calls())
	assert.Greater(t, h.m.StaleDeliveries(), uint64(0))
}

func TestUnbindClearsQueuedBindsOnly(t *testing.T) {
	h := newHarness(t)
	h.install(camera)
	h.seed(testutil.AppItem(1, 0, camera))

	require.NoError(t, h.m.StartLoader(h.ctx, false))
	require.NoError(t, h.m.FlushWorker(h.ctx))

	housekeeping := false
	h.m.UI().Post(func(context.Context) { housekeeping = true }, dispatcher.CategoryNormal)

	dropped, err := h.m.UnbindItemsAndClearQueuedBinds(h.ctx)
	require.NoError(t, err)
	assert.Greater(t, dropped, 0)

	h.m.UI().Flush(h.ctx)
	assert.True(t, housekeeping)
	assert.Empty(t, h.cb.Of("BindItems"))
}

func TestUnbindFromWorkerIsRejected(t *testing.T) {
	h := newHarness(t)
	var err error
	require.NoError(t, h.m.onWorker(h.ctx, func(ctx context.Context) error {
		_, err = h.m.UnbindItemsAndClearQueuedBinds(ctx)
		return nil
	}))
	assert.True(t, errors.Is(err, errors.ErrCodeWrongContext))
}

func TestLoaderWaitsForUIIdleWithRunningDispatcher(t *testing.T) {
	h := newHarness(t)
	h.install(camera, gallery)
	h.seed(testutil.AppItem(1, 0, camera))

	ctx, cancel := context.WithCancel(h.ctx)
	done := make(chan struct{})
	go func() {
		_ = h.m.UI().Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	require.NoError(t, h.m.StartLoader(h.ctx, true))
	require.Eventually(t, func() bool {
		return h.m.IsAllAppsLoaded() && len(h.cb.Of("BindAllApplications")) == 1
	}, 5*time.Second, 5*time.Millisecond)

	methods := h.cb.Methods()
	assert.Less(t, indexOf(methods, "FinishBindingItems"), indexOf(methods, "BindAllApplications"))
}

func TestForceReloadRebuildsFromStore(t *testing.T) {
	h := newHarness(t)
	h.install(camera, gallery)
	h.seed(testutil.AppItem(1, 0, camera))
	h.load()

	h.seed(testutil.AppItem(2, 1, gallery))
	require.NoError(t, h.m.ForceReload(h.ctx))
	h.settle()

	assert.Len(t, h.m.WorkspaceItems(), 2)
	assert.Len(t, h.cb.Of("BindAllApplications"), 2)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle_barrier", PhaseIdleBarrier.String())
	assert.Equal(t, "stopped", PhaseStopped.String())
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
