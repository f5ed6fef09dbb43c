package launcher

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/launcher/pkg/models"
	"github.com/grovetools/launcher/testutil"
)

type appRow struct {
	Component string
	Title     string
}

func appRows(apps []*models.AppEntry) []appRow {
	rows := make([]appRow, 0, len(apps))
	for _, a := range apps {
		rows = append(rows, appRow{Component: a.Component.String(), Title: a.Title})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Component < rows[j].Component })
	return rows
}

func packageEntries(pkg, version string) []models.InventoryEntry {
	return []models.InventoryEntry{
		testutil.App(pkg, "Main", pkg+" "+version),
		testutil.App(pkg, "Settings", pkg+" settings "+version),
	}
}

func TestReconcileLastWriteWinsPerPackage(t *testing.T) {
	packages := []string{"com.a", "com.b", "com.c"}
	ops := []Op{OpAdd, OpUpdate, OpRemove, OpUnavailable}

	for seed := int64(1); seed <= 20; seed++ {
		t.Run(fmt.Sprintf("seed_%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(seed))
			full := newHarness(t)
			last := map[string]Op{}
			for _, pkg := range packages {
				full.install(packageEntries(pkg, "v0")...)
			}

			for step := 0; step < 30; step++ {
				pkg := packages[rng.Intn(len(packages))]
				op := ops[rng.Intn(len(ops))]
				// The inventory only changes right before an op on that package.
				full.install(packageEntries(pkg, fmt.Sprintf("v%d", step))...)
				require.NoError(t, full.m.EnqueuePackageUpdated(PackageUpdate{Op: op, Packages: []string{pkg}}))
				last[pkg] = op
			}
			full.settle()

			replay := newHarness(t)
			replay.inv.Memory = full.inv.Memory
			for _, pkg := range packages {
				op, ok := last[pkg]
				if !ok {
					continue
				}
				require.NoError(t, replay.m.EnqueuePackageUpdated(PackageUpdate{Op: op, Packages: []string{pkg}}))
			}
			replay.settle()

			assert.Equal(t, appRows(replay.m.AllApps()), appRows(full.m.AllApps()))
		})
	}
}

func TestReconcileAddTwiceRefreshes(t *testing.T) {
	h := newHarness(t)
	h.install(testutil.App("com.a", "Main", "Old"))
	require.NoError(t, h.m.EnqueuePackageUpdated(PackageUpdate{Op: OpAdd, Packages: []string{"com.a"}}))
	h.install(testutil.App("com.a", "Main", "New"))
	require.NoError(t, h.m.EnqueuePackageUpdated(PackageUpdate{Op: OpAdd, Packages: []string{"com.a"}}))
	h.settle()

	apps := h.m.AllApps()
	require.Len(t, apps, 1)
	assert.Equal(t, "New", apps[0].Title)
	assert.Len(t, h.cb.Of("BindAppsAdded"), 1)
	require.Len(t, h.cb.Of("BindAppsUpdated"), 1)
	assert.Equal(t, "New", h.cb.Of("BindAppsUpdated")[0].Apps[0].Title)
}

func TestReconcileConsumerReplacedMidTask(t *testing.T) {
	h := newHarness(t)
	h.install(camera)

	g := newGate()
	h.inv.beforeQueryPackage = g.hook
	require.NoError(t, h.m.EnqueuePackageUpdated(PackageUpdate{Op: OpAdd, Packages: []string{camera.Component.Package}}))

	<-g.entered
	replacement := &testutil.RecordingCallbacks{}
	h.m.Attach(replacement)
	close(g.release)
	h.settle()

	assert.Empty(t, h.cb.Calls())
	assert.Empty(t, replacement.Calls())
	assert.Equal(t, uint64(1), h.m.StaleDeliveries())
	assert.Len(t, h.m.AllApps(), 1, "the model is still reconciled")
}

func TestReconcileRetitlesPlacedItems(t *testing.T) {
	h := newHarness(t)
	h.install(camera, gallery)
	h.seed(testutil.AppItem(1, 0, camera), testutil.AppItem(2, 1, gallery))
	h.load()

	h.install(testutil.App("com.example.camera", "Camera", "Camera Pro"))
	require.NoError(t, h.m.EnqueuePackageUpdated(PackageUpdate{Op: OpUpdate, Packages: []string{camera.Component.Package}}))
	h.settle()

	item, ok := h.m.Item(1)
	require.True(t, ok)
	assert.Equal(t, "Camera Pro", item.Title)
	rec, ok := h.mem.Record(1)
	require.True(t, ok)
	assert.Equal(t, "Camera Pro", rec.Title)

	other, _ := h.m.Item(2)
	assert.Equal(t, "Gallery", other.Title)

	updated := h.cb.Of("BindAppsUpdated")
	require.Len(t, updated, 1)
	assert.Equal(t, "Camera Pro", updated[0].Apps[0].Title)
}

func TestReconcileUpdateDropsVanishedComponents(t *testing.T) {
	h := newHarness(t)
	primary := testutil.App("com.multi", "Main", "Multi")
	extra := testutil.App("com.multi", "Extra", "Extra")
	h.install(primary, extra)
	h.seed(testutil.AppItem(1, 0, primary), testutil.AppItem(2, 1, extra))
	h.load()

	h.install(primary)
	require.NoError(t, h.m.EnqueuePackageUpdated(PackageUpdate{Op: OpUpdate, Packages: []string{"com.multi"}}))
	h.settle()

	_, ok := h.m.Item(2)
	assert.False(t, ok)
	_, ok = h.m.Item(1)
	assert.True(t, ok)

	removed := h.cb.Of("BindComponentsRemoved")
	require.Len(t, removed, 1)
	assert.Equal(t, []string{"com.multi"}, removed[0].Packages)
	assert.False(t, removed[0].Permanent)
	require.Len(t, removed[0].Apps, 1)
	assert.Equal(t, extra.Component, removed[0].Apps[0].Component)
}

func TestReconcileRemoveDeletesItems(t *testing.T) {
	h := newHarness(t)
	h.install(camera, gallery)
	h.seed(testutil.AppItem(1, 0, camera), testutil.AppItem(2, 1, gallery))
	h.load()

	h.inv.Uninstall(camera.Component.Package)
	require.NoError(t, h.m.EnqueuePackageUpdated(PackageUpdate{Op: OpRemove, Packages: []string{camera.Component.Package}}))
	h.settle()

	_, ok := h.m.Item(1)
	assert.False(t, ok)
	_, ok = h.mem.Record(1)
	assert.False(t, ok)
	_, ok = h.mem.Record(2)
	assert.True(t, ok)

	removed := h.cb.Of("BindComponentsRemoved")
	require.Len(t, removed, 1)
	assert.Equal(t, []string{camera.Component.Package}, removed[0].Packages)
	assert.True(t, removed[0].Permanent)
	assert.False(t, h.m.apps.Contains(camera.Component))
}

func TestReconcileUnavailableIsNotPermanent(t *testing.T) {
	h := newHarness(t)
	h.install(camera, gallery)
	h.seed(testutil.AppItem(1, 0, camera))
	h.load()

	require.NoError(t, h.m.EnqueuePackageUpdated(PackageUpdate{Op: OpUnavailable, Packages: []string{camera.Component.Package}}))
	h.settle()

	removed := h.cb.Of("BindComponentsRemoved")
	require.Len(t, removed, 1)
	assert.Equal(t, []string{camera.Component.Package}, removed[0].Packages)
	assert.False(t, removed[0].Permanent)
	require.Len(t, removed[0].Apps, 1)
	assert.Equal(t, camera.Component, removed[0].Apps[0].Component)
	_, ok := h.m.Item(1)
	assert.False(t, ok)
}

func TestReconcileWithoutConsumerStillUpdatesStore(t *testing.T) {
	h := newHarness(t)
	h.install(camera)
	h.seed(testutil.AppItem(1, 0, camera))
	h.load()
	h.m.Detach()

	require.NoError(t, h.m.EnqueuePackageUpdated(PackageUpdate{Op: OpRemove, Packages: []string{camera.Component.Package}}))
	h.settle()

	_, ok := h.mem.Record(1)
	assert.False(t, ok)
	assert.Empty(t, h.cb.Of("BindComponentsRemoved"))
}

func TestFlushWorkerAfterAnyNumberOfTasks(t *testing.T) {
	for _, n := range []int{0, 1, 5} {
		t.Run(fmt.Sprintf("%d_tasks", n), func(t *testing.T) {
			h := newHarness(t)
			for i := 0; i < n; i++ {
				pkg := fmt.Sprintf("com.flush%d", i)
				h.install(testutil.App(pkg, "Main", pkg))
				require.NoError(t, h.m.EnqueuePackageUpdated(PackageUpdate{Op: OpAdd, Packages: []string{pkg}}))
			}
			require.NoError(t, h.m.FlushWorker(h.ctx))
			assert.Equal(t, n, h.m.apps.Len())
		})
	}
}

func TestFlushWorkerFromWorkerRunsInline(t *testing.T) {
	h := newHarness(t)
	h.install(camera, gallery)

	var seen int
	require.NoError(t, h.m.onWorker(h.ctx, func(ctx context.Context) error {
		for _, pkg := range []string{camera.Component.Package, gallery.Component.Package} {
			if err := h.m.EnqueuePackageUpdated(PackageUpdate{Op: OpAdd, Packages: []string{pkg}}); err != nil {
				return err
			}
		}
		if err := h.m.FlushWorker(ctx); err != nil {
			return err
		}
		seen = h.m.apps.Len()
		return nil
	}))
	assert.Equal(t, 2, seen)
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "unavailable", OpUnavailable.String())
	assert.Equal(t, "op(9)", Op(9).String())
}
