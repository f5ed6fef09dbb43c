package launcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/grovetools/launcher/internal/inventory"
	"github.com/grovetools/launcher/internal/itemstore"
	"github.com/grovetools/launcher/pkg/models"
	"github.com/grovetools/launcher/testutil"
)

var (
	camera  = testutil.App("com.example.camera", "Camera", "Camera")
	gallery = testutil.App("com.example.gallery", "Gallery", "Gallery")
	notes   = testutil.App("com.example.notes", "Notes", "Notes")
)

// hookedInventory runs optional hooks before delegating to a Memory inventory.
type hookedInventory struct {
	*inventory.Memory
	beforeEnabled      func()
	beforeQueryPackage func()
}

func (h *hookedInventory) IsPackageEnabled(ctx context.Context, pkg string) (bool, error) {
	if h.beforeEnabled != nil {
		h.beforeEnabled()
	}
	return h.Memory.IsPackageEnabled(ctx, pkg)
}

func (h *hookedInventory) QueryPackage(ctx context.Context, pkg string) ([]models.InventoryEntry, error) {
	if h.beforeQueryPackage != nil {
		h.beforeQueryPackage()
	}
	return h.Memory.QueryPackage(ctx, pkg)
}

// gate blocks the first caller until released and reports when it entered.
type gate struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gate) hook() {
	first := false
	g.once.Do(func() {
		first = true
		close(g.entered)
	})
	if first {
		<-g.release
	}
}

type memPrefs struct {
	mu     sync.Mutex
	values map[string]interface{}
}

func (p *memPrefs) GetString(key string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, _ := p.values[key].(string)
	return s, nil
}

func (p *memPrefs) Set(key string, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.values == nil {
		p.values = map[string]interface{}{}
	}
	p.values[key] = value
	return nil
}

type harness struct {
	t     *testing.T
	ctx   context.Context
	store itemstore.Store
	mem   *itemstore.Memory
	inv   *hookedInventory
	prefs *memPrefs
	m     *Model
	cb    *testutil.RecordingCallbacks
}

type harnessOption func(*harness, *Options)

func withStore(s itemstore.Store) harnessOption {
	return func(h *harness, o *Options) { h.store, h.mem, o.Store = s, nil, s }
}

func withOptions(fn func(*Options)) harnessOption {
	return func(_ *harness, o *Options) { fn(o) }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	mem := itemstore.NewMemory()
	h := &harness{
		t:     t,
		ctx:   testutil.Context(t, 10*time.Second),
		store: mem,
		mem:   mem,
		inv:   &hookedInventory{Memory: inventory.NewMemory()},
		prefs: &memPrefs{},
		cb:    &testutil.RecordingCallbacks{},
	}
	o := Options{
		Store:       mem,
		Prefs:       h.prefs,
		IdleRecheck: 10 * time.Millisecond,
		Locale:      "en",
		Logger:      testutil.QuietLogger(),
	}
	for _, opt := range opts {
		opt(h, &o)
	}
	o.Inventory = h.inv

	m, err := New(o)
	require.NoError(t, err)
	m.Start()
	t.Cleanup(m.Close)
	h.m = m
	m.Attach(h.cb)
	return h
}

// settle waits for the worker and then runs every pending UI delivery.
func (h *harness) settle() {
	h.t.Helper()
	require.NoError(h.t, h.m.FlushWorker(h.ctx))
	h.m.UI().Flush(h.ctx)
}

// load runs a full load to completion.
func (h *harness) load() {
	h.t.Helper()
	require.NoError(h.t, h.m.StartLoader(h.ctx, true))
	h.settle()
}

func (h *harness) seed(items ...*models.Item) {
	for _, item := range items {
		_, err := h.store.Insert(h.ctx, item.ToRecord())
		require.NoError(h.t, err)
	}
}

func (h *harness) install(entries ...models.InventoryEntry) {
	h.inv.Install(entries...)
}
