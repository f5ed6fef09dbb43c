package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/launcher/errors"
	"github.com/grovetools/launcher/internal/daemon/engine"
	"github.com/grovetools/launcher/internal/daemon/store"
	"github.com/grovetools/launcher/internal/inventory"
	"github.com/grovetools/launcher/internal/itemstore"
	"github.com/grovetools/launcher/internal/launcher"
	"github.com/grovetools/launcher/pkg/models"
	"github.com/grovetools/launcher/testutil"
)

var (
	camera  = testutil.App("com.example.camera", "Camera", "Camera")
	gallery = testutil.App("com.example.gallery", "Gallery", "Gallery")
)

type fixture struct {
	eng   *engine.Engine
	items *itemstore.Memory
	inv   *inventory.Memory
	srv   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	inv := inventory.NewMemory()
	inv.Install(camera, gallery)
	items := itemstore.NewMemory()
	items.Seed(testutil.AppItem(1, 0, camera).ToRecord())

	m, err := launcher.New(launcher.Options{
		Store:       items,
		Inventory:   inv,
		IdleRecheck: 10 * time.Millisecond,
		Logger:      testutil.QuietLogger(),
	})
	require.NoError(t, err)
	m.Start()
	t.Cleanup(m.Close)

	eng := engine.New(m, store.New(), testutil.QuietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = eng.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.Eventually(t, func() bool {
		return len(eng.Store().Apps()) == 2 && len(eng.Store().Items()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	s := New(testutil.QuietLogger())
	s.SetEngine(eng)
	s.SetRunningConfig(&RunningConfig{Socket: "test.sock", BindBatchSize: 6})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &fixture{eng: eng, items: items, inv: inv, srv: srv}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealthAndRequestID(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
	assert.NotEmpty(t, resp.Header.Get("X-Launcher-Version"))
}

func TestStateWorkspaceAndApps(t *testing.T) {
	f := newFixture(t)

	var state models.StateResponse
	decode(t, f.do(t, http.MethodGet, "/api/state", nil), &state)
	assert.True(t, state.WorkspaceLoaded)
	assert.Equal(t, 1, state.BoundItems)
	assert.Equal(t, 2, state.BoundApps)

	var items []*models.Item
	decode(t, f.do(t, http.MethodGet, "/api/workspace", nil), &items)
	require.Len(t, items, 1)
	assert.Equal(t, "Camera", items[0].Title)
	require.NotNil(t, items[0].Target)
	assert.Equal(t, camera.Component, *items[0].Target.Component)

	var apps []*models.AppEntry
	decode(t, f.do(t, http.MethodGet, "/api/apps", nil), &apps)
	assert.Len(t, apps, 2)

	var cfg RunningConfig
	decode(t, f.do(t, http.MethodGet, "/api/config", nil), &cfg)
	assert.Equal(t, "test.sock", cfg.Socket)
}

func TestItemLifecycle(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/items", models.AddItemRequest{
		Title:    "Gallery",
		Target:   models.MainTarget(gallery.Component).String(),
		Position: 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var added models.Item
	decode(t, resp, &added)
	assert.Equal(t, int64(2), added.ID)

	resp = f.do(t, http.MethodPatch, "/api/items/2", models.MoveItemRequest{Position: 5})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rec, ok := f.items.Record(2)
	require.True(t, ok)
	assert.Equal(t, 5, rec.Position)

	resp = f.do(t, http.MethodDelete, "/api/items/2", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, ok = f.items.Record(2)
	assert.False(t, ok)

	resp = f.do(t, http.MethodDelete, "/api/items/2", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var lerr errors.LauncherError
	decode(t, resp, &lerr)
	assert.Equal(t, errors.ErrCodeItemNotFound, lerr.Code)
}

func TestAddItemRejectsBadTarget(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/api/items", models.AddItemRequest{Title: "x", Target: "http://example.com"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPatch, "/api/items/abc", models.MoveItemRequest{Position: 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEvents(t *testing.T) {
	f := newFixture(t)

	f.inv.Uninstall(gallery.Component.Package)
	resp := f.do(t, http.MethodPost, "/api/events", models.Event{Type: models.EventPackageRemoved, Package: gallery.Component.Package})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Eventually(t, func() bool { return len(f.eng.Store().Apps()) == 1 }, 5*time.Second, 10*time.Millisecond)

	resp = f.do(t, http.MethodPost, "/api/events", models.Event{Type: "bogus"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReload(t *testing.T) {
	f := newFixture(t)
	f.items.Seed(testutil.AppItem(2, 1, gallery).ToRecord())

	resp := f.do(t, http.MethodPost, "/api/reload", nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Eventually(t, func() bool { return len(f.eng.Store().Items()) == 2 }, 5*time.Second, 10*time.Millisecond)
}

func TestStreamSendsInitialView(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.srv.URL+"/api/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var u store.Update
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &u))
		assert.Equal(t, store.UpdateInitial, u.Type)
		assert.Equal(t, 1, u.Count)
		return
	}
	t.Fatal("stream ended without data")
}

func TestWebsocketStreamsUpdates(t *testing.T) {
	f := newFixture(t)
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first store.Update
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, store.UpdateInitial, first.Type)

	f.do(t, http.MethodPost, "/api/events", models.Event{Type: models.EventSearchablesChanged})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var u store.Update
		require.NoError(t, conn.ReadJSON(&u))
		if u.Type == store.UpdateSearchables {
			return
		}
	}
}
