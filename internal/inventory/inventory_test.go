package inventory

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/launcher/errors"
	"github.com/grovetools/launcher/pkg/models"
)

const cameraYAML = `package: com.example.camera
installed: 2024-03-01T10:00:00Z
activities:
  - class: .Camera
    label: Camera
    icon: icons/camera.png
  - class: com.example.camera.Video
    label: "  Video  "
`

const notesTOML = `package = "com.example.notes"
enabled = true

[[activities]]
class = ".Notes"
label = "Notes"
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseManifestYAML(t *testing.T) {
	m, err := ParseManifest("camera.yml", []byte(cameraYAML))
	require.NoError(t, err)
	assert.Equal(t, "com.example.camera", m.Package)
	assert.True(t, m.IsEnabled())

	entries := m.Entries("/inv")
	require.Len(t, entries, 2)
	assert.Equal(t, models.ComponentKey{Package: "com.example.camera", Class: "com.example.camera.Camera"}, entries[0].Component)
	assert.Equal(t, "/inv/icons/camera.png", entries[0].IconPath)
	assert.Equal(t, "Video", entries[1].Label)
	assert.Equal(t, 2024, entries[0].FirstInstallTime.Year())
}

func TestParseManifestTOML(t *testing.T) {
	m, err := ParseManifest("notes.toml", []byte(notesTOML))
	require.NoError(t, err)
	require.Len(t, m.Activities, 1)
	assert.Equal(t, "com.example.notes.Notes", m.Entries("")[0].Component.Class)
}

func TestParseManifestInvalid(t *testing.T) {
	_, err := ParseManifest("x.yml", []byte("activities: []\n"))
	assert.True(t, errors.Is(err, errors.ErrCodeManifest))

	_, err = ParseManifest("x.yml", []byte("package: a\nactivities:\n  - label: nope\n"))
	assert.True(t, errors.Is(err, errors.ErrCodeManifest))

	_, err = ParseManifest("x.toml", []byte("package = "))
	assert.True(t, errors.Is(err, errors.ErrCodeManifest))
}

func TestDirQueries(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, root, "camera.yml", cameraYAML)
	writeFile(t, root, "notes.toml", notesTOML)
	writeFile(t, root, "off.yaml", "package: com.example.off\nenabled: false\nactivities:\n  - class: .Main\n")
	writeFile(t, root, "broken.yml", "package: [\n")
	writeFile(t, root, "README.md", "not a manifest")

	d, err := NewDir(root, nil)
	require.NoError(t, err)

	all, err := d.QueryLaunchable(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "com.example.camera", all[0].Component.Package)
	assert.Equal(t, "com.example.notes", all[2].Component.Package)

	pkg, err := d.QueryPackage(ctx, "com.example.off")
	require.NoError(t, err)
	assert.Empty(t, pkg)

	enabled, err := d.IsPackageEnabled(ctx, "com.example.off")
	require.NoError(t, err)
	assert.False(t, enabled)

	enabled, err = d.IsPackageEnabled(ctx, "com.example.notes")
	require.NoError(t, err)
	assert.True(t, enabled)

	entry, ok, err := d.Resolve(ctx, models.ComponentKey{Package: "com.example.camera", Class: "com.example.camera.Video"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Video", entry.Label)

	_, ok, err = d.Resolve(ctx, models.ComponentKey{Package: "com.example.camera", Class: "com.example.camera.Camera2"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDirIgnorePatterns(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, root, "camera.yml", cameraYAML)
	writeFile(t, root, "notes.toml", notesTOML)

	d, err := NewDir(root, []string{"*.toml"})
	require.NoError(t, err)

	all, err := d.QueryLaunchable(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, d.Ignored(filepath.Join(root, "notes.toml")))
	assert.False(t, d.Ignored(filepath.Join(root, "camera.yml")))
}

func TestDirMissingRoot(t *testing.T) {
	d, err := NewDir(filepath.Join(t.TempDir(), "absent"), nil)
	require.NoError(t, err)
	all, err := d.QueryLaunchable(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestMemoryInventory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	cam := models.InventoryEntry{Component: models.ComponentKey{Package: "cam", Class: "cam.Camera"}, Label: "Camera"}
	m.Install(cam)

	all, err := m.QueryLaunchable(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// Reinstalling replaces the package's components.
	cam2 := models.InventoryEntry{Component: models.ComponentKey{Package: "cam", Class: "cam.Camera2"}, Label: "Camera2"}
	m.Install(cam2)
	_, ok, err := m.Resolve(ctx, cam.Component)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = m.Resolve(ctx, cam2.Component)
	require.NoError(t, err)
	assert.True(t, ok)

	m.SetEnabled("cam", false)
	enabled, err := m.IsPackageEnabled(ctx, "cam")
	require.NoError(t, err)
	assert.False(t, enabled)
	all, err = m.QueryLaunchable(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	m.Uninstall("cam")
	enabled, err = m.IsPackageEnabled(ctx, "cam")
	require.NoError(t, err)
	assert.False(t, enabled)
	assert.Equal(t, 2, m.Queries())
}

type eventLog struct {
	mu     sync.Mutex
	events []models.Event
}

func (l *eventLog) add(ev models.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) snapshot() []models.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Event(nil), l.events...)
}

func TestWatcherEmitsPackageEvents(t *testing.T) {
	root := t.TempDir()
	existing := writeFile(t, root, "notes.toml", notesTOML)

	d, err := NewDir(root, nil)
	require.NoError(t, err)
	log := &eventLog{}
	w, err := NewWatcher(d, 20, log.add)
	require.NoError(t, err)
	assert.Equal(t, "com.example.notes", w.Known()[existing])

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	path := writeFile(t, root, "camera.yml", cameraYAML)
	require.Eventually(t, func() bool { return len(log.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, models.Event{Type: models.EventPackageAdded, Package: "com.example.camera"}, log.snapshot()[0])

	writeFile(t, root, "camera.yml", cameraYAML+"  - class: .Pano\n")
	require.Eventually(t, func() bool { return len(log.snapshot()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, models.EventPackageChanged, log.snapshot()[1].Type)

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool { return len(log.snapshot()) == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, models.Event{Type: models.EventPackageRemoved, Package: "com.example.camera"}, log.snapshot()[2])
}
