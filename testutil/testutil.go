// Package testutil holds helpers shared by the launcher's tests.
package testutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/launcher/pkg/models"
)

// Context returns a context cancelled at the end of the test or after timeout.
func Context(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// QuietLogger discards everything below panic level.
func QuietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

// RandomString returns a hex string of length characters.
func RandomString(length int) string {
	b := make([]byte, (length+1)/2)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)[:length]
}

// WriteFile writes content under dir, creating parent directories.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// App builds an inventory entry for pkg/pkg.class.
func App(pkg, class, label string) models.InventoryEntry {
	return models.InventoryEntry{
		Component: models.ComponentKey{Package: pkg, Class: pkg + "." + class},
		Label:     label,
	}
}

// AppItem builds an application item launching the entry's component.
func AppItem(id int64, position int, entry models.InventoryEntry) *models.Item {
	return &models.Item{
		ID:        id,
		ItemType:  models.ItemTypeApplication,
		Position:  position,
		Title:     entry.Label,
		Target:    models.MainTarget(entry.Component),
		Container: -100,
	}
}
