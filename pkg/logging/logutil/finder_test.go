package logutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path, content string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestFindLogFilePrefersActiveFile(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	active := filepath.Join(dir, "launcher.log")
	write(t, active, "line\n", now.Add(-time.Hour))
	write(t, filepath.Join(dir, "launcher-2024-01-01T00-00-00.000.log"), "old\n", now)

	got, err := FindLogFile(active)
	require.NoError(t, err)
	assert.Equal(t, active, got)
}

func TestFindLogFileFallsBackToNewestBackup(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	active := filepath.Join(dir, "launcher.log")
	write(t, active, "", now)
	older := filepath.Join(dir, "launcher-2024-01-01T00-00-00.000.log")
	newer := filepath.Join(dir, "launcher-2024-02-01T00-00-00.000.log")
	write(t, older, "a\n", now.Add(-2*time.Hour))
	write(t, newer, "b\n", now.Add(-time.Hour))
	write(t, filepath.Join(dir, "other.log"), "c\n", now)

	got, err := FindLogFile(active)
	require.NoError(t, err)
	assert.Equal(t, newer, got)
}

func TestFindLogFileMissing(t *testing.T) {
	_, err := FindLogFile(filepath.Join(t.TempDir(), "launcher.log"))
	assert.Error(t, err)
}
