package pathutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("LAUNCHER_TEST_DIR", "/srv/launcher")

	got, err := Expand("~/items.db")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "items.db"), got)

	got, err = Expand("$LAUNCHER_TEST_DIR/packages")
	require.NoError(t, err)
	assert.Equal(t, "/srv/launcher/packages", got)

	got, err = Expand("")
	require.NoError(t, err)
	assert.Empty(t, got)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	got, err = Expand("rel")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "rel"), got)
}

func TestExpandOr(t *testing.T) {
	assert.Equal(t, "/default", ExpandOr("", "/default"))
	assert.Equal(t, "/abs/x", ExpandOr("/abs/x", "/default"))
}
