// Package paths resolves the launcher's on-disk locations.
//
// Resolution order:
// 1. LAUNCHER_HOME (portable root) → $LAUNCHER_HOME/{config,data,state,run}
// 2. XDG env vars → $XDG_*_HOME/launcher
// 3. Platform defaults → ~/.config/launcher, ~/.local/share/launcher, ~/.local/state/launcher
package paths

import (
	"os"
	"path/filepath"
)

const appName = "launcher"

// base resolves one XDG base directory, honoring LAUNCHER_HOME first.
func base(homeSub, xdgEnv string, fallback ...string) string {
	if home := os.Getenv("LAUNCHER_HOME"); home != "" {
		return filepath.Join(home, homeSub)
	}
	if dir := os.Getenv(xdgEnv); dir != "" {
		return filepath.Join(dir, appName)
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(append([]string{homeDir}, append(fallback, appName)...)...)
	}
	return ""
}

// ConfigDir holds launcher.yml / launcher.toml.
func ConfigDir() string {
	return base("config", "XDG_CONFIG_HOME", ".config")
}

// DataDir holds the item database and the default inventory directory.
func DataDir() string {
	return base("data", "XDG_DATA_HOME", ".local", "share")
}

// StateDir holds runtime state, logs and the pid file.
func StateDir() string {
	return base("state", "XDG_STATE_HOME", ".local", "state")
}

// RuntimeDir returns the directory for the daemon socket.
// Uses XDG_RUNTIME_DIR when available, falls back to StateDir.
func RuntimeDir() string {
	if home := os.Getenv("LAUNCHER_HOME"); home != "" {
		return filepath.Join(home, "run")
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return StateDir()
}

// StorePath returns the default location of the item database.
func StorePath() string {
	return filepath.Join(DataDir(), "items.db")
}

// InventoryDir returns the default directory scanned for package manifests.
func InventoryDir() string {
	return filepath.Join(DataDir(), "packages")
}

// LogDir returns the directory used by the file log sink.
func LogDir() string {
	return filepath.Join(StateDir(), "logs")
}

// SocketPath returns the path to the daemon unix socket.
func SocketPath() string {
	return filepath.Join(RuntimeDir(), "launcherd.sock")
}

// PidFilePath returns the path to the daemon PID file.
func PidFilePath() string {
	return filepath.Join(StateDir(), "launcherd.pid")
}

// EnsureDirs creates all launcher directories if they don't exist.
func EnsureDirs() error {
	for _, dir := range []string{ConfigDir(), DataDir(), StateDir(), RuntimeDir(), LogDir()} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
