package daemon

import (
	"net"
	"os"
	"time"

	"github.com/grovetools/launcher/config"
	"github.com/grovetools/launcher/pkg/paths"
	"github.com/grovetools/launcher/util/pathutil"
)

// SocketPath returns the daemon socket configured in cfg, or the default.
func SocketPath(cfg *config.Config) string {
	if cfg == nil {
		return paths.SocketPath()
	}
	return pathutil.ExpandOr(cfg.Daemon.Socket, paths.SocketPath())
}

// New returns a Client that will use the daemon if available,
// otherwise falls back to LocalClient.
//
// Callers don't need to know whether the daemon is running: reads and item
// edits work in both modes, event delivery needs the daemon.
func New(cfg *config.Config) Client {
	socketPath := SocketPath(cfg)
	if _, err := os.Stat(socketPath); err == nil {
		conn, err := net.DialTimeout("unix", socketPath, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			if client, err := NewRemoteClient(socketPath); err == nil {
				return client
			}
		}
	}
	return NewLocalClient(cfg)
}
