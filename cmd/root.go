// Package cmd implements the launcher command line: the daemon itself and
// the client commands that talk to it.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/grovetools/launcher/cli"
	"github.com/grovetools/launcher/config"
	"github.com/grovetools/launcher/pkg/daemon"
	"github.com/grovetools/launcher/pkg/paths"
	"github.com/grovetools/launcher/pkg/profiling"
	"github.com/grovetools/launcher/util/pathutil"
)

// NewRootCmd builds the launcher command tree.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand("launcher", "Launcher model daemon and client")
	root.Long = `Keeps the launcher's workspace and all-apps list in sync with the
installed packages. The daemon owns the model; the other commands talk to it
over its socket, falling back to the item store when it is not running.`

	root.AddCommand(NewDaemonCmd())
	root.AddCommand(NewItemsCmd())
	root.AddCommand(NewAppsCmd())
	root.AddCommand(NewEventsCmd())
	root.AddCommand(NewReloadCmd())
	root.AddCommand(NewWatchCmd())
	root.AddCommand(NewLogsCmd())
	root.AddCommand(NewConfigCmd())
	root.AddCommand(NewPathsCmd())
	root.AddCommand(cli.NewVersionCommand("launcher"))

	profiling.NewCobraProfiler().Attach(root)

	cli.ApplyStyledHelpRecursive(root)
	return root
}

// Execute runs the command tree and renders any error.
func Execute() int {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		verbose, _ := root.PersistentFlags().GetBool("verbose")
		_ = cli.NewErrorHandler(verbose).Handle(err)
		return 1
	}
	return 0
}

// newClient loads the config and connects to the daemon, or to the local
// fallback when it is not running.
func newClient(cmd *cobra.Command) (daemon.Client, *config.Config, error) {
	cfg, err := cli.LoadConfig(cli.GetOptions(cmd))
	if err != nil {
		return nil, nil, err
	}
	return daemon.New(cfg), cfg, nil
}

// resolvedPaths holds the on-disk locations after config overrides.
type resolvedPaths struct {
	ConfigDir    string `json:"config_dir"`
	DataDir      string `json:"data_dir"`
	StateDir     string `json:"state_dir"`
	Store        string `json:"store"`
	InventoryDir string `json:"inventory_dir"`
	Socket       string `json:"socket"`
	PidFile      string `json:"pid_file"`
	LogDir       string `json:"log_dir"`
}

func resolvePaths(cfg *config.Config, configFile string) resolvedPaths {
	p := resolvedPaths{
		ConfigDir:    paths.ConfigDir(),
		DataDir:      paths.DataDir(),
		StateDir:     paths.StateDir(),
		Store:        paths.StorePath(),
		InventoryDir: paths.InventoryDir(),
		Socket:       daemon.SocketPath(cfg),
		PidFile:      paths.PidFilePath(),
		LogDir:       paths.LogDir(),
	}
	if configFile != "" {
		p.ConfigDir = filepath.Dir(configFile)
	} else if cwd, err := os.Getwd(); err == nil {
		if found, err := config.FindConfigFile(cwd); err == nil {
			p.ConfigDir = filepath.Dir(found)
		}
	}
	p.Store = pathutil.ExpandOr(cfg.Store.Path, p.Store)
	p.InventoryDir = pathutil.ExpandOr(cfg.Inventory.Dir, p.InventoryDir)
	return p
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}
