package cmd

import (
	"github.com/spf13/cobra"

	"github.com/grovetools/launcher/cli"
	"github.com/grovetools/launcher/logging"
)

// NewPathsCmd prints where the launcher keeps its files.
func NewPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the paths used by the launcher",
		Long: `Print the paths used by the launcher after config overrides.

LAUNCHER_HOME relocates everything under one root; otherwise the XDG
base directories are used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.GetOptions(cmd)
			cfg, err := cli.LoadConfig(opts)
			if err != nil {
				return err
			}
			p := resolvePaths(cfg, opts.ConfigFile)
			if opts.JSONOutput {
				return printJSON(cmd.OutOrStdout(), p)
			}
			console := logging.NewConsole(cmd.OutOrStdout())
			console.Path("Config dir", p.ConfigDir)
			console.Path("Store", p.Store)
			console.Path("Inventory", p.InventoryDir)
			console.Path("Socket", p.Socket)
			console.Path("Pid file", p.PidFile)
			console.Path("Logs", p.LogDir)
			console.Path("State", p.StateDir)
			return nil
		},
	}
}
