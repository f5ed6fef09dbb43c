package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grovetools/launcher/cli"
	"github.com/grovetools/launcher/logging"
	"github.com/grovetools/launcher/pkg/profiling"
)

// NewAppsCmd lists the all-apps list.
func NewAppsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apps",
		Short: "Show the all-apps list",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List launchable apps in title order",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			span := profiling.Start("client.apps")
			apps, err := client.Apps(cmd.Context())
			span.Stop()
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(cmd.OutOrStdout(), apps)
			}
			if len(apps) == 0 {
				logging.NewConsole(cmd.OutOrStdout()).Warn("No launchable apps")
				return nil
			}
			rows := make([][]string, 0, len(apps))
			for _, a := range apps {
				rows = append(rows, []string{a.Title, a.Component.String()})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"TITLE", "COMPONENT"}, rows))
			return nil
		},
	})
	return cmd
}
