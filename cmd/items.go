package cmd

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/grovetools/launcher/cli"
	"github.com/grovetools/launcher/errors"
	"github.com/grovetools/launcher/logging"
	"github.com/grovetools/launcher/pkg/profiling"
	"github.com/grovetools/launcher/pkg/models"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Render()
}

// NewItemsCmd manages the placed workspace items.
func NewItemsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "List and edit placed workspace items",
	}
	cmd.AddCommand(newItemsListCmd())
	cmd.AddCommand(newItemsAddCmd())
	cmd.AddCommand(newItemsMoveCmd())
	cmd.AddCommand(newItemsRemoveCmd())
	return cmd
}

func newItemsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workspace items in position order",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			span := profiling.Start("client.workspace")
			items, err := client.Workspace(cmd.Context())
			span.Stop()
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(cmd.OutOrStdout(), items)
			}
			if len(items) == 0 {
				logging.NewConsole(cmd.OutOrStdout()).Warn("No items placed")
				return nil
			}
			rows := make([][]string, 0, len(items))
			for _, it := range items {
				rows = append(rows, []string{
					strconv.FormatInt(it.ID, 10),
					strconv.Itoa(it.Position),
					it.Title,
					it.Target.String(),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "POS", "TITLE", "TARGET"}, rows))
			return nil
		},
	}
}

func newItemsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <title> <target>",
		Short: "Place a new item",
		Long: `Place a new item on the workspace.

Examples:
  # Place the camera app at position 2
  launcher items add Camera "launch:main?component=com.example.camera/.Camera&category=launcher" --position 2

  # Place the browser shortcut
  launcher items add Browser "*BROWSER*" --other`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, _ := cmd.Flags().GetInt("position")
			other, _ := cmd.Flags().GetBool("other")
			req := models.AddItemRequest{Title: args[0], Target: args[1], Position: position}
			if other {
				req.ItemType = models.ItemTypeOther
			}

			client, _, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			item, err := client.AddItem(cmd.Context(), req)
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(cmd.OutOrStdout(), item)
			}
			logging.NewConsole(cmd.OutOrStdout()).Success(fmt.Sprintf("Added item %d (%s)", item.ID, item.Title))
			return nil
		},
	}
	cmd.Flags().Int("position", 0, "Workspace position")
	cmd.Flags().Bool("other", false, "Place a non-application item")
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("invalid item id %q", s))
	}
	return id, nil
}

func newItemsMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <position>",
		Short: "Change an item's position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			position, err := strconv.Atoi(args[1])
			if err != nil {
				return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("invalid position %q", args[1]))
			}

			client, _, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			item, err := client.MoveItem(cmd.Context(), id, position)
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(cmd.OutOrStdout(), item)
			}
			logging.NewConsole(cmd.OutOrStdout()).Success(fmt.Sprintf("Moved item %d to position %d", item.ID, item.Position))
			return nil
		},
	}
}

func newItemsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>...",
		Aliases: []string{"rm"},
		Short:   "Remove placed items",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			console := logging.NewConsole(cmd.OutOrStdout())
			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				if err := client.DeleteItem(cmd.Context(), id); err != nil {
					return err
				}
				console.Success(fmt.Sprintf("Removed item %d", id))
			}
			return nil
		},
	}
}
