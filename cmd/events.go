package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/grovetools/launcher/cli"
	"github.com/grovetools/launcher/errors"
	"github.com/grovetools/launcher/logging"
	"github.com/grovetools/launcher/pkg/models"
)

var eventTypes = []models.EventType{
	models.EventPackageAdded,
	models.EventPackageChanged,
	models.EventPackageRemoved,
	models.EventExternalAppsAvailable,
	models.EventExternalAppsUnavailable,
	models.EventLocaleChanged,
	models.EventConfigurationChanged,
	models.EventSearchablesChanged,
}

// NewEventsCmd delivers inbound notifications to the daemon by hand.
func NewEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Send package and environment events to the daemon",
	}
	cmd.AddCommand(newEventsSendCmd())
	return cmd
}

// buildEvent assembles an event from the command line and validates it.
func buildEvent(cmd *cobra.Command, typ string) (models.Event, error) {
	ev := models.Event{Type: models.EventType(typ)}
	ev.Package, _ = cmd.Flags().GetString("package")
	ev.Packages, _ = cmd.Flags().GetStringSlice("packages")
	ev.Replacing, _ = cmd.Flags().GetBool("replacing")
	ev.Locale, _ = cmd.Flags().GetString("locale")
	ev.Region, _ = cmd.Flags().GetString("region")
	if err := ev.Validate(); err != nil {
		return ev, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid event")
	}
	return ev, nil
}

func newEventsSendCmd() *cobra.Command {
	names := make([]string, len(eventTypes))
	for i, t := range eventTypes {
		names[i] = string(t)
	}
	cmd := &cobra.Command{
		Use:       "send <type>",
		Short:     "Send one event",
		ValidArgs: names,
		Long: `Send one event to the daemon. Types: ` + strings.Join(names, ", ") + `.

Examples:
  # A package was installed
  launcher events send package_added --package com.example.camera

  # Half of an in-place upgrade
  launcher events send package_removed --package com.example.camera --replacing

  # An SD card with apps went away
  launcher events send external_apps_unavailable --packages com.a,com.b`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := buildEvent(cmd, args[0])
			if err != nil {
				return err
			}

			client, _, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.SendEvent(cmd.Context(), ev); err != nil {
				return err
			}
			logging.NewConsole(cmd.OutOrStdout()).Success(fmt.Sprintf("Sent %s", ev.Type))
			return nil
		},
	}
	cmd.Flags().String("package", "", "Package name for the single-package events")
	cmd.Flags().StringSlice("packages", nil, "Package names for the external-apps events")
	cmd.Flags().Bool("replacing", false, "Mark the add or remove as half of an upgrade")
	cmd.Flags().String("locale", "", "New locale for locale_changed")
	cmd.Flags().String("region", "", "New region for configuration_changed")
	return cmd
}

// NewReloadCmd forces the daemon to drop its caches and reload.
func NewReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Force the daemon to reload the workspace and all-apps list",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Reload(cmd.Context()); err != nil {
				return err
			}
			logging.NewConsole(cmd.OutOrStdout()).Success("Reload started")
			return nil
		},
	}
}

// NewWatchCmd streams bound-view updates until interrupted.
func NewWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream bound-view updates from the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			updates, err := client.StreamState(ctx)
			if err != nil {
				return err
			}

			jsonOut := cli.GetOptions(cmd).JSONOutput
			console := logging.NewConsole(cmd.OutOrStdout())
			for u := range updates {
				if jsonOut {
					data, _ := json.Marshal(u)
					fmt.Fprintln(cmd.OutOrStdout(), string(data))
					continue
				}
				line := u.At.Format("15:04:05") + " " + u.UpdateType
				if u.Source != "" {
					line += " source=" + u.Source
				}
				if u.Count > 0 {
					line += fmt.Sprintf(" count=%d", u.Count)
				}
				console.Line("%s", line)
			}
			if ctx.Err() != nil && ctx.Err() != context.Canceled {
				return ctx.Err()
			}
			return nil
		},
	}
}
