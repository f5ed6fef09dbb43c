package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/grovetools/launcher/cli"
	"github.com/grovetools/launcher/config"
	"github.com/grovetools/launcher/internal/daemon/collector"
	"github.com/grovetools/launcher/internal/daemon/engine"
	"github.com/grovetools/launcher/internal/daemon/pidfile"
	"github.com/grovetools/launcher/internal/daemon/server"
	"github.com/grovetools/launcher/internal/daemon/store"
	"github.com/grovetools/launcher/internal/inventory"
	"github.com/grovetools/launcher/internal/itemstore"
	"github.com/grovetools/launcher/internal/launcher"
	"github.com/grovetools/launcher/logging"
	"github.com/grovetools/launcher/pkg/daemon"
	"github.com/grovetools/launcher/pkg/models"
	"github.com/grovetools/launcher/pkg/paths"
	"github.com/grovetools/launcher/pkg/profiling"
	"github.com/grovetools/launcher/state"
	"github.com/grovetools/launcher/version"
)

// NewDaemonCmd returns the launcherd command with subcommands.
func NewDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run and control the launcher daemon",
		Long:  "The daemon owns the launcher model and serves it over a unix socket.",
	}

	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())

	return cmd
}

// defaultRecords converts configured favorites into store rows.
func defaultRecords(items []config.DefaultItem) ([]models.PersistedItemRecord, error) {
	out := make([]models.PersistedItemRecord, 0, len(items))
	for i, d := range items {
		target, err := models.ParseLaunchTarget(d.Target)
		if err != nil {
			return nil, fmt.Errorf("defaults[%d]: %w", i, err)
		}
		item := &models.Item{
			ItemType:     models.ItemTypeApplication,
			Position:     d.Position,
			Title:        d.Title,
			IconResource: d.IconResource,
			Target:       target,
			Container:    -100,
		}
		if target == nil {
			item.ItemType = models.ItemTypeOther
		}
		out = append(out, item.ToRecord())
	}
	return out, nil
}

func newDaemonStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon",
		Long:  "Start the launcher daemon in foreground mode.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.GetOptions(cmd)
			cfg, err := cli.LoadConfig(opts)
			if err != nil {
				return err
			}
			logCfg, err := logging.FromConfig(cfg)
			if err != nil {
				return fmt.Errorf("invalid logging config: %w", err)
			}
			logging.Configure(logCfg.WithFileDefault())
			logger := cli.GetLogger(cmd, "launcherd")

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("failed to create launcher directories: %w", err)
			}
			p := resolvePaths(cfg, opts.ConfigFile)
			if err := os.MkdirAll(p.InventoryDir, 0o755); err != nil {
				return fmt.Errorf("failed to create inventory directory: %w", err)
			}

			// 1. Acquire lock
			if err := pidfile.Acquire(p.PidFile); err != nil {
				return err
			}
			defer func() {
				if err := pidfile.Release(p.PidFile); err != nil {
					logger.Errorf("Failed to release pidfile: %v", err)
				}
			}()

			// 2. Adapters and model
			span := profiling.Start("daemon.open_store")
			items, err := itemstore.OpenSQLite(p.Store)
			span.Stop()
			if err != nil {
				return err
			}
			defer items.Close()

			dir, err := inventory.NewDir(p.InventoryDir, cfg.Inventory.Ignore)
			if err != nil {
				return err
			}
			defaults, err := defaultRecords(cfg.Defaults)
			if err != nil {
				return err
			}

			span = profiling.Start("daemon.init_model")
			m, err := launcher.New(launcher.Options{
				Store:             items,
				Inventory:         dir,
				Prefs:             state.Open(""),
				Defaults:          defaults,
				Exclude:           cfg.Inventory.AppFilter,
				BindBatchSize:     cfg.Loader.BindBatchSize,
				IdleRecheck:       cfg.IdleRecheckInterval(),
				StrictConsistency: cfg.Loader.StrictConsistency,
				Locale:            cfg.Locale,
				Region:            cfg.Region,
				Logger:            logging.NewLogger("launcher"),
			})
			span.Stop()
			if err != nil {
				return err
			}
			m.Start()
			defer m.Close()

			// 3. Engine, bound view and collectors
			eng := engine.New(m, store.New(), logger)
			if cfg.Inventory.Watch == nil || *cfg.Inventory.Watch {
				eng.Register(collector.NewInventoryCollector(dir, cfg.Inventory.DebounceMs))
			}
			if cfg.Daemon.ConfigWatch == nil || *cfg.Daemon.ConfigWatch {
				eng.Register(collector.NewConfigCollector(p.ConfigDir, cfg.Daemon.ConfigDebounceMs, cfg, func() (*config.Config, error) {
					return cli.LoadConfig(opts)
				}))
			}

			// 4. Server
			startedAt := time.Now()
			srv := server.New(logger)
			srv.SetEngine(eng)
			srv.SetRunningConfig(&server.RunningConfig{
				Socket:            p.Socket,
				StorePath:         p.Store,
				InventoryDir:      p.InventoryDir,
				BindBatchSize:     cfg.Loader.BindBatchSize,
				IdleRecheck:       cfg.IdleRecheckInterval(),
				StrictConsistency: cfg.Loader.StrictConsistency,
				StartedAt:         startedAt,
			})

			// 5. Signals
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			engineDone := make(chan error, 1)
			go func() { engineDone <- eng.Start(ctx) }()

			serveErr := make(chan error, 1)
			go func() { serveErr <- srv.ListenAndServe(p.Socket) }()

			logger.WithFields(map[string]interface{}{
				"pid":     os.Getpid(),
				"version": version.GetInfo().Short(),
			}).Info("Starting daemon")

			var runErr error
			select {
			case <-ctx.Done():
				logger.Info("Received stop signal")
			case err := <-serveErr:
				if err != nil {
					runErr = fmt.Errorf("server error: %w", err)
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Errorf("Server shutdown error: %v", err)
			}
			stop()
			if err := <-engineDone; err != nil {
				logger.WithError(err).Error("Engine stopped with error")
			}
			return runErr
		},
	}
}

func newDaemonStopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			console := logging.NewConsole(cmd.OutOrStdout())
			pidPath := paths.PidFilePath()

			running, pid, err := pidfile.IsRunning(pidPath)
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			if !running {
				console.Warn("Daemon is not running")
				return nil
			}

			process, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("failed to find process %d: %w", pid, err)
			}
			if err := process.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("failed to send stop signal: %w", err)
			}

			timeout, _ := cmd.Flags().GetDuration("timeout")
			deadline := time.Now().Add(timeout)
			for time.Now().Before(deadline) {
				if !pidfile.IsAlive(pid) {
					console.Success(fmt.Sprintf("Stopped daemon (pid %d)", pid))
					return nil
				}
				time.Sleep(100 * time.Millisecond)
			}
			console.Warn(fmt.Sprintf("Sent SIGTERM to process %d; it is still shutting down", pid))
			return nil
		},
	}
	cmd.Flags().Duration("timeout", 5*time.Second, "How long to wait for the daemon to exit")
	return cmd
}

// daemonStatus is the --json output of daemon status.
type daemonStatus struct {
	Running bool                  `json:"running"`
	PID     int                   `json:"pid,omitempty"`
	Socket  string                `json:"socket"`
	State   *models.StateResponse `json:"state,omitempty"`
}

func newDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.GetOptions(cmd)
			cfg, err := cli.LoadConfig(opts)
			if err != nil {
				return err
			}
			running, pid, err := pidfile.IsRunning(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error: %w", err)
			}

			status := daemonStatus{Running: running, PID: pid, Socket: daemon.SocketPath(cfg)}
			if running {
				client := daemon.New(cfg)
				defer client.Close()
				ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
				defer cancel()
				if st, err := client.State(ctx); err == nil {
					status.State = st
				}
			}

			if opts.JSONOutput {
				if err := printJSON(cmd.OutOrStdout(), status); err != nil {
					return err
				}
			} else {
				printStatus(logging.NewConsole(cmd.OutOrStdout()), status)
			}
			if !running {
				// Non-zero for stopped state, useful for scripts.
				os.Exit(1)
			}
			return nil
		},
	}
}

func printStatus(console *logging.Console, s daemonStatus) {
	if !s.Running {
		console.Warn("Stopped")
		return
	}
	console.Success(fmt.Sprintf("Running (pid %d)", s.PID))
	console.Path("Socket", s.Socket)
	if s.State == nil {
		return
	}
	st := s.State
	console.Field("Loader", st.LoaderPhase)
	console.Field("Workspace", fmt.Sprintf("%d items (loaded: %t)", st.WorkspaceItems, st.WorkspaceLoaded))
	console.Field("All apps", fmt.Sprintf("%d (loaded: %t)", st.Apps, st.AllAppsLoaded))
	console.Field("Bound", fmt.Sprintf("%d items, %d apps", st.BoundItems, st.BoundApps))
	console.Field("Mismatches", st.Mismatches)
	console.Field("Locale", st.Locale)
	if st.Region != "" {
		console.Field("Region", st.Region)
	}
	console.Field("Uptime", time.Since(st.StartedAt).Round(time.Second))
}
