package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"dynaccess/internal/config"
	"dynaccess/internal/watcher"
	"dynaccess/pkg/dynaccess"
)

var (
	configPath    string
	mappingPath   string
	containerName string
)

// NewRootCommand creates the root command for dynaccess
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dynaccess",
		Short: "Keep IP-based access rules in sync with dynamic DNS",
		Long: `dynaccess resolves a tracked set of domains and reconciles their
current IPv4 addresses into the proxy manager's access-rule table,
updating a rule row only when the resolved address diverges from the
last observed one.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "Path to settings file")
	cmd.PersistentFlags().StringVarP(&mappingPath, "mapping", "m", "", "Override mapping file path")
	cmd.PersistentFlags().StringVar(&containerName, "container", "", "Override container name")

	cmd.AddCommand(newSyncCommand())
	cmd.AddCommand(newDaemonCommand())
	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newMigrateCommand())

	return cmd
}

// newSyncCommand creates the sync command, the cron entry point.
func newSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			summary, err := app.engine.Run(cmd.Context())
			if err != nil {
				return err
			}

			logSummary(summary)
			return nil
		},
	}
}

// newDaemonCommand creates the daemon command for hosts without cron.
func newDaemonCommand() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run a pass on an interval, re-running early on mapping edits",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			if interval <= 0 {
				interval = app.settings.Interval.Std()
			}

			return runDaemon(ctx, app, interval)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "Tick interval (default from settings)")

	return cmd
}

func runDaemon(ctx context.Context, app *app, interval time.Duration) error {
	// Our own end-of-pass save also touches the mapping file; the guard
	// keeps those writes from triggering another pass.
	guard := newContentGuard(app.settings.Mapping)

	trigger := make(chan struct{}, 1)
	w, err := watcher.NewWatcher(app.settings.Mapping, func() {
		if !guard.Changed() {
			return
		}
		select {
		case trigger <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer w.Close()

	runPass := func() {
		summary, err := app.engine.Run(ctx)
		if err != nil {
			// Fatal for the pass, not for the daemon; the next tick is
			// the retry.
			log.Error("pass failed", "error", err)
		} else {
			logSummary(summary)
		}
		guard.Reset()
	}

	log.Info("daemon starting", "interval", interval, "mapping", app.settings.Mapping)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.Run(ctx)
	})

	g.Go(func() error {
		runPass()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("daemon shutting down")
				return nil
			case <-ticker.C:
				runPass()
			case <-trigger:
				runPass()
			}
		}
	})

	return g.Wait()
}

// newShowCommand creates the show command
func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the settings and the current domain mapping",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}

			store := newMappingStore(settings)
			m, err := store.Load()
			if err != nil {
				return err
			}

			PrintSettings(settings)
			PrintMapping(m)
			return nil
		},
	}
}

// newMigrateCommand creates the migrate command with its up/down
// subcommands. The domain column migration is deliberately separate from
// the reconciliation pass, which never alters schema.
func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the domain column on the rule table",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Add the domain column if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.db.EnsureDomainColumn(); err != nil {
				return err
			}
			fmt.Println("✓ domain column present")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Drop the domain column",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.db.DropDomainColumn(); err != nil {
				return err
			}
			fmt.Println("✓ domain column removed")
			return nil
		},
	})

	return cmd
}

func logSummary(s dynaccess.Summary) {
	log.Info("pass complete",
		"domains", s.Total(),
		"updated", s.Updated,
		"unchanged", s.Unchanged,
		"learned", s.Learned,
		"restored", s.Restored,
		"resolve_failed", s.ResolveFailed,
		"rule_missing", s.RuleMissing,
		"update_failed", s.UpdateFailed,
	)
}
