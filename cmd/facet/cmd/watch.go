package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/facetdb/facet/internal/config"
	"github.com/facetdb/facet/internal/daemon"
	"github.com/facetdb/facet/internal/engine"
	"github.com/facetdb/facet/internal/logging"
	"github.com/facetdb/facet/internal/output"
	"github.com/facetdb/facet/internal/scanner"
	"github.com/facetdb/facet/internal/telemetry"
	"github.com/facetdb/facet/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Watch a project tree and keep its indexes current",
		Long: `Run the watch pipeline in the foreground: the filesystem watcher
feeds changes into the engine, and the control socket answers queries
with indexes brought current on demand.

This is the foreground variant of 'facet daemon start'. Press Ctrl+C
to stop.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runWatch(cmd.Context(), cmd, path, true)
		},
	}

	return cmd
}

// runWatch runs the watch pipeline until the context is cancelled.
// verbose controls whether startup chatter goes to stdout; the
// background daemon runs with it off.
func runWatch(ctx context.Context, cmd *cobra.Command, path string, verbose bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, err := projectRoot(path)
	if err != nil {
		return err
	}
	cfg := loadConfig(root)

	cleanup, err := logging.SetupDaemonModeWithLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to setup daemon logging: %w", err)
	}
	defer cleanup()
	log := slog.Default()

	dcfg := daemonConfigFor(cfg, root)

	if verbose {
		out := output.New(cmd.OutOrStdout())
		out.Status("", "Starting watch pipeline...")
		out.Statusf("", "Project: %s", root)
		out.Statusf("", "Socket:  %s", dcfg.SocketPath)
		out.Statusf("", "Logs:    %s", logging.DaemonLogPath())
		out.Status("", "Press Ctrl+C to stop")
		out.Newline()
	}

	var engOpts []engine.Option
	if cfg.Metrics.Enabled {
		engOpts = append(engOpts, engine.WithMetrics())
		metrics := telemetry.NewServer(cfg.Metrics.Addr, log)
		metrics.Start()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metrics.Stop(shutCtx)
		}()
	}

	eng, err := openEngine(cfg, root, log, engOpts...)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	// Catch up with whatever changed while the daemon was down.
	if cfg.Indexing.ReconcileOnStart {
		if err := reconcileTree(ctx, eng, cfg, root); err != nil {
			log.Warn("startup reconciliation failed", slog.String("error", err.Error()))
		}
	}

	var w *watcher.HybridWatcher
	if cfg.Watcher.Enabled {
		w, err = watcher.NewHybridWatcher(watcher.Options{
			DebounceWindow: cfg.WatchDebounceDuration(),
			MaxWatchedDirs: cfg.Watcher.MaxWatchedDirs,
			Logger:         log,
		}.WithDefaults())
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
	} else {
		log.Warn("filesystem watching disabled by config, serving queries only")
	}

	d, err := daemon.NewDaemon(dcfg, root, eng, w, log)
	if err != nil {
		return err
	}

	err = d.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// reconcileTree walks the tree and feeds it into engine reconciliation.
func reconcileTree(ctx context.Context, eng *engine.Engine, cfg *config.Config, root string) error {
	sc, err := scanner.New()
	if err != nil {
		return err
	}
	paths, err := sc.Paths(ctx, scanner.Options{
		Root:             root,
		IncludePatterns:  cfg.Paths.Include,
		ExcludePatterns:  cfg.Paths.Exclude,
		MaxFileSize:      cfg.MaxFileSize(),
		RespectGitignore: true,
	})
	if err != nil {
		return err
	}
	stats, err := eng.Reconcile(ctx, paths)
	if err != nil {
		return err
	}
	slog.Info("startup reconciliation complete",
		slog.Int("files", len(paths)),
		slog.Int("added", stats.Added),
		slog.Int("modified", stats.Modified),
		slog.Int("deleted", stats.Deleted))
	return nil
}
