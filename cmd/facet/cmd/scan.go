package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/facetdb/facet/internal/config"
	"github.com/facetdb/facet/internal/preflight"
	"github.com/facetdb/facet/internal/scanner"
	"github.com/facetdb/facet/internal/storage"
	"github.com/facetdb/facet/internal/ui"
	"github.com/facetdb/facet/internal/vfs"
)

type scanOptions struct {
	plain     bool
	force     bool
	skipCheck bool
}

func newScanCmd() *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Scan a project tree and bring every index up to date",
		Long: `Walk the project tree, reconcile it against the persisted index
state, and re-extract whatever changed while facet was not running.

New files are indexed, deleted files drop out of every index, and files
whose content moved since the recorded stamps are re-extracted. Files
already up to date are skipped.

Use --force to discard all persisted index data and rebuild from
scratch.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runScan(cmd.Context(), cmd, path, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Disable TUI mode, use plain text output")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Rebuild every index from scratch")
	cmd.Flags().BoolVar(&opts.skipCheck, "skip-check", false, "Skip pre-flight system checks")

	return cmd
}

func runScan(ctx context.Context, cmd *cobra.Command, path string, opts scanOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cleanup := setupCLILogging()
	defer cleanup()

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to access path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	root, err := projectRoot(path)
	if err != nil {
		return err
	}
	dataDir := config.DataDir(root)

	if !opts.skipCheck && preflight.NeedsCheck(dataDir) {
		checker := preflight.New(preflight.WithOutput(io.Discard))
		results := checker.RunAll(ctx, root)
		if checker.HasCriticalFailures(results) {
			return fmt.Errorf("system check failed, run 'facet check' for details")
		}
		if err := preflight.MarkPassed(dataDir); err != nil {
			slog.Debug("cannot mark preflight as passed", slog.String("error", err.Error()))
		}
	}

	// --force plants the corruption sentinel so engine startup treats
	// every index as requiring a rebuild.
	if opts.force {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		if err := storage.WriteCorruptionMarker(dataDir); err != nil {
			return fmt.Errorf("failed to request rebuild: %w", err)
		}
		slog.Info("forced rebuild requested", slog.String("data_dir", dataDir))
	}

	cfg := loadConfig(root)

	uiCfg := ui.NewConfig(cmd.OutOrStdout(), ui.WithForcePlain(opts.plain), ui.WithProjectDir(root))
	renderer := ui.NewRenderer(uiCfg)
	if err := renderer.Start(ctx); err != nil {
		slog.Warn("failed to start progress renderer", slog.String("error", err.Error()))
	}
	defer func() { _ = renderer.Stop() }()

	started := time.Now()

	eng, err := openEngine(cfg, root, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	// Stage 1: walk the tree.
	scanStart := time.Now()
	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageScanning, Message: "Walking project tree..."})

	sc, err := scanner.New()
	if err != nil {
		return err
	}
	stream, err := sc.Scan(ctx, scanner.Options{
		Root:             root,
		IncludePatterns:  cfg.Paths.Include,
		ExcludePatterns:  cfg.Paths.Exclude,
		MaxFileSize:      cfg.MaxFileSize(),
		RespectGitignore: true,
	})
	if err != nil {
		return err
	}

	var paths []string
	var scanErrs int
	for res := range stream {
		if res.Err != nil {
			scanErrs++
			renderer.AddError(ui.ErrorEvent{Err: res.Err, IsWarn: true})
			continue
		}
		paths = append(paths, res.File.AbsPath)
		// Every file would flood plain output; sample the stream.
		if len(paths)%250 == 0 {
			renderer.UpdateProgress(ui.ProgressEvent{
				Stage:       ui.StageScanning,
				Current:     len(paths),
				CurrentFile: res.File.Path,
			})
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	scanDur := time.Since(scanStart)

	// Stage 2: reconcile and re-extract what moved.
	indexStart := time.Now()
	stats, err := eng.Reconcile(ctx, paths)
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}
	slog.Info("reconciliation complete",
		slog.Int("added", stats.Added),
		slog.Int("modified", stats.Modified),
		slog.Int("deleted", stats.Deleted))

	total := eng.Queue().Len()
	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageIndexing, Total: total})

	pollDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		last := -1
		for {
			select {
			case <-pollDone:
				return
			case <-ticker.C:
				done := total - eng.Queue().Len()
				if done == last {
					continue
				}
				last = done
				renderer.UpdateProgress(ui.ProgressEvent{
					Stage:   ui.StageIndexing,
					Current: done,
					Total:   total,
				})
			}
		}
	}()

	ids := eng.Registry().IDs()
	for _, id := range ids {
		if err := eng.EnsureUpToDate(ctx, id, vfs.Everything()); err != nil {
			close(pollDone)
			return fmt.Errorf("index %s update failed: %w", id, err)
		}
	}
	close(pollDone)
	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageIndexing, Current: total, Total: total})
	indexDur := time.Since(indexStart)

	// Stage 3: persist.
	flushStart := time.Now()
	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageFlushing, Message: "Flushing indexes..."})
	if err := eng.Flush(); err != nil {
		return fmt.Errorf("flush failed: %w", err)
	}
	flushDur := time.Since(flushStart)

	renderer.Complete(ui.CompletionStats{
		Files:    len(paths),
		Indexes:  len(ids),
		Duration: time.Since(started),
		Warnings: scanErrs,
		Stages: ui.StageTimings{
			Scan:  scanDur,
			Index: indexDur,
			Flush: flushDur,
		},
	})

	return nil
}
