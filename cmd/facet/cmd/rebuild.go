package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/facetdb/facet/internal/daemon"
	"github.com/facetdb/facet/internal/extension"
	"github.com/facetdb/facet/internal/output"
	"github.com/facetdb/facet/internal/vfs"
)

func newRebuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild <index>",
		Short: "Rebuild one index from scratch",
		Long: `Discard an index's persisted data and re-extract it from every
tracked file. Other indexes are untouched.

When the watch daemon is running, the rebuild is requested over its
control socket and proceeds in the background. Without a daemon the
rebuild runs to completion before the command returns.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRebuild(cmd.Context(), cmd, args[0])
		},
	}

	return cmd
}

func runRebuild(ctx context.Context, cmd *cobra.Command, indexID string) error {
	out := output.New(cmd.OutOrStdout())

	root, err := projectRoot(".")
	if err != nil {
		return err
	}
	cfg := loadConfig(root)
	dcfg := daemonConfigFor(cfg, root)

	client := daemon.NewClient(dcfg)
	if client.IsRunning() {
		if err := client.Rebuild(ctx, indexID); err != nil {
			return err
		}
		out.Successf("Rebuild of %s requested, the daemon rebuilds it in the background", indexID)
		return nil
	}

	cleanup := setupCLILogging()
	defer cleanup()

	eng, err := openEngine(cfg, root, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	id := extension.ID(indexID)
	if !eng.Registry().Has(id) {
		return fmt.Errorf("unknown index: %s", indexID)
	}

	eng.RequestRebuild(id, fmt.Errorf("rebuild requested from CLI"))

	// The tracker clears and resubmits asynchronously; wait for it,
	// then drive the queued re-extraction to completion.
	deadline := time.Now().Add(30 * time.Second)
	for !eng.Rebuilds().IsOk(id) {
		if time.Now().After(deadline) {
			return fmt.Errorf("rebuild of %s did not start in time", indexID)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	if err := eng.EnsureUpToDate(ctx, id, vfs.Everything()); err != nil {
		return fmt.Errorf("rebuild of %s failed: %w", indexID, err)
	}
	if err := eng.Flush(); err != nil {
		return fmt.Errorf("flush after rebuild failed: %w", err)
	}

	out.Successf("Index %s rebuilt", indexID)
	return nil
}
