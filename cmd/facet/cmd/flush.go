package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/facetdb/facet/internal/daemon"
	"github.com/facetdb/facet/internal/output"
)

func newFlushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Persist all buffered index state to disk",
		Long: `Force every index to persist its buffered writes and staleness
stamps immediately, instead of waiting for the periodic flush.

When the watch daemon is running, the flush is executed by the daemon.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlush(cmd.Context(), cmd)
		},
	}

	return cmd
}

func runFlush(ctx context.Context, cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())

	root, err := projectRoot(".")
	if err != nil {
		return err
	}
	cfg := loadConfig(root)
	dcfg := daemonConfigFor(cfg, root)

	client := daemon.NewClient(dcfg)
	if client.IsRunning() {
		if err := client.Flush(ctx); err != nil {
			return err
		}
		out.Success("Flushed")
		return nil
	}

	cleanup := setupCLILogging()
	defer cleanup()

	eng, err := openEngine(cfg, root, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	if err := eng.Flush(); err != nil {
		return err
	}
	out.Success("Flushed")
	return nil
}
