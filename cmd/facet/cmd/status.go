package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/facetdb/facet/internal/config"
	"github.com/facetdb/facet/internal/daemon"
	"github.com/facetdb/facet/internal/ui"
	"github.com/facetdb/facet/internal/vfs"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and status",
		Long: `Display information about the project's indexes:
  - Number of tracked files
  - Registered indexes, their versions, and rebuild state
  - Store size on disk
  - Daemon status (watch mode and pending work when running)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	root, err := projectRoot(".")
	if err != nil {
		return err
	}
	dataDir := config.DataDir(root)

	if !fileExists(dataDir) {
		return fmt.Errorf("no index found in %s\nRun 'facet scan' to create one", root)
	}

	info, err := collectStatus(ctx, root, dataDir)
	if err != nil {
		return fmt.Errorf("failed to collect status: %w", err)
	}

	noColor := ui.DetectNoColor()
	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), noColor)

	if jsonOutput {
		return renderer.RenderJSON(info)
	}

	return renderer.Render(info)
}

func collectStatus(ctx context.Context, root, dataDir string) (ui.StatusInfo, error) {
	info := ui.StatusInfo{
		ProjectName:  filepath.Base(root),
		StoreSize:    dirSize(dataDir),
		DaemonStatus: "stopped",
	}

	cfg := loadConfig(root)
	dcfg := daemonConfigFor(cfg, root)

	// A running daemon holds the engine lock, so ask it instead of
	// opening the store.
	client := daemon.NewClient(dcfg)
	if client.IsRunning() {
		status, err := client.Status(ctx)
		if err != nil {
			return info, fmt.Errorf("daemon is up but not answering: %w", err)
		}
		info.DaemonStatus = "running"
		info.WatcherMode = status.WatcherMode
		info.PendingFiles = status.PendingFiles
		info.OverlayDocs = status.OverlayDocs
		for _, idx := range status.Indexes {
			info.Indexes = append(info.Indexes, ui.IndexInfo{
				ID:         idx.ID,
				Version:    idx.Version,
				Rebuilding: idx.Rebuilding,
			})
		}
		return info, nil
	}

	// No daemon: open the engine briefly to read the persisted state.
	eng, err := openEngine(cfg, root, slog.Default())
	if err != nil {
		return info, err
	}
	defer func() { _ = eng.Close() }()

	eng.Files().Range(func(_ vfs.FileID, _ string) bool {
		info.TotalFiles++
		return true
	})
	for _, id := range eng.Registry().IDs() {
		idx := ui.IndexInfo{ID: string(id)}
		if ext, ok := eng.Registry().ExtensionOf(id); ok {
			idx.Version = ext.Version()
		}
		idx.Rebuilding = !eng.Rebuilds().IsOk(id)
		info.Indexes = append(info.Indexes, idx)
	}

	return info, nil
}
