package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/facetdb/facet/internal/daemon"
)

func newQueryCmd() *cobra.Command {
	var (
		indexID      string
		limit        int
		under        string
		reliableOnly bool
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "query <key>",
		Short: "Look up a key in an index",
		Long: `Look up a key in one of the project's indexes and print the files
whose content produced it. The index is brought current before it
answers, so results never reflect stale file content.

When the watch daemon is running, the query goes over its control
socket; otherwise the store is opened directly.

Examples:
  facet query parseConfig                  # words index (default)
  facet query --index trigrams "con"       # substring search seed
  facet query --index symbols Renderer     # declared symbols
  facet query --under src/ handler         # only files under src/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), cmd, daemon.QueryParams{
				Index:        indexID,
				Key:          args[0],
				PathPrefix:   under,
				Limit:        limit,
				ReliableOnly: reliableOnly,
			}, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&indexID, "index", "words", "Index to query")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of results")
	cmd.Flags().StringVar(&under, "under", "", "Only return files under this path")
	cmd.Flags().BoolVar(&reliableOnly, "reliable-only", false, "Exclude indexes that are mid-rebuild")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runQuery(ctx context.Context, cmd *cobra.Command, params daemon.QueryParams, jsonOutput bool) error {
	if err := params.Validate(); err != nil {
		return err
	}

	root, err := projectRoot(".")
	if err != nil {
		return err
	}
	cfg := loadConfig(root)
	dcfg := daemonConfigFor(cfg, root)

	var hits []daemon.QueryHit

	client := daemon.NewClient(dcfg)
	if client.IsRunning() {
		hits, err = client.Query(ctx, params)
		if err != nil {
			return err
		}
	} else {
		cleanup := setupCLILogging()
		defer cleanup()

		eng, err := openEngine(cfg, root, slog.Default())
		if err != nil {
			return err
		}
		defer func() { _ = eng.Close() }()

		handler := daemon.NewEngineHandler(eng, nil)
		hits, err = handler.HandleQuery(ctx, params)
		if err != nil {
			return err
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}

	if len(hits) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No results.")
		return nil
	}
	for _, hit := range hits {
		if hit.Value != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", hit.Path, hit.Value)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), hit.Path)
		}
	}
	return nil
}
