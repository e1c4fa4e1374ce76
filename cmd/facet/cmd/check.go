package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/facetdb/facet/internal/config"
	"github.com/facetdb/facet/internal/output"
	"github.com/facetdb/facet/internal/preflight"
	"github.com/facetdb/facet/internal/validation"
)

func newCheckCmd() *cobra.Command {
	var (
		probesFile string
		jsonOutput bool
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run system checks and index probes",
		Long: `Verify that the system can support indexing (disk space, write
permissions, file descriptor limits) and, with --probes, that the
project's indexes answer as expected.

A probe file is YAML naming an index, a key, and the paths expected
among the results:

  probes:
    - id: P-01
      name: finds the config parser
      index: words
      key: parseConfig
      expected: ["internal/config"]

Indexes no probe touches still get a structural read.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), cmd, probesFile, jsonOutput, verbose)
		},
	}

	cmd.Flags().StringVar(&probesFile, "probes", "", "YAML file of index probes to run")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output probe report as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show every check result")

	return cmd
}

func runCheck(ctx context.Context, cmd *cobra.Command, probesFile string, jsonOutput, verbose bool) error {
	out := output.New(cmd.OutOrStdout())

	root, err := projectRoot(".")
	if err != nil {
		return err
	}

	checker := preflight.New(
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)
	results := checker.RunAll(ctx, root)
	checker.PrintResults(results)

	if checker.HasCriticalFailures(results) {
		return fmt.Errorf("system check failed")
	}
	if err := preflight.MarkPassed(config.DataDir(root)); err != nil {
		slog.Debug("cannot mark preflight as passed", slog.String("error", err.Error()))
	}

	if probesFile == "" {
		return nil
	}

	probes, err := validation.LoadProbes(probesFile)
	if err != nil {
		return err
	}

	cleanup := setupCLILogging()
	defer cleanup()

	cfg := loadConfig(root)
	eng, err := openEngine(cfg, root, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	validator, err := validation.NewValidator(eng)
	if err != nil {
		return err
	}
	report := validator.RunAll(ctx, probes)

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		out.Newline()
		for _, res := range report.Results {
			name := res.Spec.Name
			if name == "" {
				name = res.Spec.ID
			}
			if res.Passed {
				out.Successf("%s (%s, %d hits)", name, res.Spec.Index, len(res.Hits))
			} else if res.Error != "" {
				out.Errorf("%s: %s", name, res.Error)
			} else {
				out.Errorf("%s: expected %v among %d hits", name, res.Spec.Expected, len(res.Hits))
			}
		}
		out.Newline()
		out.Statusf("", "Probes: %d/%d passed", report.Pass, report.Total)
	}

	if !report.Ok() {
		return fmt.Errorf("index probes failed: %d of %d", report.Total-report.Pass, report.Total)
	}
	return nil
}
