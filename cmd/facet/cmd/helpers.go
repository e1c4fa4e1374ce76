package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/facetdb/facet/internal/config"
	"github.com/facetdb/facet/internal/daemon"
	"github.com/facetdb/facet/internal/engine"
	"github.com/facetdb/facet/internal/extensions"
	"github.com/facetdb/facet/internal/logging"
)

// projectRoot resolves path and walks up to the project root.
func projectRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	root, err := config.FindProjectRoot(abs)
	if err != nil {
		return abs, nil
	}
	return root, nil
}

// loadConfig loads the merged configuration for root, falling back to
// defaults when no config file exists.
func loadConfig(root string) *config.Config {
	cfg, err := config.Load(root)
	if err != nil {
		slog.Warn("config load failed, using defaults", slog.String("error", err.Error()))
		return config.NewConfig()
	}
	return cfg
}

// openEngine opens the engine over root with the enabled built-in
// extensions registered and the engine started. The caller owns Close.
func openEngine(cfg *config.Config, root string, log *slog.Logger, opts ...engine.Option) (*engine.Engine, error) {
	eng, err := engine.New(cfg, root, log, opts...)
	if err != nil {
		return nil, err
	}
	for _, ext := range extensions.Builtin() {
		if !cfg.IndexEnabled(string(ext.ID())) {
			continue
		}
		if _, err := eng.RegisterExtension(ext); err != nil {
			_ = eng.Close()
			return nil, fmt.Errorf("register index %s: %w", ext.ID(), err)
		}
	}
	if err := eng.Start(); err != nil {
		_ = eng.Close()
		return nil, err
	}
	return eng, nil
}

// setupCLILogging routes slog to the engine log file without touching
// the user-facing output. Logging failures are not fatal for the CLI.
func setupCLILogging() func() {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return func() {}
	}
	slog.SetDefault(logger)
	return cleanup
}

// daemonConfigFor derives the daemon control config for a project.
func daemonConfigFor(cfg *config.Config, root string) daemon.Config {
	dcfg := daemon.DefaultConfig(config.DataDir(root))
	dcfg.SocketPath = cfg.SocketPath(root)
	return dcfg
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// dirSize sums the file sizes under a directory tree.
func dirSize(path string) int64 {
	var size int64
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}
