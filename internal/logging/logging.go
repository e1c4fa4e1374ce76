package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config describes one log sink. The engine and the watch daemon each
// write JSON lines through a size-rotated file; stderr mirroring is
// for interactive runs only.
type Config struct {
	// Level is the minimum record level: debug, info, warn, error.
	Level string
	// FilePath is the rotated log file. Empty means the engine log
	// under ~/.facet/logs.
	FilePath string
	// MaxSizeMB is the rotation threshold. 10 when zero.
	MaxSizeMB int
	// MaxFiles is how many rotated generations to keep. 5 when zero.
	MaxFiles int
	// WriteToStderr mirrors every record to stderr.
	WriteToStderr bool
}

// DefaultConfig writes info-level records to the engine log and
// mirrors them to stderr.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		FilePath:      DefaultLogPath(),
		WriteToStderr: true,
	}
}

// DebugConfig is DefaultConfig at debug level, for --debug runs.
func DebugConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	return cfg
}

func (cfg Config) withDefaults() Config {
	if cfg.FilePath == "" {
		cfg.FilePath = DefaultLogPath()
	}
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = 5
	}
	return cfg
}

// Setup opens the configured sink and returns a JSON logger plus a
// cleanup that flushes and closes the file.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	cfg = cfg.withDefaults()

	writer, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = writer
	if cfg.WriteToStderr {
		out = io.MultiWriter(writer, os.Stderr)
	}

	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	}))

	cleanup := func() {
		_ = writer.Sync()
		_ = writer.Close()
	}
	return logger, cleanup, nil
}

// ParseLevel maps a config string onto a slog level. Unknown strings
// read as info rather than failing: a typo in a config file should
// not silence logging.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
