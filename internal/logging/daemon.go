package logging

import (
	"log/slog"
)

// SetupDaemonModeWithLevel initializes logging for the detached watch
// daemon. The daemon has no terminal, so records go to daemon.log only
// and the returned cleanup is the caller's shutdown hook.
func SetupDaemonModeWithLevel(level string) (func(), error) {
	logger, cleanup, err := Setup(Config{
		Level:    level,
		FilePath: DaemonLogPath(),
	})
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	return cleanup, nil
}
