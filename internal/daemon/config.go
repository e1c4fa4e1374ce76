// Package daemon runs the long-lived watch process and its control
// socket. The daemon keeps the engine open with the watcher feeding
// it; CLI commands connect over a Unix socket in the data directory
// to query indexes, read status, and trigger maintenance.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds daemon settings.
type Config struct {
	// SocketPath is the Unix domain socket for control requests.
	SocketPath string

	// PIDPath records the daemon's process id.
	PIDPath string

	// Timeout bounds one client request round trip.
	Timeout time.Duration

	// ShutdownGracePeriod is how long shutdown waits for in-flight
	// connections.
	ShutdownGracePeriod time.Duration
}

// DefaultConfig returns daemon settings rooted in dataDir, the
// project's data directory.
func DefaultConfig(dataDir string) Config {
	return Config{
		SocketPath:          filepath.Join(dataDir, "daemon.sock"),
		PIDPath:             filepath.Join(dataDir, "daemon.pid"),
		Timeout:             30 * time.Second,
		ShutdownGracePeriod: 10 * time.Second,
	}
}

// Validate rejects unusable settings.
func (c Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket path cannot be empty")
	}
	if c.PIDPath == "" {
		return fmt.Errorf("pid path cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("shutdown grace period must be positive")
	}
	return nil
}

// EnsureDir creates the socket and pid directories.
func (c Config) EnsureDir() error {
	socketDir := filepath.Dir(c.SocketPath)
	if err := os.MkdirAll(socketDir, 0o755); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}
	if pidDir := filepath.Dir(c.PIDPath); pidDir != socketDir {
		if err := os.MkdirAll(pidDir, 0o755); err != nil {
			return fmt.Errorf("create pid directory: %w", err)
		}
	}
	return nil
}
