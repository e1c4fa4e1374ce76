package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_RootsPathsInDataDir(t *testing.T) {
	cfg := DefaultConfig("/proj/.facet")

	assert.Equal(t, "/proj/.facet/daemon.sock", cfg.SocketPath)
	assert.Equal(t, "/proj/.facet/daemon.pid", cfg.PIDPath)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 10*time.Second, cfg.ShutdownGracePeriod)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"empty socket path", func(c *Config) { c.SocketPath = "" }, "socket path"},
		{"empty pid path", func(c *Config) { c.PIDPath = "" }, "pid path"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "timeout"},
		{"negative grace period", func(c *Config) { c.ShutdownGracePeriod = -time.Second }, "grace period"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("/proj/.facet")
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_EnsureDir_CreatesMissingDirectories(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig(filepath.Join(root, ".facet"))

	require.NoError(t, cfg.EnsureDir())

	info, err := os.Stat(filepath.Join(root, ".facet"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestConfig_EnsureDir_SeparatePIDDirectory(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig(filepath.Join(root, ".facet"))
	cfg.PIDPath = filepath.Join(root, "run", "daemon.pid")

	require.NoError(t, cfg.EnsureDir())

	info, err := os.Stat(filepath.Join(root, "run"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
