package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Backups land next to the user config as config.yaml.bak.<timestamp>.
const (
	backupSuffix     = ".bak"
	maxConfigBackups = 3
)

// BackupUserConfig snapshots the user config before an upgrade
// rewrites it, then prunes old snapshots. Returns the backup path, or
// "" when there is no config to back up.
func BackupUserConfig() (string, error) {
	if !UserConfigExists() {
		return "", nil
	}
	configPath := GetUserConfigPath()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to read config for backup: %w", err)
	}
	backupPath := configPath + backupSuffix + "." + time.Now().Format("20060102-150405")
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}

	pruneConfigBackups(configPath)
	return backupPath, nil
}

// configBackups lists existing backups of configPath, newest first.
// The timestamp sits in the filename, so lexicographic order is age
// order.
func configBackups(configPath string) []string {
	dir := filepath.Dir(configPath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	prefix := filepath.Base(configPath) + backupSuffix + "."
	var paths []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	return paths
}

// pruneConfigBackups drops all but the newest backups. Best effort:
// the backup itself already succeeded.
func pruneConfigBackups(configPath string) {
	backups := configBackups(configPath)
	if len(backups) <= maxConfigBackups {
		return
	}
	for _, path := range backups[maxConfigBackups:] {
		_ = os.Remove(path)
	}
}
