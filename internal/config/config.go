package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectType represents the type of project detected.
type ProjectType string

const (
	ProjectTypeGo      ProjectType = "go"
	ProjectTypeNode    ProjectType = "node"
	ProjectTypePython  ProjectType = "python"
	ProjectTypeUnknown ProjectType = "unknown"
)

// DataDirName is the per-project data directory holding index storage,
// version markers, lock files, and the daemon socket.
const DataDirName = ".facet"

// Config represents the complete Facet configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Paths    PathsConfig    `yaml:"paths" json:"paths"`
	Storage  StorageConfig  `yaml:"storage" json:"storage"`
	Indexing IndexingConfig `yaml:"indexing" json:"indexing"`
	Watcher  WatcherConfig  `yaml:"watcher" json:"watcher"`
	Daemon   DaemonConfig   `yaml:"daemon" json:"daemon"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// PathsConfig configures which paths to include and exclude.
type PathsConfig struct {
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// StorageConfig configures the persistent key-value backend shared by all
// indexes. Backend selection is configurable via:
//  1. User config (~/.config/facet/config.yaml) - personal defaults
//  2. Project config (.facet.yaml) - per-repo tuning
//  3. Env vars (FACET_STORAGE_BACKEND, ...) - highest priority
type StorageConfig struct {
	// Backend selects the key-value store implementation.
	// Options: "pebble" (default, LSM tree), "sqlite" (single file, WAL mode),
	// or "memory" (tests and throwaway runs, nothing survives restart).
	Backend string `yaml:"backend" json:"backend"`

	// FlushInterval is the period of the background flush job.
	// Buffered index writes and staleness stamps reach disk at most this
	// far apart on an idle engine. Default: "5s".
	FlushInterval string `yaml:"flush_interval" json:"flush_interval"`

	// CacheSizeMB is the block/page cache size per backend in MB (default: 64).
	CacheSizeMB int `yaml:"cache_size_mb" json:"cache_size_mb"`

	// SyncWrites forces an fsync on every write instead of relying on the
	// periodic flush. Safer but much slower; default: false.
	SyncWrites bool `yaml:"sync_writes" json:"sync_writes"`
}

// IndexingConfig configures extraction and update behavior.
type IndexingConfig struct {
	// Workers is the number of parallel extraction workers for bulk
	// scans and startup reconciliation. Default: NumCPU.
	Workers int `yaml:"workers" json:"workers"`

	// MaxFileSizeKB is the content size ceiling. Files larger than this
	// are dropped from content-based indexes instead of being indexed.
	// Default: 4096 (4MB).
	MaxFileSizeKB int `yaml:"max_file_size_kb" json:"max_file_size_kb"`

	// ContentCacheSize is the number of file contents kept in the LRU
	// cache so several indexes updating the same file load it once.
	// Default: 256.
	ContentCacheSize int `yaml:"content_cache_size" json:"content_cache_size"`

	// ReconcileOnStart compares the tree against persisted state at
	// startup and schedules anything that changed offline. Default: true.
	ReconcileOnStart bool `yaml:"reconcile_on_start" json:"reconcile_on_start"`

	// Verify selects how reconciliation decides a file changed.
	// Options: "mtime" (size + modification time, default) or "hash"
	// (content hash, slower but catches touch-without-change).
	Verify string `yaml:"verify" json:"verify"`

	// Indexes lists enabled index extensions (empty = all registered).
	Indexes []string `yaml:"indexes" json:"indexes"`
}

// WatcherConfig configures filesystem watching.
type WatcherConfig struct {
	// Enabled turns on filesystem watching in daemon mode. Default: true.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Debounce coalesces rapid event bursts for the same file.
	// Default: "500ms".
	Debounce string `yaml:"debounce" json:"debounce"`

	// MaxWatchedDirs caps the number of watched directories to protect
	// against inotify limits. Default: 10000.
	MaxWatchedDirs int `yaml:"max_watched_dirs" json:"max_watched_dirs"`
}

// DaemonConfig configures the background watch daemon.
type DaemonConfig struct {
	// SocketPath is the unix socket for daemon control requests.
	// Empty uses <data-dir>/daemon.sock.
	SocketPath string `yaml:"socket_path" json:"socket_path"`

	// IdleShutdown stops the daemon after this long with no client
	// requests and no file events. "0" disables. Default: "0".
	IdleShutdown string `yaml:"idle_shutdown" json:"idle_shutdown"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled serves /metrics from the daemon. Default: false.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Addr is the listen address for the metrics endpoint.
	// Default: "127.0.0.1:9641".
	Addr string `yaml:"addr" json:"addr"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" json:"level"`
}

// defaultExcludePatterns are always excluded.
var defaultExcludePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/" + DataDirName + "/**",
	"**/*.min.js",
	"**/*.min.css",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/pnpm-lock.yaml",
	"**/go.sum",
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Include: []string{},
			Exclude: defaultExcludePatterns,
		},
		Storage: StorageConfig{
			Backend:       "pebble",
			FlushInterval: "5s",
			CacheSizeMB:   64,
			SyncWrites:    false,
		},
		Indexing: IndexingConfig{
			Workers:          runtime.NumCPU(),
			MaxFileSizeKB:    4096,
			ContentCacheSize: 256,
			ReconcileOnStart: true,
			Verify:           "mtime",
			Indexes:          nil, // All registered extensions
		},
		Watcher: WatcherConfig{
			Enabled:        true,
			Debounce:       "500ms",
			MaxWatchedDirs: 10000,
		},
		Daemon: DaemonConfig{
			SocketPath:   "", // Empty uses <data-dir>/daemon.sock
			IdleShutdown: "0",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9641",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DataDir returns the per-project data directory under root.
func DataDir(root string) string {
	return filepath.Join(root, DataDirName)
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/facet/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/facet/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "facet", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback - should rarely happen
		return filepath.Join(os.TempDir(), ".config", "facet", "config.yaml")
	}
	return filepath.Join(home, ".config", "facet", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist (that's OK).
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()

	// Check if file exists
	if !fileExists(configPath) {
		return nil, nil // No user config is fine
	}

	// Load the config
	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}

	return cfg, nil
}

// Load loads configuration from the specified directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/facet/config.yaml)
//  3. Project config (.facet.yaml in project root)
//  4. Environment variables (FACET_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	// Step 1: Load user/global config (if exists)
	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	// Step 2: Load project config (overrides user config)
	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	// Step 3: Apply environment variable overrides (highest precedence)
	cfg.applyEnvOverrides()

	// Step 4: Validate the final configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .facet.yaml or .facet.yml.
func (c *Config) loadFromFile(dir string) error {
	// Try .yaml first (takes precedence)
	yamlPath := filepath.Join(dir, ".facet.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	// Try .yml as fallback
	ymlPath := filepath.Join(dir, ".facet.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine - use defaults
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Use a temporary struct for parsing to detect type errors
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Merge parsed values with defaults (only non-zero values)
	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// Paths
	if len(other.Paths.Include) > 0 {
		c.Paths.Include = other.Paths.Include
	}
	if len(other.Paths.Exclude) > 0 {
		// Merge with defaults rather than replace
		c.Paths.Exclude = append(c.Paths.Exclude, other.Paths.Exclude...)
	}

	// Storage
	if other.Storage.Backend != "" {
		c.Storage.Backend = other.Storage.Backend
	}
	if other.Storage.FlushInterval != "" {
		c.Storage.FlushInterval = other.Storage.FlushInterval
	}
	if other.Storage.CacheSizeMB != 0 {
		c.Storage.CacheSizeMB = other.Storage.CacheSizeMB
	}
	if other.Storage.SyncWrites {
		c.Storage.SyncWrites = true
	}

	// Indexing
	if other.Indexing.Workers != 0 {
		c.Indexing.Workers = other.Indexing.Workers
	}
	if other.Indexing.MaxFileSizeKB != 0 {
		c.Indexing.MaxFileSizeKB = other.Indexing.MaxFileSizeKB
	}
	if other.Indexing.ContentCacheSize != 0 {
		c.Indexing.ContentCacheSize = other.Indexing.ContentCacheSize
	}
	// ReconcileOnStart defaults to true; a bare struct parses as false,
	// so only an explicit verify/workers section can turn it off
	if other.Indexing.Workers != 0 || other.Indexing.Verify != "" {
		c.Indexing.ReconcileOnStart = other.Indexing.ReconcileOnStart
	}
	if other.Indexing.Verify != "" {
		c.Indexing.Verify = other.Indexing.Verify
	}
	if len(other.Indexing.Indexes) > 0 {
		c.Indexing.Indexes = other.Indexing.Indexes
	}

	// Watcher
	if other.Watcher.Debounce != "" {
		c.Watcher.Debounce = other.Watcher.Debounce
		c.Watcher.Enabled = other.Watcher.Enabled
	}
	if other.Watcher.MaxWatchedDirs != 0 {
		c.Watcher.MaxWatchedDirs = other.Watcher.MaxWatchedDirs
	}

	// Daemon
	if other.Daemon.SocketPath != "" {
		c.Daemon.SocketPath = other.Daemon.SocketPath
	}
	if other.Daemon.IdleShutdown != "" {
		c.Daemon.IdleShutdown = other.Daemon.IdleShutdown
	}

	// Metrics
	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
		c.Metrics.Enabled = other.Metrics.Enabled
	} else if other.Metrics.Enabled {
		c.Metrics.Enabled = true
	}

	// Logging
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
}

// applyEnvOverrides applies FACET_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FACET_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("FACET_FLUSH_INTERVAL"); v != "" {
		c.Storage.FlushInterval = v
	}
	if v := os.Getenv("FACET_INDEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Indexing.Workers = n
		}
	}
	if v := os.Getenv("FACET_MAX_FILE_SIZE_KB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Indexing.MaxFileSizeKB = n
		}
	}
	if v := os.Getenv("FACET_WATCH_DEBOUNCE"); v != "" {
		c.Watcher.Debounce = v
	}
	if v := os.Getenv("FACET_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FACET_METRICS_ENABLED"); v != "" {
		c.Metrics.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("FACET_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("FACET_DAEMON_SOCKET"); v != "" {
		c.Daemon.SocketPath = v
	}
}

// FlushIntervalDuration returns the parsed flush interval.
// Falls back to 5s when the configured value does not parse.
func (c *Config) FlushIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.Storage.FlushInterval)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// WatchDebounceDuration returns the parsed watcher debounce window.
// Falls back to 500ms when the configured value does not parse.
func (c *Config) WatchDebounceDuration() time.Duration {
	d, err := time.ParseDuration(c.Watcher.Debounce)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// IdleShutdownDuration returns the parsed daemon idle shutdown window.
// Zero means idle shutdown is disabled.
func (c *Config) IdleShutdownDuration() time.Duration {
	if c.Daemon.IdleShutdown == "" || c.Daemon.IdleShutdown == "0" {
		return 0
	}
	d, err := time.ParseDuration(c.Daemon.IdleShutdown)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// MaxFileSize returns the content size ceiling in bytes.
func (c *Config) MaxFileSize() int64 {
	return int64(c.Indexing.MaxFileSizeKB) * 1024
}

// SocketPath returns the daemon control socket path for the given root.
func (c *Config) SocketPath(root string) string {
	if c.Daemon.SocketPath != "" {
		return c.Daemon.SocketPath
	}
	return filepath.Join(DataDir(root), "daemon.sock")
}

// IndexEnabled reports whether the named index extension is enabled.
// An empty list enables every registered extension.
func (c *Config) IndexEnabled(name string) bool {
	if len(c.Indexing.Indexes) == 0 {
		return true
	}
	for _, n := range c.Indexing.Indexes {
		if n == name {
			return true
		}
	}
	return false
}

// DetectProjectType detects the project type based on marker files.
// Priority: go.mod > package.json > pyproject.toml/requirements.txt
func DetectProjectType(dir string) ProjectType {
	// Check for Go project
	if fileExists(filepath.Join(dir, "go.mod")) {
		return ProjectTypeGo
	}

	// Check for Node.js project
	if fileExists(filepath.Join(dir, "package.json")) {
		return ProjectTypeNode
	}

	// Check for Python project
	if fileExists(filepath.Join(dir, "pyproject.toml")) ||
		fileExists(filepath.Join(dir, "requirements.txt")) {
		return ProjectTypePython
	}

	return ProjectTypeUnknown
}

// FindProjectRoot finds the project root directory.
// It looks for .git directory or .facet.yaml/.yml file by walking up the directory tree.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		// Check for .git directory
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}

		// Check for .facet.yaml or .facet.yml
		if fileExists(filepath.Join(currentDir, ".facet.yaml")) ||
			fileExists(filepath.Join(currentDir, ".facet.yml")) {
			return currentDir, nil
		}

		// Move up one directory
		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root, return original directory
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// DiscoverSourceDirs discovers common source directories in the project.
func DiscoverSourceDirs(dir string) []string {
	commonSourceDirs := []string{"src", "lib", "pkg", "internal", "cmd"}
	frameworkDirs := []string{"app", "pages"} // Next.js, etc.

	var found []string

	// Check common source directories
	for _, d := range commonSourceDirs {
		if dirExists(filepath.Join(dir, d)) {
			found = append(found, d)
		}
	}

	// Check for framework-specific directories
	if isNextJS(dir) {
		for _, d := range frameworkDirs {
			if dirExists(filepath.Join(dir, d)) {
				found = append(found, d)
			}
		}
	}

	return found
}

// DiscoverDocsDirs discovers documentation directories in the project.
func DiscoverDocsDirs(dir string) []string {
	commonDocDirs := []string{"docs", "doc"}
	commonDocFiles := []string{"README.md", "readme.md", "README.markdown"}

	var found []string

	// Check common doc directories
	for _, d := range commonDocDirs {
		if dirExists(filepath.Join(dir, d)) {
			found = append(found, d)
		}
	}

	// Check for README files
	for _, f := range commonDocFiles {
		if fileExists(filepath.Join(dir, f)) {
			found = append(found, f)
			break // Only add one README
		}
	}

	return found
}

// isNextJS checks if the project is a Next.js project.
func isNextJS(dir string) bool {
	pkgPath := filepath.Join(dir, "package.json")
	if !fileExists(pkgPath) {
		return false
	}

	data, err := os.ReadFile(pkgPath)
	if err != nil {
		return false
	}

	var pkg struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return false
	}

	_, hasNext := pkg.Dependencies["next"]
	_, hasNextDev := pkg.DevDependencies["next"]
	return hasNext || hasNextDev
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// String returns a string representation of ProjectType.
func (p ProjectType) String() string {
	return string(p)
}

// IsKnown returns true if the project type is known (not unknown).
func (p ProjectType) IsKnown() bool {
	return p != ProjectTypeUnknown
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	// Validate storage backend
	validBackends := map[string]bool{"pebble": true, "sqlite": true, "memory": true}
	if !validBackends[strings.ToLower(c.Storage.Backend)] {
		return fmt.Errorf("storage.backend must be 'pebble', 'sqlite', or 'memory', got %s", c.Storage.Backend)
	}

	// Validate flush interval
	if c.Storage.FlushInterval != "" {
		d, err := time.ParseDuration(c.Storage.FlushInterval)
		if err != nil {
			return fmt.Errorf("storage.flush_interval is not a valid duration: %s", c.Storage.FlushInterval)
		}
		if d < 100*time.Millisecond {
			return fmt.Errorf("storage.flush_interval must be at least 100ms, got %s", d)
		}
	}

	// Validate non-negative values
	if c.Indexing.Workers < 0 {
		return fmt.Errorf("indexing.workers must be non-negative, got %d", c.Indexing.Workers)
	}
	if c.Indexing.MaxFileSizeKB < 0 {
		return fmt.Errorf("indexing.max_file_size_kb must be non-negative, got %d", c.Indexing.MaxFileSizeKB)
	}
	if c.Indexing.ContentCacheSize < 0 {
		return fmt.Errorf("indexing.content_cache_size must be non-negative, got %d", c.Indexing.ContentCacheSize)
	}

	// Validate verify mode
	validVerify := map[string]bool{"mtime": true, "hash": true}
	if c.Indexing.Verify != "" && !validVerify[strings.ToLower(c.Indexing.Verify)] {
		return fmt.Errorf("indexing.verify must be 'mtime' or 'hash', got %s", c.Indexing.Verify)
	}

	// Validate watcher debounce
	if c.Watcher.Debounce != "" {
		if _, err := time.ParseDuration(c.Watcher.Debounce); err != nil {
			return fmt.Errorf("watcher.debounce is not a valid duration: %s", c.Watcher.Debounce)
		}
	}

	// Validate log level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// MergeNewDefaults adds new default fields while preserving existing values.
// Returns a list of field names that were added with their default values.
func (c *Config) MergeNewDefaults() []string {
	defaults := NewConfig()
	var added []string

	if c.Storage.Backend == "" {
		c.Storage.Backend = defaults.Storage.Backend
		added = append(added, "storage.backend")
	}
	if c.Storage.FlushInterval == "" {
		c.Storage.FlushInterval = defaults.Storage.FlushInterval
		added = append(added, "storage.flush_interval")
	}
	if c.Storage.CacheSizeMB == 0 {
		c.Storage.CacheSizeMB = defaults.Storage.CacheSizeMB
		added = append(added, "storage.cache_size_mb")
	}

	if c.Indexing.MaxFileSizeKB == 0 {
		c.Indexing.MaxFileSizeKB = defaults.Indexing.MaxFileSizeKB
		added = append(added, "indexing.max_file_size_kb")
	}
	if c.Indexing.ContentCacheSize == 0 {
		c.Indexing.ContentCacheSize = defaults.Indexing.ContentCacheSize
		added = append(added, "indexing.content_cache_size")
	}
	if c.Indexing.Verify == "" {
		c.Indexing.Verify = defaults.Indexing.Verify
		added = append(added, "indexing.verify")
	}

	if c.Watcher.Debounce == "" {
		c.Watcher.Debounce = defaults.Watcher.Debounce
		added = append(added, "watcher.debounce")
	}

	if c.Metrics.Addr == "" {
		c.Metrics.Addr = defaults.Metrics.Addr
		added = append(added, "metrics.addr")
	}

	return added
}
