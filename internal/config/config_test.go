package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// AC01: Default Configuration Tests
// =============================================================================

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	// Given: no configuration file exists
	cfg := NewConfig()

	// Then: all defaults should be applied
	require.NotNil(t, cfg)

	// Storage defaults
	assert.Equal(t, "pebble", cfg.Storage.Backend)
	assert.Equal(t, "5s", cfg.Storage.FlushInterval)
	assert.Equal(t, 64, cfg.Storage.CacheSizeMB)
	assert.False(t, cfg.Storage.SyncWrites)

	// Indexing defaults
	assert.Equal(t, runtime.NumCPU(), cfg.Indexing.Workers)
	assert.Equal(t, 4096, cfg.Indexing.MaxFileSizeKB)
	assert.Equal(t, 256, cfg.Indexing.ContentCacheSize)
	assert.True(t, cfg.Indexing.ReconcileOnStart)
	assert.Equal(t, "mtime", cfg.Indexing.Verify)
	assert.Empty(t, cfg.Indexing.Indexes) // Empty = all registered

	// Watcher defaults
	assert.True(t, cfg.Watcher.Enabled)
	assert.Equal(t, "500ms", cfg.Watcher.Debounce)
	assert.Equal(t, 10000, cfg.Watcher.MaxWatchedDirs)

	// Metrics defaults
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9641", cfg.Metrics.Addr)

	// Logging defaults
	assert.Equal(t, "info", cfg.Logging.Level)

	// Paths defaults
	assert.Contains(t, cfg.Paths.Exclude, "**/node_modules/**")
	assert.Contains(t, cfg.Paths.Exclude, "**/.git/**")
	assert.Contains(t, cfg.Paths.Exclude, "**/vendor/**")
	assert.Contains(t, cfg.Paths.Exclude, "**/.facet/**")
}

func TestConfig_VersionDefaultsToOne(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, 1, cfg.Version)
}

func TestConfig_DurationAccessors(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 5*time.Second, cfg.FlushIntervalDuration())
	assert.Equal(t, 500*time.Millisecond, cfg.WatchDebounceDuration())
	assert.Equal(t, time.Duration(0), cfg.IdleShutdownDuration())

	// Garbage falls back to defaults rather than panicking
	cfg.Storage.FlushInterval = "not-a-duration"
	cfg.Watcher.Debounce = "also-not"
	assert.Equal(t, 5*time.Second, cfg.FlushIntervalDuration())
	assert.Equal(t, 500*time.Millisecond, cfg.WatchDebounceDuration())
}

func TestConfig_MaxFileSizeInBytes(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, int64(4096*1024), cfg.MaxFileSize())
}

func TestConfig_SocketPathDefaultsToDataDir(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, filepath.Join("/tmp/project", ".facet", "daemon.sock"), cfg.SocketPath("/tmp/project"))

	cfg.Daemon.SocketPath = "/var/run/facet.sock"
	assert.Equal(t, "/var/run/facet.sock", cfg.SocketPath("/tmp/project"))
}

func TestConfig_IndexEnabled(t *testing.T) {
	cfg := NewConfig()

	// Empty list enables everything
	assert.True(t, cfg.IndexEnabled("words"))
	assert.True(t, cfg.IndexEnabled("anything"))

	cfg.Indexing.Indexes = []string{"words", "trigrams"}
	assert.True(t, cfg.IndexEnabled("words"))
	assert.True(t, cfg.IndexEnabled("trigrams"))
	assert.False(t, cfg.IndexEnabled("symbols"))
}

// =============================================================================
// AC02: Configuration File Loading Tests
// =============================================================================

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	// Given: a directory with no .facet.yaml
	tmpDir := t.TempDir()

	// When: loading configuration
	cfg, err := Load(tmpDir)

	// Then: defaults are returned without error
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "pebble", cfg.Storage.Backend)
}

func TestLoad_YamlFile_OverridesDefaults(t *testing.T) {
	// Given: a directory with .facet.yaml
	tmpDir := t.TempDir()
	configContent := `
version: 1
storage:
  backend: sqlite
  flush_interval: 2s
indexing:
  workers: 4
  max_file_size_kb: 1024
  verify: hash
`
	err := os.WriteFile(filepath.Join(tmpDir, ".facet.yaml"), []byte(configContent), 0o644)
	require.NoError(t, err)

	// When: loading configuration
	cfg, err := Load(tmpDir)

	// Then: all overrides are applied
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "2s", cfg.Storage.FlushInterval)
	assert.Equal(t, 4, cfg.Indexing.Workers)
	assert.Equal(t, 1024, cfg.Indexing.MaxFileSizeKB)
	assert.Equal(t, "hash", cfg.Indexing.Verify)

	// And: unset fields keep defaults
	assert.Equal(t, 64, cfg.Storage.CacheSizeMB)
	assert.Equal(t, "500ms", cfg.Watcher.Debounce)
}

func TestLoad_YmlExtension_IsRecognized(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
storage:
  backend: memory
`
	err := os.WriteFile(filepath.Join(tmpDir, ".facet.yml"), []byte(configContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Backend)
}

func TestLoad_YamlPreferredOverYml(t *testing.T) {
	tmpDir := t.TempDir()

	yamlContent := `
storage:
  backend: sqlite
`
	ymlContent := `
storage:
  backend: memory
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".facet.yaml"), []byte(yamlContent), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".facet.yml"), []byte(ymlContent), 0o644))

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	// .yaml wins
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
}

func TestLoad_InvalidYaml_ReturnsError(t *testing.T) {
	tmpDir := t.TempDir()
	invalidContent := `
storage:
  backend: [unclosed
`
	err := os.WriteFile(filepath.Join(tmpDir, ".facet.yaml"), []byte(invalidContent), 0o644)
	require.NoError(t, err)

	_, err = Load(tmpDir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestLoad_InvalidFieldType_ReturnsError(t *testing.T) {
	tmpDir := t.TempDir()
	// workers should be an int, not a string
	invalidContent := `
indexing:
  workers: "lots"
`
	err := os.WriteFile(filepath.Join(tmpDir, ".facet.yaml"), []byte(invalidContent), 0o644)
	require.NoError(t, err)

	_, err = Load(tmpDir)

	require.Error(t, err)
}

// =============================================================================
// Project Type Detection Tests
// =============================================================================

func TestDetectProjectType_GoMod_ReturnsGo(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, "go.mod"), []byte("module test"), 0o644)
	require.NoError(t, err)

	projectType := DetectProjectType(tmpDir)

	assert.Equal(t, ProjectTypeGo, projectType)
}

func TestDetectProjectType_PackageJson_ReturnsNode(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, "package.json"), []byte("{}"), 0o644)
	require.NoError(t, err)

	projectType := DetectProjectType(tmpDir)

	assert.Equal(t, ProjectTypeNode, projectType)
}

func TestDetectProjectType_PyprojectToml_ReturnsPython(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, "pyproject.toml"), []byte(""), 0o644)
	require.NoError(t, err)

	projectType := DetectProjectType(tmpDir)

	assert.Equal(t, ProjectTypePython, projectType)
}

func TestDetectProjectType_RequirementsTxt_ReturnsPython(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, "requirements.txt"), []byte(""), 0o644)
	require.NoError(t, err)

	projectType := DetectProjectType(tmpDir)

	assert.Equal(t, ProjectTypePython, projectType)
}

func TestDetectProjectType_NoMarkerFiles_ReturnsUnknown(t *testing.T) {
	tmpDir := t.TempDir()

	projectType := DetectProjectType(tmpDir)

	assert.Equal(t, ProjectTypeUnknown, projectType)
}

func TestDetectProjectType_Priority_GoOverNode(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "go.mod"), []byte("module test"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "package.json"), []byte("{}"), 0o644))

	projectType := DetectProjectType(tmpDir)

	// go.mod takes priority
	assert.Equal(t, ProjectTypeGo, projectType)
}

// =============================================================================
// Project Root Discovery Tests
// =============================================================================

func TestFindProjectRoot_GitDirectory_ReturnsGitRoot(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, ".git"), 0o755))
	subDir := filepath.Join(tmpDir, "sub", "deep")
	require.NoError(t, os.MkdirAll(subDir, 0o755))

	root, err := FindProjectRoot(subDir)

	require.NoError(t, err)
	assert.Equal(t, resolveSymlinks(t, tmpDir), resolveSymlinks(t, root))
}

func TestFindProjectRoot_ConfigFile_ReturnsConfigLocation(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".facet.yaml"), []byte("version: 1"), 0o644))
	subDir := filepath.Join(tmpDir, "nested")
	require.NoError(t, os.MkdirAll(subDir, 0o755))

	root, err := FindProjectRoot(subDir)

	require.NoError(t, err)
	assert.Equal(t, resolveSymlinks(t, tmpDir), resolveSymlinks(t, root))
}

func TestFindProjectRoot_NoMarkers_ReturnsCurrentDir(t *testing.T) {
	tmpDir := t.TempDir()

	root, err := FindProjectRoot(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, resolveSymlinks(t, tmpDir), resolveSymlinks(t, root))
}

// =============================================================================
// Source and Docs Discovery Tests
// =============================================================================

func TestDiscoverSourceDirs_FindsCommonDirs(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "internal"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "cmd"), 0o755))

	dirs := DiscoverSourceDirs(tmpDir)

	assert.Contains(t, dirs, "src")
	assert.Contains(t, dirs, "internal")
	assert.Contains(t, dirs, "cmd")
}

func TestDiscoverDocsDirs_FindsDocDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "README.md"), []byte("# Test"), 0o644))

	dirs := DiscoverDocsDirs(tmpDir)

	assert.Contains(t, dirs, "docs")
	assert.Contains(t, dirs, "README.md")
}

func TestDiscoverSourceDirs_NextJS_FindsAppAndPages(t *testing.T) {
	tmpDir := t.TempDir()
	pkgJSON := `{"dependencies": {"next": "14.0.0"}}`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "package.json"), []byte(pkgJSON), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "app"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "pages"), 0o755))

	dirs := DiscoverSourceDirs(tmpDir)

	assert.Contains(t, dirs, "app")
	assert.Contains(t, dirs, "pages")
}

// =============================================================================
// Environment Variable Override Tests
// =============================================================================

func TestLoad_EnvVarOverridesBackend(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("FACET_STORAGE_BACKEND", "sqlite")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
}

func TestLoad_EnvVarOverridesFlushInterval(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("FACET_FLUSH_INTERVAL", "10s")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "10s", cfg.Storage.FlushInterval)
	assert.Equal(t, 10*time.Second, cfg.FlushIntervalDuration())
}

func TestLoad_EnvVarOverridesLogLevel(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("FACET_LOG_LEVEL", "debug")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvVarOverridesWorkers(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("FACET_INDEX_WORKERS", "2")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Indexing.Workers)
}

func TestLoad_EnvVarInvalidWorkers_Ignored(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("FACET_INDEX_WORKERS", "not-a-number")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, runtime.NumCPU(), cfg.Indexing.Workers)
}

func TestLoad_EnvVarEmptyString_DoesNotOverride(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("FACET_STORAGE_BACKEND", "")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "pebble", cfg.Storage.Backend)
}

// =============================================================================
// User Config Tests
// =============================================================================

func TestGetUserConfigPath_RespectsXDGConfigHome(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	path := GetUserConfigPath()

	assert.Equal(t, filepath.Join(tmpDir, "facet", "config.yaml"), path)
}

func TestGetUserConfigDir_ReturnsParentOfConfigPath(t *testing.T) {
	dir := GetUserConfigDir()
	path := GetUserConfigPath()

	assert.Equal(t, filepath.Dir(path), dir)
}

func TestUserConfigExists_ReturnsFalseWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	assert.False(t, UserConfigExists())
}

func TestUserConfigExists_ReturnsTrueWhenPresent(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configDir := filepath.Join(tmpDir, "facet")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("version: 1"), 0o644))

	assert.True(t, UserConfigExists())
}

func TestLoad_UserConfigOverridesDefaults(t *testing.T) {
	xdgDir := t.TempDir()
	projectDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdgDir)

	configDir := filepath.Join(xdgDir, "facet")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	userConfig := `
storage:
  backend: sqlite
`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(userConfig), 0o644))

	cfg, err := Load(projectDir)

	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
}

func TestLoad_ProjectConfigOverridesUserConfig(t *testing.T) {
	xdgDir := t.TempDir()
	projectDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdgDir)

	// User config: sqlite
	configDir := filepath.Join(xdgDir, "facet")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	userConfig := `
storage:
  backend: sqlite
  cache_size_mb: 16
`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(userConfig), 0o644))

	// Project config: memory
	projectConfig := `
storage:
  backend: memory
`
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ".facet.yaml"), []byte(projectConfig), 0o644))

	cfg, err := Load(projectDir)

	require.NoError(t, err)
	// Project wins on backend, user value survives where project is silent
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 16, cfg.Storage.CacheSizeMB)
}

func TestLoad_EnvVarOverridesUserAndProjectConfig(t *testing.T) {
	xdgDir := t.TempDir()
	projectDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdgDir)
	t.Setenv("FACET_STORAGE_BACKEND", "pebble")

	configDir := filepath.Join(xdgDir, "facet")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("storage:\n  backend: sqlite\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ".facet.yaml"), []byte("storage:\n  backend: memory\n"), 0o644))

	cfg, err := Load(projectDir)

	require.NoError(t, err)
	// Env var beats both configs
	assert.Equal(t, "pebble", cfg.Storage.Backend)
}

func TestLoad_InvalidUserConfig_ReturnsError(t *testing.T) {
	xdgDir := t.TempDir()
	projectDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdgDir)

	configDir := filepath.Join(xdgDir, "facet")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("storage: [broken"), 0o644))

	_, err := Load(projectDir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "user config")
}

// resolveSymlinks normalizes paths for comparison on systems where
// TempDir returns a symlinked path (macOS /var -> /private/var).
func resolveSymlinks(t *testing.T, path string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return path
	}
	return resolved
}
