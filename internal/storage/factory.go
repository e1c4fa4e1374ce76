package storage

import (
	"fmt"
	"os"
	"path/filepath"

	facerrors "github.com/facetdb/facet/internal/errors"
)

// Backend selects the key-value implementation backing an index.
type Backend string

const (
	// BackendPebble uses a Pebble LSM database (default).
	// Best write throughput for heavy incremental updates.
	BackendPebble Backend = "pebble"

	// BackendSQLite uses a single SQLite database file in WAL mode.
	// One file per index, easy to inspect with standard tools.
	BackendSQLite Backend = "sqlite"

	// BackendMemory keeps everything in memory. Nothing survives a
	// restart; intended for tests.
	BackendMemory Backend = "memory"
)

// Options tunes an opened store.
type Options struct {
	// CacheSizeMB is the block or page cache size. Zero selects the
	// backend default.
	CacheSizeMB int

	// SyncWrites forces every write to reach durable media before
	// returning. Slower, but survives power loss without a flush.
	SyncWrites bool
}

// DefaultOptions returns the options used when no configuration is given.
func DefaultOptions() Options {
	return Options{CacheSizeMB: 64}
}

// Open opens the store for one index directory using the given backend.
// The directory also holds the index's version marker, so each backend
// claims its own path inside it: a "store" subdirectory for Pebble, a
// "store.db" file for SQLite.
//
// backend options:
//   - "pebble" (default): Pebble LSM, best for heavy incremental writes
//   - "sqlite": single-file WAL-mode SQLite
//   - "memory": non-durable, for tests
func Open(backend string, dir string, opts Options) (Store, error) {
	switch backend {
	case string(BackendPebble), "":
		return NewPebbleStore(StorePath(dir, string(BackendPebble)), opts)

	case string(BackendSQLite):
		return NewSQLiteStore(StorePath(dir, string(BackendSQLite)), opts)

	case string(BackendMemory):
		return NewMemoryStore(), nil

	default:
		return nil, facerrors.ValidationError(
			fmt.Sprintf("unknown storage backend: %s (valid options: pebble, sqlite, memory)", backend), nil)
	}
}

// StorePath returns the path inside an index directory that the backend
// stores its data at.
func StorePath(dir string, backend string) string {
	switch backend {
	case string(BackendSQLite):
		return filepath.Join(dir, "store.db")
	case string(BackendMemory):
		return ""
	default:
		return filepath.Join(dir, "store")
	}
}

// DetectBackend detects which backend an existing index directory uses
// based on file existence. Returns an empty string if no store exists.
// Useful when the configured backend changed between runs.
func DetectBackend(dir string) Backend {
	if dirExists(filepath.Join(dir, "store")) {
		return BackendPebble
	}
	if fileExists(filepath.Join(dir, "store.db")) {
		return BackendSQLite
	}
	return ""
}

// fileExists checks if a file exists at the given path.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// dirExists checks if a directory exists at the given path.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
