package storage

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	facerrors "github.com/facetdb/facet/internal/errors"
)

// Marker file names inside an index directory and the engine root.
const (
	// VersionFileName holds the single integer version of an index's
	// persisted data. Presence plus integer match is the whole
	// cross-restart durability contract.
	VersionFileName = "version"

	// CorruptionMarkerName in the engine root forces every index to
	// rebuild on the next startup, regardless of version checks.
	CorruptionMarkerName = "corruption.marker"
)

// WriteVersion durably writes the version marker inside dir. The caller
// must have created dir already; registration owns directory lifecycle,
// so a missing parent is an error here, not something to repair.
func WriteVersion(dir string, version int) error {
	path := filepath.Join(dir, VersionFileName)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return facerrors.StorageError("failed to write version marker", err)
	}
	if _, err := f.WriteString(strconv.Itoa(version) + "\n"); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return facerrors.StorageError("failed to write version marker", err)
	}
	// Sync before rename so a crash never leaves a torn marker in place.
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return facerrors.StorageError("failed to sync version marker", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return facerrors.StorageError("failed to write version marker", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return facerrors.StorageError("failed to replace version marker", err)
	}
	return nil
}

// ReadVersion reads the version marker inside dir. A missing marker
// returns (0, nil): version zero never matches a registered extension,
// which forces a fresh build on first registration. Unparseable content
// is treated the same way, since a torn marker means the previous write
// never completed.
func ReadVersion(dir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(dir, VersionFileName))
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, facerrors.StorageError("failed to read version marker", err)
	}

	version, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, nil
	}
	return version, nil
}

// HasVersionFile reports whether dir contains a version marker. The
// registry uses this to distinguish "initially built" (no marker) from
// "version changed" (stale marker) when versions differ.
func HasVersionFile(dir string) bool {
	return fileExists(filepath.Join(dir, VersionFileName))
}

// WriteCorruptionMarker drops the sentinel that forces a full rebuild of
// all indexes on the next startup. Called when storage damage is detected
// too late to repair in-process.
func WriteCorruptionMarker(root string) error {
	if err := os.MkdirAll(root, 0755); err != nil {
		return facerrors.StorageError("failed to create engine root", err)
	}
	f, err := os.Create(filepath.Join(root, CorruptionMarkerName))
	if err != nil {
		return facerrors.StorageError("failed to write corruption marker", err)
	}
	return f.Close()
}

// HasCorruptionMarker reports whether the engine root carries the
// rebuild-everything sentinel.
func HasCorruptionMarker(root string) bool {
	return fileExists(filepath.Join(root, CorruptionMarkerName))
}

// ClearCorruptionMarker removes the sentinel after all indexes have been
// routed into a rebuild. Removing an absent marker is a no-op.
func ClearCorruptionMarker(root string) error {
	err := os.Remove(filepath.Join(root, CorruptionMarkerName))
	if err != nil && !os.IsNotExist(err) {
		return facerrors.StorageError("failed to clear corruption marker", err)
	}
	return nil
}
