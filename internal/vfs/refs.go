package vfs

import (
	"os"
	"time"

	facerrors "github.com/facetdb/facet/internal/errors"
)

// FileRef is a snapshot of one file's identity and metadata at a moment
// in time. A ref with Valid == false describes a file that no longer
// exists (or never did); indexing such a ref removes the file's
// contribution from every index.
type FileRef struct {
	ID      FileID
	Path    string
	Size    int64
	ModTime time.Time
	Valid   bool
}

// Stamp returns the version stamp for this snapshot of the file.
func (r FileRef) Stamp() Stamp {
	if !r.Valid {
		return 0
	}
	return StampOf(r.ModTime)
}

// InvalidRef builds a ref for a file that is known to be gone.
func InvalidRef(id FileID, path string) FileRef {
	return FileRef{ID: id, Path: path, Valid: false}
}

// Stat refreshes a file's metadata from disk. A missing file yields an
// invalid ref and no error; only genuine stat failures are reported.
func Stat(id FileID, path string) (FileRef, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return InvalidRef(id, path), nil
		}
		if os.IsPermission(err) {
			return FileRef{}, facerrors.New(facerrors.ErrCodeFilePermission,
				"cannot stat "+path, err)
		}
		return FileRef{}, facerrors.New(facerrors.ErrCodeFileNotFound,
			"cannot stat "+path, err)
	}
	if info.IsDir() {
		return InvalidRef(id, path), nil
	}
	return FileRef{
		ID:      id,
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Valid:   true,
	}, nil
}
