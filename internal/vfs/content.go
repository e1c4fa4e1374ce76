package vfs

import (
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	facerrors "github.com/facetdb/facet/internal/errors"
)

// Content cache configuration constants.
const (
	// DefaultContentCacheSize is the default number of file contents to
	// keep in memory between extraction passes. One file re-indexed by
	// several extensions loads its bytes once.
	DefaultContentCacheSize = 256

	// DefaultMaxFileSize is the largest file the loader will read, in
	// bytes. Larger files are treated as having no indexable content.
	DefaultMaxFileSize = 4 << 20
)

// ContentLoader reads file contents with an LRU cache keyed by path and
// stamp. A stale stamp never hits a fresh entry, so cached bytes are
// always the bytes that stamp described.
type ContentLoader struct {
	maxSize int64
	cache   *lru.Cache[string, []byte]
}

// NewContentLoader creates a loader capped at maxSize bytes per file.
// maxSize <= 0 and cacheSize <= 0 select the defaults.
func NewContentLoader(maxSize int64, cacheSize int) *ContentLoader {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	if cacheSize <= 0 {
		cacheSize = DefaultContentCacheSize
	}
	cache, _ := lru.New[string, []byte](cacheSize)
	return &ContentLoader{
		maxSize: maxSize,
		cache:   cache,
	}
}

// MaxFileSize returns the loader's per-file size cap in bytes.
func (l *ContentLoader) MaxFileSize() int64 {
	return l.maxSize
}

func (l *ContentLoader) cacheKey(ref FileRef) string {
	return fmt.Sprintf("%s\x00%d", ref.Path, ref.Stamp())
}

// Load returns the bytes of the file ref describes. Callers must not
// modify the returned slice. An invalid ref, a file over the size cap,
// and a file that vanished between stat and read all report errors the
// caller should translate into "no content" rather than a failure; use
// IsNoContent to tell them apart from real IO trouble.
func (l *ContentLoader) Load(ref FileRef) ([]byte, error) {
	if !ref.Valid {
		return nil, facerrors.New(facerrors.ErrCodeFileNotFound,
			"no content for deleted file "+ref.Path, nil)
	}
	if ref.Size > l.maxSize {
		return nil, facerrors.New(facerrors.ErrCodeFileTooLarge,
			fmt.Sprintf("%s is %d bytes, over the %d byte limit", ref.Path, ref.Size, l.maxSize), nil)
	}

	key := l.cacheKey(ref)
	if data, ok := l.cache.Get(key); ok {
		return data, nil
	}

	data, err := os.ReadFile(ref.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, facerrors.New(facerrors.ErrCodeFileNotFound,
				ref.Path+" disappeared before it could be read", err)
		}
		if os.IsPermission(err) {
			return nil, facerrors.New(facerrors.ErrCodeFilePermission,
				"cannot read "+ref.Path, err)
		}
		return nil, facerrors.New(facerrors.ErrCodeStorageIO,
			"cannot read "+ref.Path, err)
	}
	if int64(len(data)) > l.maxSize {
		return nil, facerrors.New(facerrors.ErrCodeFileTooLarge,
			fmt.Sprintf("%s grew past the %d byte limit while being read", ref.Path, l.maxSize), nil)
	}

	l.cache.Add(key, data)
	return data, nil
}

// IsNoContent reports whether a Load error means the file simply has no
// indexable content (gone, unreadable, or over the size cap) as opposed
// to an IO failure that should surface.
func IsNoContent(err error) bool {
	switch facerrors.GetCode(err) {
	case facerrors.ErrCodeFileNotFound, facerrors.ErrCodeFilePermission, facerrors.ErrCodeFileTooLarge:
		return true
	}
	return false
}

// ContentHash returns the xxhash digest used for change verification.
func ContentHash(data []byte) uint64 {
	return xxhash.Sum64(data)
}
