package vfs

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	facerrors "github.com/facetdb/facet/internal/errors"
	"github.com/facetdb/facet/internal/storage"
)

// Key layout inside the registry store. Ids are encoded big-endian so
// id-keyed rows scan in numeric order.
//
//	'P' + path      -> uint32 id
//	'I' + uint32 id -> path
//	'H' + uint32 id -> uint64 content hash
//	'N'             -> uint32 next id to assign
const (
	prefixPath byte = 'P'
	prefixID   byte = 'I'
	prefixHash byte = 'H'
)

var counterKey = []byte{'N'}

// Registry is the persistent path <-> id table. Ids are assigned once
// per path and never reclaimed, so a stamp or index row written against
// an id stays meaningful across restarts even if the file is deleted
// and later recreated.
//
// All lookups are served from in-memory maps; the backing store is only
// touched when a new id is assigned or a content hash is recorded.
type Registry struct {
	store  storage.Store
	byPath *xsync.MapOf[string, FileID]
	byID   *xsync.MapOf[FileID, string]
	hashes *xsync.MapOf[FileID, uint64]

	allocMu sync.Mutex
	next    uint32
}

// OpenRegistry loads the path table from store into memory.
func OpenRegistry(store storage.Store) (*Registry, error) {
	r := &Registry{
		store:  store,
		byPath: xsync.NewMapOf[string, FileID](),
		byID:   xsync.NewMapOf[FileID, string](),
		hashes: xsync.NewMapOf[FileID, uint64](),
	}

	raw, err := store.Get(counterKey)
	switch {
	case err == nil:
		if len(raw) == 4 {
			r.next = binary.BigEndian.Uint32(raw)
		}
	case errors.Is(err, storage.ErrKeyNotFound):
	default:
		return nil, err
	}
	if r.next == 0 {
		r.next = 1
	}

	err = store.Scan([]byte{prefixPath}, func(key, value []byte) error {
		if len(key) < 2 || len(value) != 4 {
			return facerrors.CorruptionError("malformed registry row", nil)
		}
		path := string(key[1:])
		id := FileID(binary.BigEndian.Uint32(value))
		r.byPath.Store(path, id)
		r.byID.Store(id, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = store.Scan([]byte{prefixHash}, func(key, value []byte) error {
		if len(key) != 5 || len(value) != 8 {
			return facerrors.CorruptionError("malformed registry hash row", nil)
		}
		id := FileID(binary.BigEndian.Uint32(key[1:]))
		r.hashes.Store(id, binary.BigEndian.Uint64(value))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Intern returns the id for path, assigning and persisting a fresh one
// on first sight. The new mapping is durable before it becomes visible.
func (r *Registry) Intern(path string) (FileID, error) {
	if path == "" {
		return NoFile, facerrors.New(facerrors.ErrCodeInvalidPath,
			"cannot intern an empty path", nil)
	}
	if id, ok := r.byPath.Load(path); ok {
		return id, nil
	}

	r.allocMu.Lock()
	defer r.allocMu.Unlock()
	if id, ok := r.byPath.Load(path); ok {
		return id, nil
	}

	id := FileID(r.next)
	var idb [4]byte
	binary.BigEndian.PutUint32(idb[:], uint32(id))
	var nb [4]byte
	binary.BigEndian.PutUint32(nb[:], r.next+1)

	b := storage.NewBatch()
	b.Set(append([]byte{prefixPath}, path...), idb[:])
	b.Set(append([]byte{prefixID}, idb[:]...), []byte(path))
	b.Set(counterKey, nb[:])
	if err := r.store.Apply(b); err != nil {
		return NoFile, err
	}

	r.next++
	r.byPath.Store(path, id)
	r.byID.Store(id, path)
	return id, nil
}

// Lookup returns the id for path without assigning one.
func (r *Registry) Lookup(path string) (FileID, bool) {
	return r.byPath.Load(path)
}

// Path returns the path behind id. Stub ids resolve to the path of the
// file they mask.
func (r *Registry) Path(id FileID) (string, bool) {
	return r.byID.Load(Mask(id))
}

// Len reports how many paths have ids.
func (r *Registry) Len() int {
	return r.byPath.Size()
}

// Range calls fn for every known (id, path) pair until fn returns
// false. Enumeration order is unspecified, and pairs interned during
// the walk may or may not be visited.
func (r *Registry) Range(fn func(id FileID, path string) bool) {
	r.byID.Range(func(id FileID, path string) bool {
		return fn(id, path)
	})
}

// SetContentHash records the content hash observed when id was last
// indexed. Reconciliation in hash mode compares against this value.
func (r *Registry) SetContentHash(id FileID, hash uint64) error {
	id = Mask(id)
	var key [5]byte
	key[0] = prefixHash
	binary.BigEndian.PutUint32(key[1:], uint32(id))
	var val [8]byte
	binary.BigEndian.PutUint64(val[:], hash)
	if err := r.store.Set(key[:], val[:]); err != nil {
		return err
	}
	r.hashes.Store(id, hash)
	return nil
}

// ContentHash returns the recorded hash for id, if any.
func (r *Registry) ContentHash(id FileID) (uint64, bool) {
	return r.hashes.Load(Mask(id))
}

// Flush forces the backing store to durable state.
func (r *Registry) Flush() error {
	return r.store.Flush()
}

// Close flushes and closes the backing store.
func (r *Registry) Close() error {
	return r.store.Close()
}
