// Package stamps is the staleness bookkeeping for the indexing engine.
// A stamp per (file, index) pair records which version of the file's
// content the index currently reflects; the tracker is the single
// source of truth for "is this file's contribution current". Stamps are
// cached write-back in memory and persisted through a small KV store so
// they survive restarts.
package stamps

import (
	"encoding/binary"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	facerrors "github.com/facetdb/facet/internal/errors"
	"github.com/facetdb/facet/internal/extension"
	"github.com/facetdb/facet/internal/storage"
	"github.com/facetdb/facet/internal/vfs"
)

// Row prefix inside the meta store. The file id is encoded big-endian
// so one file's stamps for all indexes sit in one key range.
//
//	'S' + uint32 file id + index id -> int64 stamp
const prefixStamp byte = 'S'

type key struct {
	file  vfs.FileID
	index extension.ID
}

// Tracker holds the per (file, index) indexed stamps. All reads are
// served from memory; mutations are buffered and written out on Flush.
// Safe for concurrent use.
type Tracker struct {
	store storage.Store
	live  *xsync.MapOf[key, vfs.Stamp]

	// dirty records keys whose persisted row no longer matches memory.
	// true = write the live value, false = delete the row.
	dirtyMu sync.Mutex
	dirty   map[key]bool
}

// OpenTracker loads all persisted stamps from store into memory.
// The store may be shared with other meta tables; the tracker only
// touches its own key prefix.
func OpenTracker(store storage.Store) (*Tracker, error) {
	t := &Tracker{
		store: store,
		live:  xsync.NewMapOf[key, vfs.Stamp](),
		dirty: make(map[key]bool),
	}
	err := store.Scan([]byte{prefixStamp}, func(k, v []byte) error {
		if len(k) < 6 || len(v) != 8 {
			return facerrors.CorruptionError("malformed stamp row", nil)
		}
		t.live.Store(key{
			file:  vfs.FileID(binary.BigEndian.Uint32(k[1:5])),
			index: extension.ID(k[5:]),
		}, vfs.Stamp(binary.BigEndian.Uint64(v)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func encodeKey(file vfs.FileID, index extension.ID) []byte {
	k := make([]byte, 5+len(index))
	k[0] = prefixStamp
	binary.BigEndian.PutUint32(k[1:5], uint32(vfs.Mask(file)))
	copy(k[5:], index)
	return k
}

// SetIndexed records that file's contribution to index reflects the
// content identified by stamp. Must only be called after the matching
// storage mutation has been applied.
func (t *Tracker) SetIndexed(file vfs.FileID, index extension.ID, stamp vfs.Stamp) {
	k := key{file: vfs.Mask(file), index: index}
	t.live.Store(k, stamp)
	t.markDirty(k, true)
}

// ResetIndexed drops the stamp for (file, index), marking the file's
// contribution stale. Resetting an absent stamp is a no-op.
func (t *Tracker) ResetIndexed(file vfs.FileID, index extension.ID) {
	k := key{file: vfs.Mask(file), index: index}
	if _, ok := t.live.LoadAndDelete(k); ok {
		t.markDirty(k, false)
	}
}

// IndexedStamp returns the recorded stamp for (file, index).
func (t *Tracker) IndexedStamp(file vfs.FileID, index extension.ID) (vfs.Stamp, bool) {
	return t.live.Load(key{file: vfs.Mask(file), index: index})
}

// IsCurrent reports whether the stored contribution for ref under index
// matches the ref's own stamp. An invalid ref is current only if no
// stamp exists (its contribution has been removed).
func (t *Tracker) IsCurrent(ref vfs.FileRef, index extension.ID) bool {
	stamp, ok := t.IndexedStamp(ref.ID, index)
	if !ref.Valid {
		return !ok
	}
	return ok && stamp == ref.Stamp()
}

// InvalidateFile drops the stamps file holds under every given index.
func (t *Tracker) InvalidateFile(file vfs.FileID, indexes []extension.ID) {
	for _, id := range indexes {
		t.ResetIndexed(file, id)
	}
}

// DropIndex removes every stamp recorded under index. Used when an
// index is cleared for a rebuild or unregistered.
func (t *Tracker) DropIndex(index extension.ID) {
	t.live.Range(func(k key, _ vfs.Stamp) bool {
		if k.index == index {
			t.live.Delete(k)
			t.markDirty(k, false)
		}
		return true
	})
}

// Len reports the number of live stamps.
func (t *Tracker) Len() int {
	return t.live.Size()
}

func (t *Tracker) markDirty(k key, write bool) {
	t.dirtyMu.Lock()
	t.dirty[k] = write
	t.dirtyMu.Unlock()
}

// Flush writes all buffered stamp changes to the store in one atomic
// batch and forces them to durable media. On error the dirty set is
// kept so a later flush retries everything.
func (t *Tracker) Flush() error {
	t.dirtyMu.Lock()
	if len(t.dirty) == 0 {
		t.dirtyMu.Unlock()
		return nil
	}
	pending := t.dirty
	t.dirty = make(map[key]bool)
	t.dirtyMu.Unlock()

	batch := storage.NewBatch()
	for k, write := range pending {
		row := encodeKey(k.file, k.index)
		if !write {
			batch.Delete(row)
			continue
		}
		// The live value may have moved since the key went dirty;
		// whatever is current now is what must be persisted.
		stamp, ok := t.live.Load(k)
		if !ok {
			batch.Delete(row)
			continue
		}
		var v [8]byte
		binary.BigEndian.PutUint64(v[:], uint64(stamp))
		batch.Set(row, v[:])
	}

	err := t.store.Apply(batch)
	if err == nil {
		err = t.store.Flush()
	}
	if err != nil {
		t.dirtyMu.Lock()
		for k, write := range pending {
			if _, already := t.dirty[k]; !already {
				t.dirty[k] = write
			}
		}
		t.dirtyMu.Unlock()
		return err
	}
	return nil
}
