// Package index implements the live instance behind one registered
// index id: a durable key→file table fed by extraction deltas, plus a
// transient per-document overlay view for unsaved edits.
//
// Two row families share the index's store:
//
//	'F' + uint32 file id                      -> encoded mapping
//	'K' + uint16 key len + key + uint32 file  -> value
//
// The forward row holds the file's full current contribution and is
// what delta computation diffs against; the inverted rows serve key
// lookups. Every Update writes both families in one atomic batch, so a
// crash can never leave them disagreeing.
//
// Updates land in the store's in-memory write buffer and become
// durable on Flush; the engine's flush daemon calls Flush on idle
// ticks and unconditionally at shutdown.
package index

import (
	"bytes"
	"encoding/binary"
	"sync"
	"sync/atomic"

	facerrors "github.com/facetdb/facet/internal/errors"
	"github.com/facetdb/facet/internal/extension"
	"github.com/facetdb/facet/internal/storage"
	"github.com/facetdb/facet/internal/vfs"
)

const (
	prefixForward  byte = 'F'
	prefixInverted byte = 'K'
)

// Index is the updatable storage behind one index id. All methods are
// safe for concurrent use; Update and Clear serialize against each
// other, reads run concurrently.
type Index struct {
	id    extension.ID
	store storage.Store

	// mu is the publish lock: Update and Read take the read side so
	// independent files proceed in parallel, Clear takes the write
	// side. Atomicity per file is carried by the store batch.
	mu sync.RWMutex

	overlayMu sync.RWMutex
	overlays  map[vfs.FileID]extension.Mapping

	disposed atomic.Bool
}

// New wraps store as the live index for id.
func New(id extension.ID, store storage.Store) *Index {
	return &Index{
		id:       id,
		store:    store,
		overlays: make(map[vfs.FileID]extension.Mapping),
	}
}

// ID returns the index id this instance serves.
func (ix *Index) ID() extension.ID {
	return ix.id
}

func (ix *Index) checkLive() error {
	if ix.disposed.Load() {
		return facerrors.New(facerrors.ErrCodeEngineClosed,
			"index "+string(ix.id)+" used after dispose", nil)
	}
	return nil
}

func forwardKey(file vfs.FileID) []byte {
	k := make([]byte, 5)
	k[0] = prefixForward
	binary.BigEndian.PutUint32(k[1:], uint32(vfs.Mask(file)))
	return k
}

// invertedPrefix is the shared prefix of every posting for key. The
// length field keeps "foo" from matching "foobar" postings.
func invertedPrefix(key string) []byte {
	p := make([]byte, 3+len(key))
	p[0] = prefixInverted
	binary.BigEndian.PutUint16(p[1:3], uint16(len(key)))
	copy(p[3:], key)
	return p
}

func invertedKey(key string, file vfs.FileID) []byte {
	p := invertedPrefix(key)
	k := make([]byte, len(p)+4)
	copy(k, p)
	binary.BigEndian.PutUint32(k[len(p):], uint32(vfs.Mask(file)))
	return k
}

// Update replaces file's contribution with data. A nil data removes
// the contribution entirely (file deleted or excluded). The forward
// row, the inverted rows, and nothing else change, atomically. Errors
// are raw storage errors; classification is the caller's job.
func (ix *Index) Update(file vfs.FileID, data extension.Mapping) error {
	if err := ix.checkLive(); err != nil {
		return err
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	old, err := ix.fileData(file)
	if err != nil {
		return err
	}

	batch := storage.NewBatch()
	for key := range old {
		if _, keep := data[key]; !keep {
			batch.Delete(invertedKey(key, file))
		}
	}
	for key, value := range data {
		prev, had := old[key]
		if had && bytes.Equal(prev, value) {
			continue
		}
		batch.Set(invertedKey(key, file), value)
	}
	if len(data) == 0 {
		batch.Delete(forwardKey(file))
	} else {
		batch.Set(forwardKey(file), encodeMapping(data))
	}
	if batch.Len() == 0 {
		return nil
	}
	return ix.store.Apply(batch)
}

// Posting is one (file, value) entry under a key.
type Posting struct {
	File  vfs.FileID
	Value []byte
}

// Read visits every file contributing key, persisted entries first,
// then overlay entries. A document with an overlay mapping shadows its
// own persisted entries completely. fn errors stop the walk.
func (ix *Index) Read(key string, fn func(p Posting) error) error {
	if err := ix.checkLive(); err != nil {
		return err
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	shadowed := ix.overlayDocs()

	prefix := invertedPrefix(key)
	err := ix.store.Scan(prefix, func(k, v []byte) error {
		if len(k) != len(prefix)+4 {
			return facerrors.CorruptionError("malformed posting row", nil)
		}
		file := vfs.FileID(binary.BigEndian.Uint32(k[len(prefix):]))
		if _, hidden := shadowed[file]; hidden {
			return nil
		}
		return fn(Posting{File: file, Value: append([]byte(nil), v...)})
	})
	if err != nil {
		return err
	}

	ix.overlayMu.RLock()
	defer ix.overlayMu.RUnlock()
	for doc, mapping := range ix.overlays {
		if value, ok := mapping[key]; ok {
			if err := fn(Posting{File: doc, Value: value}); err != nil {
				return err
			}
		}
	}
	return nil
}

// FileData returns file's current persisted contribution. An empty
// mapping means the file contributes nothing.
func (ix *Index) FileData(file vfs.FileID) (extension.Mapping, error) {
	if err := ix.checkLive(); err != nil {
		return nil, err
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.fileData(file)
}

func (ix *Index) fileData(file vfs.FileID) (extension.Mapping, error) {
	raw, err := ix.store.Get(forwardKey(file))
	if err != nil {
		if err == storage.ErrKeyNotFound {
			return extension.Mapping{}, nil
		}
		return nil, err
	}
	return decodeMapping(raw)
}

// HasFile reports whether file currently contributes to the index.
func (ix *Index) HasFile(file vfs.FileID) (bool, error) {
	if err := ix.checkLive(); err != nil {
		return false, err
	}
	_, err := ix.store.Get(forwardKey(file))
	if err == storage.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetOverlay installs the transient overlay mapping for doc. Only
// overlay-aware extensions' indexes ever receive one.
func (ix *Index) SetOverlay(doc vfs.FileID, data extension.Mapping) {
	ix.overlayMu.Lock()
	ix.overlays[vfs.Mask(doc)] = data
	ix.overlayMu.Unlock()
}

// ClearOverlay drops the transient view for doc.
func (ix *Index) ClearOverlay(doc vfs.FileID) {
	ix.overlayMu.Lock()
	delete(ix.overlays, vfs.Mask(doc))
	ix.overlayMu.Unlock()
}

// ClearAllOverlays drops every transient view.
func (ix *Index) ClearAllOverlays() {
	ix.overlayMu.Lock()
	ix.overlays = make(map[vfs.FileID]extension.Mapping)
	ix.overlayMu.Unlock()
}

func (ix *Index) overlayDocs() map[vfs.FileID]struct{} {
	ix.overlayMu.RLock()
	defer ix.overlayMu.RUnlock()
	if len(ix.overlays) == 0 {
		return nil
	}
	docs := make(map[vfs.FileID]struct{}, len(ix.overlays))
	for doc := range ix.overlays {
		docs[doc] = struct{}{}
	}
	return docs
}

// Flush forces buffered writes to durable media.
func (ix *Index) Flush() error {
	if err := ix.checkLive(); err != nil {
		return err
	}
	return ix.store.Flush()
}

// Clear wipes every persisted row and every overlay. The index is
// empty and usable afterwards; used by rebuilds and version bumps.
func (ix *Index) Clear() error {
	if err := ix.checkLive(); err != nil {
		return err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	batch := storage.NewBatch()
	for _, prefix := range [][]byte{{prefixForward}, {prefixInverted}} {
		err := ix.store.Scan(prefix, func(k, _ []byte) error {
			batch.Delete(k)
			return nil
		})
		if err != nil {
			return err
		}
	}
	if batch.Len() > 0 {
		if err := ix.store.Apply(batch); err != nil {
			return err
		}
	}
	ix.ClearAllOverlays()
	return nil
}

// Dispose flushes and closes the index. Any use afterwards fails with
// an engine-closed error. Dispose itself is idempotent.
func (ix *Index) Dispose() error {
	if ix.disposed.Swap(true) {
		return nil
	}
	return ix.store.Close()
}
