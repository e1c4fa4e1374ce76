// Package overlay is the minimal editor-document model the engine
// depends on: per file, the current unsaved text and a monotonically
// increasing modification stamp. Everything here is in-memory and
// session-scoped; persisted index storage never sees overlay text.
package overlay

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/facetdb/facet/internal/vfs"
)

// Document is one file's unsaved in-memory state. The stamp orders
// successive edits of the same document and is always newer than any
// on-disk stamp the engine has seen for the file.
type Document struct {
	File  vfs.FileID
	Path  string
	Text  []byte
	Stamp vfs.Stamp
}

// Store holds every document with unsaved edits. Safe for concurrent
// use.
type Store struct {
	docs *xsync.MapOf[vfs.FileID, Document]
	rev  atomic.Int64

	// onChange fires after any mutation, outside all internal state.
	// The engine uses it to invalidate its overlay-current markers.
	onChange func()
}

// NewStore returns an empty document store. onChange may be nil.
func NewStore(onChange func()) *Store {
	return &Store{
		docs:     xsync.NewMapOf[vfs.FileID, Document](),
		onChange: onChange,
	}
}

// SetText records unsaved text for file, assigning a fresh stamp.
func (s *Store) SetText(file vfs.FileID, path string, text []byte) Document {
	doc := Document{
		File:  vfs.Mask(file),
		Path:  path,
		Text:  append([]byte(nil), text...),
		Stamp: vfs.Stamp(s.rev.Add(1)),
	}
	s.docs.Store(doc.File, doc)
	s.fire()
	return doc
}

// Get returns the unsaved document for file, if any.
func (s *Store) Get(file vfs.FileID) (Document, bool) {
	return s.docs.Load(vfs.Mask(file))
}

// HasUnsaved reports whether file has unsaved edits.
func (s *Store) HasUnsaved(file vfs.FileID) bool {
	_, ok := s.docs.Load(vfs.Mask(file))
	return ok
}

// Drop discards the unsaved state for file. Called on save (the
// on-disk content takes over) and on editor close without saving.
func (s *Store) Drop(file vfs.FileID) {
	if _, ok := s.docs.LoadAndDelete(vfs.Mask(file)); ok {
		s.fire()
	}
}

// Unsaved returns a weakly consistent snapshot of all unsaved
// documents.
func (s *Store) Unsaved() []Document {
	out := make([]Document, 0, s.docs.Size())
	s.docs.Range(func(_ vfs.FileID, doc Document) bool {
		out = append(out, doc)
		return true
	})
	return out
}

// Len reports the number of documents with unsaved edits.
func (s *Store) Len() int {
	return s.docs.Size()
}

func (s *Store) fire() {
	if s.onChange != nil {
		s.onChange()
	}
}
