// Package extension defines the contract between the indexing engine and
// the pluggable extraction functions that populate each index. An
// extension is a pure function from file content to a key→value mapping;
// the engine owns everything else (scheduling, storage, staleness).
package extension

import (
	"context"

	"github.com/facetdb/facet/internal/vfs"
)

// ID identifies one index definition. Ids are globally unique and stable
// across restarts; the persisted storage directory for an index is named
// after its id.
type ID string

// Capability describes what an extension needs from the engine.
type Capability uint8

const (
	// ContentBased extensions receive the file's byte content; the engine
	// loads it before calling Extract.
	ContentBased Capability = 1 << iota

	// Contentless extensions derive their mapping from file identity and
	// metadata alone. They are updated eagerly on create/delete events
	// without a trip through the pending queue.
	Contentless

	// OverlayAware extensions also see unsaved in-memory document text.
	// Overlay results feed a transient per-index view and never touch
	// persisted storage.
	OverlayAware
)

// Has reports whether c includes want.
func (c Capability) Has(want Capability) bool {
	return c&want != 0
}

// NeedsContent reports whether the engine must load file bytes before
// calling Extract.
func (c Capability) NeedsContent() bool {
	return c.Has(ContentBased)
}

// Mapping is the result of one extraction: the keys this file
// contributes to the index, each with an optional per-file value.
// A nil value is a valid entry (key presence only).
type Mapping map[string][]byte

// Input carries everything an extension may look at for one file.
// Content is nil for contentless extensions and for deleted files.
type Input struct {
	File    vfs.FileRef
	Content []byte
}

// Extension is one index definition. Implementations must be pure:
// calling Extract twice with the same input yields the same mapping,
// and no state is carried between calls. Extract runs concurrently
// from multiple goroutines.
type Extension interface {
	// ID returns the stable identifier for this index.
	ID() ID

	// Version is the author-declared version of the extraction logic.
	// Bumping it invalidates all persisted data for the index and
	// forces a full rebuild at next registration.
	Version() int

	// Capabilities declares what this extension needs from the engine.
	Capabilities() Capability

	// Accepts is the input filter: only files it accepts are ever
	// handed to Extract. It must be cheap; it runs on every file event.
	Accepts(ref vfs.FileRef) bool

	// Extract computes the file's contribution to the index. Long
	// extractions must honor ctx cancellation; a canceled extraction
	// leaves no trace in the engine.
	Extract(ctx context.Context, in Input) (Mapping, error)
}
