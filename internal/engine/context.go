package engine

import (
	"context"

	"github.com/facetdb/facet/internal/vfs"
)

// The engine carries its per-caller flags on the context instead of in
// per-goroutine ambient state: the reentrancy slot for EnsureUpToDate,
// the nested disable counter for the up-to-date check, and the
// currently-indexing file marker extractors may consult.

type reentrancyKey struct{}

// withEnsureActive marks ctx as being inside EnsureUpToDate.
func withEnsureActive(ctx context.Context) context.Context {
	return context.WithValue(ctx, reentrancyKey{}, true)
}

// ensureActive reports whether this caller context is already inside
// EnsureUpToDate. Nested calls collapse to a no-op instead of
// recursing: an extractor that reads its own index must not deadlock.
func ensureActive(ctx context.Context) bool {
	active, _ := ctx.Value(reentrancyKey{}).(bool)
	return active
}

type disableCheckKey struct{}

// DisableUpToDateCheck returns a context under which EnsureUpToDate is
// a no-op. Nests: each call adds one level.
func DisableUpToDateCheck(ctx context.Context) context.Context {
	depth, _ := ctx.Value(disableCheckKey{}).(int)
	return context.WithValue(ctx, disableCheckKey{}, depth+1)
}

func upToDateCheckDisabled(ctx context.Context) bool {
	depth, _ := ctx.Value(disableCheckKey{}).(int)
	return depth > 0
}

type indexingFileKey struct{}

func withIndexingFile(ctx context.Context, id vfs.FileID) context.Context {
	return context.WithValue(ctx, indexingFileKey{}, id)
}

// CurrentlyIndexing returns the file the engine is extracting on this
// call chain, if any. Extractors use it to detect self-referential
// reads.
func CurrentlyIndexing(ctx context.Context) (vfs.FileID, bool) {
	id, ok := ctx.Value(indexingFileKey{}).(vfs.FileID)
	return id, ok
}
