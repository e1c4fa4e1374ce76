package engine

import (
	"context"
	"log/slog"

	"github.com/facetdb/facet/internal/extension"
	"github.com/facetdb/facet/internal/telemetry"
	"github.com/facetdb/facet/internal/vfs"
)

// File-change notifications. The watcher (or any external notifier)
// calls these; each one invalidates staleness stamps and lands the
// file in the pending queue, except for contentless indexes which are
// updated eagerly inline since no content load is needed.

// FileCreated records a newly appeared file.
func (e *Engine) FileCreated(path string) error {
	id, err := e.files.Intern(path)
	if err != nil {
		return err
	}
	ref, err := vfs.Stat(id, path)
	if err != nil {
		return err
	}
	e.scheduleFileForIndexing(ref)
	return nil
}

// FileContentChanged records that path's on-disk content moved.
func (e *Engine) FileContentChanged(path string) error {
	return e.FileCreated(path)
}

// FileInvalidated records that path is gone. Its contribution is
// queued for removal under a deletion stub id; a file the engine never
// saw is a no-op.
func (e *Engine) FileInvalidated(path string) {
	id, ok := e.files.Lookup(path)
	if !ok {
		return
	}
	e.scheduleFileForIndexing(vfs.InvalidRef(vfs.Stub(id), path))
}

// scheduleFileForIndexing routes one file event. Contentless indexes
// are updated inline; content-based ones get their stamps reset and a
// queue entry. Files over the size limit are wiped instead of queued.
func (e *Engine) scheduleFileForIndexing(ref vfs.FileRef) {
	ctx := context.Background()
	affected := e.registry.AffectedBy(ref)
	if len(affected) == 0 {
		// A resurrected or renamed file may still hold rows under its
		// masked id even when no filter accepts its current shape.
		if !ref.Valid {
			e.queue.Schedule(ref)
		}
		return
	}

	tooLarge := ref.Valid && ref.Size > e.loader.MaxFileSize()

	queued := false
	for _, id := range affected {
		ext, ok := e.registry.ExtensionOf(id)
		if !ok {
			continue
		}
		switch {
		case ext.Capabilities().Has(extension.Contentless):
			if _, err := e.updateSingleIndex(ctx, id, ref, nil); err != nil {
				e.log.Warn("eager contentless update failed",
					slog.String("index", string(id)),
					slog.String("path", ref.Path),
					slog.String("error", err.Error()))
			}
		case tooLarge:
			// Oversized files never carry content entries; wipe any
			// prior contribution right here and keep it off the queue.
			if _, err := e.updateSingleIndex(ctx, id, ref, nil); err != nil {
				e.log.Warn("oversize wipe failed",
					slog.String("index", string(id)),
					slog.String("path", ref.Path),
					slog.String("error", err.Error()))
			}
		default:
			e.stamps.ResetIndexed(ref.ID, id)
			queued = true
		}
	}
	if tooLarge {
		e.queue.Unschedule(ref.ID)
		return
	}
	if queued {
		e.queue.Schedule(ref)
		if e.metrics {
			telemetry.PendingFiles.Set(float64(e.queue.Len()))
		}
	}
}

// Document events: the minimal overlay contract. Unsaved text feeds
// only the transient per-index views; persisted storage keeps
// reflecting on-disk content.

// DocumentEdited records fresh unsaved text for path.
func (e *Engine) DocumentEdited(path string, text []byte) error {
	id, err := e.files.Intern(path)
	if err != nil {
		return err
	}
	e.docs.SetText(id, path, text)
	if e.metrics {
		telemetry.OverlayDocs.Set(float64(e.docs.Len()))
	}
	return nil
}

// DocumentSaved drops path's unsaved state and schedules the on-disk
// content for reindexing; the persisted rows take over from the
// overlay view.
func (e *Engine) DocumentSaved(path string) error {
	id, ok := e.files.Lookup(path)
	if !ok {
		return nil
	}
	e.docs.Drop(id)
	e.cleanupDocumentOverlays(id)
	return e.FileContentChanged(path)
}

// DocumentDropped discards path's unsaved state without saving.
func (e *Engine) DocumentDropped(path string) {
	id, ok := e.files.Lookup(path)
	if !ok {
		return
	}
	e.docs.Drop(id)
	e.cleanupDocumentOverlays(id)
}

func (e *Engine) cleanupDocumentOverlays(id vfs.FileID) {
	for _, indexID := range e.registry.WithCapability(extension.OverlayAware) {
		if idx, ok := e.registry.Get(indexID); ok {
			idx.ClearOverlay(id)
		}
	}
	e.overlays.ClearDoc(id)
	if e.metrics {
		telemetry.OverlayDocs.Set(float64(e.docs.Len()))
	}
}
