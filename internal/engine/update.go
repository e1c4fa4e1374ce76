package engine

import (
	"context"
	"log/slog"
	"time"

	facerrors "github.com/facetdb/facet/internal/errors"
	"github.com/facetdb/facet/internal/extension"
	"github.com/facetdb/facet/internal/gate"
	"github.com/facetdb/facet/internal/index"
	"github.com/facetdb/facet/internal/storage"
	"github.com/facetdb/facet/internal/telemetry"
	"github.com/facetdb/facet/internal/vfs"
)

// EnsureUpToDate synchronously brings indexID current for every file
// in scope known to the pending queue at call start. On success every
// such file is reflected in storage, or the index has been routed to a
// rebuild and a retryable not-ready error is returned. Files outside
// scope stay pending for a later call.
//
// Nested calls on the same caller context collapse to a no-op, as do
// calls under DisableUpToDateCheck. Under a declared degraded access
// mode the drain is skipped entirely: the caller asked to read
// whatever state exists.
func (e *Engine) EnsureUpToDate(ctx context.Context, indexID extension.ID, scope vfs.Scope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ensureActive(ctx) || upToDateCheckDisabled(ctx) {
		return nil
	}

	switch e.state.Load() {
	case stateClosed:
		return facerrors.New(facerrors.ErrCodeEngineClosed, "engine is closed", nil)
	case stateNew:
		if gate.ModeFrom(ctx) == gate.ModeNone {
			return facerrors.NotReadyError("engine is still initializing")
		}
	}

	ext, ok := e.registry.ExtensionOf(indexID)
	if !ok {
		return facerrors.New(facerrors.ErrCodeUnknownIndex,
			"index "+string(indexID)+" is not registered", nil)
	}
	if !e.rebuilds.IsOk(indexID) {
		if e.metrics {
			telemetry.NotReadyCount.Inc()
		}
		return facerrors.New(facerrors.ErrCodeRebuildInProgress,
			"index "+string(indexID)+" is rebuilding", nil)
	}

	ctx = withEnsureActive(ctx)

	if gate.ModeFrom(ctx) == gate.ModeNone {
		for _, ref := range e.queue.InScope(scope) {
			if err := e.processFile(ctx, ref); err != nil {
				return err
			}
			if !e.rebuilds.IsOk(indexID) {
				return facerrors.New(facerrors.ErrCodeRebuildInProgress,
					"index "+string(indexID)+" is rebuilding", nil)
			}
		}
	}

	if ext.Capabilities().Has(extension.OverlayAware) {
		if err := e.indexUnsavedDocuments(ctx, indexID, ext, scope); err != nil {
			return err
		}
	}
	return nil
}

// processFile brings one pending file current across every index its
// input filters route it to, then unschedules it. A cancellation mid
// way leaves the file pending, never half-recorded as current.
func (e *Engine) processFile(ctx context.Context, ref vfs.FileRef) error {
	ctx = withIndexingFile(ctx, ref.ID)

	// The ref in the queue may be stale; what counts is the file's
	// state now.
	if ref.Valid {
		fresh, err := vfs.Stat(ref.ID, ref.Path)
		if err != nil {
			return err
		}
		ref = fresh
	}

	// Input filters route live files. A deletion stub bypasses them:
	// the file's old shape may have matched filters its current name
	// no longer does, so its masked-id rows are wiped everywhere.
	affected := e.registry.AffectedBy(ref)
	if !ref.Valid {
		affected = e.registry.IDs()
	}

	var content []byte
	if ref.Valid {
		needs := false
		for _, id := range affected {
			if ext, ok := e.registry.ExtensionOf(id); ok && ext.Capabilities().NeedsContent() {
				needs = true
				break
			}
		}
		if needs {
			data, err := e.loader.Load(ref)
			switch {
			case err == nil:
				content = data
				// Recorded for hash-mode reconciliation after restarts.
				if herr := e.files.SetContentHash(ref.ID, vfs.ContentHash(content)); herr != nil {
					e.log.Debug("content hash not recorded",
						slog.String("path", ref.Path),
						slog.String("error", herr.Error()))
				}
			case vfs.IsNoContent(err):
				// Oversized or vanished: the file contributes nothing.
				content = nil
			default:
				return err
			}
		}
	}

	allApplied := true
	for _, id := range affected {
		applied, err := e.updateSingleIndex(ctx, id, ref, content)
		if err != nil {
			return err
		}
		if !applied {
			allApplied = false
		}
	}
	// A skipped update (index flagged, or the failure that flagged it)
	// leaves the file pending; the rebuild will want it again.
	if allApplied {
		e.queue.Unschedule(ref.ID)
	}
	if e.metrics {
		telemetry.PendingFiles.Set(float64(e.queue.Len()))
	}
	return nil
}

// updateSingleIndex replaces file's contribution to indexID. A nil
// content (or an invalid ref) removes the contribution. Returns
// whether the update was applied.
//
// Failure policy: while the index is flagged for rebuild this is a
// guaranteed no-op returning false. A storage-class failure routes the
// index to the rebuild tracker and returns false. Anything else
// propagates: it is a bug, not an expected condition. A cancelled ctx
// aborts before anything is published, leaving stamps untouched.
func (e *Engine) updateSingleIndex(ctx context.Context, indexID extension.ID, ref vfs.FileRef, content []byte) (bool, error) {
	if !e.rebuilds.IsOk(indexID) {
		return false, nil
	}
	ext, ok := e.registry.ExtensionOf(indexID)
	if !ok {
		return false, facerrors.New(facerrors.ErrCodeUnknownIndex,
			"index "+string(indexID)+" is not registered", nil)
	}
	idx, _ := e.registry.Get(indexID)

	// Submission-order guard: if the recorded stamp already reflects
	// this content (or newer), a stale resubmission must not clobber it.
	if ref.Valid {
		if cur, has := e.stamps.IndexedStamp(ref.ID, indexID); has && cur >= ref.Stamp() {
			return true, nil
		}
	}

	start := time.Now()

	// Extraction runs outside every lock; only the publish step below
	// is serialized.
	var data extension.Mapping
	if ref.Valid && (content != nil || !ext.Capabilities().NeedsContent()) {
		var err error
		data, err = ext.Extract(ctx, extension.Input{File: ref, Content: content})
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			return false, facerrors.New(facerrors.ErrCodeExtractionFailed,
				"extraction failed for index "+string(indexID), err)
		}
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}

	e.applyMu.RLock()
	err := idx.Update(ref.ID, data)
	if err == nil {
		// The stamp moves in the same critical section as the
		// successful mutation; the tracker never claims currency
		// storage cannot back.
		if ref.Valid {
			e.stamps.SetIndexed(ref.ID, indexID, ref.Stamp())
		} else {
			e.stamps.ResetIndexed(ref.ID, indexID)
		}
		e.modCount.Add(1)
	}
	e.applyMu.RUnlock()

	if err != nil {
		if storage.IsFailure(err) {
			if e.metrics {
				telemetry.UpdateCount.WithLabelValues(string(indexID), "storage-failure").Inc()
			}
			e.RequestRebuild(indexID, err)
			return false, nil
		}
		return false, err
	}

	if e.metrics {
		telemetry.UpdateCount.WithLabelValues(string(indexID), "applied").Inc()
		telemetry.UpdateDuration.WithLabelValues(string(indexID)).Observe(time.Since(start).Seconds())
	}
	return true, nil
}

// indexUnsavedDocuments refreshes indexID's transient overlay views
// for every unsaved document in scope. Results never touch persisted
// storage; per-document stamps avoid recomputing unchanged text, and a
// complete pass over all documents marks the index overlay-current
// until the next document change.
func (e *Engine) indexUnsavedDocuments(ctx context.Context, indexID extension.ID, ext extension.Extension, scope vfs.Scope) error {
	if e.overlays.IsCurrent(indexID) {
		return nil
	}
	idx, ok := e.registry.Get(indexID)
	if !ok {
		return nil
	}

	fullPass := true
	for _, doc := range e.docs.Unsaved() {
		if err := ctx.Err(); err != nil {
			return err
		}
		ref := vfs.FileRef{ID: doc.File, Path: doc.Path, Size: int64(len(doc.Text)), Valid: true}
		if !scope.Contains(ref) {
			fullPass = false
			continue
		}
		if !ext.Accepts(ref) {
			continue
		}
		if last, ok := e.overlays.Get(doc.File, indexID); ok && last == doc.Stamp {
			continue
		}
		if int64(len(doc.Text)) > e.loader.MaxFileSize() {
			idx.ClearOverlay(doc.File)
			e.overlays.Set(doc.File, indexID, doc.Stamp)
			continue
		}
		data, err := ext.Extract(ctx, extension.Input{File: ref, Content: doc.Text})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return facerrors.New(facerrors.ErrCodeExtractionFailed,
				"overlay extraction failed for index "+string(indexID), err)
		}
		idx.SetOverlay(doc.File, data)
		e.overlays.Set(doc.File, indexID, doc.Stamp)
	}

	if fullPass {
		e.overlays.MarkCurrent(indexID)
	}
	return nil
}

// Read returns every posting under key in indexID, after bringing the
// index current for scope. Entries are filtered by scope and by the
// caller's declared access mode; under ReliableDataOnly, files still
// pending reindexing are excluded. The result is either consistent
// data or a retryable not-ready error, never silently stale data.
func (e *Engine) Read(ctx context.Context, indexID extension.ID, key string, scope vfs.Scope) ([]index.Posting, error) {
	if err := e.gate.CheckRead(ctx); err != nil {
		if e.metrics {
			telemetry.NotReadyCount.Inc()
			telemetry.ReadCount.WithLabelValues(string(indexID), "not-ready").Inc()
		}
		return nil, err
	}
	if err := e.EnsureUpToDate(ctx, indexID, scope); err != nil {
		if e.metrics {
			telemetry.ReadCount.WithLabelValues(string(indexID), "not-ready").Inc()
		}
		return nil, err
	}
	idx, ok := e.registry.Get(indexID)
	if !ok {
		return nil, facerrors.New(facerrors.ErrCodeUnknownIndex,
			"index "+string(indexID)+" is not registered", nil)
	}

	var out []index.Posting
	err := idx.Read(key, func(p index.Posting) error {
		if !e.gate.FileVisible(ctx, p.File) {
			return nil
		}
		path, ok := e.files.Path(p.File)
		if !ok {
			e.log.Debug("posting for unknown file id skipped",
				slog.String("index", string(indexID)),
				slog.Int("file", int(p.File)))
			return nil
		}
		if !scope.Contains(vfs.FileRef{ID: p.File, Path: path, Valid: true}) {
			return nil
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		if storage.IsFailure(err) {
			e.RequestRebuild(indexID, err)
			if e.metrics {
				telemetry.ReadCount.WithLabelValues(string(indexID), "storage-failure").Inc()
			}
			return nil, facerrors.New(facerrors.ErrCodeRebuildInProgress,
				"index "+string(indexID)+" failed during read and is rebuilding", err)
		}
		return nil, err
	}
	if e.metrics {
		telemetry.ReadCount.WithLabelValues(string(indexID), "ok").Inc()
	}
	return out, nil
}
