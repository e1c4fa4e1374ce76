package engine

import (
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/facetdb/facet/internal/extension"
	"github.com/facetdb/facet/internal/telemetry"
	"github.com/facetdb/facet/internal/vfs"
)

// performRebuild is the rebuild tracker's action: it runs off the
// requesting goroutine (the requester may hold a read permit) and
// takes the index from flagged back to Ok. Order matters: the version
// marker is advanced first, so a crash at any later point leaves the
// index looking just-created instead of half-built.
func (e *Engine) performRebuild(id extension.ID, cause error) {
	if e.state.Load() == stateClosed {
		return
	}
	idx, ok := e.registry.Get(id)
	if !ok {
		e.rebuilds.Reset(id)
		return
	}

	e.gate.EnterTransitional()
	defer e.gate.ExitTransitional()

	e.log.Warn("index rebuild starting",
		slog.String("index", string(id)),
		slog.Any("cause", cause))

	if err := e.registry.RewriteVersion(id); err != nil {
		e.log.Error("rebuild cannot rewrite version marker",
			slog.String("index", string(id)),
			slog.String("error", err.Error()))
		return
	}

	e.applyMu.Lock()
	err := idx.Clear()
	if err == nil {
		e.stamps.DropIndex(id)
		e.overlays.ClearIndex(id)
	}
	e.applyMu.Unlock()
	if err != nil {
		e.log.Error("rebuild cannot clear index storage",
			slog.String("index", string(id)),
			slog.String("error", err.Error()))
		return
	}

	resubmitted := e.resubmitKnownFiles(id)
	e.rebuilds.Reset(id)

	if e.metrics {
		telemetry.RebuildCount.WithLabelValues(string(id), "completed").Inc()
		telemetry.PendingFiles.Set(float64(e.queue.Len()))
	}
	e.log.Info("index rebuild complete",
		slog.String("index", string(id)),
		slog.Int("files_resubmitted", resubmitted))
}

// resubmitKnownFiles re-schedules every known file the index's filter
// accepts. Stat runs in parallel; a file that vanished since it was
// interned is simply skipped, its rows are already gone from the
// cleared storage.
func (e *Engine) resubmitKnownFiles(id extension.ID) int {
	ext, ok := e.registry.ExtensionOf(id)
	if !ok {
		return 0
	}

	type known struct {
		id   vfs.FileID
		path string
	}
	var all []known
	e.files.Range(func(fid vfs.FileID, path string) bool {
		all = append(all, known{id: fid, path: path})
		return true
	})

	workers := e.cfg.Indexing.Workers
	if workers <= 0 {
		workers = 4
	}
	var g errgroup.Group
	g.SetLimit(workers)
	var count atomic.Int64
	for _, k := range all {
		g.Go(func() error {
			ref, err := vfs.Stat(k.id, k.path)
			if err != nil || !ref.Valid || !ext.Accepts(ref) {
				return nil
			}
			e.stamps.ResetIndexed(ref.ID, id)
			e.queue.Schedule(ref)
			count.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(count.Load())
}
