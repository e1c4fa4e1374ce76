package engine

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/facetdb/facet/internal/vfs"
)

// ReconcileStats summarizes one reconciliation pass.
type ReconcileStats struct {
	Added    int
	Modified int
	Deleted  int
}

// Reconcile catches up with changes that happened while the engine was
// not running: current is the present set of indexable paths (from a
// tree scan); files the engine knows that are missing from it are
// queued for removal, new paths are interned and scheduled, and known
// paths whose content moved since their recorded stamps are
// rescheduled. Verification uses mtime+size by default, or full
// content hashes when configured.
func (e *Engine) Reconcile(ctx context.Context, current []string) (ReconcileStats, error) {
	currentSet := make(map[string]struct{}, len(current))
	for _, p := range current {
		currentSet[p] = struct{}{}
	}

	var stats ReconcileStats

	// Deletions first, matching the order a live watcher would have
	// delivered them for a rename.
	e.files.Range(func(_ vfs.FileID, path string) bool {
		if _, ok := currentSet[path]; !ok {
			if id, known := e.files.Lookup(path); known {
				if _, hasStamps := e.anyStamp(id); hasStamps {
					e.FileInvalidated(path)
					stats.Deleted++
				}
			}
		}
		return true
	})

	workers := e.cfg.Indexing.Workers
	if workers <= 0 {
		workers = 4
	}
	hashVerify := e.cfg.Indexing.Verify == "hash"

	var added, modified atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, path := range current {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, known := e.files.Lookup(path)
			id, err := e.files.Intern(path)
			if err != nil {
				return err
			}
			ref, err := vfs.Stat(id, path)
			if err != nil || !ref.Valid {
				return nil
			}
			if !known {
				e.scheduleFileForIndexing(ref)
				added.Add(1)
				return nil
			}
			changed, err := e.fileChanged(ref, hashVerify)
			if err != nil {
				return err
			}
			if changed {
				e.scheduleFileForIndexing(ref)
				modified.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	stats.Added = int(added.Load())
	stats.Modified = int(modified.Load())
	if stats.Added+stats.Modified+stats.Deleted > 0 {
		e.log.Info("reconciliation found offline changes",
			slog.Int("added", stats.Added),
			slog.Int("modified", stats.Modified),
			slog.Int("deleted", stats.Deleted))
	}
	return stats, nil
}

// fileChanged decides whether ref moved since it was last indexed.
func (e *Engine) fileChanged(ref vfs.FileRef, hashVerify bool) (bool, error) {
	if hashVerify {
		data, err := e.loader.Load(ref)
		if err != nil {
			if vfs.IsNoContent(err) {
				return true, nil
			}
			return false, err
		}
		stored, ok := e.files.ContentHash(ref.ID)
		return !ok || stored != vfs.ContentHash(data), nil
	}

	// mtime mode: stale if any index the file routes to disagrees with
	// the ref's stamp.
	for _, id := range e.registry.AffectedBy(ref) {
		if !e.stamps.IsCurrent(ref, id) {
			return true, nil
		}
	}
	return false, nil
}

// anyStamp reports whether id holds a stamp under any registered
// index, i.e. the engine ever indexed it.
func (e *Engine) anyStamp(id vfs.FileID) (vfs.Stamp, bool) {
	for _, indexID := range e.registry.IDs() {
		if s, ok := e.stamps.IndexedStamp(id, indexID); ok {
			return s, true
		}
	}
	return 0, false
}
