package daemon

import (
	"context"
	"fmt"

	"github.com/facetdb/facet/internal/engine"
	"github.com/facetdb/facet/internal/extension"
	"github.com/facetdb/facet/internal/gate"
	"github.com/facetdb/facet/internal/vfs"
)

// EngineHandler serves daemon requests against a running engine.
type EngineHandler struct {
	eng *engine.Engine

	// watcherMode reports the active watch strategy for status, or ""
	// when no watcher is attached.
	watcherMode func() string
}

// NewEngineHandler returns a handler over eng. watcherMode may be nil.
func NewEngineHandler(eng *engine.Engine, watcherMode func() string) *EngineHandler {
	return &EngineHandler{eng: eng, watcherMode: watcherMode}
}

// HandleQuery brings the requested index up to date and returns its
// postings under the key, resolved to paths.
func (h *EngineHandler) HandleQuery(ctx context.Context, params QueryParams) ([]QueryHit, error) {
	id := extension.ID(params.Index)
	if !h.eng.Registry().Has(id) {
		return nil, fmt.Errorf("unknown index: %s", params.Index)
	}

	scope := vfs.Everything()
	if params.PathPrefix != "" {
		scope = vfs.UnderPath(params.PathPrefix)
	}

	read := func(ctx context.Context) ([]QueryHit, error) {
		postings, err := h.eng.Read(ctx, id, params.Key, scope)
		if err != nil {
			return nil, err
		}
		hits := make([]QueryHit, 0, len(postings))
		for _, p := range postings {
			if len(hits) >= params.Limit {
				break
			}
			path, ok := h.eng.Files().Path(p.File)
			if !ok {
				continue
			}
			hits = append(hits, QueryHit{Path: path, Value: string(p.Value)})
		}
		return hits, nil
	}

	if !params.ReliableOnly {
		return read(ctx)
	}

	var hits []QueryHit
	err := h.eng.RunWithAccessMode(ctx, gate.ModeReliableOnly, func(ctx context.Context) error {
		var rerr error
		hits, rerr = read(ctx)
		return rerr
	})
	if err != nil {
		return nil, err
	}
	return hits, nil
}

// HandleRebuild routes the named index into a rebuild.
func (h *EngineHandler) HandleRebuild(params RebuildParams) error {
	id := extension.ID(params.Index)
	if !h.eng.Registry().Has(id) {
		return fmt.Errorf("unknown index: %s", params.Index)
	}
	h.eng.RequestRebuild(id, fmt.Errorf("rebuild requested over control socket"))
	return nil
}

// HandleFlush persists buffered engine state.
func (h *EngineHandler) HandleFlush(_ context.Context) error {
	return h.eng.Flush()
}

// GetStatus reports engine-side status fields. The server fills in the
// process-level ones.
func (h *EngineHandler) GetStatus() StatusResult {
	status := StatusResult{
		PendingFiles: h.eng.Queue().Len(),
		OverlayDocs:  h.eng.Documents().Len(),
	}
	if h.watcherMode != nil {
		status.WatcherMode = h.watcherMode()
	}
	for _, id := range h.eng.Registry().IDs() {
		entry := IndexStatus{
			ID:         string(id),
			Rebuilding: !h.eng.Rebuilds().IsOk(id),
		}
		if ext, ok := h.eng.Registry().ExtensionOf(id); ok {
			entry.Version = ext.Version()
		}
		status.Indexes = append(status.Indexes, entry)
	}
	return status
}
