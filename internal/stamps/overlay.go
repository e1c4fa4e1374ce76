package stamps

import (
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/facetdb/facet/internal/extension"
	"github.com/facetdb/facet/internal/vfs"
)

// OverlayStamps tracks, per (document, index), the modification stamp
// of the unsaved text that was last fed into the index's transient
// overlay view. Purely in-memory: overlay results never touch
// persisted storage, so neither do their stamps.
//
// It also keeps the "overlay current" marker set: once a full pass
// over all unsaved documents succeeds for an index, the index is
// marked current and the walk is skipped until the next document
// change invalidates every marker.
type OverlayStamps struct {
	stamps  *xsync.MapOf[key, vfs.Stamp]
	current *xsync.MapOf[extension.ID, struct{}]
}

// NewOverlayStamps returns an empty overlay stamp table.
func NewOverlayStamps() *OverlayStamps {
	return &OverlayStamps{
		stamps:  xsync.NewMapOf[key, vfs.Stamp](),
		current: xsync.NewMapOf[extension.ID, struct{}](),
	}
}

// Get returns the last-indexed overlay stamp for (doc, index).
func (o *OverlayStamps) Get(doc vfs.FileID, index extension.ID) (vfs.Stamp, bool) {
	return o.stamps.Load(key{file: vfs.Mask(doc), index: index})
}

// Set records that index's overlay view reflects doc at stamp.
func (o *OverlayStamps) Set(doc vfs.FileID, index extension.ID, stamp vfs.Stamp) {
	o.stamps.Store(key{file: vfs.Mask(doc), index: index}, stamp)
}

// ClearDoc drops every index's overlay stamp for doc. Called when the
// document is saved or its unsaved state is discarded.
func (o *OverlayStamps) ClearDoc(doc vfs.FileID) {
	masked := vfs.Mask(doc)
	o.stamps.Range(func(k key, _ vfs.Stamp) bool {
		if k.file == masked {
			o.stamps.Delete(k)
		}
		return true
	})
}

// ClearIndex drops all overlay stamps and the current marker for index.
func (o *OverlayStamps) ClearIndex(index extension.ID) {
	o.current.Delete(index)
	o.stamps.Range(func(k key, _ vfs.Stamp) bool {
		if k.index == index {
			o.stamps.Delete(k)
		}
		return true
	})
}

// MarkCurrent records that index has seen every unsaved document at
// its present stamp.
func (o *OverlayStamps) MarkCurrent(index extension.ID) {
	o.current.Store(index, struct{}{})
}

// IsCurrent reports whether index's overlay view is known current.
func (o *OverlayStamps) IsCurrent(index extension.ID) bool {
	_, ok := o.current.Load(index)
	return ok
}

// InvalidateCurrent clears every index's current marker. Called on any
// document change.
func (o *OverlayStamps) InvalidateCurrent() {
	o.current.Range(func(id extension.ID, _ struct{}) bool {
		o.current.Delete(id)
		return true
	})
}
