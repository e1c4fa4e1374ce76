// Package pending holds the engine's change queue: the set of files
// known to require (re)indexing. Scheduling is idempotent, membership
// checks are O(1), and enumeration is a weakly consistent snapshot safe
// to take while producers keep scheduling.
package pending

import (
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/facetdb/facet/internal/vfs"
)

// Queue is the concurrent pending-file set. Entries are keyed by the
// masked file id, so a live file and its deletion stub occupy the same
// slot; the ref stored last wins, which is exactly the newest known
// state of the file.
type Queue struct {
	files *xsync.MapOf[vfs.FileID, vfs.FileRef]
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{files: xsync.NewMapOf[vfs.FileID, vfs.FileRef]()}
}

// Schedule records that ref needs (re)indexing. Scheduling an already
// pending file replaces its stored ref; repeated calls are otherwise a
// no-op.
func (q *Queue) Schedule(ref vfs.FileRef) {
	q.files.Store(vfs.Mask(ref.ID), ref)
}

// Unschedule removes id from the pending set. Only the logical update
// that resolved the file may call this; dropping an entry any other way
// would lose a scheduled file.
func (q *Queue) Unschedule(id vfs.FileID) {
	q.files.Delete(vfs.Mask(id))
}

// IsScheduled reports whether id is pending.
func (q *Queue) IsScheduled(id vfs.FileID) bool {
	_, ok := q.files.Load(vfs.Mask(id))
	return ok
}

// Get returns the pending ref for id, if any.
func (q *Queue) Get(id vfs.FileID) (vfs.FileRef, bool) {
	return q.files.Load(vfs.Mask(id))
}

// All returns a weakly consistent snapshot of the pending refs. Files
// scheduled during the snapshot may or may not appear.
func (q *Queue) All() []vfs.FileRef {
	out := make([]vfs.FileRef, 0, q.files.Size())
	q.files.Range(func(_ vfs.FileID, ref vfs.FileRef) bool {
		out = append(out, ref)
		return true
	})
	return out
}

// InScope returns the pending refs that fall inside scope.
func (q *Queue) InScope(scope vfs.Scope) []vfs.FileRef {
	out := make([]vfs.FileRef, 0)
	q.files.Range(func(_ vfs.FileID, ref vfs.FileRef) bool {
		if scope.Contains(ref) {
			out = append(out, ref)
		}
		return true
	})
	return out
}

// Len reports the number of pending files.
func (q *Queue) Len() int {
	return q.files.Size()
}
