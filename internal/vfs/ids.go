// Package vfs provides stable file identities for the indexing engine.
// Every tracked file gets a small non-negative integer id that survives
// restarts; stamps, index rows, and the pending queue all key off these
// ids instead of paths. Deleted files are referenced through negative
// stub ids so removal bookkeeping can still use a stable integer without
// colliding with live ids.
package vfs

import "time"

// FileID identifies one tracked file. Live files have positive ids;
// negative ids are deletion stubs; zero means "no file".
type FileID int32

// NoFile is the zero FileID, never assigned to a real file.
const NoFile FileID = 0

// IsStub reports whether id refers to a deleted-file stub.
func (id FileID) IsStub() bool {
	return id < 0
}

// Stub returns the stub id for a deleted file. Stubbing a stub returns
// the live id again.
func Stub(id FileID) FileID {
	return -id
}

// Mask returns the non-negative id behind either a live id or a stub.
// Storage rows and stamps are always keyed by the masked id.
func Mask(id FileID) FileID {
	if id < 0 {
		return -id
	}
	return id
}

// Stamp orders the states of one file or document over time. For files
// on disk it is the mtime in nanoseconds; for in-memory documents it is
// a monotonic revision counter. Larger means newer.
type Stamp int64

// StampOf converts a modification time to a Stamp.
func StampOf(t time.Time) Stamp {
	return Stamp(t.UnixNano())
}
