// Package storage provides the durable key-value layer backing each index.
// Every registered index owns one Store; the engine above it treats the
// store as an ordered byte-keyed map and never assumes a particular backend.
// Three interchangeable backends are supported: Pebble (default), SQLite,
// and an in-memory store for tests.
package storage

import (
	"errors"

	facerrors "github.com/facetdb/facet/internal/errors"
)

// ErrKeyNotFound is returned by Get when the key has no entry.
// It is a normal miss, not a storage failure.
var ErrKeyNotFound = errors.New("key not found")

// ErrStoreClosed is returned by operations on a closed store.
var ErrStoreClosed = errors.New("store is closed")

// Store is the durable key-value surface behind a single index.
// Keys are ordered by byte comparison; Scan visits them in ascending order.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key, or ErrKeyNotFound.
	// The returned slice is owned by the caller.
	Get(key []byte) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(key, value []byte) error

	// Delete removes key. Deleting an absent key is a no-op.
	Delete(key []byte) error

	// Apply applies every mutation in batch as a single atomic write.
	// Either all mutations land or none do.
	Apply(batch *Batch) error

	// Scan visits every entry whose key starts with prefix, in ascending
	// key order. The key and value slices are only valid for the duration
	// of the callback. Returning an error from fn stops the scan and
	// propagates the error unchanged.
	Scan(prefix []byte, fn func(key, value []byte) error) error

	// Flush forces buffered writes to durable media.
	Flush() error

	// Close flushes and releases the store. The store is unusable after.
	Close() error
}

// Batch accumulates mutations for a single atomic Apply.
// A Batch is not safe for concurrent use.
type Batch struct {
	ops []batchOp
}

type batchOp struct {
	key    []byte
	value  []byte
	delete bool
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Set records a write of value under key.
func (b *Batch) Set(key, value []byte) {
	b.ops = append(b.ops, batchOp{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
}

// Delete records a removal of key.
func (b *Batch) Delete(key []byte) {
	b.ops = append(b.ops, batchOp{key: append([]byte(nil), key...), delete: true})
}

// Len returns the number of recorded mutations.
func (b *Batch) Len() int {
	return len(b.ops)
}

// Reset discards all recorded mutations so the batch can be reused.
func (b *Batch) Reset() {
	b.ops = b.ops[:0]
}

// IsFailure reports whether err is a storage-layer failure (I/O error or
// detected corruption). The engine routes such failures into a rebuild of
// the affected index. Normal misses and closed-store errors are not
// failures.
func IsFailure(err error) bool {
	if err == nil || errors.Is(err, ErrKeyNotFound) || errors.Is(err, ErrStoreClosed) {
		return false
	}
	return facerrors.GetCategory(err) == facerrors.CategoryStorage
}

// prefixSuccessor returns the smallest key greater than every key that
// starts with prefix, for use as an exclusive upper bound. Returns nil
// when no upper bound exists (prefix is empty or all 0xff).
func prefixSuccessor(prefix []byte) []byte {
	for i := len(prefix) - 1; i >= 0; i-- {
		if prefix[i] != 0xff {
			end := append([]byte(nil), prefix[:i+1]...)
			end[i]++
			return end
		}
	}
	return nil
}

// hasPrefix reports whether key starts with prefix.
func hasPrefix(key, prefix []byte) bool {
	if len(key) < len(prefix) {
		return false
	}
	for i := range prefix {
		if key[i] != prefix[i] {
			return false
		}
	}
	return true
}
