package storage

import (
	"sync"

	"github.com/cockroachdb/pebble"

	facerrors "github.com/facetdb/facet/internal/errors"
)

// PebbleStore implements Store on a Pebble LSM database.
// Pebble owns the whole directory it is opened on, so the store lives in
// its own subdirectory next to the index's version marker.
type PebbleStore struct {
	mu     sync.RWMutex
	db     *pebble.DB
	path   string
	wo     *pebble.WriteOptions
	closed bool
}

// Verify interface implementation at compile time
var _ Store = (*PebbleStore)(nil)

// NewPebbleStore opens (or creates) a Pebble store at path.
func NewPebbleStore(path string, opts Options) (*PebbleStore, error) {
	popts := &pebble.Options{}
	if opts.CacheSizeMB > 0 {
		cache := pebble.NewCache(int64(opts.CacheSizeMB) << 20)
		defer cache.Unref()
		popts.Cache = cache
	}

	db, err := pebble.Open(path, popts)
	if err != nil {
		return nil, classifyPebbleError("open", err)
	}

	return &PebbleStore{
		db:   db,
		path: path,
		wo:   &pebble.WriteOptions{Sync: opts.SyncWrites},
	}, nil
}

// Path returns the directory the store was opened on.
func (s *PebbleStore) Path() string {
	return s.path
}

// Get returns the value for key, or ErrKeyNotFound.
func (s *PebbleStore) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	val, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, classifyPebbleError("get", err)
	}

	// The returned slice is only valid until closer.Close().
	out := append([]byte(nil), val...)
	if err := closer.Close(); err != nil {
		return nil, classifyPebbleError("get", err)
	}
	return out, nil
}

// Set stores value under key.
func (s *PebbleStore) Set(key, value []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}

	if err := s.db.Set(key, value, s.wo); err != nil {
		return classifyPebbleError("set", err)
	}
	return nil
}

// Delete removes key.
func (s *PebbleStore) Delete(key []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}

	if err := s.db.Delete(key, s.wo); err != nil {
		return classifyPebbleError("delete", err)
	}
	return nil
}

// Apply applies the batch as one atomic Pebble write.
func (s *PebbleStore) Apply(batch *Batch) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}
	if batch.Len() == 0 {
		return nil
	}

	b := s.db.NewBatch()
	defer func() { _ = b.Close() }()

	for _, op := range batch.ops {
		var err error
		if op.delete {
			err = b.Delete(op.key, nil)
		} else {
			err = b.Set(op.key, op.value, nil)
		}
		if err != nil {
			return classifyPebbleError("batch", err)
		}
	}

	if err := s.db.Apply(b, s.wo); err != nil {
		return classifyPebbleError("apply", err)
	}
	return nil
}

// Scan visits every entry under prefix in ascending key order.
func (s *PebbleStore) Scan(prefix []byte, fn func(key, value []byte) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}

	io := pebble.IterOptions{}
	if len(prefix) > 0 {
		io.LowerBound = prefix
		io.UpperBound = prefixSuccessor(prefix)
	}

	it, err := s.db.NewIter(&io)
	if err != nil {
		return classifyPebbleError("scan", err)
	}
	defer func() { _ = it.Close() }()

	for valid := it.First(); valid; valid = it.Next() {
		// Callback errors propagate unchanged so sentinel values survive.
		if err := fn(it.Key(), it.Value()); err != nil {
			return err
		}
	}
	if err := it.Error(); err != nil {
		return classifyPebbleError("scan", err)
	}
	return nil
}

// Flush forces memtable contents down to durable sstables.
func (s *PebbleStore) Flush() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}

	if err := s.db.Flush(); err != nil {
		return classifyPebbleError("flush", err)
	}
	return nil
}

// Close flushes and closes the underlying database.
func (s *PebbleStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.db.Close(); err != nil {
		return classifyPebbleError("close", err)
	}
	return nil
}

// classifyPebbleError maps a Pebble error onto the engine's storage error
// taxonomy. Corruption and I/O failures both route the owning index into a
// rebuild, but corruption carries its own code for diagnostics.
func classifyPebbleError(op string, err error) error {
	if pebble.IsCorruptionError(err) {
		return facerrors.CorruptionError("pebble "+op+" detected corruption", err)
	}
	return facerrors.StorageError("pebble "+op+" failed", err)
}
