package storage

import (
	"sort"
	"sync"
)

// MemoryStore implements Store on a plain map. It exists for tests and
// for ephemeral engines that never persist; Flush is a no-op and nothing
// survives Close.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// Verify interface implementation at compile time
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get returns the value for key, or ErrKeyNotFound.
func (s *MemoryStore) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	value, ok := s.data[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), value...), nil
}

// Set stores a copy of value under key.
func (s *MemoryStore) Set(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	s.data[string(key)] = append([]byte(nil), value...)
	return nil
}

// Delete removes key.
func (s *MemoryStore) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	delete(s.data, string(key))
	return nil
}

// Apply applies the batch under a single lock acquisition.
func (s *MemoryStore) Apply(batch *Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	for _, op := range batch.ops {
		if op.delete {
			delete(s.data, string(op.key))
		} else {
			s.data[string(op.key)] = append([]byte(nil), op.value...)
		}
	}
	return nil
}

// Scan visits every entry under prefix in ascending key order.
func (s *MemoryStore) Scan(prefix []byte, fn func(key, value []byte) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}

	// Snapshot matching keys so the callback may call back into the store.
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if hasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	entries := make([][2][]byte, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, [2][]byte{[]byte(k), s.data[k]})
	}
	s.mu.RUnlock()

	for _, e := range entries {
		if err := fn(e[0], e[1]); err != nil {
			return err
		}
	}
	return nil
}

// Flush is a no-op; nothing is buffered.
func (s *MemoryStore) Flush() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Close discards all data.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.data = nil
	return nil
}

// Len returns the number of stored entries. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
