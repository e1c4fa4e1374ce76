package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	facerrors "github.com/facetdb/facet/internal/errors"
)

// EngineLock guards an engine data directory against concurrent processes.
// Two engines mutating the same index tree would corrupt it, so every
// process must hold this lock before opening any store underneath.
// Works on all platforms (Unix, Linux, macOS, Windows).
type EngineLock struct {
	path   string
	flock  *flock.Flock
	locked bool // explicit state tracking for clarity
}

// NewEngineLock creates a lock for the given engine data directory.
// The lock file will be created at <dir>/engine.lock
func NewEngineLock(dir string) *EngineLock {
	lockPath := filepath.Join(dir, "engine.lock")
	return &EngineLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false if it's held by another process.
func (l *EngineLock) TryLock() (bool, error) {
	// Ensure directory exists
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, facerrors.StorageError("failed to create lock directory", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, facerrors.StorageError("failed to acquire lock", err)
	}

	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Acquire takes the lock, retrying with backoff while another process
// holds it. Gives up when the context is canceled or retries run out,
// returning a retryable lock-contention error.
func (l *EngineLock) Acquire(ctx context.Context) error {
	err := facerrors.Retry(ctx, facerrors.LockRetryConfig(), func() error {
		acquired, err := l.TryLock()
		if err != nil {
			return err
		}
		if !acquired {
			return facerrors.New(facerrors.ErrCodeStorageLocked,
				"engine data directory is locked by another process", nil)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return facerrors.New(facerrors.ErrCodeStorageLocked,
			"engine data directory is locked by another process", err).
			WithSuggestion("Stop the other facet process or remove a stale " + l.path)
	}
	return nil
}

// Unlock releases the lock.
// It's safe to call Unlock multiple times or on an unlocked EngineLock.
func (l *EngineLock) Unlock() error {
	if !l.locked {
		return nil
	}

	if err := l.flock.Unlock(); err != nil {
		l.locked = false
		return facerrors.StorageError("failed to release lock", err)
	}

	l.locked = false
	return nil
}

// Path returns the path to the lock file.
func (l *EngineLock) Path() string {
	return l.path
}

// IsLocked returns true if the lock is currently held.
func (l *EngineLock) IsLocked() bool {
	return l.locked
}
