// Package rebuild tracks, per index, whether the index has been
// knocked out by a storage failure and must be rebuilt from scratch
// before it can serve updates or reads again. The flag lives for the
// session only; durability across restarts is carried by the version
// marker files, which the rebuild action advances.
package rebuild

import (
	"log/slog"
	"sync"

	"github.com/facetdb/facet/internal/extension"
)

// State is the per-index rebuild state.
type State int

const (
	// StateOk means the index accepts updates and reads normally.
	StateOk State = iota
	// StateRequiresRebuild means the index refuses updates and reads
	// until a full rebuild completes.
	StateRequiresRebuild
)

func (s State) String() string {
	if s == StateRequiresRebuild {
		return "requires-rebuild"
	}
	return "ok"
}

// Action performs the actual rebuild of one index: advance its
// persisted version stamp, clear its storage, and re-submit every
// known file as pending. Supplied by the engine.
type Action func(id extension.ID, cause error)

// Tracker owns the Ok ↔ RequiresRebuild state machine for every
// registered index. Safe for concurrent use.
type Tracker struct {
	log    *slog.Logger
	action Action

	// synchronous runs the rebuild action inline from RequestRebuild.
	// Production always schedules asynchronously: the requester may be
	// holding a read permit the rebuild needs to make progress past.
	synchronous bool

	mu     sync.Mutex
	flags  map[extension.ID]State
	causes map[extension.ID]error
}

// NewTracker returns a tracker with every index in StateOk.
// The action runs on its own goroutine unless synchronous mode is on.
func NewTracker(log *slog.Logger, action Action) *Tracker {
	return &Tracker{
		log:    log,
		action: action,
		flags:  make(map[extension.ID]State),
		causes: make(map[extension.ID]error),
	}
}

// SetSynchronous makes RequestRebuild run the rebuild action inline.
// Test use only; production rebuilds are always asynchronous.
func (t *Tracker) SetSynchronous(on bool) {
	t.mu.Lock()
	t.synchronous = on
	t.mu.Unlock()
}

// IsOk reports whether id accepts updates and reads.
func (t *Tracker) IsOk(id extension.ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flags[id] == StateOk
}

// Cause returns the error that triggered the pending rebuild, if any.
func (t *Tracker) Cause(id extension.ID) (error, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cause, ok := t.causes[id]
	return cause, ok
}

// RequestRebuild flips id to StateRequiresRebuild and schedules the
// rebuild action. Duplicate requests while a rebuild is already
// pending collapse to a no-op; the first cause wins. Returns whether
// this call performed the transition.
func (t *Tracker) RequestRebuild(id extension.ID, cause error) bool {
	t.mu.Lock()
	if t.flags[id] == StateRequiresRebuild {
		t.mu.Unlock()
		return false
	}
	t.flags[id] = StateRequiresRebuild
	t.causes[id] = cause
	sync := t.synchronous
	action := t.action
	t.mu.Unlock()

	t.log.Warn("index rebuild requested",
		slog.String("index", string(id)),
		slog.Any("cause", cause))

	if action != nil {
		if sync {
			action(id, cause)
		} else {
			go action(id, cause)
		}
	}
	return true
}

// Reset returns id to StateOk after a completed rebuild.
func (t *Tracker) Reset(id extension.ID) {
	t.mu.Lock()
	delete(t.flags, id)
	delete(t.causes, id)
	t.mu.Unlock()
}

// Forget drops all state for id. Used when the index is unregistered.
func (t *Tracker) Forget(id extension.ID) {
	t.Reset(id)
}

// ClearIfNecessary runs clear for id only when a rebuild is pending,
// then returns the index to StateOk. Used at shutdown so a half-built
// index starts from empty storage next time instead of serving junk.
func (t *Tracker) ClearIfNecessary(id extension.ID, clear func() error) error {
	t.mu.Lock()
	pending := t.flags[id] == StateRequiresRebuild
	t.mu.Unlock()
	if !pending {
		return nil
	}
	if err := clear(); err != nil {
		return err
	}
	t.Reset(id)
	return nil
}

// AnyPending reports whether any index currently requires a rebuild.
func (t *Tracker) AnyPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.flags {
		if s == StateRequiresRebuild {
			return true
		}
	}
	return false
}
