// Package gate enforces the engine's degraded-access contract. While
// any index is mid-rebuild, the engine is in a transitional state in
// which index data may not match the file tree; callers must declare
// up front how much inconsistency they can tolerate, and the gate
// either admits the read, filters it, or refuses it with a retryable
// not-ready condition.
package gate

import (
	"context"
	"sync/atomic"

	facerrors "github.com/facetdb/facet/internal/errors"
	"github.com/facetdb/facet/internal/vfs"
)

// Mode is the caller-declared tolerance for transitional index state.
type Mode int

const (
	// ModeNone means the caller declared nothing; reads during a bulk
	// rebuild are refused.
	ModeNone Mode = iota
	// ModeRawData admits every stored entry, stale ones included.
	ModeRawData
	// ModeReliableOnly admits only entries whose file is not pending
	// reindexing, so everything returned matches on-disk content.
	ModeReliableOnly
)

func (m Mode) String() string {
	switch m {
	case ModeRawData:
		return "raw-data"
	case ModeReliableOnly:
		return "reliable-only"
	default:
		return "none"
	}
}

type modeKey struct{}

// WithMode returns a context carrying the declared access mode.
// Nesting the same mode is a no-op; declaring a different mode while
// one is active is caller misuse and yields a ContractViolation.
func WithMode(ctx context.Context, mode Mode) (context.Context, error) {
	if active, ok := ctx.Value(modeKey{}).(Mode); ok {
		if active == mode {
			return ctx, nil
		}
		return nil, facerrors.ContractViolation(
			"access mode " + active.String() + " already active, cannot switch to " + mode.String())
	}
	return context.WithValue(ctx, modeKey{}, mode), nil
}

// ModeFrom returns the access mode declared on ctx, or ModeNone.
func ModeFrom(ctx context.Context) Mode {
	if m, ok := ctx.Value(modeKey{}).(Mode); ok {
		return m
	}
	return ModeNone
}

// RunWithMode declares mode for the duration of body.
func RunWithMode(ctx context.Context, mode Mode, body func(ctx context.Context) error) error {
	ctx, err := WithMode(ctx, mode)
	if err != nil {
		return err
	}
	return body(ctx)
}

// Pending is the queue view the gate consults for reliable-only
// filtering.
type Pending interface {
	IsScheduled(id vfs.FileID) bool
}

// Gate decides, per read, whether transitional index state may be
// exposed to the caller.
type Gate struct {
	pending Pending
	// transitional is nonzero while any index is mid-rebuild or the
	// engine is bulk-rescanning.
	transitional atomic.Int32
}

// New returns a gate consulting pending for file visibility.
func New(pending Pending) *Gate {
	return &Gate{pending: pending}
}

// EnterTransitional marks the start of a bulk-rebuild window. Windows
// nest; the gate stays closed until every window has exited.
func (g *Gate) EnterTransitional() {
	g.transitional.Add(1)
}

// ExitTransitional marks the end of a bulk-rebuild window.
func (g *Gate) ExitTransitional() {
	if g.transitional.Add(-1) < 0 {
		panic(facerrors.ContractViolation("ExitTransitional without matching Enter"))
	}
}

// InTransition reports whether a bulk-rebuild window is open.
func (g *Gate) InTransition() bool {
	return g.transitional.Load() > 0
}

// CheckRead admits or refuses a read under the mode declared on ctx.
// Outside any declared mode, a read during a bulk rebuild gets a
// retryable not-ready error instead of partial data.
func (g *Gate) CheckRead(ctx context.Context) error {
	if ModeFrom(ctx) != ModeNone {
		return nil
	}
	if g.InTransition() {
		return facerrors.NotReadyError("index data is rebuilding, retry later").
			WithSuggestion("declare an access mode to read during rebuild")
	}
	return nil
}

// FileVisible reports whether an entry for id may be returned under
// the mode declared on ctx. Under ModeReliableOnly, files still in the
// pending queue are hidden: their on-disk state does not yet match
// their index entries.
func (g *Gate) FileVisible(ctx context.Context, id vfs.FileID) bool {
	if ModeFrom(ctx) == ModeReliableOnly {
		return !g.pending.IsScheduled(id)
	}
	return true
}
