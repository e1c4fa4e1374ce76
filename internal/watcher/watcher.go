// Package watcher turns filesystem activity into debounced batches of
// file events for the engine. The hybrid watcher prefers fsnotify and
// falls back to snapshot polling when the platform refuses; either way
// events for the same path inside the debounce window are coalesced so
// an editor's save dance does not thrash the index.
package watcher

import (
	"log/slog"
	"time"
)

// Operation classifies one filesystem event.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
	OpRename
	// OpGitignoreChange fires when a .gitignore file changes. The
	// consumer reconciles: newly ignored files leave the index, newly
	// unignored ones enter it.
	OpGitignoreChange
	// OpConfigChange fires when the project config file changes.
	OpConfigChange
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	case OpGitignoreChange:
		return "GITIGNORE_CHANGE"
	case OpConfigChange:
		return "CONFIG_CHANGE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one observed filesystem change.
type FileEvent struct {
	// Path is relative to the watch root.
	Path string
	// OldPath is set for renames.
	OldPath   string
	Operation Operation
	IsDir     bool
	Timestamp time.Time
}

// Options configures a watcher.
type Options struct {
	// DebounceWindow is how long to coalesce before emitting a batch.
	DebounceWindow time.Duration
	// PollInterval drives the polling fallback.
	PollInterval time.Duration
	// EventBufferSize is the batch channel depth; full means dropped
	// batches, counted but not blocked on.
	EventBufferSize int
	// MaxWatchedDirs caps recursive fsnotify registrations so a huge
	// tree cannot exhaust inotify watches.
	MaxWatchedDirs int
	// IgnorePatterns are gitignore-syntax patterns applied on top of
	// the tree's own .gitignore files.
	IgnorePatterns []string
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// DefaultOptions returns the defaults the daemon runs with.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  500 * time.Millisecond,
		PollInterval:    5 * time.Second,
		EventBufferSize: 1000,
		MaxWatchedDirs:  10000,
	}
}

// WithDefaults fills zero values from DefaultOptions.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval == 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	if o.MaxWatchedDirs == 0 {
		o.MaxWatchedDirs = defaults.MaxWatchedDirs
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
