package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
)

// PollingWatcher detects changes by diffing periodic tree snapshots.
// Fallback for platforms where fsnotify cannot run.
type PollingWatcher struct {
	interval time.Duration
	log      *slog.Logger
	mu       sync.Mutex
	snapshot map[string]fileSnapshot
	events   chan FileEvent
	errors   chan error
	stopCh   chan struct{}
	stopped  bool
	root     string
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
	isDir   bool
}

// NewPollingWatcher returns a watcher scanning every interval.
func NewPollingWatcher(interval time.Duration, log *slog.Logger) *PollingWatcher {
	if log == nil {
		log = slog.Default()
	}
	return &PollingWatcher{
		interval: interval,
		log:      log,
		snapshot: make(map[string]fileSnapshot),
		events:   make(chan FileEvent, 100),
		errors:   make(chan error, 10),
		stopCh:   make(chan struct{}),
	}
}

// Start takes a baseline snapshot of root and then polls until the
// context ends or Stop is called.
func (p *PollingWatcher) Start(ctx context.Context, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve watch root: %w", err)
	}
	p.root = abs

	if err := p.baseline(); err != nil {
		return fmt.Errorf("take baseline snapshot: %w", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			if err := p.diff(); err != nil {
				select {
				case p.errors <- err:
				default:
				}
			}
		}
	}
}

// Stop closes the event channels. Safe to call more than once.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	close(p.events)
	close(p.errors)
	return nil
}

// Events carries detected changes, one at a time.
func (p *PollingWatcher) Events() <-chan FileEvent {
	return p.events
}

// Errors carries non-fatal scan failures.
func (p *PollingWatcher) Errors() <-chan error {
	return p.errors
}

func (p *PollingWatcher) baseline() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries drop out of the snapshot
		}
		rel, snap, ok := p.snap(path, d)
		if ok {
			p.snapshot[rel] = snap
		}
		return nil
	})
}

// diff walks the tree, emits create/modify events against the previous
// snapshot, then sweeps it for deletions.
func (p *PollingWatcher) diff() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := make(map[string]fileSnapshot, len(p.snapshot))
	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, snap, ok := p.snap(path, d)
		if !ok {
			return nil
		}
		current[rel] = snap

		prev, seen := p.snapshot[rel]
		switch {
		case !seen:
			p.emit(FileEvent{Path: rel, Operation: OpCreate, IsDir: snap.isDir, Timestamp: time.Now()})
		case prev.modTime != snap.modTime || prev.size != snap.size:
			p.emit(FileEvent{Path: rel, Operation: OpModify, IsDir: snap.isDir, Timestamp: time.Now()})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk for changes: %w", err)
	}

	for rel, prev := range p.snapshot {
		if _, exists := current[rel]; !exists {
			p.emit(FileEvent{Path: rel, Operation: OpDelete, IsDir: prev.isDir, Timestamp: time.Now()})
		}
	}

	p.snapshot = current
	return nil
}

func (p *PollingWatcher) snap(path string, d fs.DirEntry) (string, fileSnapshot, bool) {
	rel, err := filepath.Rel(p.root, path)
	if err != nil || rel == "." {
		return "", fileSnapshot{}, false
	}
	info, err := d.Info()
	if err != nil {
		return "", fileSnapshot{}, false
	}
	return rel, fileSnapshot{modTime: info.ModTime(), size: info.Size(), isDir: d.IsDir()}, true
}

// emit is called with the lock held.
func (p *PollingWatcher) emit(event FileEvent) {
	if p.stopped {
		return
	}
	select {
	case p.events <- event:
	default:
		p.log.Warn("polling watcher buffer full, dropping event",
			slog.String("path", event.Path),
			slog.String("op", event.Operation.String()))
	}
}
