package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/facetdb/facet/internal/config"
	"github.com/facetdb/facet/internal/gitignore"
)

// HybridWatcher watches a tree with fsnotify when the platform allows
// and snapshot polling otherwise. Raw events flow through the
// debouncer; consumers read coalesced batches from Events.
type HybridWatcher struct {
	fsWatcher   *fsnotify.Watcher
	pollWatcher *PollingWatcher
	useFsnotify bool
	debouncer   *Debouncer
	ignores     *gitignore.Matcher
	log         *slog.Logger
	events      chan []FileEvent
	errors      chan error
	stopCh      chan struct{}
	root        string
	opts        Options
	mu          sync.RWMutex
	stopped     bool
	watchedDirs int
	dropped     atomic.Uint64
}

// NewHybridWatcher builds a watcher, falling back to polling when
// fsnotify cannot initialize.
func NewHybridWatcher(opts Options) (*HybridWatcher, error) {
	opts = opts.WithDefaults()

	h := &HybridWatcher{
		debouncer: NewDebouncer(opts.DebounceWindow, opts.Logger),
		ignores:   gitignore.New(),
		log:       opts.Logger,
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
		opts:      opts,
	}

	for _, pattern := range opts.IgnorePatterns {
		h.ignores.AddPattern(pattern)
	}
	// The engine's own data directory must never feed back into it.
	h.ignores.AddPattern(config.DataDirName + "/")

	fsw, err := fsnotify.NewWatcher()
	if err == nil {
		h.fsWatcher = fsw
		h.useFsnotify = true
	} else {
		h.log.Warn("fsnotify unavailable, falling back to polling",
			slog.String("error", err.Error()))
		h.pollWatcher = NewPollingWatcher(opts.PollInterval, opts.Logger)
	}
	return h, nil
}

// Start watches path recursively until the context ends or Stop is
// called. Blocks for the life of the watch.
func (h *HybridWatcher) Start(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve watch root: %w", err)
	}
	h.root = abs

	h.reloadIgnores()
	go h.forward(ctx)

	if h.useFsnotify {
		return h.runFsnotify(ctx)
	}
	return h.runPolling(ctx)
}

func (h *HybridWatcher) runFsnotify(ctx context.Context) error {
	if err := h.addRecursive(h.root); err != nil {
		return fmt.Errorf("register watch directories: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = h.Stop()
			return ctx.Err()
		case <-h.stopCh:
			return nil
		case event, ok := <-h.fsWatcher.Events:
			if !ok {
				return nil
			}
			h.handleFsnotifyEvent(event)
		case err, ok := <-h.fsWatcher.Errors:
			if !ok {
				return nil
			}
			h.emitError(err)
		}
	}
}

func (h *HybridWatcher) runPolling(ctx context.Context) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.stopCh:
				return
			case event, ok := <-h.pollWatcher.Events():
				if !ok {
					return
				}
				if h.shouldIgnore(event.Path, event.IsDir) {
					continue
				}
				if special, ok := h.classifySpecial(event.Path); ok {
					if special == OpGitignoreChange {
						h.reloadIgnores()
					}
					h.addSpecial(event.Path, special)
					continue
				}
				h.debouncer.Add(event)
			case err, ok := <-h.pollWatcher.Errors():
				if !ok {
					return
				}
				h.emitError(err)
			}
		}
	}()

	return h.pollWatcher.Start(ctx, h.root)
}

func (h *HybridWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(h.root, event.Name)
	if err != nil {
		rel = event.Name
	}

	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}

	if h.shouldIgnore(rel, isDir) {
		return
	}
	if special, ok := h.classifySpecial(rel); ok {
		if special == OpGitignoreChange {
			h.reloadIgnores()
		}
		h.addSpecial(rel, special)
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
		if isDir {
			h.addWatchDir(event.Name)
		}
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return // chmod and friends carry no content change
	}

	h.debouncer.Add(FileEvent{
		Path:      rel,
		Operation: op,
		IsDir:     isDir,
		Timestamp: time.Now(),
	})
}

// classifySpecial reports whether rel is a file the engine treats as
// configuration rather than content.
func (h *HybridWatcher) classifySpecial(rel string) (Operation, bool) {
	switch filepath.Base(rel) {
	case ".gitignore":
		return OpGitignoreChange, true
	case ".facet.yaml", ".facet.yml":
		return OpConfigChange, true
	default:
		return 0, false
	}
}

func (h *HybridWatcher) addSpecial(rel string, op Operation) {
	h.debouncer.Add(FileEvent{
		Path:      rel,
		Operation: op,
		Timestamp: time.Now(),
	})
}

// forward moves debounced batches to the output channel.
func (h *HybridWatcher) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case events, ok := <-h.debouncer.Output():
			if !ok {
				return
			}
			if len(events) > 0 {
				h.emitEvents(events)
			}
		}
	}
}

// addRecursive registers every directory under root, honoring the
// ignore rules and the MaxWatchedDirs cap.
func (h *HybridWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}

		rel, _ := filepath.Rel(h.root, path)
		if rel == "." {
			return h.addWatch(path)
		}
		if h.shouldIgnore(rel, true) {
			return filepath.SkipDir
		}
		return h.addWatch(path)
	})
}

func (h *HybridWatcher) addWatch(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.watchedDirs >= h.opts.MaxWatchedDirs {
		h.log.Warn("watched directory cap reached, deeper changes seen late",
			slog.Int("max_watched_dirs", h.opts.MaxWatchedDirs),
			slog.String("path", path))
		return filepath.SkipDir
	}
	if err := h.fsWatcher.Add(path); err != nil {
		return err
	}
	h.watchedDirs++
	return nil
}

// addWatchDir is addWatch for paths discovered after startup, where a
// failure is logged rather than propagated.
func (h *HybridWatcher) addWatchDir(path string) {
	if err := h.addWatch(path); err != nil && err != filepath.SkipDir {
		h.log.Warn("failed to watch new directory",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}

// shouldIgnore filters paths before they reach the debouncer. The data
// directory and .git are always out.
func (h *HybridWatcher) shouldIgnore(rel string, isDir bool) bool {
	if rel == "." || rel == "" {
		return true
	}
	if rel == ".git" || strings.HasPrefix(rel, ".git"+string(filepath.Separator)) {
		return true
	}
	if rel == config.DataDirName || strings.HasPrefix(rel, config.DataDirName+string(filepath.Separator)) {
		return true
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ignores.Match(rel, isDir)
}

// reloadIgnores rebuilds the matcher from the option patterns plus
// every .gitignore in the tree.
func (h *HybridWatcher) reloadIgnores() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.ignores = gitignore.New()
	for _, pattern := range h.opts.IgnorePatterns {
		h.ignores.AddPattern(pattern)
	}
	h.ignores.AddPattern(config.DataDirName + "/")

	rootIgnore := filepath.Join(h.root, ".gitignore")
	if err := h.ignores.AddFromFile(rootIgnore, ""); err != nil && !os.IsNotExist(err) {
		h.log.Warn("failed to load root .gitignore",
			slog.String("path", rootIgnore),
			slog.String("error", err.Error()))
	}

	_ = filepath.WalkDir(h.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || d.Name() != ".gitignore" || path == rootIgnore {
			return nil
		}
		base, _ := filepath.Rel(h.root, filepath.Dir(path))
		if err := h.ignores.AddFromFile(path, base); err != nil {
			h.log.Warn("failed to read nested .gitignore",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return nil
	})
}

func (h *HybridWatcher) emitEvents(events []FileEvent) {
	h.mu.RLock()
	stopped := h.stopped
	h.mu.RUnlock()
	if stopped {
		return
	}

	select {
	case h.events <- events:
	default:
		count := h.dropped.Add(1)
		h.log.Warn("event buffer full, dropping batch",
			slog.Int("batch_size", len(events)),
			slog.Uint64("total_dropped_batches", count))
	}
}

func (h *HybridWatcher) emitError(err error) {
	h.mu.RLock()
	stopped := h.stopped
	h.mu.RUnlock()
	if stopped {
		return
	}

	select {
	case h.errors <- err:
	default:
	}
}

// Stop releases the underlying watcher and closes both channels. Safe
// to call more than once.
func (h *HybridWatcher) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return nil
	}
	h.stopped = true
	close(h.stopCh)

	h.debouncer.Stop()
	if h.useFsnotify && h.fsWatcher != nil {
		_ = h.fsWatcher.Close()
	}
	if h.pollWatcher != nil {
		_ = h.pollWatcher.Stop()
	}

	close(h.events)
	close(h.errors)
	return nil
}

// Events carries debounced event batches.
func (h *HybridWatcher) Events() <-chan []FileEvent {
	return h.events
}

// Errors carries non-fatal watch failures.
func (h *HybridWatcher) Errors() <-chan error {
	return h.errors
}

// DroppedBatches reports batches lost to a full event buffer.
func (h *HybridWatcher) DroppedBatches() uint64 {
	return h.dropped.Load()
}

// Mode reports which mechanism is live: "fsnotify" or "polling".
func (h *HybridWatcher) Mode() string {
	if h.useFsnotify {
		return "fsnotify"
	}
	return "polling"
}
