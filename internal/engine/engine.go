// Package engine is the orchestrator of the indexing core: it routes
// file changes into the pending queue, brings indexes up to date
// before reads, applies extraction deltas to storage with staleness
// stamps advanced atomically, contains storage failures at single-index
// granularity by routing them into rebuilds, and flushes buffered state
// periodically and at shutdown.
package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/facetdb/facet/internal/config"
	facerrors "github.com/facetdb/facet/internal/errors"
	"github.com/facetdb/facet/internal/extension"
	"github.com/facetdb/facet/internal/gate"
	"github.com/facetdb/facet/internal/overlay"
	"github.com/facetdb/facet/internal/pending"
	"github.com/facetdb/facet/internal/rebuild"
	"github.com/facetdb/facet/internal/registry"
	"github.com/facetdb/facet/internal/stamps"
	"github.com/facetdb/facet/internal/storage"
	"github.com/facetdb/facet/internal/telemetry"
	"github.com/facetdb/facet/internal/vfs"
)

const (
	stateNew int32 = iota
	stateReady
	stateClosed
)

// Engine wires every component of the indexing core together. Create
// with New, register extensions, then Start. All methods are safe for
// concurrent use between Start and Close.
type Engine struct {
	cfg  *config.Config
	log  *slog.Logger
	root string // project root
	data string // data directory under root

	lock   *storage.EngineLock
	meta   storage.Store
	files  *vfs.Registry
	loader *vfs.ContentLoader

	stamps   *stamps.Tracker
	overlays *stamps.OverlayStamps
	queue    *pending.Queue
	registry *registry.Registry
	rebuilds *rebuild.Tracker
	gate     *gate.Gate
	docs     *overlay.Store

	// applyMu is the cooperative read/write pair around publishing
	// computed deltas: per-file updates share the read side, bulk
	// operations (rebuild clears, shutdown) take the write side.
	// Extraction always runs outside it.
	applyMu sync.RWMutex

	// modCount moves on every applied delta; the flush daemon only
	// flushes when it has been still for a whole period.
	modCount atomic.Int64

	flusher *flushDaemon
	metrics bool
	state   atomic.Int32

	syncRebuilds bool
	openStore    func(backend string, dir string, opts storage.Options) (storage.Store, error)

	// forceRebuild records that the corruption sentinel was present at
	// startup; cleared once every index re-registered cleanly.
	forceRebuild bool
}

// Option adjusts engine construction.
type Option func(*Engine)

// WithMetrics enables Prometheus collector updates.
func WithMetrics() Option {
	return func(e *Engine) { e.metrics = true }
}

// WithSynchronousRebuilds makes rebuilds run inline on the requesting
// goroutine. Test use only.
func WithSynchronousRebuilds() Option {
	return func(e *Engine) { e.syncRebuilds = true }
}

// WithStoreOpener substitutes how per-index stores are opened. Test
// use only; the default is the storage factory.
func WithStoreOpener(open func(backend string, dir string, opts storage.Options) (storage.Store, error)) Option {
	return func(e *Engine) { e.openStore = open }
}

// New opens the engine over the project rooted at root. The data
// directory is created and locked; the path registry and staleness
// stamps are loaded; the corruption sentinel, if present, forces every
// subsequently registered index to rebuild. No background work starts
// until Start.
func New(cfg *config.Config, root string, log *slog.Logger, opts ...Option) (*Engine, error) {
	data := config.DataDir(root)
	if err := os.MkdirAll(data, 0o755); err != nil {
		return nil, facerrors.StorageError("cannot create data directory "+data, err)
	}

	lock := storage.NewEngineLock(data)
	if err := lock.Acquire(context.Background()); err != nil {
		return nil, err
	}

	force := storage.HasCorruptionMarker(data)
	if force {
		log.Warn("corruption sentinel found, all indexes will rebuild",
			slog.String("dir", data))
	}

	metaDir := filepath.Join(data, "meta")
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		_ = lock.Unlock()
		return nil, facerrors.StorageError("cannot create meta directory", err)
	}
	meta, err := storage.Open(cfg.Storage.Backend, metaDir, storage.Options{
		CacheSizeMB: cfg.Storage.CacheSizeMB,
		SyncWrites:  cfg.Storage.SyncWrites,
	})
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	files, err := vfs.OpenRegistry(meta)
	if err != nil {
		_ = meta.Close()
		_ = lock.Unlock()
		return nil, err
	}
	tracker, err := stamps.OpenTracker(meta)
	if err != nil {
		_ = meta.Close()
		_ = lock.Unlock()
		return nil, err
	}

	e := &Engine{
		cfg:          cfg,
		log:          log,
		root:         root,
		data:         data,
		lock:         lock,
		meta:         meta,
		files:        files,
		loader:       vfs.NewContentLoader(cfg.MaxFileSize(), cfg.Indexing.ContentCacheSize),
		stamps:       tracker,
		overlays:     stamps.NewOverlayStamps(),
		queue:        pending.NewQueue(),
		forceRebuild: force,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.gate = gate.New(e.queue)
	e.docs = overlay.NewStore(e.overlays.InvalidateCurrent)
	e.registry = registry.New(registry.Options{
		Root:         data,
		Backend:      cfg.Storage.Backend,
		Store:        storage.Options{CacheSizeMB: cfg.Storage.CacheSizeMB, SyncWrites: cfg.Storage.SyncWrites},
		ForceRebuild: force,
		OpenStore:    e.openStore,
		Log:          log,
	})
	e.rebuilds = rebuild.NewTracker(log, e.performRebuild)
	e.rebuilds.SetSynchronous(e.syncRebuilds)
	e.flusher = newFlushDaemon(e, cfg.FlushIntervalDuration())
	return e, nil
}

// RegisterExtension brings ext's index online. Stale staleness stamps
// are dropped whenever the registration wiped persisted data, so the
// two can never disagree.
func (e *Engine) RegisterExtension(ext extension.Extension) (registry.Status, error) {
	if e.state.Load() == stateClosed {
		return 0, facerrors.New(facerrors.ErrCodeEngineClosed, "engine is closed", nil)
	}
	status, err := e.registry.Register(ext)
	if err != nil {
		return 0, err
	}
	if status != registry.StatusUpToDate {
		e.stamps.DropIndex(ext.ID())
	}
	return status, nil
}

// Start finishes initialization: logs the registration report, clears
// the corruption sentinel now that every index re-registered, and
// starts the flush daemon. Reconciliation against the current tree is
// a separate explicit step (Reconcile) so callers control its scope.
func (e *Engine) Start() error {
	if !e.state.CompareAndSwap(stateNew, stateReady) {
		return facerrors.ContractViolation("engine started twice")
	}

	rep := e.registry.Report()
	e.log.Info("index registration complete",
		slog.Int("up_to_date", len(rep.UpToDate)),
		slog.Int("initially_built", len(rep.InitiallyBuilt)),
		slog.Int("changed", len(rep.Changed)))
	for _, id := range rep.Changed {
		e.log.Info("index data was reset", slog.String("index", string(id)))
	}

	if e.forceRebuild {
		if err := storage.ClearCorruptionMarker(e.data); err != nil {
			e.log.Warn("cannot clear corruption sentinel", slog.String("error", err.Error()))
		} else {
			e.forceRebuild = false
		}
	}

	e.flusher.start()
	return nil
}

// Ready reports whether the engine is between Start and Close.
func (e *Engine) Ready() bool {
	return e.state.Load() == stateReady
}

// Queue exposes the pending set for status reporting.
func (e *Engine) Queue() *pending.Queue { return e.queue }

// Registry exposes the index table for status reporting.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Files exposes the path registry.
func (e *Engine) Files() *vfs.Registry { return e.files }

// Documents exposes the unsaved-document store.
func (e *Engine) Documents() *overlay.Store { return e.docs }

// Rebuilds exposes the rebuild tracker for status reporting.
func (e *Engine) Rebuilds() *rebuild.Tracker { return e.rebuilds }

// Flush persists buffered state unconditionally: stamps and the path
// table first, then every index. An index whose flush fails is routed
// into a rebuild; the remaining indexes still flush.
func (e *Engine) Flush() error {
	if !e.Ready() {
		return facerrors.New(facerrors.ErrCodeNotReady, "engine is not started", nil)
	}
	if err := e.stamps.Flush(); err != nil {
		return err
	}
	if err := e.files.Flush(); err != nil {
		return err
	}
	var firstErr error
	for _, id := range e.registry.IDs() {
		idx, ok := e.registry.Get(id)
		if !ok {
			continue
		}
		if err := idx.Flush(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			e.RequestRebuild(id, err)
		}
	}
	return firstErr
}

// RunWithAccessMode declares how much transitional index state body
// tolerates and runs it under that declaration. Conflicting nested
// modes are caller misuse and fail fatally before body runs.
func (e *Engine) RunWithAccessMode(ctx context.Context, mode gate.Mode, body func(ctx context.Context) error) error {
	return gate.RunWithMode(ctx, mode, body)
}

// InvalidateCaches writes the corruption sentinel. The running session
// is unaffected; the next startup treats every index as requiring a
// rebuild regardless of version checks.
func (e *Engine) InvalidateCaches() error {
	e.log.Warn("corruption sentinel requested, all indexes rebuild at next start")
	return storage.WriteCorruptionMarker(e.data)
}

// RequestRebuild routes index id into a full rebuild.
func (e *Engine) RequestRebuild(id extension.ID, cause error) {
	if e.metrics {
		telemetry.RebuildCount.WithLabelValues(string(id), "requested").Inc()
	}
	e.rebuilds.RequestRebuild(id, cause)
}

// Close drains and flushes everything deterministically: stop the
// flush daemon, wipe the contributions of files that went invalid,
// persist stamps, clear any index still flagged for rebuild, then
// dispose every index in registration order. Failures are logged and
// never abort the disposal of the remaining indexes.
func (e *Engine) Close() error {
	prev := e.state.Swap(stateClosed)
	if prev == stateClosed {
		return nil
	}
	e.log.Info("engine shutdown START")

	e.flusher.stop()

	// Deleted files still pending would otherwise leave dead rows
	// behind; wipe them while the indexes are still open.
	e.drainInvalidFiles()

	if err := e.stamps.Flush(); err != nil {
		e.log.Error("stamp flush failed at shutdown", slog.String("error", err.Error()))
	}
	if err := e.files.Flush(); err != nil {
		e.log.Error("meta flush failed at shutdown", slog.String("error", err.Error()))
	}

	e.applyMu.Lock()
	defer e.applyMu.Unlock()

	for _, id := range e.registry.IDs() {
		idx, ok := e.registry.Get(id)
		if !ok {
			continue
		}
		// A half-built index must start from empty storage next time.
		if err := e.rebuilds.ClearIfNecessary(id, idx.Clear); err != nil {
			e.log.Error("index clear failed at shutdown",
				slog.String("index", string(id)),
				slog.String("error", err.Error()))
		}
		if err := idx.Flush(); err != nil {
			e.log.Error("index flush failed at shutdown",
				slog.String("index", string(id)),
				slog.String("error", err.Error()))
		}
	}
	e.registry.DisposeAll()

	if err := e.meta.Close(); err != nil {
		e.log.Error("meta store close failed", slog.String("error", err.Error()))
	}
	if err := e.lock.Unlock(); err != nil {
		e.log.Error("engine lock release failed", slog.String("error", err.Error()))
	}

	e.log.Info("engine shutdown END")
	return nil
}

// drainInvalidFiles removes the contributions of every pending file
// whose ref is invalid (deleted or masked by a stub id).
func (e *Engine) drainInvalidFiles() {
	ctx := context.Background()
	for _, ref := range e.queue.All() {
		if ref.Valid {
			continue
		}
		for _, id := range e.registry.AffectedBy(ref) {
			if _, err := e.updateSingleIndex(ctx, id, ref, nil); err != nil {
				e.log.Warn("invalid-file cleanup failed",
					slog.String("index", string(id)),
					slog.Int("file", int(vfs.Mask(ref.ID))),
					slog.String("error", err.Error()))
			}
		}
		e.queue.Unschedule(ref.ID)
	}
}
