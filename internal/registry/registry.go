// Package registry owns the set of configured indexes: extension
// metadata, the live storage-backed index instance per id, and the
// lookup tables the engine routes through. Registration reconciles
// each extension's declared version against the persisted version
// marker and wipes stale data before the index goes live.
package registry

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	facerrors "github.com/facetdb/facet/internal/errors"
	"github.com/facetdb/facet/internal/extension"
	"github.com/facetdb/facet/internal/index"
	"github.com/facetdb/facet/internal/storage"
	"github.com/facetdb/facet/internal/vfs"
)

// Status reports what registration did to an index's persisted data.
type Status int

const (
	// StatusUpToDate means the stored version matched and data was kept.
	StatusUpToDate Status = iota
	// StatusInitiallyBuilt means no prior data existed.
	StatusInitiallyBuilt
	// StatusChanged means a version mismatch (or forced rebuild) wiped
	// the prior data.
	StatusChanged
)

func (s Status) String() string {
	switch s {
	case StatusInitiallyBuilt:
		return "initially-built"
	case StatusChanged:
		return "changed"
	default:
		return "up-to-date"
	}
}

// Report lists registered ids grouped by registration outcome.
type Report struct {
	UpToDate       []extension.ID
	InitiallyBuilt []extension.ID
	Changed        []extension.ID
}

// Options configures a registry.
type Options struct {
	// Root is the engine data directory; each index lives under
	// Root/indexes/<id>.
	Root string
	// Backend selects the storage backend for new index stores.
	Backend string
	// Store carries backend tuning.
	Store storage.Options
	// ForceRebuild wipes every index at registration regardless of
	// version checks. Set when the corruption sentinel was found.
	ForceRebuild bool
	// OpenStore opens the store for one index directory. Defaults to
	// storage.Open; tests substitute failing stores through it.
	OpenStore func(backend string, dir string, opts storage.Options) (storage.Store, error)
	// Log receives registration events. Required.
	Log *slog.Logger
}

type entry struct {
	ext    extension.Extension
	idx    *index.Index
	status Status
}

// Registry is the live index table. Structural changes (register,
// unregister) take the exclusive side of the lock; lookups share it.
type Registry struct {
	opts Options

	mu    sync.RWMutex
	regs  map[extension.ID]*entry
	order []extension.ID
}

// New returns an empty registry.
func New(opts Options) *Registry {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.OpenStore == nil {
		opts.OpenStore = storage.Open
	}
	return &Registry{
		opts: opts,
		regs: make(map[extension.ID]*entry),
	}
}

// IndexDir returns the storage directory for id.
func (r *Registry) IndexDir(id extension.ID) string {
	return filepath.Join(r.opts.Root, "indexes", string(id))
}

// Register brings ext's index online. The persisted version marker
// decides the outcome: absent means initially built, mismatch (or a
// forced rebuild) means the prior data is deleted and the marker
// rewritten. Storage initialization gets two attempts with a wipe in
// between; a second failure is fatal for this index only, the registry
// and every other index stay usable.
func (r *Registry) Register(ext extension.Extension) (Status, error) {
	id := ext.ID()
	if ext.Version() <= 0 {
		return 0, facerrors.New(facerrors.ErrCodeInvalidVersion,
			"index "+string(id)+" declares non-positive version", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.regs[id]; dup {
		return 0, facerrors.ContractViolation("index " + string(id) + " registered twice")
	}

	dir := r.IndexDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, facerrors.StorageError("cannot create index directory "+dir, err)
	}

	status := StatusUpToDate
	switch {
	case !storage.HasVersionFile(dir):
		status = StatusInitiallyBuilt
	case r.opts.ForceRebuild:
		status = StatusChanged
	default:
		stored, err := storage.ReadVersion(dir)
		if err != nil {
			return 0, err
		}
		if stored != ext.Version() {
			status = StatusChanged
		}
	}

	if status != StatusUpToDate {
		if err := r.resetIndexDir(dir, ext.Version()); err != nil {
			return 0, err
		}
	}

	var store storage.Store
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		store, err = r.opts.OpenStore(r.opts.Backend, dir, r.opts.Store)
		if err == nil {
			break
		}
		r.opts.Log.Warn("index storage failed to open, wiping and retrying",
			slog.String("index", string(id)),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()))
		if werr := r.resetIndexDir(dir, ext.Version()); werr != nil {
			return 0, werr
		}
		status = StatusChanged
	}
	if err != nil {
		return 0, facerrors.StorageError(
			"index "+string(id)+" failed to initialize after retry", err)
	}

	e := &entry{ext: ext, idx: index.New(id, store), status: status}
	r.regs[id] = e
	r.order = append(r.order, id)

	r.opts.Log.Info("index registered",
		slog.String("index", string(id)),
		slog.Int("version", ext.Version()),
		slog.String("status", status.String()))
	return status, nil
}

// resetIndexDir deletes everything under dir (partial storage files
// included) and writes a fresh version marker.
func (r *Registry) resetIndexDir(dir string, version int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return facerrors.StorageError("cannot read index directory "+dir, err)
	}
	for _, de := range entries {
		if err := os.RemoveAll(filepath.Join(dir, de.Name())); err != nil {
			return facerrors.StorageError("cannot wipe index directory "+dir, err)
		}
	}
	return storage.WriteVersion(dir, version)
}

// Get returns the live index for id.
func (r *Registry) Get(id extension.ID) (*index.Index, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.regs[id]
	if !ok {
		return nil, false
	}
	return e.idx, true
}

// ExtensionOf returns the extension registered under id.
func (r *Registry) ExtensionOf(id extension.ID) (extension.Extension, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.regs[id]
	if !ok {
		return nil, false
	}
	return e.ext, true
}

// Has reports whether id is registered.
func (r *Registry) Has(id extension.ID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.regs[id]
	return ok
}

// IDs returns every registered id in registration order.
func (r *Registry) IDs() []extension.ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]extension.ID(nil), r.order...)
}

// AffectedBy returns the ids whose input filter accepts ref, in
// registration order.
func (r *Registry) AffectedBy(ref vfs.FileRef) []extension.ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []extension.ID
	for _, id := range r.order {
		if r.regs[id].ext.Accepts(ref) {
			out = append(out, id)
		}
	}
	return out
}

// WithCapability returns the registered ids declaring cap.
func (r *Registry) WithCapability(cap extension.Capability) []extension.ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []extension.ID
	for _, id := range r.order {
		if r.regs[id].ext.Capabilities().Has(cap) {
			out = append(out, id)
		}
	}
	return out
}

// RewriteVersion rewrites id's persisted version marker with the
// extension's current version. The rebuild action calls this first so
// a crash mid-rebuild leaves the index looking just-created, never
// half-built.
func (r *Registry) RewriteVersion(id extension.ID) error {
	r.mu.RLock()
	e, ok := r.regs[id]
	r.mu.RUnlock()
	if !ok {
		return facerrors.New(facerrors.ErrCodeUnknownIndex,
			"index "+string(id)+" is not registered", nil)
	}
	return storage.WriteVersion(r.IndexDir(id), e.ext.Version())
}

// Report groups the registered ids by registration outcome.
func (r *Registry) Report() Report {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var rep Report
	for _, id := range r.order {
		switch r.regs[id].status {
		case StatusInitiallyBuilt:
			rep.InitiallyBuilt = append(rep.InitiallyBuilt, id)
		case StatusChanged:
			rep.Changed = append(rep.Changed, id)
		default:
			rep.UpToDate = append(rep.UpToDate, id)
		}
	}
	return rep
}

// Unregister disposes id's index and removes it from every table.
func (r *Registry) Unregister(id extension.ID) error {
	r.mu.Lock()
	e, ok := r.regs[id]
	if !ok {
		r.mu.Unlock()
		return facerrors.New(facerrors.ErrCodeUnknownIndex,
			"index "+string(id)+" is not registered", nil)
	}
	delete(r.regs, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	return e.idx.Dispose()
}

// DisposeAll disposes every index in registration order. Failures are
// logged and do not stop the disposal of the remaining indexes.
func (r *Registry) DisposeAll() {
	r.mu.Lock()
	order := r.order
	regs := r.regs
	r.order = nil
	r.regs = make(map[extension.ID]*entry)
	r.mu.Unlock()

	for _, id := range order {
		if err := regs[id].idx.Dispose(); err != nil {
			r.opts.Log.Error("index dispose failed",
				slog.String("index", string(id)),
				slog.String("error", err.Error()))
		}
	}
}
