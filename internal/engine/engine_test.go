package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facetdb/facet/internal/config"
	facerrors "github.com/facetdb/facet/internal/errors"
	"github.com/facetdb/facet/internal/extension"
	"github.com/facetdb/facet/internal/gate"
	"github.com/facetdb/facet/internal/registry"
	"github.com/facetdb/facet/internal/storage"
	"github.com/facetdb/facet/internal/vfs"
)

// flakyStore wraps a memory store and fails writes or flushes on
// demand with a storage-class error.
type flakyStore struct {
	storage.Store
	mu        sync.Mutex
	failTimes int
	flushes   atomic.Int64
}

func (s *flakyStore) arm(times int) {
	s.mu.Lock()
	s.failTimes = times
	s.mu.Unlock()
}

func (s *flakyStore) failing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTimes > 0 {
		s.failTimes--
		return true
	}
	return false
}

func (s *flakyStore) Apply(batch *storage.Batch) error {
	if s.failing() {
		return facerrors.StorageError("injected write failure", nil)
	}
	return s.Store.Apply(batch)
}

func (s *flakyStore) Set(key, value []byte) error {
	if s.failing() {
		return facerrors.StorageError("injected write failure", nil)
	}
	return s.Store.Set(key, value)
}

func (s *flakyStore) Flush() error {
	if s.failing() {
		return facerrors.StorageError("injected flush failure", nil)
	}
	s.flushes.Add(1)
	return s.Store.Flush()
}

// wordsExt indexes whitespace-separated words of .txt files.
func wordsExt(version int) extension.Extension {
	return &extension.Def{
		Name:   "words",
		Ver:    version,
		Caps:   extension.ContentBased,
		Filter: extension.WithExtensions(".txt"),
		ExtractFunc: func(_ context.Context, in extension.Input) (extension.Mapping, error) {
			m := extension.Mapping{}
			for _, w := range strings.Fields(string(in.Content)) {
				m[w] = nil
			}
			return m, nil
		},
	}
}

// filetypeExt is contentless: it keys every file by its extension.
func filetypeExt() extension.Extension {
	return &extension.Def{
		Name: "filetype",
		Ver:  1,
		Caps: extension.Contentless,
		ExtractFunc: func(_ context.Context, in extension.Input) (extension.Mapping, error) {
			ext := strings.TrimPrefix(filepath.Ext(in.File.Path), ".")
			if ext == "" {
				return nil, nil
			}
			return extension.Mapping{ext: nil}, nil
		},
	}
}

// draftExt is overlay-aware words over .txt files.
func draftExt() extension.Extension {
	return &extension.Def{
		Name:   "draft",
		Ver:    1,
		Caps:   extension.ContentBased | extension.OverlayAware,
		Filter: extension.WithExtensions(".txt"),
		ExtractFunc: func(_ context.Context, in extension.Input) (extension.Mapping, error) {
			m := extension.Mapping{}
			for _, w := range strings.Fields(string(in.Content)) {
				m[w] = nil
			}
			return m, nil
		},
	}
}

type testEnv struct {
	t      *testing.T
	engine *Engine
	root   string
	flaky  map[string]*flakyStore // index id -> its store wrapper
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	return openTestEnv(t, t.TempDir(), string(storage.BackendMemory), opts...)
}

// openTestEnv opens an engine over root. The meta store uses backend
// (pebble when a test needs stamps and paths to survive reopen); the
// per-index stores are always flaky in-memory wrappers.
func openTestEnv(t *testing.T, root, backend string, opts ...Option) *testEnv {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Storage.Backend = backend
	cfg.Indexing.Workers = 2

	env := &testEnv{t: t, root: root, flaky: make(map[string]*flakyStore)}
	opts = append(opts, WithStoreOpener(func(_, dir string, _ storage.Options) (storage.Store, error) {
		fs := &flakyStore{Store: storage.NewMemoryStore()}
		env.flaky[filepath.Base(dir)] = fs
		return fs, nil
	}))

	e, err := New(cfg, root, slog.New(slog.DiscardHandler), opts...)
	require.NoError(t, err)
	env.engine = e
	t.Cleanup(func() { _ = e.Close() })
	return env
}

func (env *testEnv) register(exts ...extension.Extension) {
	env.t.Helper()
	for _, ext := range exts {
		_, err := env.engine.RegisterExtension(ext)
		require.NoError(env.t, err)
	}
	require.NoError(env.t, env.engine.Start())
}

func (env *testEnv) writeFile(rel, content string) string {
	env.t.Helper()
	path := filepath.Join(env.root, rel)
	require.NoError(env.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(env.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// touchFuture bumps path's mtime past any stamp recorded so far, so an
// edit registers as newer even on coarse-grained filesystems.
func (env *testEnv) touchFuture(path string) {
	env.t.Helper()
	future := time.Now().Add(2 * time.Second)
	require.NoError(env.t, os.Chtimes(path, future, future))
}

func (env *testEnv) fileID(path string) vfs.FileID {
	env.t.Helper()
	id, ok := env.engine.Files().Lookup(path)
	require.True(env.t, ok)
	return id
}

func (env *testEnv) readKeys(indexID extension.ID, key string) []vfs.FileID {
	env.t.Helper()
	got, err := env.engine.Read(context.Background(), indexID, key, vfs.Everything())
	require.NoError(env.t, err)
	ids := make([]vfs.FileID, 0, len(got))
	for _, p := range got {
		ids = append(ids, p.File)
	}
	return ids
}

func TestEngine_ScheduledFileIndexedOnDemand(t *testing.T) {
	env := newTestEnv(t)
	env.register(wordsExt(1))
	path := env.writeFile("notes.txt", "alpha beta")

	require.NoError(t, env.engine.FileCreated(path))
	id := env.fileID(path)
	require.True(t, env.engine.Queue().IsScheduled(id))

	// A scope excluding the file leaves it pending
	other := vfs.UnderPath(filepath.Join(env.root, "elsewhere"))
	require.NoError(t, env.engine.EnsureUpToDate(context.Background(), "words", other))
	assert.True(t, env.engine.Queue().IsScheduled(id))

	// A scope including it drains it and marks the stamp current
	require.NoError(t, env.engine.EnsureUpToDate(context.Background(), "words", vfs.Everything()))
	assert.False(t, env.engine.Queue().IsScheduled(id))

	ref, err := vfs.Stat(id, path)
	require.NoError(t, err)
	assert.Equal(t, []vfs.FileID{id}, env.readKeys("words", "alpha"))
	assert.Equal(t, []vfs.FileID{id}, env.readKeys("words", "beta"))
	assert.Empty(t, env.readKeys("words", "gamma"))
	assert.True(t, env.engine.stamps.IsCurrent(ref, "words"))
}

func TestEngine_ScheduleIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.register(wordsExt(1))
	path := env.writeFile("notes.txt", "alpha")

	for i := 0; i < 5; i++ {
		require.NoError(t, env.engine.FileContentChanged(path))
	}

	assert.Equal(t, 1, env.engine.Queue().Len())
	assert.Equal(t, []vfs.FileID{env.fileID(path)}, env.readKeys("words", "alpha"))
}

func TestEngine_EditReplacesContribution(t *testing.T) {
	env := newTestEnv(t)
	env.register(wordsExt(1))
	path := env.writeFile("notes.txt", "alpha")
	require.NoError(t, env.engine.FileCreated(path))
	id := env.fileID(path)
	require.Equal(t, []vfs.FileID{id}, env.readKeys("words", "alpha"))

	env.writeFile("notes.txt", "gamma")
	env.touchFuture(path)
	require.NoError(t, env.engine.FileContentChanged(path))

	assert.Empty(t, env.readKeys("words", "alpha"))
	assert.Equal(t, []vfs.FileID{id}, env.readKeys("words", "gamma"))
}

func TestEngine_DeletionRemovesContribution(t *testing.T) {
	env := newTestEnv(t)
	env.register(wordsExt(1))
	path := env.writeFile("notes.txt", "alpha")
	require.NoError(t, env.engine.FileCreated(path))
	id := env.fileID(path)
	require.Equal(t, []vfs.FileID{id}, env.readKeys("words", "alpha"))

	require.NoError(t, os.Remove(path))
	env.engine.FileInvalidated(path)

	assert.Empty(t, env.readKeys("words", "alpha"))
	_, hasStamp := env.engine.stamps.IndexedStamp(id, "words")
	assert.False(t, hasStamp)
}

func TestEngine_DeletionWipesIndexWhoseFilterRejectsStub(t *testing.T) {
	env := newTestEnv(t)
	// A filter that consults live metadata rejects deletion stubs, yet
	// the index still holds the file's rows under its masked id.
	ext := &extension.Def{
		Name:   "words",
		Ver:    1,
		Caps:   extension.ContentBased,
		Filter: func(ref vfs.FileRef) bool { return ref.Valid && strings.HasSuffix(ref.Path, ".txt") },
		ExtractFunc: func(_ context.Context, in extension.Input) (extension.Mapping, error) {
			m := extension.Mapping{}
			for _, w := range strings.Fields(string(in.Content)) {
				m[w] = nil
			}
			return m, nil
		},
	}
	env.register(ext)
	path := env.writeFile("notes.txt", "alpha")
	require.NoError(t, env.engine.FileCreated(path))
	id := env.fileID(path)
	require.Equal(t, []vfs.FileID{id}, env.readKeys("words", "alpha"))

	require.NoError(t, os.Remove(path))
	env.engine.FileInvalidated(path)
	require.NoError(t, env.engine.EnsureUpToDate(context.Background(), "words", vfs.Everything()))

	// The stub was resolved and the rows are gone
	assert.False(t, env.engine.Queue().IsScheduled(id))
	assert.Empty(t, env.readKeys("words", "alpha"))
	_, hasStamp := env.engine.stamps.IndexedStamp(id, "words")
	assert.False(t, hasStamp)
}

func TestEngine_CanceledExtractionLeavesFilePending(t *testing.T) {
	env := newTestEnv(t)
	var block atomic.Bool
	extracting := make(chan struct{}, 1)
	ext := &extension.Def{
		Name:   "words",
		Ver:    1,
		Caps:   extension.ContentBased,
		Filter: extension.WithExtensions(".txt"),
		ExtractFunc: func(ctx context.Context, in extension.Input) (extension.Mapping, error) {
			if block.Load() {
				extracting <- struct{}{}
				<-ctx.Done()
				return nil, ctx.Err()
			}
			m := extension.Mapping{}
			for _, w := range strings.Fields(string(in.Content)) {
				m[w] = nil
			}
			return m, nil
		},
	}
	env.register(ext)
	path := env.writeFile("notes.txt", "alpha")
	require.NoError(t, env.engine.FileCreated(path))
	id := env.fileID(path)

	// Cancel mid-extraction
	block.Store(true)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- env.engine.EnsureUpToDate(ctx, "words", vfs.Everything())
	}()
	<-extracting
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("EnsureUpToDate did not return after cancellation")
	}

	// Nothing was published: the file stays pending, no stamp moved,
	// and the index holds no rows for it
	assert.True(t, env.engine.Queue().IsScheduled(id))
	ref, err := vfs.Stat(id, path)
	require.NoError(t, err)
	assert.False(t, env.engine.stamps.IsCurrent(ref, "words"))

	idx, ok := env.engine.Registry().Get("words")
	require.True(t, ok)
	data, err := idx.FileData(id)
	require.NoError(t, err)
	assert.Empty(t, data)

	// A later, uncanceled pass picks the file back up
	block.Store(false)
	assert.Equal(t, []vfs.FileID{id}, env.readKeys("words", "alpha"))
}

func TestEngine_StaleSubmissionDoesNotClobberNewer(t *testing.T) {
	env := newTestEnv(t)
	env.register(wordsExt(1))
	path := env.writeFile("notes.txt", "old")
	id, err := env.engine.Files().Intern(path)
	require.NoError(t, err)

	oldRef, err := vfs.Stat(id, path)
	require.NoError(t, err)

	env.writeFile("notes.txt", "new")
	env.touchFuture(path)
	newRef, err := vfs.Stat(id, path)
	require.NoError(t, err)
	require.Greater(t, newRef.Stamp(), oldRef.Stamp())

	ctx := context.Background()
	applied, err := env.engine.updateSingleIndex(ctx, "words", newRef, []byte("new"))
	require.NoError(t, err)
	require.True(t, applied)

	// The stale submission reports success but changes nothing
	applied, err = env.engine.updateSingleIndex(ctx, "words", oldRef, []byte("old"))
	require.NoError(t, err)
	assert.True(t, applied)

	idx, ok := env.engine.Registry().Get("words")
	require.True(t, ok)
	data, err := idx.FileData(id)
	require.NoError(t, err)
	assert.Contains(t, data, "new")
	assert.NotContains(t, data, "old")
}

func TestEngine_StorageFailureRoutesToRebuild(t *testing.T) {
	env := newTestEnv(t)
	env.register(wordsExt(1))
	path := env.writeFile("notes.txt", "alpha")
	require.NoError(t, env.engine.FileCreated(path))
	id := env.fileID(path)

	// The store keeps failing, so the rebuild cannot complete either
	// and the index stays flagged
	env.flaky["words"].arm(10)

	err := env.engine.EnsureUpToDate(context.Background(), "words", vfs.Everything())
	require.Error(t, err)
	assert.True(t, facerrors.IsRetryable(err))
	assert.Equal(t, facerrors.ErrCodeRebuildInProgress, facerrors.GetCode(err))

	// The file stays pending, nothing was recorded as current
	assert.True(t, env.engine.Queue().IsScheduled(id))
	_, hasStamp := env.engine.stamps.IndexedStamp(id, "words")
	assert.False(t, hasStamp)

	// Reads surface a retryable not-ready condition while flagged
	_, err = env.engine.Read(context.Background(), "words", "alpha", vfs.Everything())
	require.Error(t, err)
	assert.True(t, facerrors.IsRetryable(err))
}

func TestEngine_RebuildRecoversAfterFailure(t *testing.T) {
	env := newTestEnv(t, WithSynchronousRebuilds())
	env.register(wordsExt(1))
	path := env.writeFile("notes.txt", "alpha")
	require.NoError(t, env.engine.FileCreated(path))

	// One failing write: the update fails, the rebuild itself succeeds
	// and resubmits the file
	env.flaky["words"].arm(1)
	err := env.engine.EnsureUpToDate(context.Background(), "words", vfs.Everything())
	require.NoError(t, err)

	id := env.fileID(path)
	assert.True(t, env.engine.Queue().IsScheduled(id))
	assert.True(t, env.engine.rebuilds.IsOk("words"))

	// The next read drains the resubmitted file and serves data
	assert.Equal(t, []vfs.FileID{id}, env.readKeys("words", "alpha"))
}

func TestEngine_FailureIsolatedFromOtherIndexes(t *testing.T) {
	env := newTestEnv(t, WithSynchronousRebuilds())
	env.register(wordsExt(1), draftExt())
	path := env.writeFile("notes.txt", "alpha")
	require.NoError(t, env.engine.FileCreated(path))
	require.NoError(t, env.engine.EnsureUpToDate(context.Background(), "draft", vfs.Everything()))
	id := env.fileID(path)

	// words fails on a later update
	env.writeFile("notes.txt", "beta")
	env.touchFuture(path)
	env.flaky["words"].arm(2)
	require.NoError(t, env.engine.FileContentChanged(path))
	_ = env.engine.EnsureUpToDate(context.Background(), "words", vfs.Everything())

	// draft still serves consistent data for the same file
	assert.Equal(t, []vfs.FileID{id}, env.readKeys("draft", "beta"))

	ref, err := vfs.Stat(id, path)
	require.NoError(t, err)
	assert.True(t, env.engine.stamps.IsCurrent(ref, "draft"))
}

func TestEngine_ContentlessIndexUpdatedEagerly(t *testing.T) {
	env := newTestEnv(t)
	env.register(filetypeExt())
	path := env.writeFile("main.go", "package main")

	require.NoError(t, env.engine.FileCreated(path))

	// No queue entry was needed
	assert.Equal(t, 0, env.engine.Queue().Len())
	assert.Equal(t, []vfs.FileID{env.fileID(path)}, env.readKeys("filetype", "go"))
}

func TestEngine_OversizedFileIsWipedNotQueued(t *testing.T) {
	env := newTestEnv(t)
	env.engine.cfg.Indexing.MaxFileSizeKB = 1
	env.engine.loader = vfs.NewContentLoader(env.engine.cfg.MaxFileSize(), 16)
	env.register(wordsExt(1))

	path := env.writeFile("small.txt", "alpha")
	require.NoError(t, env.engine.FileCreated(path))
	id := env.fileID(path)
	require.Equal(t, []vfs.FileID{id}, env.readKeys("words", "alpha"))

	// The file grows past the limit
	env.writeFile("small.txt", strings.Repeat("x ", 2048))
	env.touchFuture(path)
	require.NoError(t, env.engine.FileContentChanged(path))

	// Its entry is wiped inline and it never hits the queue
	assert.False(t, env.engine.Queue().IsScheduled(id))
	assert.Empty(t, env.readKeys("words", "alpha"))
}

func TestEngine_OverlayServesUnsavedText(t *testing.T) {
	env := newTestEnv(t)
	env.register(draftExt())
	path := env.writeFile("notes.txt", "disk")
	require.NoError(t, env.engine.FileCreated(path))
	id := env.fileID(path)
	require.Equal(t, []vfs.FileID{id}, env.readKeys("draft", "disk"))

	// Unsaved edits shadow the persisted view
	require.NoError(t, env.engine.DocumentEdited(path, []byte("memory")))
	assert.Equal(t, []vfs.FileID{id}, env.readKeys("draft", "memory"))
	assert.Empty(t, env.readKeys("draft", "disk"))

	// Persisted storage never saw the overlay
	idx, ok := env.engine.Registry().Get("draft")
	require.True(t, ok)
	data, err := idx.FileData(id)
	require.NoError(t, err)
	assert.Contains(t, data, "disk")
	assert.NotContains(t, data, "memory")
}

func TestEngine_DocumentSaveRestoresPersistedView(t *testing.T) {
	env := newTestEnv(t)
	env.register(draftExt())
	path := env.writeFile("notes.txt", "disk")
	require.NoError(t, env.engine.FileCreated(path))
	require.NoError(t, env.engine.DocumentEdited(path, []byte("memory")))
	id := env.fileID(path)
	require.Equal(t, []vfs.FileID{id}, env.readKeys("draft", "memory"))

	// Saving with the new content on disk
	env.writeFile("notes.txt", "memory")
	env.touchFuture(path)
	require.NoError(t, env.engine.DocumentSaved(path))

	assert.Equal(t, []vfs.FileID{id}, env.readKeys("draft", "memory"))
	assert.Empty(t, env.readKeys("draft", "disk"))
	assert.False(t, env.engine.Documents().HasUnsaved(id))
}

func TestEngine_OverlayCurrentMarkerSkipsRewalk(t *testing.T) {
	env := newTestEnv(t)
	env.register(draftExt())
	path := env.writeFile("notes.txt", "disk")
	require.NoError(t, env.engine.DocumentEdited(path, []byte("draft words")))

	require.NoError(t, env.engine.EnsureUpToDate(context.Background(), "draft", vfs.Everything()))
	assert.True(t, env.engine.overlays.IsCurrent("draft"))

	// Any further document change invalidates the marker
	require.NoError(t, env.engine.DocumentEdited(path, []byte("more words")))
	assert.False(t, env.engine.overlays.IsCurrent("draft"))
}

func TestEngine_ReentrantEnsureCollapses(t *testing.T) {
	env := newTestEnv(t)
	var eng *Engine

	recursive := &extension.Def{
		Name:   "recursive",
		Ver:    1,
		Caps:   extension.ContentBased,
		Filter: extension.WithExtensions(".txt"),
		ExtractFunc: func(ctx context.Context, in extension.Input) (extension.Mapping, error) {
			// An extractor reading its own index must not recurse
			if err := eng.EnsureUpToDate(ctx, "recursive", vfs.Everything()); err != nil {
				return nil, err
			}
			return extension.Mapping{"ok": nil}, nil
		},
	}
	env.register(recursive)
	eng = env.engine

	path := env.writeFile("notes.txt", "alpha")
	require.NoError(t, env.engine.FileCreated(path))

	done := make(chan error, 1)
	go func() {
		done <- env.engine.EnsureUpToDate(context.Background(), "recursive", vfs.Everything())
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("reentrant ensure deadlocked")
	}

	assert.Equal(t, []vfs.FileID{env.fileID(path)}, env.readKeys("recursive", "ok"))
}

func TestEngine_ReliableOnlyHidesPendingFiles(t *testing.T) {
	env := newTestEnv(t)
	env.register(wordsExt(1))
	stale := env.writeFile("stale.txt", "shared")
	fresh := env.writeFile("fresh.txt", "shared")
	require.NoError(t, env.engine.FileCreated(stale))
	require.NoError(t, env.engine.FileCreated(fresh))
	require.NoError(t, env.engine.EnsureUpToDate(context.Background(), "words", vfs.Everything()))

	// stale.txt changed again and is pending
	env.writeFile("stale.txt", "shared changed")
	env.touchFuture(stale)
	require.NoError(t, env.engine.FileContentChanged(stale))
	staleID := env.fileID(stale)
	freshID := env.fileID(fresh)

	err := env.engine.RunWithAccessMode(context.Background(), gate.ModeReliableOnly, func(ctx context.Context) error {
		got, err := env.engine.Read(ctx, "words", "shared", vfs.Everything())
		if err != nil {
			return err
		}
		// The pending file is hidden and the drain was skipped
		ids := make([]vfs.FileID, 0, len(got))
		for _, p := range got {
			ids = append(ids, p.File)
		}
		assert.Equal(t, []vfs.FileID{freshID}, ids)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, env.engine.Queue().IsScheduled(staleID))

	// A plain read drains first and sees both
	assert.ElementsMatch(t, []vfs.FileID{staleID, freshID}, env.readKeys("words", "shared"))
}

func TestEngine_ConflictingAccessModesAreFatal(t *testing.T) {
	env := newTestEnv(t)
	env.register(wordsExt(1))

	err := env.engine.RunWithAccessMode(context.Background(), gate.ModeRawData, func(ctx context.Context) error {
		return env.engine.RunWithAccessMode(ctx, gate.ModeReliableOnly, func(context.Context) error {
			t.Fatal("body must not run under conflicting modes")
			return nil
		})
	})

	require.Error(t, err)
	assert.True(t, facerrors.IsFatal(err))
}

func TestEngine_VersionBumpDropsStampsAndData(t *testing.T) {
	root := t.TempDir()

	env := openTestEnv(t, root, "pebble")
	env.register(wordsExt(1))
	path := env.writeFile("notes.txt", "alpha")
	require.NoError(t, env.engine.FileCreated(path))
	id := env.fileID(path)
	require.Equal(t, []vfs.FileID{id}, env.readKeys("words", "alpha"))
	require.NoError(t, env.engine.Close())

	// Reopen with a bumped extractor version
	again := openTestEnv(t, root, "pebble")
	status, err := again.engine.RegisterExtension(wordsExt(2))
	require.NoError(t, err)
	require.NoError(t, again.engine.Start())

	assert.Equal(t, registry.StatusChanged, status)
	_, hasStamp := again.engine.stamps.IndexedStamp(id, "words")
	assert.False(t, hasStamp)
}

func TestEngine_CorruptionSentinelForcesRebuildAtNextStart(t *testing.T) {
	root := t.TempDir()

	env := openTestEnv(t, root, string(storage.BackendMemory))
	env.register(wordsExt(1))
	require.NoError(t, env.engine.InvalidateCaches())
	require.NoError(t, env.engine.Close())

	again := openTestEnv(t, root, string(storage.BackendMemory))
	status, err := again.engine.RegisterExtension(wordsExt(1))
	require.NoError(t, err)
	assert.Equal(t, registry.StatusChanged, status)

	// The sentinel is consumed once registration completed
	require.NoError(t, again.engine.Start())
	require.NoError(t, again.engine.Close())

	third := openTestEnv(t, root, string(storage.BackendMemory))
	status, err = third.engine.RegisterExtension(wordsExt(1))
	require.NoError(t, err)
	assert.Equal(t, registry.StatusUpToDate, status)
}

func TestEngine_ReconcileDetectsOfflineChanges(t *testing.T) {
	root := t.TempDir()

	env := openTestEnv(t, root, "pebble")
	env.register(wordsExt(1))
	keep := env.writeFile("keep.txt", "keep")
	gone := env.writeFile("gone.txt", "gone")
	require.NoError(t, env.engine.FileCreated(keep))
	require.NoError(t, env.engine.FileCreated(gone))
	require.NoError(t, env.engine.EnsureUpToDate(context.Background(), "words", vfs.Everything()))
	require.NoError(t, env.engine.Close())

	// Offline: keep.txt edited, gone.txt deleted, new.txt created
	env.writeFile("keep.txt", "kept edited")
	env.touchFuture(keep)
	require.NoError(t, os.Remove(gone))
	added := env.writeFile("new.txt", "brand new")

	again := openTestEnv(t, root, "pebble")
	again.register(wordsExt(1))

	stats, err := again.engine.Reconcile(context.Background(), []string{keep, added})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Added)
	assert.Equal(t, 1, stats.Modified)
	assert.Equal(t, 1, stats.Deleted)

	assert.NotEmpty(t, again.readKeys("words", "edited"))
	assert.NotEmpty(t, again.readKeys("words", "brand"))
	assert.Empty(t, again.readKeys("words", "gone"))
}

func TestEngine_CloseWipesPendingInvalidFiles(t *testing.T) {
	root := t.TempDir()

	env := openTestEnv(t, root, "pebble")
	env.register(wordsExt(1))
	path := env.writeFile("notes.txt", "alpha")
	require.NoError(t, env.engine.FileCreated(path))
	require.NoError(t, env.engine.EnsureUpToDate(context.Background(), "words", vfs.Everything()))
	id := env.fileID(path)

	// The file disappears and its stub sits in the queue at shutdown
	require.NoError(t, os.Remove(path))
	env.engine.FileInvalidated(path)
	require.NoError(t, env.engine.Close())

	// The wiped file must not look current after reopen
	again := openTestEnv(t, root, "pebble")
	again.register(wordsExt(1))
	_, hasStamp := again.engine.stamps.IndexedStamp(id, "words")
	assert.False(t, hasStamp)
}

func TestEngine_EnsureBeforeStartIsNotReady(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.engine.RegisterExtension(wordsExt(1))
	require.NoError(t, err)

	err = env.engine.EnsureUpToDate(context.Background(), "words", vfs.Everything())
	require.Error(t, err)
	assert.True(t, facerrors.IsRetryable(err))

	require.NoError(t, env.engine.Start())
	assert.NoError(t, env.engine.EnsureUpToDate(context.Background(), "words", vfs.Everything()))
}

func TestEngine_UnknownIndexIsRejected(t *testing.T) {
	env := newTestEnv(t)
	env.register(wordsExt(1))

	err := env.engine.EnsureUpToDate(context.Background(), "nope", vfs.Everything())

	require.Error(t, err)
	assert.Equal(t, facerrors.ErrCodeUnknownIndex, facerrors.GetCode(err))
}

func TestEngine_DoubleStartIsContractViolation(t *testing.T) {
	env := newTestEnv(t)
	env.register(wordsExt(1))

	err := env.engine.Start()

	require.Error(t, err)
	assert.True(t, facerrors.IsFatal(err))
}

func TestFlushDaemon_FlushesOnlyWhenIdle(t *testing.T) {
	env := newTestEnv(t, WithSynchronousRebuilds())
	env.register(wordsExt(1))
	path := env.writeFile("notes.txt", "alpha")
	require.NoError(t, env.engine.FileCreated(path))
	require.NoError(t, env.engine.EnsureUpToDate(context.Background(), "words", vfs.Everything()))

	d := env.engine.flusher
	fs := env.flaky["words"]

	// First tick observes fresh writes and stays out of the way
	d.tick()
	assert.Zero(t, fs.flushes.Load())

	// Second tick sees a quiet engine and flushes the index
	d.tick()
	assert.Equal(t, int64(1), fs.flushes.Load())
}

func TestFlushDaemon_FlushFailureRoutesToRebuild(t *testing.T) {
	env := newTestEnv(t, WithSynchronousRebuilds())
	env.register(wordsExt(1))
	path := env.writeFile("notes.txt", "alpha")
	require.NoError(t, env.engine.FileCreated(path))
	require.NoError(t, env.engine.EnsureUpToDate(context.Background(), "words", vfs.Everything()))
	id := env.fileID(path)

	d := env.engine.flusher
	d.tick() // absorb the writes above

	env.flaky["words"].arm(1)
	d.tick()

	// The failed flush triggered a rebuild, which resubmitted the file
	assert.True(t, env.engine.rebuilds.IsOk("words"))
	assert.True(t, env.engine.Queue().IsScheduled(id))
}
