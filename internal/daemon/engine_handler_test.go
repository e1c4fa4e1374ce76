package daemon

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facetdb/facet/internal/config"
	"github.com/facetdb/facet/internal/engine"
	"github.com/facetdb/facet/internal/extension"
	"github.com/facetdb/facet/internal/storage"
)

// newHandlerEnv opens an in-memory engine with a word index over .txt
// files and seeds it with the given rel->content files.
func newHandlerEnv(t *testing.T, files map[string]string) (*EngineHandler, string) {
	t.Helper()
	root := t.TempDir()

	cfg := config.NewConfig()
	cfg.Storage.Backend = string(storage.BackendMemory)

	eng, err := engine.New(cfg, root, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	words := &extension.Def{
		Name:   "words",
		Ver:    1,
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
	_, err = eng.RegisterExtension(words)
	require.NoError(t, err)
	require.NoError(t, eng.Start())

	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		require.NoError(t, eng.FileCreated(path))
	}

	return NewEngineHandler(eng, func() string { return "fsnotify" }), root
}

func TestEngineHandler_HandleQuery_FindsPostings(t *testing.T) {
	h, _ := newHandlerEnv(t, map[string]string{
		"a.txt":     "alpha beta",
		"sub/b.txt": "beta gamma",
	})

	hits, err := h.HandleQuery(context.Background(), QueryParams{
		Index: "words", Key: "beta", Limit: 100,
	})
	require.NoError(t, err)

	paths := make([]string, 0, len(hits))
	for _, hit := range hits {
		paths = append(paths, filepath.Base(hit.Path))
	}
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, paths)
}

func TestEngineHandler_HandleQuery_UnknownIndex(t *testing.T) {
	h, _ := newHandlerEnv(t, nil)

	_, err := h.HandleQuery(context.Background(), QueryParams{
		Index: "refs", Key: "beta", Limit: 100,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown index")
}

func TestEngineHandler_HandleQuery_HonorsLimit(t *testing.T) {
	h, _ := newHandlerEnv(t, map[string]string{
		"a.txt": "shared",
		"b.txt": "shared",
		"c.txt": "shared",
	})

	hits, err := h.HandleQuery(context.Background(), QueryParams{
		Index: "words", Key: "shared", Limit: 2,
	})
	require.NoError(t, err)

	assert.Len(t, hits, 2)
}

func TestEngineHandler_HandleQuery_PathPrefixScopesResults(t *testing.T) {
	h, root := newHandlerEnv(t, map[string]string{
		"src/a.txt":  "token",
		"docs/b.txt": "token",
	})

	hits, err := h.HandleQuery(context.Background(), QueryParams{
		Index: "words", Key: "token", PathPrefix: filepath.Join(root, "src"), Limit: 100,
	})
	require.NoError(t, err)

	require.Len(t, hits, 1)
	assert.Equal(t, "a.txt", filepath.Base(hits[0].Path))
}

func TestEngineHandler_HandleRebuild_KnownIndex(t *testing.T) {
	h, _ := newHandlerEnv(t, nil)

	require.NoError(t, h.HandleRebuild(RebuildParams{Index: "words"}))

	status := h.GetStatus()
	require.Len(t, status.Indexes, 1)
	assert.True(t, status.Indexes[0].Rebuilding)
}

func TestEngineHandler_HandleRebuild_UnknownIndex(t *testing.T) {
	h, _ := newHandlerEnv(t, nil)

	err := h.HandleRebuild(RebuildParams{Index: "refs"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown index")
}

func TestEngineHandler_HandleFlush(t *testing.T) {
	h, _ := newHandlerEnv(t, map[string]string{"a.txt": "alpha"})

	assert.NoError(t, h.HandleFlush(context.Background()))
}

func TestEngineHandler_GetStatus_ReportsEngineCounters(t *testing.T) {
	h, _ := newHandlerEnv(t, map[string]string{"a.txt": "alpha"})

	status := h.GetStatus()

	assert.Equal(t, "fsnotify", status.WatcherMode)
	require.Len(t, status.Indexes, 1)
	assert.Equal(t, "words", status.Indexes[0].ID)
	assert.Equal(t, 1, status.Indexes[0].Version)
	assert.False(t, status.Indexes[0].Rebuilding)
}
