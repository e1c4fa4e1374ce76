// Package integration exercises the watch pipeline end to end: the
// filesystem watcher feeding a live engine, queried over the daemon's
// control socket.
package integration

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facetdb/facet/internal/config"
	"github.com/facetdb/facet/internal/daemon"
	"github.com/facetdb/facet/internal/engine"
	"github.com/facetdb/facet/internal/extension"
	"github.com/facetdb/facet/internal/storage"
	"github.com/facetdb/facet/internal/watcher"
)

// wordsExtension indexes whitespace-separated words of .txt files.
func wordsExtension() extension.Extension {
	return &extension.Def{
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
}

type pipelineEnv struct {
	t      *testing.T
	root   string
	client *daemon.Client
	cancel context.CancelFunc
}

// startPipeline brings up engine + watcher + daemon over a temp root.
func startPipeline(t *testing.T) *pipelineEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	root := t.TempDir()
	log := slog.New(slog.DiscardHandler)

	cfg := config.NewConfig()
	cfg.Storage.Backend = string(storage.BackendMemory)

	eng, err := engine.New(cfg, root, log)
	require.NoError(t, err)
	_, err = eng.RegisterExtension(wordsExtension())
	require.NoError(t, err)
	require.NoError(t, eng.Start())
	t.Cleanup(func() { _ = eng.Close() })

	w, err := watcher.NewHybridWatcher(watcher.Options{
		DebounceWindow:  50 * time.Millisecond,
		EventBufferSize: 100,
		Logger:          log,
	}.WithDefaults())
	require.NoError(t, err)

	// Sockets live in /tmp because t.TempDir paths can exceed the
	// Unix socket limit.
	socketPath := filepath.Join("/tmp", fmt.Sprintf("facet-integ-%d.sock", time.Now().UnixNano()))
	t.Cleanup(func() { _ = os.Remove(socketPath) })
	dcfg := daemon.Config{
		SocketPath:          socketPath,
		PIDPath:             socketPath + ".pid",
		Timeout:             5 * time.Second,
		ShutdownGracePeriod: time.Second,
	}
	d, err := daemon.NewDaemon(dcfg, root, eng, w, log)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("daemon did not stop")
		}
	})

	client := daemon.NewClient(dcfg)
	deadline := time.Now().Add(5 * time.Second)
	for !client.IsRunning() {
		require.False(t, time.Now().After(deadline), "daemon never came up")
		time.Sleep(10 * time.Millisecond)
	}

	return &pipelineEnv{t: t, root: root, client: client, cancel: cancel}
}

func (env *pipelineEnv) write(rel, content string) {
	env.t.Helper()
	path := filepath.Join(env.root, rel)
	require.NoError(env.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(env.t, os.WriteFile(path, []byte(content), 0o644))
}

// awaitHits polls the daemon until the key's hit count matches want.
func (env *pipelineEnv) awaitHits(key string, want int) []daemon.QueryHit {
	env.t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	var hits []daemon.QueryHit
	for {
		var err error
		hits, err = env.client.Query(context.Background(), daemon.QueryParams{
			Index: "words", Key: key, Limit: 100,
		})
		if err == nil && len(hits) == want {
			return hits
		}
		if time.Now().After(deadline) {
			env.t.Fatalf("timed out waiting for %d hits on %q, last: %v (err %v)", want, key, hits, err)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestPipeline_NewFileBecomesQueryable(t *testing.T) {
	env := startPipeline(t)

	env.write("notes/a.txt", "alpha beta")

	hits := env.awaitHits("alpha", 1)
	assert.Contains(t, hits[0].Path, "a.txt")
}

func TestPipeline_EditMovesPostings(t *testing.T) {
	env := startPipeline(t)

	env.write("a.txt", "alpha")
	env.awaitHits("alpha", 1)

	// Rewrite with different content; the old key must disappear.
	env.write("a.txt", "gamma")

	env.awaitHits("gamma", 1)
	env.awaitHits("alpha", 0)
}

func TestPipeline_DeleteRemovesPostings(t *testing.T) {
	env := startPipeline(t)

	env.write("a.txt", "alpha")
	env.awaitHits("alpha", 1)

	require.NoError(t, os.Remove(filepath.Join(env.root, "a.txt")))

	env.awaitHits("alpha", 0)
}

func TestPipeline_GitignoredFilesStayOut(t *testing.T) {
	env := startPipeline(t)

	env.write(".gitignore", "scratch/\n")
	// Let the ignore rules land before the file appears.
	time.Sleep(300 * time.Millisecond)

	env.write("scratch/tmp.txt", "hidden")
	env.write("kept.txt", "visible")

	env.awaitHits("visible", 1)
	env.awaitHits("hidden", 0)
}

func TestPipeline_StatusReflectsActivity(t *testing.T) {
	env := startPipeline(t)

	env.write("a.txt", "alpha")
	env.awaitHits("alpha", 1)

	status, err := env.client.Status(context.Background())
	require.NoError(t, err)

	assert.True(t, status.Running)
	require.Len(t, status.Indexes, 1)
	assert.Equal(t, "words", status.Indexes[0].ID)
	assert.NotEmpty(t, status.WatcherMode)
}

func TestPipeline_FlushSucceedsMidWatch(t *testing.T) {
	env := startPipeline(t)

	env.write("a.txt", "alpha")
	env.awaitHits("alpha", 1)

	assert.NoError(t, env.client.Flush(context.Background()))
}
