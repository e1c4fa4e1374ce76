package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/facetdb/facet/internal/engine"
	"github.com/facetdb/facet/internal/watcher"
)

// Daemon owns the watch process: a started engine, the filesystem
// watcher feeding it, and the control socket serving CLI requests.
type Daemon struct {
	cfg   Config
	root  string
	eng   *engine.Engine
	watch *watcher.HybridWatcher
	srv   *Server
	pid   *PIDFile
	log   *slog.Logger
}

// NewDaemon wires a daemon over a started engine. watch may be nil
// when the caller only wants the control socket.
func NewDaemon(cfg Config, root string, eng *engine.Engine, watch *watcher.HybridWatcher, log *slog.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Daemon{
		cfg:   cfg,
		root:  root,
		eng:   eng,
		watch: watch,
		srv:   NewServer(cfg.SocketPath, log),
		pid:   NewPIDFile(cfg.PIDPath),
		log:   log,
	}, nil
}

// Run serves until the context ends. Exactly one daemon per project:
// a live PID file refuses startup, a stale one is replaced.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.cfg.EnsureDir(); err != nil {
		return err
	}
	if d.pid.IsRunning() {
		pid, _ := d.pid.Read()
		return fmt.Errorf("daemon already running with pid %d", pid)
	}
	if err := d.pid.Write(); err != nil {
		return err
	}
	defer func() { _ = d.pid.Remove() }()

	var mode func() string
	if d.watch != nil {
		mode = d.watch.Mode
	}
	d.srv.SetHandler(NewEngineHandler(d.eng, mode))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.srv.ListenAndServe(ctx) })
	if d.watch != nil {
		g.Go(func() error { return d.watch.Start(ctx, d.root) })
		g.Go(func() error {
			d.consumeEvents(ctx)
			return nil
		})
	}
	return g.Wait()
}

// consumeEvents applies watcher batches to the engine until the
// channel closes or the context ends.
func (d *Daemon) consumeEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-d.watch.Events():
			if !ok {
				return
			}
			d.applyBatch(batch)
		case err, ok := <-d.watch.Errors():
			if !ok {
				return
			}
			d.log.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

// applyBatch translates one debounced batch into engine notifications.
func (d *Daemon) applyBatch(batch []watcher.FileEvent) {
	for _, ev := range batch {
		if ev.IsDir {
			continue
		}
		abs := filepath.Join(d.root, ev.Path)
		switch ev.Operation {
		case watcher.OpCreate:
			if err := d.eng.FileCreated(abs); err != nil {
				d.log.Warn("file create not applied",
					slog.String("path", ev.Path), slog.String("error", err.Error()))
			}
		case watcher.OpModify:
			if err := d.eng.FileContentChanged(abs); err != nil {
				d.log.Warn("file change not applied",
					slog.String("path", ev.Path), slog.String("error", err.Error()))
			}
		case watcher.OpDelete, watcher.OpRename:
			d.eng.FileInvalidated(abs)
		case watcher.OpGitignoreChange, watcher.OpConfigChange:
			// Filter rules moved under us; recorded files that are now
			// ignored stay indexed until the next full scan.
			d.log.Info("project configuration changed",
				slog.String("path", ev.Path))
		}
	}
}
