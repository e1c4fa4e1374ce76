package engine

import (
	"log/slog"
	"time"

	facerrors "github.com/facetdb/facet/internal/errors"
	"github.com/facetdb/facet/internal/extension"
	"github.com/facetdb/facet/internal/telemetry"
)

// flushDaemon persists buffered state on a fixed period. Each tick it
// flushes the path-interning and stamp tables first, then every
// index's buffered writes, but only when the engine's modification
// counter has not moved since the previous tick: flushing into heavy
// write activity just contends with it. Shutdown flushing is handled
// unconditionally by Engine.Close, not here.
type flushDaemon struct {
	engine   *Engine
	interval time.Duration

	// One breaker per index: an index whose flush keeps failing is
	// skipped for a cool-down instead of hammering broken storage
	// while its rebuild is pending.
	breakers map[extension.ID]*facerrors.CircuitBreaker

	lastMod int64
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func newFlushDaemon(e *Engine, interval time.Duration) *flushDaemon {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &flushDaemon{
		engine:   e,
		interval: interval,
		breakers: make(map[extension.ID]*facerrors.CircuitBreaker),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (d *flushDaemon) start() {
	go d.run()
}

func (d *flushDaemon) stop() {
	close(d.stopCh)
	<-d.doneCh
}

func (d *flushDaemon) run() {
	defer close(d.doneCh)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.tick()
		}
	}
}

func (d *flushDaemon) tick() {
	e := d.engine
	mod := e.modCount.Load()
	if mod != d.lastMod {
		// Writes landed since the previous tick; stay out of the way.
		d.lastMod = mod
		if e.metrics {
			telemetry.FlushCount.WithLabelValues("skipped-busy").Inc()
		}
		return
	}

	if err := e.stamps.Flush(); err != nil {
		e.log.Error("stamp flush failed", slog.String("error", err.Error()))
		if e.metrics {
			telemetry.FlushCount.WithLabelValues("error").Inc()
		}
		return
	}
	if err := e.files.Flush(); err != nil {
		e.log.Error("meta flush failed", slog.String("error", err.Error()))
		return
	}

	for _, id := range e.registry.IDs() {
		// Abort the pass the moment new writes arrive.
		if e.modCount.Load() != mod {
			if e.metrics {
				telemetry.FlushCount.WithLabelValues("aborted-busy").Inc()
			}
			return
		}
		idx, ok := e.registry.Get(id)
		if !ok {
			continue
		}
		br := d.breakers[id]
		if br == nil {
			br = facerrors.NewCircuitBreaker("flush-" + string(id))
			d.breakers[id] = br
		}
		if !br.Allow() {
			continue
		}
		if err := idx.Flush(); err != nil {
			br.RecordFailure()
			e.log.Error("index flush failed",
				slog.String("index", string(id)),
				slog.String("error", err.Error()))
			e.RequestRebuild(id, err)
			continue
		}
		br.RecordSuccess()
	}
	if e.metrics {
		telemetry.FlushCount.WithLabelValues("ok").Inc()
	}
}
