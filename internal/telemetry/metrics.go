// Package telemetry exposes the engine's Prometheus collectors and an
// optional /metrics HTTP listener. Collectors are package-level and
// registered against their own registry so tests can run in parallel
// without duplicate-registration panics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

var UpdateCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "facet",
	Subsystem: "engine",
	Name:      "updates",
	Help:      "Single-index update attempts by outcome.",
}, []string{"index", "result"})

var UpdateDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "facet",
	Subsystem: "engine",
	Name:      "update_duration_seconds",
	Help:      "Wall time of one extract-and-apply cycle.",
	Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
}, []string{"index"})

var RebuildCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "facet",
	Subsystem: "engine",
	Name:      "rebuilds",
	Help:      "Full index rebuilds by trigger.",
}, []string{"index", "trigger"})

var FlushCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "facet",
	Subsystem: "engine",
	Name:      "flushes",
	Help:      "Flush daemon passes by outcome.",
}, []string{"result"})

var PendingFiles = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "facet",
	Subsystem: "engine",
	Name:      "pending_files",
	Help:      "Files currently awaiting reindexing.",
})

var OverlayDocs = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "facet",
	Subsystem: "engine",
	Name:      "overlay_documents",
	Help:      "Documents with unsaved in-memory edits.",
})

var ReadCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "facet",
	Subsystem: "engine",
	Name:      "reads",
	Help:      "Index reads by outcome.",
}, []string{"index", "result"})

var NotReadyCount = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "facet",
	Subsystem: "engine",
	Name:      "not_ready_total",
	Help:      "Reads refused with a retryable not-ready condition.",
})

// NewRegistry returns a registry with every engine collector plus the
// standard Go and process collectors registered.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		UpdateCount,
		UpdateDuration,
		RebuildCount,
		FlushCount,
		PendingFiles,
		OverlayDocs,
		ReadCount,
		NotReadyCount,
	)
	return reg
}
