// Package profiling wraps runtime/pprof for the CLI's --cpuprofile
// and --memprofile flags and for dumping state from a wedged daemon.
package profiling

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

// Profiler manages profile capture.
type Profiler struct {
	cpuFile   *os.File
	traceFile *os.File
}

// NewProfiler returns an idle profiler.
func NewProfiler() *Profiler {
	return &Profiler{}
}

// StartCPU begins CPU profiling into path. The returned cleanup stops
// profiling and flushes the file; it must be called.
func (p *Profiler) StartCPU(path string) (cleanup func(), err error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create cpu profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("start cpu profile: %w", err)
	}
	p.cpuFile = f

	return func() {
		pprof.StopCPUProfile()
		_ = p.cpuFile.Close()
		p.cpuFile = nil
	}, nil
}

// StartTrace begins execution tracing into path. The returned cleanup
// stops the trace and must be called.
func (p *Profiler) StartTrace(path string) (cleanup func(), err error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create trace file: %w", err)
	}
	if err := trace.Start(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("start trace: %w", err)
	}
	p.traceFile = f

	return func() {
		trace.Stop()
		_ = p.traceFile.Close()
		p.traceFile = nil
	}, nil
}

// WriteHeap snapshots live heap allocations into path. Runs a GC first
// so the numbers reflect reachable memory.
func (p *Profiler) WriteHeap(path string) error {
	return writeProfile(path, func(f *os.File) error {
		runtime.GC()
		return pprof.WriteHeapProfile(f)
	})
}

// WriteAllocs dumps cumulative allocation counts into path.
func (p *Profiler) WriteAllocs(path string) error {
	return writeProfile(path, func(f *os.File) error {
		runtime.GC()
		return pprof.Lookup("allocs").WriteTo(f, 0)
	})
}

// WriteGoroutine dumps all goroutine stacks into path.
func (p *Profiler) WriteGoroutine(path string) error {
	return writeProfile(path, func(f *os.File) error {
		return pprof.Lookup("goroutine").WriteTo(f, 1)
	})
}

// WriteBlock dumps blocking profile data into path.
func (p *Profiler) WriteBlock(path string) error {
	return writeProfile(path, func(f *os.File) error {
		return pprof.Lookup("block").WriteTo(f, 0)
	})
}

func writeProfile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create profile file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := write(f); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}

// MemStats reads current runtime memory statistics.
func MemStats() runtime.MemStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m
}

// FormatBytes renders a byte count for humans.
func FormatBytes(bytes uint64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
