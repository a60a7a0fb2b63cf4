package profiling

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"runtime/pprof"
	"time"
)

// Profiler captures CPU and heap profiles to files for offline analysis
// of long batch runs.
type Profiler struct {
	cpuPath  string
	heapPath string
	cpuFile  *os.File
}

// New creates a profiler. Empty paths disable the corresponding capture.
func New(cpuPath, heapPath string) *Profiler {
	return &Profiler{cpuPath: cpuPath, heapPath: heapPath}
}

// Start begins CPU profiling when configured.
func (p *Profiler) Start() error {
	if p.cpuPath == "" {
		return nil
	}
	f, err := os.Create(p.cpuPath)
	if err != nil {
		return fmt.Errorf("failed to create CPU profile %s: %w", p.cpuPath, err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to start CPU profile: %w", err)
	}
	p.cpuFile = f
	log.Printf("CPU profiling to %s", p.cpuPath)
	return nil
}

// Stop finishes the CPU profile and writes the heap profile when
// configured.
func (p *Profiler) Stop() error {
	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		p.cpuFile.Close()
		p.cpuFile = nil
	}
	if p.heapPath == "" {
		return nil
	}
	f, err := os.Create(p.heapPath)
	if err != nil {
		return fmt.Errorf("failed to create heap profile %s: %w", p.heapPath, err)
	}
	defer f.Close()
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("failed to write heap profile: %w", err)
	}
	log.Printf("heap profile written to %s", p.heapPath)
	return nil
}

// LogGCStats logs a one-line garbage collector summary, useful after a
// large batch.
func LogGCStats() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	log.Printf("GC: runs=%d pause_total=%.3fms alloc=%dKB goroutines=%d last=%s",
		m.NumGC,
		float64(m.PauseTotalNs)/1e6,
		m.Alloc/1024,
		runtime.NumGoroutine(),
		time.Unix(0, int64(m.LastGC)).Format(time.RFC3339))
}
