package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-gfx/common"
)

// Stats is one profiling report covering the frames since the previous report.
type Stats struct {
	FPS         float64
	DrawCalls   uint32
	HeapMB      float64
	AllocRateMB float64
	GCCount     uint32
	LastPauseUs uint64
	MaxPauseUs  uint64
	SysMB       float64
}

// Profiler tracks frame rate, draw calls and memory statistics for performance monitoring.
// Outputs stats to the logger at a configurable interval.
type Profiler struct {
	frameCount     int
	drawCalls      uint32
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	last           Stats

	now func() time.Time
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler() *Profiler {
	return &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Second,
		now:            time.Now,
	}
}

// SetInterval changes how often stats are reported. Values <= 0 are ignored.
//
// Parameters:
//   - interval: time between reports
func (p *Profiler) SetInterval(interval time.Duration) {
	if interval > 0 {
		p.updateInterval = interval
	}
}

// Last returns the most recent report.
//
// Returns:
//   - Stats: the stats logged by the last reporting Tick
func (p *Profiler) Last() Stats {
	return p.last
}

// Tick should be called once per presented frame with the draw calls the frame issued.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, draw calls per frame, heap usage, allocation rate, GC count/pause times, total memory.
//
// Parameters:
//   - drawCalls: the draw calls issued by the frame
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick(drawCalls uint32) bool {
	p.frameCount++
	p.drawCalls += drawCalls
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed < p.updateInterval {
		return false
	}

	runtime.ReadMemStats(&p.memStats)
	// Alloc: Bytes of allocated heap objects (live memory)
	// TotalAlloc: Cumulative bytes allocated for heap objects (increases forever, tracks churn)
	// Sys: Total bytes of memory obtained from the OS (actual process footprint)
	stats := Stats{
		FPS:       float64(p.frameCount) / elapsed.Seconds(),
		DrawCalls: p.drawCalls / uint32(p.frameCount),
		HeapMB:    float64(p.memStats.Alloc) / 1024 / 1024,
		SysMB:     float64(p.memStats.Sys) / 1024 / 1024,
		GCCount:   p.memStats.NumGC,
	}

	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	stats.AllocRateMB = float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	if gcCount := stats.GCCount; gcCount > 0 {
		// PauseNs is a circular buffer of last 256 GC pauses
		stats.LastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			stats.MaxPauseUs = max(stats.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	common.Logger().Info("profiler",
		"fps", stats.FPS,
		"drawCalls", stats.DrawCalls,
		"heapMB", stats.HeapMB,
		"allocRateMB", stats.AllocRateMB,
		"gc", stats.GCCount,
		"lastPauseUs", stats.LastPauseUs,
		"maxPauseUs", stats.MaxPauseUs,
		"sysMB", stats.SysMB,
	)

	p.last = stats
	p.frameCount = 0
	p.drawCalls = 0
	p.lastTime = currentTime
	p.lastGCCount = stats.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
