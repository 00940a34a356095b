// Package tuning holds the feedback loops that size the pipelines'
// worker pools, tool invocation concurrency, timeouts and batch sizes
// from observed behavior rather than fixed constants.
package tuning

import (
	"sync"
	"time"
)

// Monitor observes batch timings and adapts the external-tool chunk
// size toward a target wall-time band. All methods are thread-safe.
type Monitor struct {
	mu sync.Mutex

	chunkSize int
	minChunk  int
	maxChunk  int

	// Target band for one bulk invocation's wall time. Above the top
	// the chunk shrinks, below the bottom it grows.
	targetLow  time.Duration
	targetHigh time.Duration

	window   []time.Duration
	windowAt int
	samples  int

	totalBatches int64
	totalItems   int64
}

const monitorWindow = 10

// NewMonitor returns a monitor starting at chunk size start, adapting
// within [min, max].
func NewMonitor(start, min, max int) *Monitor {
	if start < min {
		start = min
	}
	if start > max {
		start = max
	}
	return &Monitor{
		chunkSize:  start,
		minChunk:   min,
		maxChunk:   max,
		targetLow:  2 * time.Second,
		targetHigh: 10 * time.Second,
		window:     make([]time.Duration, monitorWindow),
	}
}

// RecordBatch feeds one completed batch's size and duration into the
// rolling window and re-evaluates the chunk size once the window is
// half full.
func (m *Monitor) RecordBatch(items int, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalBatches++
	m.totalItems += int64(items)

	m.window[m.windowAt] = d
	m.windowAt = (m.windowAt + 1) % len(m.window)
	if m.samples < len(m.window) {
		m.samples++
	}
	if m.samples < len(m.window)/2 {
		return
	}

	avg := m.average()
	switch {
	case avg > m.targetHigh:
		m.chunkSize = clamp(m.chunkSize*3/4, m.minChunk, m.maxChunk)
	case avg < m.targetLow:
		m.chunkSize = clamp(m.chunkSize*5/4+1, m.minChunk, m.maxChunk)
	}
}

// ChunkSize returns the current adapted chunk size.
func (m *Monitor) ChunkSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chunkSize
}

// RecentBatchDuration returns the rolling average batch duration, or
// zero before any sample arrives.
func (m *Monitor) RecentBatchDuration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.samples == 0 {
		return 0
	}
	return m.average()
}

// Totals reports lifetime batch and item counts.
func (m *Monitor) Totals() (batches, items int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalBatches, m.totalItems
}

// caller must hold mu.
func (m *Monitor) average() time.Duration {
	var sum time.Duration
	for i := 0; i < m.samples; i++ {
		sum += m.window[i]
	}
	return sum / time.Duration(m.samples)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
