package sched

import (
	"math/rand"
	"sync"
)

const (
	latencyFloorMs   = 8
	latencyCeilingMs = 15
	latencyInitialMs = 12
)

// LatencyMonitor simulates an execution-node latency reading for the
// status display. Purely cosmetic: a bounded random walk, no real probe.
type LatencyMonitor struct {
	mu      sync.Mutex
	rng     *rand.Rand
	current int
}

// NewLatencyMonitor creates a latency monitor using the given source.
func NewLatencyMonitor(rng *rand.Rand) *LatencyMonitor {
	return &LatencyMonitor{rng: rng, current: latencyInitialMs}
}

// Step advances the walk one tick and returns the new reading in
// milliseconds, clamped to [8, 15].
func (m *LatencyMonitor) Step() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current += m.rng.Intn(5) - 2
	if m.current < latencyFloorMs {
		m.current = latencyFloorMs
	}
	if m.current > latencyCeilingMs {
		m.current = latencyCeilingMs
	}
	return m.current
}

// Current returns the latest reading without advancing the walk.
func (m *LatencyMonitor) Current() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}
