// Package ratelimit throttles calls to the inference backend.
package ratelimit

import (
	"sync"
	"time"
)

// Gate admits a call only if minInterval has passed since the last admitted
// call. One Gate is shared by the whole process.
type Gate struct {
	mu          sync.Mutex
	minInterval time.Duration
	last        time.Time
	admitted    bool
	now         func() time.Time
}

func NewGate(minInterval time.Duration) *Gate {
	return &Gate{
		minInterval: minInterval,
		now:         time.Now,
	}
}

// Admit checks and advances the gate in one step.
func (g *Gate) Admit() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if g.admitted && now.Sub(g.last) < g.minInterval {
		return false
	}
	g.last = now
	g.admitted = true
	return true
}

func (g *Gate) MinInterval() time.Duration {
	return g.minInterval
}
