package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestGate(interval time.Duration) (*Gate, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	g := NewGate(interval)
	g.now = clock.Now
	return g, clock
}

func TestGateRejectsWithinInterval(t *testing.T) {
	g, clock := newTestGate(500 * time.Millisecond)

	if !g.Admit() {
		t.Fatalf("first call should be admitted")
	}
	clock.Advance(499 * time.Millisecond)
	if g.Admit() {
		t.Fatalf("call inside interval should be rejected")
	}
	clock.Advance(time.Millisecond)
	if !g.Admit() {
		t.Fatalf("call at exactly minInterval should be admitted")
	}
}

func TestGateRejectionDoesNotAdvanceClock(t *testing.T) {
	g, clock := newTestGate(time.Second)

	g.Admit()
	clock.Advance(600 * time.Millisecond)
	if g.Admit() {
		t.Fatalf("expected rejection")
	}
	clock.Advance(400 * time.Millisecond)
	if !g.Admit() {
		t.Fatalf("rejected call must not push the window forward")
	}
}

func TestGateZeroIntervalAdmitsAll(t *testing.T) {
	g, _ := newTestGate(0)
	for i := 0; i < 5; i++ {
		if !g.Admit() {
			t.Fatalf("call %d rejected with zero interval", i)
		}
	}
}

func TestGateConcurrentAdmitsOnce(t *testing.T) {
	g, _ := newTestGate(time.Minute)

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Admit() {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := admitted.Load(); got != 1 {
		t.Fatalf("admitted = %d, want 1", got)
	}
}
