package timer

import (
	"context"
	"sort"
	"sync"
	"time"
)

// TickInterval is how often running timers are decremented locally.
const TickInterval = time.Second

// TickFunc is invoked once per interval for each tracked task.
type TickFunc func(taskKey string)

// Ticker drives the local countdown. It holds a mutable set of task keys
// (opaque to the ticker, typically instanceID/taskID) and calls the tick
// function for each on every interval. The tick function owns the actual
// state mutation; the ticker only provides the cadence.
type Ticker struct {
	mu       sync.Mutex
	targets  map[string]struct{}
	interval time.Duration
	tick     TickFunc
}

// NewTicker builds a ticker at the standard 1 Hz cadence.
func NewTicker(tick TickFunc) *Ticker {
	return NewTickerWithInterval(tick, TickInterval)
}

// NewTickerWithInterval allows a faster cadence in tests.
func NewTickerWithInterval(tick TickFunc, interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = TickInterval
	}
	return &Ticker{
		targets:  make(map[string]struct{}),
		interval: interval,
		tick:     tick,
	}
}

// Track adds a task key to the tick set.
func (t *Ticker) Track(key string) {
	t.mu.Lock()
	t.targets[key] = struct{}{}
	t.mu.Unlock()
}

// Untrack removes a task key from the tick set.
func (t *Ticker) Untrack(key string) {
	t.mu.Lock()
	delete(t.targets, key)
	t.mu.Unlock()
}

// Targets returns the tracked keys in sorted order.
func (t *Ticker) Targets() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := make([]string, 0, len(t.targets))
	for k := range t.targets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Run ticks until the context is cancelled. It snapshots the target set
// before each round so tick functions may Track/Untrack freely.
func (t *Ticker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, key := range t.Targets() {
				t.tick(key)
			}
		}
	}
}
