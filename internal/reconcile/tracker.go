// Package reconcile merges inbound document-store snapshots against the
// client's local belief. A snapshot wins by default (document-level
// last-writer-wins); the exception is a field the local user touched
// recently, tracked per (resource, task, field category) by the Tracker.
package reconcile

import (
	"sync"
	"time"
)

// FieldCategory groups task fields that share one grace window.
type FieldCategory uint8

const (
	// CategoryContent covers notes, userNotes and guide edits.
	CategoryContent FieldCategory = iota
	// CategoryTimer covers timerRemaining and timerIsRunning.
	CategoryTimer
)

// Grace windows per category. A local edit shields the field from inbound
// snapshots for this long; after that the store's value wins unconditionally.
const (
	ContentGraceWindow = 18 * time.Second
	TimerGraceWindow   = 10 * time.Second
)

// evictEvery bounds tracker growth: every N records the tracker purges
// entries older than the longest grace window.
const evictEvery = 64

type recencyKey struct {
	resource string
	task     string
	category FieldCategory
}

// Tracker records the last local write per (resource, task, category).
// Safe for concurrent use; the client records from its mutator path and the
// reconciler reads from the snapshot path.
type Tracker struct {
	mu      sync.Mutex
	now     func() time.Time
	content time.Duration
	timer   time.Duration
	entries map[recencyKey]time.Time
	records int
}

// NewTracker returns a tracker using the wall clock and default windows.
func NewTracker() *Tracker {
	return NewTrackerWithClock(time.Now)
}

// NewTrackerWithClock returns a tracker with an injectable clock for tests.
func NewTrackerWithClock(now func() time.Time) *Tracker {
	return &Tracker{
		now:     now,
		content: ContentGraceWindow,
		timer:   TimerGraceWindow,
		entries: make(map[recencyKey]time.Time),
	}
}

// SetWindows overrides the grace windows. Non-positive values keep the
// defaults.
func (t *Tracker) SetWindows(content, timer time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if content > 0 {
		t.content = content
	}
	if timer > 0 {
		t.timer = timer
	}
}

// Record stamps a local edit of the given category on (resource, task).
func (t *Tracker) Record(resourceID, taskID string, cat FieldCategory) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[recencyKey{resourceID, taskID, cat}] = t.now()
	t.records++
	if t.records%evictEvery == 0 {
		t.evictLocked()
	}
}

// Within reports whether the last local edit of the given category on
// (resource, task) is still inside its grace window.
func (t *Tracker) Within(resourceID, taskID string, cat FieldCategory) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	stamp, ok := t.entries[recencyKey{resourceID, taskID, cat}]
	if !ok {
		return false
	}
	return t.now().Sub(stamp) < t.windowForLocked(cat)
}

// Evict drops every entry older than the longest grace window.
func (t *Tracker) Evict() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.evictLocked()
}

// Len returns the number of tracked entries (for tests and diagnostics).
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Tracker) evictLocked() {
	longest := t.content
	if t.timer > longest {
		longest = t.timer
	}
	cutoff := t.now().Add(-longest)
	for k, stamp := range t.entries {
		if stamp.Before(cutoff) {
			delete(t.entries, k)
		}
	}
}

func (t *Tracker) windowForLocked(cat FieldCategory) time.Duration {
	if cat == CategoryTimer {
		return t.timer
	}
	return t.content
}
