// Package notify is the in-app notification center. Failed background writes
// and other asynchronous events surface here instead of interrupting the
// user's current action; entries expire on their own after a short while.
package notify

import (
	"sort"
	"sync"
	"time"
)

// Level classifies a notification.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// DefaultTTL is how long a notification stays visible.
const DefaultTTL = 8 * time.Second

// Notification is one entry in the center.
type Notification struct {
	ID      int
	Level   Level
	Message string
	At      time.Time
}

// Listener is called with the full active list after every change.
type Listener func(active []Notification)

// Center collects notifications and expires them after a TTL.
type Center struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	nextID   int
	active   []Notification
	listener Listener
}

// NewCenter builds a center with the default TTL.
func NewCenter() *Center { return NewCenterWithTTL(DefaultTTL) }

// NewCenterWithTTL builds a center with an explicit TTL.
func NewCenterWithTTL(ttl time.Duration) *Center {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Center{ttl: ttl, now: time.Now}
}

// SetListener registers the single observer. Pass nil to clear.
func (c *Center) SetListener(fn Listener) {
	c.mu.Lock()
	c.listener = fn
	c.mu.Unlock()
}

// Info posts an informational notification.
func (c *Center) Info(message string) { c.post(LevelInfo, message) }

// Warn posts a warning.
func (c *Center) Warn(message string) { c.post(LevelWarn, message) }

// Error posts an error notification.
func (c *Center) Error(message string) { c.post(LevelError, message) }

func (c *Center) post(level Level, message string) {
	c.mu.Lock()
	c.nextID++
	n := Notification{ID: c.nextID, Level: level, Message: message, At: c.now()}
	c.active = append(c.active, n)
	c.expireLocked()
	fn, snapshot := c.listener, c.snapshotLocked()
	c.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
	time.AfterFunc(c.ttl, func() { c.sweep() })
}

// Active returns notifications that have not yet expired, oldest first.
func (c *Center) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked()
	return c.snapshotLocked()
}

// Dismiss removes a notification before its TTL elapses.
func (c *Center) Dismiss(id int) {
	c.mu.Lock()
	kept := c.active[:0]
	for _, n := range c.active {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	c.active = kept
	fn, snapshot := c.listener, c.snapshotLocked()
	c.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
}

// sweep drops expired entries and tells the listener if anything changed.
func (c *Center) sweep() {
	c.mu.Lock()
	before := len(c.active)
	c.expireLocked()
	changed := len(c.active) != before
	fn, snapshot := c.listener, c.snapshotLocked()
	c.mu.Unlock()

	if changed && fn != nil {
		fn(snapshot)
	}
}

func (c *Center) expireLocked() {
	cutoff := c.now().Add(-c.ttl)
	kept := c.active[:0]
	for _, n := range c.active {
		if n.At.After(cutoff) {
			kept = append(kept, n)
		}
	}
	c.active = kept
}

func (c *Center) snapshotLocked() []Notification {
	out := make([]Notification, len(c.active))
	copy(out, c.active)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
