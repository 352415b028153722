package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostAndActive(t *testing.T) {
	c := NewCenter()
	c.Error("write failed: instances/ins-1")
	c.Info("template imported")

	active := c.Active()
	require.Len(t, active, 2)
	assert.Equal(t, LevelError, active[0].Level)
	assert.Equal(t, "write failed: instances/ins-1", active[0].Message)
	assert.Equal(t, LevelInfo, active[1].Level)
}

func TestExpiry(t *testing.T) {
	c := NewCenterWithTTL(30 * time.Millisecond)
	c.Warn("stale snapshot")

	require.Len(t, c.Active(), 1)
	require.Eventually(t, func() bool {
		return len(c.Active()) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestDismiss(t *testing.T) {
	c := NewCenter()
	c.Info("one")
	c.Info("two")

	active := c.Active()
	require.Len(t, active, 2)
	c.Dismiss(active[0].ID)

	active = c.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "two", active[0].Message)
}

func TestListenerSeesChanges(t *testing.T) {
	c := NewCenterWithTTL(25 * time.Millisecond)

	var mu sync.Mutex
	var last []Notification
	c.SetListener(func(active []Notification) {
		mu.Lock()
		last = active
		mu.Unlock()
	})

	c.Error("boom")
	mu.Lock()
	require.Len(t, last, 1)
	mu.Unlock()

	// listener fires again when the entry expires
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(last) == 0
	}, time.Second, 5*time.Millisecond)
}
