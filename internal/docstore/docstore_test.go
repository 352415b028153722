package docstore

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends runs a test against every store implementation.
func backends(t *testing.T, fn func(t *testing.T, store Store)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemory())
	})
	t.Run("sqlite", func(t *testing.T) {
		store, err := OpenSQLite(filepath.Join(t.TempDir(), "tally.db"))
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() }) //nolint:errcheck
		fn(t, store)
	})
}

func TestSetGetDelete(t *testing.T) {
	backends(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		col := store.Collection("instances")

		require.NoError(t, col.Set(ctx, "ins-1", map[string]any{"title": "Site Setup"}))

		raw, err := col.Get(ctx, "ins-1")
		require.NoError(t, err)
		var doc map[string]any
		require.NoError(t, json.Unmarshal(raw, &doc))
		assert.Equal(t, "Site Setup", doc["title"])

		require.NoError(t, col.Delete(ctx, "ins-1"))
		_, err = col.Get(ctx, "ins-1")
		assert.ErrorIs(t, err, ErrNotFound)

		// deleting an absent id is a no-op
		require.NoError(t, col.Delete(ctx, "ins-1"))
	})
}

func TestListIsOrderedAndScoped(t *testing.T) {
	backends(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		col := store.Collection("templates")
		other := store.Collection("users")

		require.NoError(t, col.Set(ctx, "tpl-b", map[string]any{"n": 2}))
		require.NoError(t, col.Set(ctx, "tpl-a", map[string]any{"n": 1}))
		require.NoError(t, other.Set(ctx, "usr-1", map[string]any{"n": 9}))

		docs, err := col.List(ctx)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "tpl-a", docs[0].ID)
		assert.Equal(t, "tpl-b", docs[1].ID)
	})
}

func TestUpdateReplacesTopLevelFields(t *testing.T) {
	backends(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		col := store.Collection("instances")

		require.NoError(t, col.Set(ctx, "ins-1", map[string]any{
			"title":   "Site Setup",
			"version": 1,
		}))
		require.NoError(t, col.Update(ctx, "ins-1", map[string]any{"version": 2}))

		raw, err := col.Get(ctx, "ins-1")
		require.NoError(t, err)
		var doc map[string]any
		require.NoError(t, json.Unmarshal(raw, &doc))
		assert.Equal(t, "Site Setup", doc["title"])
		assert.Equal(t, float64(2), doc["version"])

		assert.ErrorIs(t, col.Update(ctx, "ins-9", map[string]any{"version": 2}), ErrNotFound)
	})
}

func TestUpdateDottedActiveUsersPath(t *testing.T) {
	backends(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		col := store.Collection("instances")

		require.NoError(t, col.Set(ctx, "ins-1", map[string]any{
			"title":       "Site Setup",
			"activeUsers": map[string]any{"u1": map[string]any{"name": "Ana"}},
		}))

		// u2's heartbeat must not clobber u1's slot
		require.NoError(t, col.Update(ctx, "ins-1", map[string]any{
			"activeUsers.u2": map[string]any{"name": "Ben"},
		}))
		// and leaving removes only the caller's slot
		require.NoError(t, col.Update(ctx, "ins-1", map[string]any{
			"activeUsers.u1": DeleteField,
		}))

		raw, err := col.Get(ctx, "ins-1")
		require.NoError(t, err)
		var doc struct {
			ActiveUsers map[string]struct{ Name string } `json:"activeUsers"`
		}
		require.NoError(t, json.Unmarshal(raw, &doc))
		require.Len(t, doc.ActiveUsers, 1)
		assert.Equal(t, "Ben", doc.ActiveUsers["u2"].Name)
	})
}

func TestWatchDeliversInitialAndChangedSnapshots(t *testing.T) {
	backends(t, func(t *testing.T, store Store) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		col := store.Collection("instances")

		require.NoError(t, col.Set(ctx, "ins-1", map[string]any{"v": 1}))

		snaps, err := col.Watch(ctx)
		require.NoError(t, err)

		first := recvSnapshot(t, snaps)
		require.Len(t, first.Docs, 1)
		assert.Equal(t, "ins-1", first.Docs[0].ID)

		require.NoError(t, col.Set(ctx, "ins-2", map[string]any{"v": 2}))
		second := waitForDocCount(t, snaps, 2)
		assert.Equal(t, "ins-2", second.Docs[1].ID)

		// deletion shows up as absence from the snapshot
		require.NoError(t, col.Delete(ctx, "ins-1"))
		third := waitForDocCount(t, snaps, 1)
		assert.Equal(t, "ins-2", third.Docs[0].ID)
	})
}

func TestWatchStopsOnCancel(t *testing.T) {
	backends(t, func(t *testing.T, store Store) {
		ctx, cancel := context.WithCancel(context.Background())
		col := store.Collection("instances")

		snaps, err := col.Watch(ctx)
		require.NoError(t, err)
		recvSnapshot(t, snaps)

		cancel()
		require.Eventually(t, func() bool {
			select {
			case _, ok := <-snaps:
				return !ok
			default:
				return false
			}
		}, time.Second, 5*time.Millisecond)
	})
}

func recvSnapshot(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered")
		return Snapshot{}
	}
}

// waitForDocCount skips coalesced intermediate snapshots until one with the
// wanted document count arrives.
func waitForDocCount(t *testing.T, ch <-chan Snapshot, n int) Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-ch:
			if len(snap.Docs) == n {
				return snap
			}
		case <-deadline:
			t.Fatalf("no snapshot with %d docs", n)
		}
	}
}
