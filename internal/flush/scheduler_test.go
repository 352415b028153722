package flush

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebounceCoalesces(t *testing.T) {
	s := New(50*time.Millisecond, nil)
	defer s.Shutdown() //nolint:errcheck

	var calls int32
	var got atomic.Value
	write := func(value string) WriteFunc {
		return func(ctx context.Context) error {
			atomic.AddInt32(&calls, 1)
			got.Store(value)
			return nil
		}
	}

	s.Schedule("task-1", write("a"))
	s.Schedule("task-1", write("b"))
	s.Schedule("task-1", write("c"))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 1
	}, time.Second, 5*time.Millisecond)

	// exactly one write, reflecting the last scheduled state
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, "c", got.Load())
}

func TestIndependentKeys(t *testing.T) {
	s := New(30*time.Millisecond, nil)
	defer s.Shutdown() //nolint:errcheck

	var mu sync.Mutex
	fired := map[string]int{}
	write := func(key string) WriteFunc {
		return func(ctx context.Context) error {
			mu.Lock()
			fired[key]++
			mu.Unlock()
			return nil
		}
	}

	s.Schedule("task-1", write("task-1"))
	s.Schedule("task-2", write("task-2"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fired["task-1"] == 1 && fired["task-2"] == 1
	}, time.Second, 5*time.Millisecond)
}

func TestFlushRunsImmediately(t *testing.T) {
	s := New(time.Hour, nil) // debounce would never fire on its own
	defer s.Shutdown()       //nolint:errcheck

	var calls int32
	s.Schedule("task-1", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	require.NoError(t, s.Flush("task-1"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// nothing pending anymore: flush is a no-op
	require.NoError(t, s.Flush("task-1"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFlushReturnsWriteError(t *testing.T) {
	s := New(time.Hour, nil)
	defer s.Shutdown() //nolint:errcheck

	wantErr := errors.New("store unavailable")
	s.Schedule("task-1", func(ctx context.Context) error { return wantErr })
	assert.ErrorIs(t, s.Flush("task-1"), wantErr)
}

func TestOnErrorForDebouncedFailure(t *testing.T) {
	errCh := make(chan string, 1)
	s := New(20*time.Millisecond, func(key string, err error) {
		errCh <- key
	})
	defer s.Shutdown() //nolint:errcheck

	s.Schedule("ins-9", func(ctx context.Context) error { return errors.New("boom") })

	select {
	case key := <-errCh:
		assert.Equal(t, "ins-9", key)
	case <-time.After(time.Second):
		t.Fatal("onError never called")
	}
}

func TestShutdownDrainsPending(t *testing.T) {
	s := New(time.Hour, nil)

	var calls int32
	s.Schedule("a", func(ctx context.Context) error { atomic.AddInt32(&calls, 1); return nil })
	s.Schedule("b", func(ctx context.Context) error { atomic.AddInt32(&calls, 1); return nil })

	require.NoError(t, s.Shutdown())
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	// idempotent
	require.NoError(t, s.Shutdown())
}
