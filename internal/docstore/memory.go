package docstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// MemoryStore keeps everything in process. It is the default backend for
// tests and for single-user sessions that do not need durability.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]*memoryCollection
}

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

// Collection returns the named collection, creating it on first use.
func (s *MemoryStore) Collection(name string) Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		c = &memoryCollection{
			name:     name,
			docs:     make(map[string]json.RawMessage),
			watchers: make(map[int]*memoryWatcher),
		}
		s.collections[name] = c
	}
	return c
}

// Close is a no-op for the in-memory backend.
func (s *MemoryStore) Close() error { return nil }

type memoryCollection struct {
	mu        sync.Mutex
	name      string
	docs      map[string]json.RawMessage
	watchers  map[int]*memoryWatcher
	nextWatch int
}

// memoryWatcher coalesces rapid changes: dirty is set on every write and a
// pump goroutine delivers the latest snapshot whenever the consumer is ready.
type memoryWatcher struct {
	ch    chan Snapshot
	wake  chan struct{}
	dirty bool
}

func (c *memoryCollection) Get(ctx context.Context, id string) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out, nil
}

func (c *memoryCollection) List(ctx context.Context) ([]Doc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked().Docs, nil
}

func (c *memoryCollection) Set(ctx context.Context, id string, doc any) error {
	raw, err := encodeDoc(doc)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.docs[id] = raw
	c.notifyLocked()
	c.mu.Unlock()
	return nil
}

func (c *memoryCollection) Update(ctx context.Context, id string, fields map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	existing, ok := c.docs[id]
	if !ok {
		return ErrNotFound
	}
	updated, err := applyUpdate(existing, fields)
	if err != nil {
		return err
	}
	c.docs[id] = updated
	c.notifyLocked()
	return nil
}

func (c *memoryCollection) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.docs[id]; !ok {
		return nil
	}
	delete(c.docs, id)
	c.notifyLocked()
	return nil
}

func (c *memoryCollection) Watch(ctx context.Context) (<-chan Snapshot, error) {
	w := &memoryWatcher{
		ch:    make(chan Snapshot, 1),
		wake:  make(chan struct{}, 1),
		dirty: true, // deliver the initial snapshot right away
	}

	c.mu.Lock()
	id := c.nextWatch
	c.nextWatch++
	c.watchers[id] = w
	c.mu.Unlock()

	go c.pump(ctx, id, w)
	return w.ch, nil
}

func (c *memoryCollection) pump(ctx context.Context, id int, w *memoryWatcher) {
	defer func() {
		c.mu.Lock()
		delete(c.watchers, id)
		c.mu.Unlock()
		close(w.ch)
	}()
	for {
		c.mu.Lock()
		ready := w.dirty
		var snap Snapshot
		if ready {
			w.dirty = false
			snap = c.snapshotLocked()
		}
		c.mu.Unlock()

		if ready {
			select {
			case w.ch <- snap:
			case <-ctx.Done():
				return
			}
			continue
		}
		select {
		case <-w.wake:
		case <-ctx.Done():
			return
		}
	}
}

func (c *memoryCollection) notifyLocked() {
	for _, w := range c.watchers {
		w.dirty = true
		select {
		case w.wake <- struct{}{}:
		default:
		}
	}
}

func (c *memoryCollection) snapshotLocked() Snapshot {
	docs := make([]Doc, 0, len(c.docs))
	for id, raw := range c.docs {
		data := make(json.RawMessage, len(raw))
		copy(data, raw)
		docs = append(docs, Doc{ID: id, Data: data})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return Snapshot{Collection: c.name, Docs: docs}
}
