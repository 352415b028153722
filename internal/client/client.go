// Package client is the session engine: it owns the local belief about
// templates, instances and users, applies inbound store snapshots through the
// reconciler, runs the structural merge when an instance falls behind its
// template, and schedules outbound writes.
//
// All state lives in a single goroutine; every mutation and read travels
// through the ops channel, so no lock guards the maps and each operation sees
// a consistent view. Mutators are fire-and-forget from the caller's side
// except where a write must land before returning.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/benresonance-star/tally/internal/config"
	"github.com/benresonance-star/tally/internal/docstore"
	"github.com/benresonance-star/tally/internal/flush"
	"github.com/benresonance-star/tally/internal/merge"
	"github.com/benresonance-star/tally/internal/notify"
	"github.com/benresonance-star/tally/internal/reconcile"
	"github.com/benresonance-star/tally/internal/telemetry"
	"github.com/benresonance-star/tally/internal/timer"
	"github.com/benresonance-star/tally/internal/types"
)

// Collection names in the document store.
const (
	ColTemplates = "templates"
	ColInstances = "instances"
	ColUsers     = "users"
)

// state is the actor-owned belief. Only the run loop touches it.
type state struct {
	templates map[string]*types.Template
	instances map[string]*types.Instance
	users     map[string]*types.User

	userID   string
	presence presenceTarget

	changed bool
}

type op func(s *state)

// Client wires the sync engine together for one session.
type Client struct {
	cfg   *config.Config
	store docstore.Store

	templatesCol docstore.Collection
	instancesCol docstore.Collection
	usersCol     docstore.Collection

	rec    *reconcile.Reconciler
	sched  *flush.Scheduler
	notes  *notify.Center
	ticker *timer.Ticker
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	ops    chan op
	wg     sync.WaitGroup

	observersMu sync.Mutex
	observers   []func()
}

// New builds a client over the given store. The actor goroutine starts
// immediately; watches and background loops start when Run is called.
func New(cfg *config.Config, store docstore.Store, notes *notify.Center) *Client {
	tracker := reconcile.NewTracker()
	tracker.SetWindows(cfg.Sync.ContentGraceWindow, cfg.Sync.TimerGraceWindow)

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:          cfg,
		store:        store,
		templatesCol: store.Collection(ColTemplates),
		instancesCol: store.Collection(ColInstances),
		usersCol:     store.Collection(ColUsers),
		rec:          reconcile.New(tracker),
		notes:        notes,
		now:          time.Now,
		ctx:          ctx,
		cancel:       cancel,
		ops:          make(chan op, 64),
	}
	c.sched = flush.New(cfg.Sync.WriteDebounce, func(key string, err error) {
		telemetry.CountWriteFailure(context.Background())
		notes.Error(fmt.Sprintf("write failed: %s: %v", key, err))
	})
	c.ticker = timer.NewTicker(c.tickTask)

	c.wg.Add(1)
	go c.loop()
	return c
}

// Run starts the snapshot watches, the local tick loop and the presence
// heartbeat, and blocks until ctx is cancelled or a watch fails.
func (c *Client) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.watchCollection(ctx, c.templatesCol, c.applyTemplateSnapshot) })
	g.Go(func() error { return c.watchCollection(ctx, c.instancesCol, c.applyInstanceSnapshot) })
	g.Go(func() error { return c.watchCollection(ctx, c.usersCol, c.applyUserSnapshot) })
	g.Go(func() error { return c.ticker.Run(ctx) })
	g.Go(func() error { return c.heartbeatLoop(ctx) })
	return g.Wait()
}

// Close flushes pending writes and stops the actor.
func (c *Client) Close() error {
	err := c.sched.Shutdown()
	c.cancel()
	c.wg.Wait()
	return err
}

// OnChange registers an observer invoked after every state change. Observers
// run on the actor goroutine and must not call back into the client.
func (c *Client) OnChange(fn func()) {
	c.observersMu.Lock()
	c.observers = append(c.observers, fn)
	c.observersMu.Unlock()
}

func (c *Client) loop() {
	defer c.wg.Done()
	s := &state{
		templates: make(map[string]*types.Template),
		instances: make(map[string]*types.Instance),
		users:     make(map[string]*types.User),
	}
	for {
		select {
		case fn := <-c.ops:
			fn(s)
			if s.changed {
				s.changed = false
				c.syncTickerTargets(s)
				c.fireObservers()
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// do enqueues an operation without waiting for it.
func (c *Client) do(fn op) {
	select {
	case c.ops <- fn:
	case <-c.ctx.Done():
	}
}

// doSync enqueues an operation and waits for it to complete.
func (c *Client) doSync(fn op) {
	done := make(chan struct{})
	c.do(func(s *state) {
		fn(s)
		close(done)
	})
	select {
	case <-done:
	case <-c.ctx.Done():
	}
}

func (c *Client) fireObservers() {
	c.observersMu.Lock()
	observers := append([]func(){}, c.observers...)
	c.observersMu.Unlock()
	for _, fn := range observers {
		fn()
	}
}

// syncTickerTargets aligns the tick loop with the set of running timers.
func (c *Client) syncTickerTargets(s *state) {
	want := make(map[string]bool)
	for _, in := range s.instances {
		for _, sec := range in.Sections {
			for _, sub := range sec.Subsections {
				for _, task := range sub.Tasks {
					if task.TimerIsRunning {
						want[tickKey(in.ID, task.ID)] = true
					}
				}
			}
		}
	}
	for _, key := range c.ticker.Targets() {
		if !want[key] {
			c.ticker.Untrack(key)
		}
		delete(want, key)
	}
	for key := range want {
		c.ticker.Track(key)
	}
}

func tickKey(instanceID, taskID string) string { return instanceID + "/" + taskID }

// tickTask decrements one running timer by a second, locally only.
func (c *Client) tickTask(key string) {
	instanceID, taskID, ok := splitTickKey(key)
	if !ok {
		c.ticker.Untrack(key)
		return
	}
	c.do(func(s *state) {
		in := s.instances[instanceID]
		if in == nil {
			c.ticker.Untrack(key)
			return
		}
		task := in.FindTask(taskID)
		if task == nil || !task.TimerIsRunning {
			c.ticker.Untrack(key)
			return
		}
		if timer.Tick(task) {
			c.notes.Info(fmt.Sprintf("Timer finished: %s", task.Title))
		}
		s.changed = true
	})
}

func splitTickKey(key string) (instanceID, taskID string, ok bool) {
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			return key[:i], key[i+1:], true
		}
	}
	return "", "", false
}

// --- snapshot application ---

func (c *Client) watchCollection(ctx context.Context, col docstore.Collection, apply func(docstore.Snapshot)) error {
	snaps, err := col.Watch(ctx)
	if err != nil {
		return err
	}
	for snap := range snaps {
		apply(snap)
		telemetry.CountSnapshot(ctx)
	}
	return ctx.Err()
}

// applyTemplateSnapshot reconciles inbound templates and re-syncs any
// instance that has fallen behind its template's version.
func (c *Client) applyTemplateSnapshot(snap docstore.Snapshot) {
	c.do(func(s *state) {
		seen := make(map[string]bool, len(snap.Docs))
		for _, doc := range snap.Docs {
			incoming, err := types.DecodeTemplate(doc.Data)
			if err != nil {
				c.notes.Warn(fmt.Sprintf("skipping malformed template %s: %v", doc.ID, err))
				continue
			}
			seen[incoming.ID] = true
			s.templates[incoming.ID] = c.rec.Template(s.templates[incoming.ID], incoming)
		}
		for id := range s.templates {
			if !seen[id] {
				delete(s.templates, id)
			}
		}
		c.mergeStaleInstances(s)
		s.changed = true
	})
}

// applyInstanceSnapshot reconciles inbound instances, then merges any that
// are stale against an already-known template.
func (c *Client) applyInstanceSnapshot(snap docstore.Snapshot) {
	c.do(func(s *state) {
		seen := make(map[string]bool, len(snap.Docs))
		for _, doc := range snap.Docs {
			incoming, err := types.DecodeInstance(doc.Data)
			if err != nil {
				c.notes.Warn(fmt.Sprintf("skipping malformed instance %s: %v", doc.ID, err))
				continue
			}
			seen[incoming.ID] = true
			s.instances[incoming.ID] = c.rec.Instance(s.instances[incoming.ID], incoming)
		}
		for id := range s.instances {
			if !seen[id] {
				delete(s.instances, id)
			}
		}
		c.mergeStaleInstances(s)
		s.changed = true
	})
}

func (c *Client) applyUserSnapshot(snap docstore.Snapshot) {
	c.do(func(s *state) {
		seen := make(map[string]bool, len(snap.Docs))
		for _, doc := range snap.Docs {
			incoming, err := types.DecodeUser(doc.Data)
			if err != nil {
				c.notes.Warn(fmt.Sprintf("skipping malformed user %s: %v", doc.ID, err))
				continue
			}
			seen[incoming.ID] = true
			s.users[incoming.ID] = c.rec.User(s.users[incoming.ID], incoming)
		}
		for id := range s.users {
			if !seen[id] {
				delete(s.users, id)
			}
		}
		s.changed = true
	})
}

// mergeStaleInstances runs the structural merge for every instance whose
// template has moved past the version it last absorbed, and persists the
// result so other clients converge without redoing the merge.
func (c *Client) mergeStaleInstances(s *state) {
	for id, in := range s.instances {
		tpl := s.templates[in.MasterID]
		if tpl == nil || !merge.Stale(in, tpl) {
			continue
		}
		s.instances[id] = merge.Apply(in, tpl)
		telemetry.CountMerge(c.ctx)
		c.scheduleInstanceWrite(id)
	}
}

// --- write plumbing ---

func (c *Client) scheduleInstanceWrite(id string) {
	c.sched.Schedule("instances/"+id, c.instanceWriter(id))
}

func (c *Client) flushInstanceWrite(id string) {
	c.scheduleInstanceWrite(id)
	if err := c.sched.Flush("instances/" + id); err != nil {
		telemetry.CountWriteFailure(c.ctx)
		c.notes.Error(fmt.Sprintf("write failed: instances/%s: %v", id, err))
	}
}

func (c *Client) scheduleTemplateWrite(id string) {
	c.sched.Schedule("templates/"+id, c.templateWriter(id))
}

func (c *Client) flushTemplateWrite(id string) {
	c.scheduleTemplateWrite(id)
	if err := c.sched.Flush("templates/" + id); err != nil {
		telemetry.CountWriteFailure(c.ctx)
		c.notes.Error(fmt.Sprintf("write failed: templates/%s: %v", id, err))
	}
}

func (c *Client) scheduleUserWrite(id string) {
	c.sched.Schedule("users/"+id, c.userWriter(id))
}

func (c *Client) flushUserWrite(id string) {
	c.scheduleUserWrite(id)
	if err := c.sched.Flush("users/" + id); err != nil {
		telemetry.CountWriteFailure(c.ctx)
		c.notes.Error(fmt.Sprintf("write failed: users/%s: %v", id, err))
	}
}

// Writers read the state current at fire time, so a debounced write always
// persists the newest local belief, never a stale capture.

func (c *Client) instanceWriter(id string) flush.WriteFunc {
	return func(ctx context.Context) error {
		in := c.Instance(id)
		if in == nil {
			return nil // deleted while the write was pending
		}
		raw, err := types.MarshalInstance(in)
		if err != nil {
			return err
		}
		if err := c.instancesCol.Set(ctx, id, json.RawMessage(raw)); err != nil {
			return err
		}
		telemetry.CountFlush(ctx)
		return nil
	}
}

func (c *Client) templateWriter(id string) flush.WriteFunc {
	return func(ctx context.Context) error {
		tpl := c.Template(id)
		if tpl == nil {
			return nil
		}
		raw, err := types.MarshalTemplate(tpl)
		if err != nil {
			return err
		}
		if err := c.templatesCol.Set(ctx, id, json.RawMessage(raw)); err != nil {
			return err
		}
		telemetry.CountFlush(ctx)
		return nil
	}
}

func (c *Client) userWriter(id string) flush.WriteFunc {
	return func(ctx context.Context) error {
		u := c.User(id)
		if u == nil {
			return nil
		}
		raw, err := types.MarshalUser(u)
		if err != nil {
			return err
		}
		if err := c.usersCol.Set(ctx, id, json.RawMessage(raw)); err != nil {
			return err
		}
		telemetry.CountFlush(ctx)
		return nil
	}
}

// --- reads ---

// Template returns a deep copy of the template, or nil.
func (c *Client) Template(id string) *types.Template {
	var out *types.Template
	c.doSync(func(s *state) { out = s.templates[id].Clone() })
	return out
}

// Instance returns a deep copy of the instance, or nil.
func (c *Client) Instance(id string) *types.Instance {
	var out *types.Instance
	c.doSync(func(s *state) { out = s.instances[id].Clone() })
	return out
}

// User returns a deep copy of the user document, or nil.
func (c *Client) User(id string) *types.User {
	var out *types.User
	c.doSync(func(s *state) { out = s.users[id].Clone() })
	return out
}

// Templates returns deep copies of every known template.
func (c *Client) Templates() []*types.Template {
	var out []*types.Template
	c.doSync(func(s *state) {
		for _, tpl := range s.templates {
			out = append(out, tpl.Clone())
		}
	})
	return out
}

// Instances returns deep copies of every known instance.
func (c *Client) Instances() []*types.Instance {
	var out []*types.Instance
	c.doSync(func(s *state) {
		for _, in := range s.instances {
			out = append(out, in.Clone())
		}
	})
	return out
}

// CurrentUser returns a deep copy of the session user, or nil before
// EnsureUser has run.
func (c *Client) CurrentUser() *types.User {
	var out *types.User
	c.doSync(func(s *state) { out = s.users[s.userID].Clone() })
	return out
}

// CurrentUserID returns the session user id.
func (c *Client) CurrentUserID() string {
	var id string
	c.doSync(func(s *state) { id = s.userID })
	return id
}
