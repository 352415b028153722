// Package flush coalesces rapid local edits into infrequent document-store
// writes. Each logical resource gets a key; scheduling a write for a key that
// already has one pending replaces the pending write function and restarts
// the delay (trailing debounce — writes are delayed and coalesced, never
// dropped). Because the latest function replaces the earlier one, the write
// that eventually fires reads the state current at fire time, not the state
// captured when the first edit happened.
package flush

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultDelay is the debounce window applied when no delay is configured.
const DefaultDelay = time.Second

// WriteFunc performs the actual persistence for a key.
type WriteFunc func(ctx context.Context) error

// ErrorFunc is notified when a debounced write fails after its timer fires.
// Immediate writes report their error to the caller instead.
type ErrorFunc func(key string, err error)

// Scheduler owns all debounce state in a single background goroutine;
// callers interact through channels, so every method is safe for concurrent
// use and no lock protects the pending map.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc

	scheduleCh chan scheduleEvent
	firedCh    chan string
	flushCh    chan flushRequest
	shutdownCh chan chan error

	delay   time.Duration
	onError ErrorFunc

	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

type scheduleEvent struct {
	key string
	fn  WriteFunc
}

type flushRequest struct {
	key    string // empty means flush everything
	respCh chan error
}

type pendingWrite struct {
	fn    WriteFunc
	timer *time.Timer
}

// New starts a scheduler. delay <= 0 selects DefaultDelay. onError may be
// nil, in which case debounced write failures are dropped silently.
func New(delay time.Duration, onError ErrorFunc) *Scheduler {
	if delay <= 0 {
		delay = DefaultDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		ctx:        ctx,
		cancel:     cancel,
		scheduleCh: make(chan scheduleEvent, 16),
		firedCh:    make(chan string, 16),
		flushCh:    make(chan flushRequest),
		shutdownCh: make(chan chan error, 1),
		delay:      delay,
		onError:    onError,
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Schedule queues fn to run after the debounce delay. A second Schedule for
// the same key before the delay elapses cancels the first and restarts the
// timer with the new fn. Non-blocking.
func (s *Scheduler) Schedule(key string, fn WriteFunc) {
	ev := scheduleEvent{key: key, fn: fn}
	select {
	case s.scheduleCh <- ev:
		return
	case <-s.ctx.Done():
		return
	default:
	}
	// channel full; hand off without blocking the caller
	go func() {
		select {
		case s.scheduleCh <- ev:
		case <-s.ctx.Done():
		}
	}()
}

// Flush cancels any pending debounce for key and performs its write now,
// returning the write's error. A key with nothing pending is a no-op.
func (s *Scheduler) Flush(key string) error {
	respCh := make(chan error, 1)
	select {
	case s.flushCh <- flushRequest{key: key, respCh: respCh}:
		return <-respCh
	case <-s.ctx.Done():
		return fmt.Errorf("flush scheduler shut down")
	}
}

// Shutdown performs every pending write, then stops the background
// goroutine. Idempotent; later calls return nil.
func (s *Scheduler) Shutdown() error {
	var err error
	s.shutdownOnce.Do(func() {
		respCh := make(chan error, 1)
		select {
		case s.shutdownCh <- respCh:
			err = <-respCh
			s.wg.Wait()
			s.cancel()
		case <-time.After(30 * time.Second):
			s.cancel()
			err = fmt.Errorf("flush scheduler shutdown timeout")
		}
	})
	return err
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	pending := make(map[string]*pendingWrite)
	defer func() {
		for _, p := range pending {
			p.timer.Stop()
		}
	}()

	for {
		select {
		case ev := <-s.scheduleCh:
			s.register(pending, ev)

		case key := <-s.firedCh:
			p, ok := pending[key]
			if !ok {
				continue // flushed or rescheduled before we got here
			}
			delete(pending, key)
			if err := p.fn(s.ctx); err != nil && s.onError != nil {
				s.onError(key, err)
			}

		case req := <-s.flushCh:
			s.absorb(pending)
			req.respCh <- s.drain(pending, req.key)

		case respCh := <-s.shutdownCh:
			s.absorb(pending)
			respCh <- s.drain(pending, "")
			return

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) register(pending map[string]*pendingWrite, ev scheduleEvent) {
	if p, ok := pending[ev.key]; ok {
		p.timer.Stop()
		p.fn = ev.fn
		p.timer = s.startTimer(ev.key)
		return
	}
	pending[ev.key] = &pendingWrite{fn: ev.fn, timer: s.startTimer(ev.key)}
}

// absorb registers every schedule event already queued. A Flush or Shutdown
// issued after a Schedule on the same goroutine must see that write as
// pending, not still sitting in the channel buffer.
func (s *Scheduler) absorb(pending map[string]*pendingWrite) {
	for {
		select {
		case ev := <-s.scheduleCh:
			s.register(pending, ev)
		default:
			return
		}
	}
}

// drain runs the pending write for key, or all pending writes when key is
// empty. Returns the first error encountered.
func (s *Scheduler) drain(pending map[string]*pendingWrite, key string) error {
	var firstErr error
	run := func(k string, p *pendingWrite) {
		p.timer.Stop()
		delete(pending, k)
		if err := p.fn(s.ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if key != "" {
		if p, ok := pending[key]; ok {
			run(key, p)
		}
		return firstErr
	}
	for k, p := range pending {
		run(k, p)
	}
	return firstErr
}

func (s *Scheduler) startTimer(key string) *time.Timer {
	return time.AfterFunc(s.delay, func() {
		select {
		case s.firedCh <- key:
		case <-s.ctx.Done():
		}
	})
}
