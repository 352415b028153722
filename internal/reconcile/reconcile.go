package reconcile

import (
	"time"

	"github.com/benresonance-star/tally/internal/types"
)

// Reconciler merges inbound snapshots against local state using the grace
// windows recorded in its Tracker. All methods are pure with respect to their
// arguments: the result is a fresh document, and neither input is mutated.
type Reconciler struct {
	tracker *Tracker
	now     func() time.Time
}

// New returns a reconciler over the given tracker.
func New(tracker *Tracker) *Reconciler {
	return &Reconciler{tracker: tracker, now: time.Now}
}

// NewWithClock returns a reconciler with an injectable clock for tests.
func NewWithClock(tracker *Tracker, now func() time.Time) *Reconciler {
	return &Reconciler{tracker: tracker, now: now}
}

// Tracker exposes the underlying recency tracker.
func (r *Reconciler) Tracker() *Tracker { return r.tracker }

// Template reconciles an inbound template snapshot. The snapshot's structure
// always wins; task content fields (notes, guide) under an active local grace
// window keep the local value so an editor's keystrokes are not clobbered by
// an echo of older server state.
func (r *Reconciler) Template(local, incoming *types.Template) *types.Template {
	if incoming == nil {
		return local
	}
	if local == nil {
		return incoming.Clone()
	}
	out := incoming.Clone()
	for _, sec := range out.Sections {
		for _, sub := range sec.Subsections {
			for _, task := range sub.Tasks {
				prev := local.FindTask(task.ID)
				if prev == nil {
					continue
				}
				if r.tracker.Within(out.ID, task.ID, CategoryContent) {
					task.Notes = prev.Notes
					task.Guide = prev.Guide
				}
			}
		}
	}
	return out
}

// Instance reconciles an inbound instance snapshot. Per task: the content
// fields (completion, userNotes, userFiles, timeTaken) obey the content grace
// window; the timer tuple obeys the timer grace window plus
// a logical-clock check on timerLastUpdated that survives across the window
// boundary, so a locally ticking countdown is never rewound by a stale echo.
func (r *Reconciler) Instance(local, incoming *types.Instance) *types.Instance {
	if incoming == nil {
		return local
	}
	if local == nil {
		return incoming.Clone()
	}
	out := incoming.Clone()
	for _, sec := range out.Sections {
		for _, sub := range sec.Subsections {
			for _, task := range sub.Tasks {
				prev := local.FindTask(task.ID)
				if prev == nil {
					continue
				}
				if r.tracker.Within(out.ID, task.ID, CategoryContent) {
					task.Completed = prev.Completed
					task.UserNotes = prev.UserNotes
					task.UserFiles = append([]types.FileRef(nil), prev.UserFiles...)
					task.TimeTaken = prev.TimeTaken
					task.LastUpdated = prev.LastUpdated
					task.CompletedPrereqs = append([]string(nil), prev.CompletedPrereqs...)
				}
				if r.keepLocalTimer(out.ID, prev, task) {
					task.TimerDuration = prev.TimerDuration
					task.TimerRemaining = prev.TimerRemaining
					task.TimerIsRunning = prev.TimerIsRunning
					task.TimerLastUpdated = prev.TimerLastUpdated
				}
			}
		}
	}
	return out
}

// User reconciles an inbound user snapshot. User documents are edited from a
// single device at a time, so plain document-level last-writer-wins applies:
// the snapshot replaces local state wholesale.
func (r *Reconciler) User(local, incoming *types.User) *types.User {
	if incoming == nil {
		return local
	}
	return incoming.Clone()
}

// keepLocalTimer decides whether the local timer tuple survives an inbound
// snapshot. Three cases keep the local value:
//
//  1. a local timer transition is inside its grace window;
//  2. the local timerLastUpdated is strictly newer than the snapshot's — the
//     snapshot is an echo of an older transition;
//  3. both sides carry the same transition stamp and the local copy has
//     ticked below the snapshot's remaining — overwriting would rewind the
//     local countdown (or resurrect one that already finished), and between
//     transitions remaining only ever ticks down. A zero stamp means the
//     timer was never transitioned, so there is no shared transition to
//     compare against and the snapshot wins.
func (r *Reconciler) keepLocalTimer(instanceID string, local, incoming *types.Task) bool {
	if r.tracker.Within(instanceID, local.ID, CategoryTimer) {
		return true
	}
	if local.TimerLastUpdated.After(incoming.TimerLastUpdated) {
		return true
	}
	if local.TimerLastUpdated.Equal(incoming.TimerLastUpdated) && !local.TimerLastUpdated.IsZero() &&
		local.TimerRemaining < incoming.TimerRemaining {
		return true
	}
	return false
}
