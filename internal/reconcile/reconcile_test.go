package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benresonance-star/tally/internal/types"
)

// fakeClock lets tests move time forward deterministically.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newFixture() (*fakeClock, *Reconciler) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	tracker := NewTrackerWithClock(clock.now)
	return clock, NewWithClock(tracker, clock.now)
}

func instanceWithTask(notes string, remaining int) *types.Instance {
	task := &types.Task{ID: "t1", Title: "Permits", UserNotes: notes, TimerRemaining: remaining, TimerDuration: 1200}
	return &types.Instance{
		ID:       "ins-1",
		MasterID: "tpl-1",
		Version:  1,
		Sections: []*types.Section{{
			ID: "sec-1",
			Subsections: []*types.Subsection{{
				ID:    "sub-1",
				Tasks: []*types.Task{task},
			}},
		}},
	}
}

func TestContentGraceWindowKeepsLocalEdit(t *testing.T) {
	clock, r := newFixture()
	local := instanceWithTask("my fresh notes", 1200)
	r.Tracker().Record("ins-1", "t1", CategoryContent)

	// Snapshot with an older value arrives 5s later: local wins.
	clock.advance(5 * time.Second)
	incoming := instanceWithTask("stale server notes", 1200)
	out := r.Instance(local, incoming)
	assert.Equal(t, "my fresh notes", out.FindTask("t1").UserNotes)

	// A snapshot past the window overwrites unconditionally.
	clock.advance(20 * time.Second)
	out = r.Instance(local, incoming)
	assert.Equal(t, "stale server notes", out.FindTask("t1").UserNotes)
}

func TestContentGraceWindowKeepsCompletion(t *testing.T) {
	clock, r := newFixture()
	local := instanceWithTask("", 1200)
	local.FindTask("t1").Completed = true
	r.Tracker().Record("ins-1", "t1", CategoryContent)

	// an echo that predates the toggle must not revert it
	clock.advance(time.Second)
	incoming := instanceWithTask("", 1200)
	out := r.Instance(local, incoming)
	assert.True(t, out.FindTask("t1").Completed)
}

func TestTimerGraceWindowIsShorter(t *testing.T) {
	clock, r := newFixture()
	local := instanceWithTask("", 100)
	local.FindTask("t1").TimerIsRunning = true
	r.Tracker().Record("ins-1", "t1", CategoryTimer)

	incoming := instanceWithTask("", 500)

	clock.advance(5 * time.Second)
	out := r.Instance(local, incoming)
	assert.Equal(t, 100, out.FindTask("t1").TimerRemaining)
	assert.True(t, out.FindTask("t1").TimerIsRunning)

	clock.advance(10 * time.Second)
	out = r.Instance(local, incoming)
	assert.Equal(t, 500, out.FindTask("t1").TimerRemaining)
}

func TestNewerLocalTimerStampSurvivesWindowExpiry(t *testing.T) {
	clock, r := newFixture()
	base := clock.now()

	local := instanceWithTask("", 300)
	localTask := local.FindTask("t1")
	localTask.TimerLastUpdated = base

	incoming := instanceWithTask("", 900)
	incoming.FindTask("t1").TimerLastUpdated = base.Add(-30 * time.Second)

	// Well past any grace window; the logical clock still keeps local.
	clock.advance(2 * time.Minute)
	out := r.Instance(local, incoming)
	assert.Equal(t, 300, out.FindTask("t1").TimerRemaining)
	assert.Equal(t, base, out.FindTask("t1").TimerLastUpdated)
}

func TestEqualStampRunningTimerIsNotRewound(t *testing.T) {
	clock, r := newFixture()
	stamp := clock.now().Add(-time.Minute)

	// Both sides saw the same start transition; local has ticked 60s further.
	local := instanceWithTask("", 1140)
	localTask := local.FindTask("t1")
	localTask.TimerIsRunning = true
	localTask.TimerLastUpdated = stamp

	incoming := instanceWithTask("", 1200)
	incomingTask := incoming.FindTask("t1")
	incomingTask.TimerIsRunning = true
	incomingTask.TimerLastUpdated = stamp

	out := r.Instance(local, incoming)
	assert.Equal(t, 1140, out.FindTask("t1").TimerRemaining)
}

func TestEqualStampFinishedTimerStaysFinished(t *testing.T) {
	clock, r := newFixture()
	stamp := clock.now().Add(-30 * time.Minute)

	// The countdown ran out locally; an echo of the original start must not
	// restart it.
	local := instanceWithTask("", 0)
	localTask := local.FindTask("t1")
	localTask.TimerIsRunning = false
	localTask.TimerLastUpdated = stamp

	incoming := instanceWithTask("", 1200)
	incomingTask := incoming.FindTask("t1")
	incomingTask.TimerIsRunning = true
	incomingTask.TimerLastUpdated = stamp

	out := r.Instance(local, incoming)
	assert.Equal(t, 0, out.FindTask("t1").TimerRemaining)
	assert.False(t, out.FindTask("t1").TimerIsRunning)
}

func TestRemoteTimerTransitionWins(t *testing.T) {
	clock, r := newFixture()
	base := clock.now()

	local := instanceWithTask("", 800)
	local.FindTask("t1").TimerLastUpdated = base.Add(-time.Minute)

	// Another client paused the timer more recently.
	incoming := instanceWithTask("", 750)
	incomingTask := incoming.FindTask("t1")
	incomingTask.TimerIsRunning = false
	incomingTask.TimerLastUpdated = base

	out := r.Instance(local, incoming)
	assert.Equal(t, 750, out.FindTask("t1").TimerRemaining)
	assert.False(t, out.FindTask("t1").TimerIsRunning)
}

func TestTemplateContentWindow(t *testing.T) {
	clock, r := newFixture()

	local := &types.Template{
		ID: "tpl-1", Title: "Site Setup", Version: 3,
		Sections: []*types.Section{{
			ID: "sec-1",
			Subsections: []*types.Subsection{{
				ID:    "sub-1",
				Tasks: []*types.Task{{ID: "t1", Title: "Permits", Notes: "local draft"}},
			}},
		}},
	}
	incoming := local.Clone()
	incoming.FindTask("t1").Notes = "server copy"

	r.Tracker().Record("tpl-1", "t1", CategoryContent)
	clock.advance(2 * time.Second)
	out := r.Template(local, incoming)
	assert.Equal(t, "local draft", out.FindTask("t1").Notes)

	clock.advance(30 * time.Second)
	out = r.Template(local, incoming)
	assert.Equal(t, "server copy", out.FindTask("t1").Notes)
}

func TestSnapshotStructureAlwaysWins(t *testing.T) {
	_, r := newFixture()
	local := instanceWithTask("notes", 100)

	incoming := instanceWithTask("notes", 100)
	sub := incoming.Sections[0].Subsections[0]
	sub.Tasks = append(sub.Tasks, &types.Task{ID: "t2", Title: "Insurance"})
	incoming.Version = 2

	out := r.Instance(local, incoming)
	require.NotNil(t, out.FindTask("t2"))
	assert.Equal(t, 2, out.Version)
}

func TestUserDocumentIsLastWriterWins(t *testing.T) {
	_, r := newFixture()
	local := &types.User{ID: "u1", Name: "Ana", ActionSet: []types.ActionSetItem{{TaskID: "t1", InstanceID: "i", ProjectID: "p"}}}
	incoming := &types.User{ID: "u1", Name: "Ana", ActionSet: []types.ActionSetItem{{TaskID: "t2", InstanceID: "i", ProjectID: "p"}}}

	out := r.User(local, incoming)
	require.Len(t, out.ActionSet, 1)
	assert.Equal(t, "t2", out.ActionSet[0].TaskID)
}

func TestTrackerEviction(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	tracker := NewTrackerWithClock(clock.now)

	tracker.Record("ins-1", "t1", CategoryContent)
	clock.advance(time.Minute)
	tracker.Record("ins-1", "t2", CategoryContent)
	tracker.Evict()

	assert.Equal(t, 1, tracker.Len())
	assert.False(t, tracker.Within("ins-1", "t1", CategoryContent))
	assert.True(t, tracker.Within("ins-1", "t2", CategoryContent))
}

func TestNilHandling(t *testing.T) {
	_, r := newFixture()
	in := instanceWithTask("n", 10)
	assert.Equal(t, in, r.Instance(in, nil))
	got := r.Instance(nil, in)
	require.NotNil(t, got)
	assert.Equal(t, "ins-1", got.ID)
}
