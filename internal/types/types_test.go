package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTemplate() *Template {
	return &Template{
		ID:      "tpl-1",
		Title:   "Site Setup",
		Version: 1,
		Sections: []*Section{
			{
				ID:    "sec-1",
				Title: "Legal",
				Subsections: []*Subsection{
					{
						ID:    "sub-1",
						Title: "Paperwork",
						Tasks: []*Task{
							{ID: "t1", Title: "Permits"},
							{ID: "t2", Title: "Insurance"},
						},
					},
				},
			},
		},
	}
}

func TestTemplateValidate(t *testing.T) {
	m := sampleTemplate()
	require.NoError(t, m.Validate())

	m.Title = ""
	require.Error(t, m.Validate())

	m = sampleTemplate()
	m.Sections[0].Subsections[0].Tasks[1].ID = "t1"
	err := m.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate id")
}

func TestFindTask(t *testing.T) {
	m := sampleTemplate()
	task := m.FindTask("t2")
	require.NotNil(t, task)
	assert.Equal(t, "Insurance", task.Title)

	assert.Nil(t, m.FindTask("missing"))
}

func TestSetRuntimeDefaults(t *testing.T) {
	task := &Task{ID: "t1", Title: "Permits", Completed: true, UserNotes: "old", TimerRemaining: 7}
	task.SetRuntimeDefaults()
	assert.False(t, task.Completed)
	assert.Empty(t, task.UserNotes)
	assert.Equal(t, DefaultTimerSeconds, task.TimerDuration)
	assert.Equal(t, DefaultTimerSeconds, task.TimerRemaining)
	assert.False(t, task.TimerIsRunning)
}

func TestCloneIsDeep(t *testing.T) {
	m := sampleTemplate()
	c := m.Clone()
	c.Sections[0].Subsections[0].Tasks[0].Title = "changed"
	assert.Equal(t, "Permits", m.Sections[0].Subsections[0].Tasks[0].Title)

	in := &Instance{
		ID:          "ins-1",
		MasterID:    m.ID,
		Sections:    CloneSections(m.Sections),
		ActiveUsers: map[string]PresenceInfo{"u1": {UserID: "u1"}},
	}
	ci := in.Clone()
	ci.ActiveUsers["u2"] = PresenceInfo{UserID: "u2"}
	assert.Len(t, in.ActiveUsers, 1)
}

func TestPresenceLive(t *testing.T) {
	now := time.Now()
	fresh := PresenceInfo{UserID: "u1", LastSeen: now.Add(-10 * time.Second)}
	stale := PresenceInfo{UserID: "u2", LastSeen: now.Add(-50 * time.Second)}
	assert.True(t, fresh.Live(now))
	assert.False(t, stale.Live(now))

	in := &Instance{ActiveUsers: map[string]PresenceInfo{"u1": fresh, "u2": stale}}
	live := in.LivePresence(now)
	require.Len(t, live, 1)
	assert.Equal(t, "u1", live[0].UserID)
}

func TestFocusStage(t *testing.T) {
	assert.Equal(t, StagePreparing, StageStaged.Next())
	assert.Equal(t, StageExecuting, StagePreparing.Next())
	assert.Equal(t, StageExecuting, StageExecuting.Next())
	assert.False(t, FocusStage("bogus").IsValid())
}

func TestActionSetIdentity(t *testing.T) {
	a := ActionSetItem{ProjectID: "p1", InstanceID: "i1", TaskID: "t1"}
	b := ActionSetItem{ProjectID: "p1", InstanceID: "i1", TaskID: "t1", AddedAt: time.Now()}
	c := ActionSetItem{ProjectID: "p1", InstanceID: "i1", TaskID: "t2"}
	note := ActionSetItem{NoteID: "n1"}

	assert.True(t, a.SameIdentity(b))
	assert.False(t, a.SameIdentity(c))
	assert.False(t, a.SameIdentity(note))
	assert.True(t, note.SameIdentity(ActionSetItem{NoteID: "n1"}))

	u := &User{ID: "u1", ActionSet: []ActionSetItem{a, c}}
	assert.Equal(t, 0, u.InActionSet(b))
	assert.Equal(t, -1, u.InActionSet(note))
	require.NoError(t, u.Validate())

	u.ActionSet = append(u.ActionSet, b)
	require.Error(t, u.Validate())
}
