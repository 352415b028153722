package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benresonance-star/tally/internal/types"
)

func siteSetupV1() *types.Template {
	return &types.Template{
		ID:      "tpl-site",
		Title:   "Site Setup",
		Version: 1,
		Sections: []*types.Section{
			{
				ID:    "sec-legal",
				Title: "Legal",
				Subsections: []*types.Subsection{
					{
						ID:    "sub-paper",
						Title: "Paperwork",
						Tasks: []*types.Task{
							{ID: "t1", Title: "Permits", Notes: "county office"},
						},
					},
				},
			},
		},
	}
}

func instanceFrom(m *types.Template) *types.Instance {
	in := &types.Instance{
		ID:        "ins-1",
		MasterID:  m.ID,
		ProjectID: "proj-1",
		Title:     "Elm Street build",
		Sections:  types.CloneSections(m.Sections),
		Version:   m.Version,
	}
	for _, sec := range in.Sections {
		sec.Expanded = true
		for _, sub := range sec.Subsections {
			sub.Expanded = true
			for _, task := range sub.Tasks {
				task.SetRuntimeDefaults()
			}
		}
	}
	return in
}

func TestApplyPreservesRuntimeState(t *testing.T) {
	m := siteSetupV1()
	in := instanceFrom(m)

	task := in.FindTask("t1")
	task.Completed = true
	task.UserNotes = "x"
	task.TimerRemaining = 42

	m.Version = 2
	m.FindTask("t1").Title = "Permits & Approvals"

	out := Apply(in, m)

	got := out.FindTask("t1")
	require.NotNil(t, got)
	assert.Equal(t, "Permits & Approvals", got.Title)
	assert.True(t, got.Completed)
	assert.Equal(t, "x", got.UserNotes)
	assert.Equal(t, 42, got.TimerRemaining)
	assert.Equal(t, 2, out.Version)

	// inputs untouched
	assert.Equal(t, "Permits", in.FindTask("t1").Title)
	assert.Equal(t, 1, in.Version)
}

func TestApplyIsIdempotent(t *testing.T) {
	m := siteSetupV1()
	in := instanceFrom(m)
	in.FindTask("t1").UserNotes = "progress"

	m.Version = 3
	once := Apply(in, m)
	twice := Apply(once, m)
	assert.Equal(t, once, twice)
}

func TestApplyNewTaskGetsDefaults(t *testing.T) {
	m := siteSetupV1()
	in := instanceFrom(m)

	m.Version = 2
	sub := m.Sections[0].Subsections[0]
	sub.Tasks = append(sub.Tasks, &types.Task{ID: "t2", Title: "Insurance"})

	out := Apply(in, m)
	got := out.FindTask("t2")
	require.NotNil(t, got)
	assert.False(t, got.Completed)
	assert.Equal(t, types.DefaultTimerSeconds, got.TimerRemaining)
	assert.Equal(t, types.DefaultTimerSeconds, got.TimerDuration)
	assert.False(t, got.TimerIsRunning)
}

func TestApplyDropsRemovedTask(t *testing.T) {
	m := siteSetupV1()
	sub := m.Sections[0].Subsections[0]
	sub.Tasks = append(sub.Tasks, &types.Task{ID: "t2", Title: "Insurance"})
	in := instanceFrom(m)

	m.Version = 2
	sub.Tasks = sub.Tasks[:1]

	out := Apply(in, m)
	assert.Nil(t, out.FindTask("t2"))
	assert.NotNil(t, out.FindTask("t1"))
}

func TestApplyPreservesExpandFlagsByID(t *testing.T) {
	m := siteSetupV1()
	in := instanceFrom(m)
	in.Sections[0].Expanded = false
	in.Sections[0].Subsections[0].Expanded = false

	m.Version = 2
	m.Sections = append(m.Sections, &types.Section{
		ID:    "sec-build",
		Title: "Build",
		Subsections: []*types.Subsection{
			{ID: "sub-frame", Title: "Framing", Tasks: []*types.Task{{ID: "t9", Title: "Frame walls"}}},
		},
	})

	out := Apply(in, m)
	assert.False(t, out.Sections[0].Expanded)
	assert.False(t, out.Sections[0].Subsections[0].Expanded)
	// new section defaults to expanded
	assert.True(t, out.Sections[1].Expanded)
	assert.True(t, out.Sections[1].Subsections[0].Expanded)
}

func TestApplyMatchesByIDNotPosition(t *testing.T) {
	m := siteSetupV1()
	sub := m.Sections[0].Subsections[0]
	sub.Tasks = append(sub.Tasks, &types.Task{ID: "t2", Title: "Insurance"})
	in := instanceFrom(m)
	in.FindTask("t2").Completed = true

	// reorder tasks in the template
	m.Version = 2
	sub.Tasks = []*types.Task{sub.Tasks[1], sub.Tasks[0]}

	out := Apply(in, m)
	assert.True(t, out.FindTask("t2").Completed)
	assert.False(t, out.FindTask("t1").Completed)
	// ordering follows the template
	assert.Equal(t, "t2", out.Sections[0].Subsections[0].Tasks[0].ID)
}

func TestStale(t *testing.T) {
	m := siteSetupV1()
	in := instanceFrom(m)

	assert.False(t, Stale(in, m))
	m.Version = 2
	assert.True(t, Stale(in, m))

	other := siteSetupV1()
	other.ID = "tpl-other"
	other.Version = 9
	assert.False(t, Stale(in, other))
	assert.False(t, Stale(nil, m))
	assert.False(t, Stale(in, nil))
}
