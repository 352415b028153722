// Package types defines the document shapes shared by the tally sync engine:
// master templates, live instances, and user documents. Fields are split into
// template-owned (structural) and instance-owned (runtime) categories; the
// structural merge in internal/merge relies on that split.
package types

import (
	"fmt"
	"time"
)

// DefaultTimerSeconds is the countdown assigned to a task that has never had
// its timer configured (20 minutes).
const DefaultTimerSeconds = 1200

// PresenceTTL is how long a presence heartbeat stays live. Entries older than
// this are treated as departed users.
const PresenceTTL = 45 * time.Second

// FileRef points at an uploaded attachment. Blob storage itself is external;
// documents only carry the reference.
type FileRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	Size int64  `json:"size,omitempty"`
	URL  string `json:"url"`
}

// TaskGuide is the template-authored guidance block for a task.
type TaskGuide struct {
	Description    string   `json:"description,omitempty"`
	Complexity     string   `json:"complexity,omitempty"`
	RequiredBefore []string `json:"requiredBefore,omitempty"`
	HelpfulPrep    []string `json:"helpfulPrep,omitempty"`
	WatchOutFor    []string `json:"watchOutFor,omitempty"`
}

// Task is a single checklist item. Structural fields come from the template
// and are overwritten on every sync; runtime fields belong to the instance
// and survive every sync untouched.
type Task struct {
	// Structural (template-owned).
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Notes string    `json:"notes,omitempty"`
	Guide TaskGuide `json:"guide"`
	Files []FileRef `json:"files,omitempty"`

	// Runtime (instance-owned).
	Completed        bool      `json:"completed"`
	UserNotes        string    `json:"userNotes,omitempty"`
	UserFiles        []FileRef `json:"userFiles,omitempty"`
	TimeTaken        int       `json:"timeTaken,omitempty"` // seconds
	TimerDuration    int       `json:"timerDuration"`       // seconds
	TimerRemaining   int       `json:"timerRemaining"`      // seconds
	TimerIsRunning   bool      `json:"timerIsRunning"`
	TimerLastUpdated time.Time `json:"timerLastUpdated,omitzero"`
	LastUpdated      time.Time `json:"lastUpdated,omitzero"`
	CompletedPrereqs []string  `json:"completedPrereqs,omitempty"`
}

// SetRuntimeDefaults initializes the runtime fields for a task that has just
// been created or just arrived from a template sync.
func (t *Task) SetRuntimeDefaults() {
	t.Completed = false
	t.UserNotes = ""
	t.UserFiles = nil
	t.TimeTaken = 0
	t.TimerDuration = DefaultTimerSeconds
	t.TimerRemaining = DefaultTimerSeconds
	t.TimerIsRunning = false
	t.TimerLastUpdated = time.Time{}
	t.CompletedPrereqs = nil
}

// CopyRuntimeFrom carries the runtime fields of src onto t, leaving the
// structural fields of t alone. Used by the structural merge.
func (t *Task) CopyRuntimeFrom(src *Task) {
	t.Completed = src.Completed
	t.UserNotes = src.UserNotes
	t.UserFiles = copyFileRefs(src.UserFiles)
	t.TimeTaken = src.TimeTaken
	t.TimerDuration = src.TimerDuration
	t.TimerRemaining = src.TimerRemaining
	t.TimerIsRunning = src.TimerIsRunning
	t.TimerLastUpdated = src.TimerLastUpdated
	t.LastUpdated = src.LastUpdated
	t.CompletedPrereqs = append([]string(nil), src.CompletedPrereqs...)
}

// Subsection groups tasks inside a section. Expanded is a per-instance UI
// flag preserved across syncs.
type Subsection struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Tasks    []*Task `json:"tasks"`
	Expanded bool    `json:"expanded"`
}

// Section is the top level of a template's tree.
type Section struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Subsections []*Subsection `json:"subsections"`
	Expanded    bool          `json:"expanded"`
}

// Template is a master checklist definition. Version increments on every
// structural or content write; instances compare against it to detect drift.
type Template struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Sections  []*Section `json:"sections"`
	Version   int        `json:"version"`
	UpdatedAt time.Time  `json:"updatedAt,omitzero"`
}

// PresenceInfo is one user's heartbeat entry on an instance.
type PresenceInfo struct {
	UserID   string    `json:"userId"`
	Name     string    `json:"name,omitempty"`
	TaskID   string    `json:"taskId,omitempty"`
	LastSeen time.Time `json:"lastSeen"`
}

// Live reports whether the heartbeat is recent enough to count as present.
func (p PresenceInfo) Live(now time.Time) bool {
	return now.Sub(p.LastSeen) < PresenceTTL
}

// Instance is a per-project live copy of a template. Its section tree always
// converges to the template's; only task runtime fields are instance-owned.
// Version records the last template version this instance has absorbed.
type Instance struct {
	ID          string                  `json:"id"`
	MasterID    string                  `json:"masterId"`
	ProjectID   string                  `json:"projectId"`
	Title       string                  `json:"title"`
	Sections    []*Section              `json:"sections"`
	Version     int                     `json:"version"`
	ActiveUsers map[string]PresenceInfo `json:"activeUsers"`
}

// LivePresence returns the presence entries still within the TTL.
func (in *Instance) LivePresence(now time.Time) []PresenceInfo {
	var live []PresenceInfo
	for _, p := range in.ActiveUsers {
		if p.Live(now) {
			live = append(live, p)
		}
	}
	return live
}

// FindTask walks the section tree for the task with the given id.
// Returns nil if absent.
func FindTask(sections []*Section, taskID string) *Task {
	for _, sec := range sections {
		for _, sub := range sec.Subsections {
			for _, task := range sub.Tasks {
				if task.ID == taskID {
					return task
				}
			}
		}
	}
	return nil
}

// FindTask returns the template's task with the given id, or nil.
func (m *Template) FindTask(taskID string) *Task { return FindTask(m.Sections, taskID) }

// FindTask returns the instance's task with the given id, or nil.
func (in *Instance) FindTask(taskID string) *Task { return FindTask(in.Sections, taskID) }

// Validate checks structural invariants on a template: non-empty title,
// unique ids throughout the tree.
func (m *Template) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("template id is required")
	}
	if m.Title == "" {
		return fmt.Errorf("template title is required")
	}
	if m.Version < 0 {
		return fmt.Errorf("template version cannot be negative (got %d)", m.Version)
	}
	seen := make(map[string]bool)
	for _, sec := range m.Sections {
		if err := checkTreeIDs(sec, seen); err != nil {
			return err
		}
	}
	return nil
}

func checkTreeIDs(sec *Section, seen map[string]bool) error {
	if sec.ID == "" {
		return fmt.Errorf("section %q missing id", sec.Title)
	}
	if seen[sec.ID] {
		return fmt.Errorf("duplicate id %s in section tree", sec.ID)
	}
	seen[sec.ID] = true
	for _, sub := range sec.Subsections {
		if sub.ID == "" {
			return fmt.Errorf("subsection %q missing id", sub.Title)
		}
		if seen[sub.ID] {
			return fmt.Errorf("duplicate id %s in section tree", sub.ID)
		}
		seen[sub.ID] = true
		for _, task := range sub.Tasks {
			if task.ID == "" {
				return fmt.Errorf("task %q missing id", task.Title)
			}
			if seen[task.ID] {
				return fmt.Errorf("duplicate id %s in section tree", task.ID)
			}
			seen[task.ID] = true
		}
	}
	return nil
}

// Clone returns a deep copy of the template.
func (m *Template) Clone() *Template {
	if m == nil {
		return nil
	}
	out := *m
	out.Sections = CloneSections(m.Sections)
	return &out
}

// Clone returns a deep copy of the instance.
func (in *Instance) Clone() *Instance {
	if in == nil {
		return nil
	}
	out := *in
	out.Sections = CloneSections(in.Sections)
	if in.ActiveUsers != nil {
		out.ActiveUsers = make(map[string]PresenceInfo, len(in.ActiveUsers))
		for k, v := range in.ActiveUsers {
			out.ActiveUsers[k] = v
		}
	}
	return &out
}

// CloneSections deep-copies a section tree.
func CloneSections(sections []*Section) []*Section {
	if sections == nil {
		return nil
	}
	out := make([]*Section, len(sections))
	for i, sec := range sections {
		s := *sec
		s.Subsections = make([]*Subsection, len(sec.Subsections))
		for j, sub := range sec.Subsections {
			ss := *sub
			ss.Tasks = make([]*Task, len(sub.Tasks))
			for k, task := range sub.Tasks {
				t := *task
				t.Files = copyFileRefs(task.Files)
				t.UserFiles = copyFileRefs(task.UserFiles)
				t.Guide.RequiredBefore = append([]string(nil), task.Guide.RequiredBefore...)
				t.Guide.HelpfulPrep = append([]string(nil), task.Guide.HelpfulPrep...)
				t.Guide.WatchOutFor = append([]string(nil), task.Guide.WatchOutFor...)
				t.CompletedPrereqs = append([]string(nil), task.CompletedPrereqs...)
				ss.Tasks[k] = &t
			}
			s.Subsections[j] = &ss
		}
		out[i] = &s
	}
	return out
}

func copyFileRefs(refs []FileRef) []FileRef {
	if refs == nil {
		return nil
	}
	return append([]FileRef(nil), refs...)
}
