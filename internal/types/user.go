package types

import (
	"fmt"
	"time"
)

// FocusStage is the explicit workflow position of a user's active focus.
type FocusStage string

// Focus workflow stages, advanced only by explicit user action.
const (
	StageStaged    FocusStage = "staged"
	StagePreparing FocusStage = "preparing"
	StageExecuting FocusStage = "executing"
)

// IsValid reports whether the stage is one of the three workflow stages.
func (s FocusStage) IsValid() bool {
	switch s {
	case StageStaged, StagePreparing, StageExecuting:
		return true
	}
	return false
}

// Next returns the stage that follows s in the workflow. Executing is
// terminal and returns itself.
func (s FocusStage) Next() FocusStage {
	switch s {
	case StageStaged:
		return StagePreparing
	case StagePreparing:
		return StageExecuting
	}
	return s
}

// ActiveFocus points at the one task a user is currently working.
type ActiveFocus struct {
	ProjectID  string     `json:"projectId"`
	InstanceID string     `json:"instanceId"`
	TaskID     string     `json:"taskId"`
	Stage      FocusStage `json:"stage"`
}

// Same reports whether the focus points at the given task.
func (f *ActiveFocus) Same(projectID, instanceID, taskID string) bool {
	return f != nil && f.ProjectID == projectID && f.InstanceID == instanceID && f.TaskID == taskID
}

// ActionSetItem is one entry in a user's personal work queue: either a task
// reference or a scratchpad note reference. Membership is a set keyed by the
// identity tuple (or note id).
type ActionSetItem struct {
	ProjectID  string    `json:"projectId,omitempty"`
	InstanceID string    `json:"instanceId,omitempty"`
	TaskID     string    `json:"taskId,omitempty"`
	NoteID     string    `json:"noteId,omitempty"`
	AddedAt    time.Time `json:"addedAt"`
}

// SameIdentity reports whether two items refer to the same task or note.
func (a ActionSetItem) SameIdentity(b ActionSetItem) bool {
	if a.NoteID != "" || b.NoteID != "" {
		return a.NoteID == b.NoteID
	}
	return a.ProjectID == b.ProjectID && a.InstanceID == b.InstanceID && a.TaskID == b.TaskID
}

// ScratchpadItem is a free-form personal note.
type ScratchpadItem struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// User is the per-person document: identity plus the session features built
// on the shared store (focus pointer, action set, scratchpad).
type User struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Role        string           `json:"role,omitempty"`
	ActiveFocus *ActiveFocus     `json:"activeFocus,omitempty"`
	ActionSet   []ActionSetItem  `json:"actionSet"`
	Scratchpad  []ScratchpadItem `json:"scratchpad"`
}

// Validate checks user document invariants.
func (u *User) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("user id is required")
	}
	if u.ActiveFocus != nil && !u.ActiveFocus.Stage.IsValid() {
		return fmt.Errorf("invalid focus stage: %s", u.ActiveFocus.Stage)
	}
	for i, a := range u.ActionSet {
		for j := i + 1; j < len(u.ActionSet); j++ {
			if a.SameIdentity(u.ActionSet[j]) {
				return fmt.Errorf("duplicate action set entry at %d and %d", i, j)
			}
		}
	}
	return nil
}

// InActionSet reports whether the user's queue already holds an item with the
// same identity, and at which index (-1 if absent).
func (u *User) InActionSet(item ActionSetItem) int {
	for i, existing := range u.ActionSet {
		if existing.SameIdentity(item) {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the user document.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	if u.ActiveFocus != nil {
		f := *u.ActiveFocus
		out.ActiveFocus = &f
	}
	out.ActionSet = append([]ActionSetItem(nil), u.ActionSet...)
	out.Scratchpad = append([]ScratchpadItem(nil), u.Scratchpad...)
	return &out
}
