package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/benresonance-star/tally/internal/docstore"
	"github.com/benresonance-star/tally/internal/idgen"
	"github.com/benresonance-star/tally/internal/types"
)

// User-document mutators: focus pointer, action set, scratchpad. These all
// edit the session user's own document, so writes are plain debounced
// last-writer-wins with no per-field reconciliation.

// EnsureUser loads the configured user document, creating it on first run.
// Must be called before any user mutator.
func (c *Client) EnsureUser(ctx context.Context) (*types.User, error) {
	id := c.cfg.User.ID
	if id == "" {
		id = idgen.NewUserID()
	}

	raw, err := c.usersCol.Get(ctx, id)
	var u *types.User
	switch {
	case err == nil:
		u, err = types.DecodeUser(raw)
		if err != nil {
			return nil, fmt.Errorf("load user %s: %w", id, err)
		}
	case errors.Is(err, docstore.ErrNotFound):
		u = &types.User{ID: id, Name: c.cfg.User.Name}
		data, merr := types.MarshalUser(u)
		if merr != nil {
			return nil, merr
		}
		if err := c.usersCol.Set(ctx, id, data); err != nil {
			return nil, fmt.Errorf("create user %s: %w", id, err)
		}
	default:
		return nil, fmt.Errorf("load user %s: %w", id, err)
	}

	c.doSync(func(s *state) {
		s.userID = u.ID
		s.users[u.ID] = u.Clone()
		s.changed = true
	})
	return u, nil
}

// mutateCurrentUser runs fn against the session user and schedules a write
// when fn reports a change. Missing user document is a silent no-op.
func (c *Client) mutateCurrentUser(fn func(u *types.User) bool) {
	var userID string
	c.doSync(func(s *state) {
		u := s.users[s.userID]
		if u == nil {
			return
		}
		if fn(u) {
			userID = u.ID
			s.changed = true
		}
	})
	if userID != "" {
		c.scheduleUserWrite(userID)
	}
}

// ToggleFocus points the user's active focus at a task, or clears it when
// the same task is already focused. A fresh focus starts at the staged stage.
func (c *Client) ToggleFocus(projectID, instanceID, taskID string) {
	c.mutateCurrentUser(func(u *types.User) bool {
		if u.ActiveFocus.Same(projectID, instanceID, taskID) {
			u.ActiveFocus = nil
			return true
		}
		u.ActiveFocus = &types.ActiveFocus{
			ProjectID:  projectID,
			InstanceID: instanceID,
			TaskID:     taskID,
			Stage:      types.StageStaged,
		}
		return true
	})
}

// SetFocusStage moves the active focus to an explicit stage.
func (c *Client) SetFocusStage(stage types.FocusStage) {
	c.mutateCurrentUser(func(u *types.User) bool {
		if u.ActiveFocus == nil || !stage.IsValid() {
			return false
		}
		u.ActiveFocus.Stage = stage
		return true
	})
}

// AdvanceFocusStage moves the active focus one stage forward.
func (c *Client) AdvanceFocusStage() {
	c.mutateCurrentUser(func(u *types.User) bool {
		if u.ActiveFocus == nil {
			return false
		}
		next := u.ActiveFocus.Stage.Next()
		if next == u.ActiveFocus.Stage {
			return false
		}
		u.ActiveFocus.Stage = next
		return true
	})
}

// ToggleTaskInActionSet adds a task to the user's work queue, or removes it
// if already queued.
func (c *Client) ToggleTaskInActionSet(projectID, instanceID, taskID string) {
	item := types.ActionSetItem{
		ProjectID:  projectID,
		InstanceID: instanceID,
		TaskID:     taskID,
		AddedAt:    c.now(),
	}
	c.toggleActionSetItem(item)
}

// ToggleNoteInActionSet adds a scratchpad note to the work queue, or removes
// it if already queued.
func (c *Client) ToggleNoteInActionSet(noteID string) {
	c.toggleActionSetItem(types.ActionSetItem{NoteID: noteID, AddedAt: c.now()})
}

func (c *Client) toggleActionSetItem(item types.ActionSetItem) {
	c.mutateCurrentUser(func(u *types.User) bool {
		if i := u.InActionSet(item); i >= 0 {
			u.ActionSet = append(u.ActionSet[:i], u.ActionSet[i+1:]...)
			return true
		}
		u.ActionSet = append(u.ActionSet, item)
		return true
	})
}

// MoveActionSetItem reorders the queue, moving the item at from to to.
func (c *Client) MoveActionSetItem(from, to int) {
	c.mutateCurrentUser(func(u *types.User) bool {
		n := len(u.ActionSet)
		if from < 0 || from >= n || to < 0 || to >= n || from == to {
			return false
		}
		item := u.ActionSet[from]
		rest := append(u.ActionSet[:from], u.ActionSet[from+1:]...)
		u.ActionSet = append(rest[:to], append([]types.ActionSetItem{item}, rest[to:]...)...)
		return true
	})
}

// ReplaceActionSet swaps in a whole new queue, deduplicated by identity.
func (c *Client) ReplaceActionSet(items []types.ActionSetItem) {
	c.mutateCurrentUser(func(u *types.User) bool {
		deduped := make([]types.ActionSetItem, 0, len(items))
		for _, item := range items {
			dup := false
			for _, kept := range deduped {
				if kept.SameIdentity(item) {
					dup = true
					break
				}
			}
			if !dup {
				deduped = append(deduped, item)
			}
		}
		u.ActionSet = deduped
		return true
	})
}

// AddScratchpadNote appends a free-form note and returns its id.
func (c *Client) AddScratchpadNote(text string) string {
	id := idgen.NewNoteID()
	c.mutateCurrentUser(func(u *types.User) bool {
		u.Scratchpad = append(u.Scratchpad, types.ScratchpadItem{
			ID:        id,
			Text:      text,
			CreatedAt: c.now(),
		})
		return true
	})
	return id
}

// EditScratchpadNote rewrites a note's text.
func (c *Client) EditScratchpadNote(id, text string) {
	c.mutateCurrentUser(func(u *types.User) bool {
		for i := range u.Scratchpad {
			if u.Scratchpad[i].ID == id {
				u.Scratchpad[i].Text = text
				return true
			}
		}
		return false
	})
}

// DeleteScratchpadNote removes a note and any queue entry pointing at it.
func (c *Client) DeleteScratchpadNote(id string) {
	c.mutateCurrentUser(func(u *types.User) bool {
		found := false
		kept := u.Scratchpad[:0]
		for _, n := range u.Scratchpad {
			if n.ID == id {
				found = true
				continue
			}
			kept = append(kept, n)
		}
		u.Scratchpad = kept
		if i := u.InActionSet(types.ActionSetItem{NoteID: id}); i >= 0 {
			u.ActionSet = append(u.ActionSet[:i], u.ActionSet[i+1:]...)
			found = true
		}
		return found
	})
}
