package client

import (
	"fmt"
	"time"

	"github.com/benresonance-star/tally/internal/idgen"
	"github.com/benresonance-star/tally/internal/merge"
	"github.com/benresonance-star/tally/internal/reconcile"
	"github.com/benresonance-star/tally/internal/timer"
	"github.com/benresonance-star/tally/internal/types"
)

// Instance and task mutators. Content edits (completion, notes, time taken,
// expand flags) are debounced; timer transitions and document lifecycle
// operations persist immediately. A mutation referring to a missing instance
// or task is a silent no-op: the reference was valid when the user acted and
// the document has since been removed by a peer.

// ToggleTask flips a task's completion state.
func (c *Client) ToggleTask(instanceID, taskID string) {
	dirty := false
	c.doSync(func(s *state) {
		task := findInstanceTask(s, instanceID, taskID)
		if task == nil {
			return
		}
		task.Completed = !task.Completed
		task.LastUpdated = c.now()
		c.rec.Tracker().Record(instanceID, taskID, reconcile.CategoryContent)
		s.changed = true
		dirty = true
	})
	if dirty {
		c.scheduleInstanceWrite(instanceID)
	}
}

// SetTaskNotes replaces a task's personal notes.
func (c *Client) SetTaskNotes(instanceID, taskID, notes string) {
	dirty := false
	c.doSync(func(s *state) {
		task := findInstanceTask(s, instanceID, taskID)
		if task == nil {
			return
		}
		task.UserNotes = notes
		task.LastUpdated = c.now()
		c.rec.Tracker().Record(instanceID, taskID, reconcile.CategoryContent)
		s.changed = true
		dirty = true
	})
	if dirty {
		c.scheduleInstanceWrite(instanceID)
	}
}

// SetTimeTaken records the actual seconds spent on a task.
func (c *Client) SetTimeTaken(instanceID, taskID string, seconds int) {
	dirty := false
	c.doSync(func(s *state) {
		task := findInstanceTask(s, instanceID, taskID)
		if task == nil || seconds < 0 {
			return
		}
		task.TimeTaken = seconds
		task.LastUpdated = c.now()
		c.rec.Tracker().Record(instanceID, taskID, reconcile.CategoryContent)
		s.changed = true
		dirty = true
	})
	if dirty {
		c.scheduleInstanceWrite(instanceID)
	}
}

// AddUserFile attaches a file reference to a task.
func (c *Client) AddUserFile(instanceID, taskID string, ref types.FileRef) {
	dirty := false
	c.doSync(func(s *state) {
		task := findInstanceTask(s, instanceID, taskID)
		if task == nil {
			return
		}
		task.UserFiles = append(task.UserFiles, ref)
		task.LastUpdated = c.now()
		c.rec.Tracker().Record(instanceID, taskID, reconcile.CategoryContent)
		s.changed = true
		dirty = true
	})
	if dirty {
		c.scheduleInstanceWrite(instanceID)
	}
}

// ToggleSubsectionExpanded flips a subsection's expand flag.
func (c *Client) ToggleSubsectionExpanded(instanceID, subsectionID string) {
	dirty := false
	c.doSync(func(s *state) {
		in := s.instances[instanceID]
		if in == nil {
			return
		}
		for _, sec := range in.Sections {
			for _, sub := range sec.Subsections {
				if sub.ID == subsectionID {
					sub.Expanded = !sub.Expanded
					s.changed = true
					dirty = true
					return
				}
			}
		}
	})
	if dirty {
		c.scheduleInstanceWrite(instanceID)
	}
}

// --- timer transitions: persisted immediately ---

// SetTaskTimer configures a fresh countdown for the task.
func (c *Client) SetTaskTimer(instanceID, taskID string, seconds int) {
	dirty := false
	c.doSync(func(s *state) {
		task := findInstanceTask(s, instanceID, taskID)
		if task == nil {
			return
		}
		timer.SetDuration(task, seconds, c.now())
		c.rec.Tracker().Record(instanceID, taskID, reconcile.CategoryTimer)
		s.changed = true
		dirty = true
	})
	if dirty {
		c.flushInstanceWrite(instanceID)
	}
}

// ToggleTaskTimer starts or pauses a task's countdown. Starting one pauses
// every other running timer first, so at most one timer runs per session;
// each instance touched gets exactly one persisted write.
func (c *Client) ToggleTaskTimer(instanceID, taskID string) {
	var affected []string
	c.doSync(func(s *state) {
		task := findInstanceTask(s, instanceID, taskID)
		if task == nil {
			return
		}
		now := c.now()
		if !task.TimerIsRunning {
			affected = append(affected, c.pauseOtherTimers(s, instanceID, taskID, now)...)
		}
		timer.Toggle(task, now)
		c.rec.Tracker().Record(instanceID, taskID, reconcile.CategoryTimer)
		affected = append(affected, instanceID)
		s.changed = true
	})
	for _, id := range affected {
		c.flushInstanceWrite(id)
	}
}

// AddTaskTime extends or shortens a countdown without changing its run state.
func (c *Client) AddTaskTime(instanceID, taskID string, deltaSeconds int) {
	dirty := false
	c.doSync(func(s *state) {
		task := findInstanceTask(s, instanceID, taskID)
		if task == nil {
			return
		}
		timer.AddTime(task, deltaSeconds, c.now())
		c.rec.Tracker().Record(instanceID, taskID, reconcile.CategoryTimer)
		s.changed = true
		dirty = true
	})
	if dirty {
		c.flushInstanceWrite(instanceID)
	}
}

// ResetTaskTimer returns a countdown to its full duration, paused.
func (c *Client) ResetTaskTimer(instanceID, taskID string) {
	dirty := false
	c.doSync(func(s *state) {
		task := findInstanceTask(s, instanceID, taskID)
		if task == nil {
			return
		}
		timer.Reset(task, c.now())
		c.rec.Tracker().Record(instanceID, taskID, reconcile.CategoryTimer)
		s.changed = true
		dirty = true
	})
	if dirty {
		c.flushInstanceWrite(instanceID)
	}
}

// pauseOtherTimers pauses every running timer except the named task and
// returns the ids of instances that changed.
func (c *Client) pauseOtherTimers(s *state, exceptInstanceID, exceptTaskID string, now time.Time) []string {
	var affected []string
	for id, in := range s.instances {
		touched := false
		for _, sec := range in.Sections {
			for _, sub := range sec.Subsections {
				for _, task := range sub.Tasks {
					if id == exceptInstanceID && task.ID == exceptTaskID {
						continue
					}
					if task.TimerIsRunning {
						timer.Pause(task, now)
						c.rec.Tracker().Record(id, task.ID, reconcile.CategoryTimer)
						touched = true
					}
				}
			}
		}
		if touched {
			affected = append(affected, id)
		}
	}
	return affected
}

// --- template editing ---

// SetTemplateTaskNotes edits the template-authored notes on a task and bumps
// the template version so instances pick the change up.
func (c *Client) SetTemplateTaskNotes(templateID, taskID, notes string) {
	dirty := false
	c.doSync(func(s *state) {
		tpl := s.templates[templateID]
		if tpl == nil {
			return
		}
		task := tpl.FindTask(taskID)
		if task == nil {
			return
		}
		task.Notes = notes
		tpl.Version++
		tpl.UpdatedAt = c.now()
		c.rec.Tracker().Record(templateID, taskID, reconcile.CategoryContent)
		c.mergeStaleInstances(s)
		s.changed = true
		dirty = true
	})
	if dirty {
		c.scheduleTemplateWrite(templateID)
	}
}

// SetTemplateTaskGuide replaces the guidance block on a template task.
func (c *Client) SetTemplateTaskGuide(templateID, taskID string, guide types.TaskGuide) {
	dirty := false
	c.doSync(func(s *state) {
		tpl := s.templates[templateID]
		if tpl == nil {
			return
		}
		task := tpl.FindTask(taskID)
		if task == nil {
			return
		}
		task.Guide = guide
		tpl.Version++
		tpl.UpdatedAt = c.now()
		c.rec.Tracker().Record(templateID, taskID, reconcile.CategoryContent)
		c.mergeStaleInstances(s)
		s.changed = true
		dirty = true
	})
	if dirty {
		c.scheduleTemplateWrite(templateID)
	}
}

// --- document lifecycle ---

// CreateTemplate registers a new empty template and persists it.
func (c *Client) CreateTemplate(title string) (*types.Template, error) {
	if title == "" {
		return nil, fmt.Errorf("template title is required")
	}
	tpl := &types.Template{
		ID:        idgen.NewTemplateID(),
		Title:     title,
		Sections:  []*types.Section{},
		Version:   1,
		UpdatedAt: c.now(),
	}
	c.doSync(func(s *state) {
		s.templates[tpl.ID] = tpl.Clone()
		s.changed = true
	})
	c.flushTemplateWrite(tpl.ID)
	return tpl, nil
}

// SaveTemplate validates and persists an edited template, bumping its
// version. Structural edits to sections and tasks go through here.
func (c *Client) SaveTemplate(tpl *types.Template) error {
	if err := tpl.Validate(); err != nil {
		return err
	}
	saved := tpl.Clone()
	c.doSync(func(s *state) {
		saved.Version++
		saved.UpdatedAt = c.now()
		s.templates[saved.ID] = saved
		c.mergeStaleInstances(s)
		s.changed = true
	})
	c.flushTemplateWrite(saved.ID)
	return nil
}

// DeleteTemplate removes a template. Existing instances keep their current
// structure; they simply stop receiving template syncs.
func (c *Client) DeleteTemplate(id string) error {
	c.doSync(func(s *state) {
		delete(s.templates, id)
		s.changed = true
	})
	return c.templatesCol.Delete(c.ctx, id)
}

// CreateInstance materializes a template into a project-bound live copy with
// runtime defaults on every task.
func (c *Client) CreateInstance(templateID, projectID, title string) (*types.Instance, error) {
	tpl := c.Template(templateID)
	if tpl == nil {
		return nil, fmt.Errorf("template %s not found", templateID)
	}
	in := &types.Instance{
		ID:        idgen.NewInstanceID(),
		MasterID:  tpl.ID,
		ProjectID: projectID,
		Title:     title,
		Version:   0,
	}
	if in.Title == "" {
		in.Title = tpl.Title
	}
	// the structural merge against the fresh instance fills in the section
	// tree and stamps the absorbed version
	synced := merge.Apply(in, tpl)
	c.doSync(func(s *state) {
		s.instances[synced.ID] = synced.Clone()
		s.changed = true
	})
	c.flushInstanceWrite(synced.ID)
	return synced, nil
}

// DeleteInstance removes an instance document.
func (c *Client) DeleteInstance(id string) error {
	c.doSync(func(s *state) {
		delete(s.instances, id)
		s.changed = true
	})
	return c.instancesCol.Delete(c.ctx, id)
}

func findInstanceTask(s *state, instanceID, taskID string) *types.Task {
	in := s.instances[instanceID]
	if in == nil {
		return nil
	}
	return in.FindTask(taskID)
}
