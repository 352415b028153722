// Package merge implements the structural sync between a master template and
// a live instance. The template owns the section tree and every structural
// task field; the instance owns task runtime state (completion, user notes,
// timers). Apply rebuilds the instance's tree from the template and carries
// runtime state across by task id, so repeated application with the same
// template is idempotent.
package merge

import (
	"github.com/benresonance-star/tally/internal/types"
)

// Apply produces an updated instance whose tree exactly mirrors the
// template's structure while retaining the instance's per-task runtime state.
// Tasks are matched by id, never by position: a renamed or reordered task
// keeps its progress, a task absent from the template is dropped, and a task
// new in the template arrives with runtime defaults. Section and subsection
// expand/collapse flags are preserved by id where present, defaulted to
// expanded otherwise. The returned instance absorbs the template's version.
//
// Apply is a pure function: neither argument is mutated, and the caller is
// responsible for persisting the result. It is invoked from whichever watcher
// notices the version mismatch first (template feed or instance feed), and
// may be forced with equal versions to heal drift.
func Apply(instance *types.Instance, template *types.Template) *types.Instance {
	old := indexTasks(instance.Sections)
	oldFlags := indexExpanded(instance.Sections)

	out := instance.Clone()
	out.Title = instance.Title // instance keeps its own display title
	out.Sections = types.CloneSections(template.Sections)
	out.Version = template.Version

	for _, sec := range out.Sections {
		sec.Expanded = expandedFor(oldFlags, sec.ID)
		for _, sub := range sec.Subsections {
			sub.Expanded = expandedFor(oldFlags, sub.ID)
			for _, task := range sub.Tasks {
				if prev, ok := old[task.ID]; ok {
					task.CopyRuntimeFrom(prev)
				} else {
					task.SetRuntimeDefaults()
				}
			}
		}
	}
	return out
}

// Stale reports whether the instance needs a structural sync against the
// given template: either the version lags, or the template has moved at all
// while the instance never absorbed a version.
func Stale(instance *types.Instance, template *types.Template) bool {
	if instance == nil || template == nil {
		return false
	}
	if instance.MasterID != template.ID {
		return false
	}
	return template.Version > instance.Version
}

func indexTasks(sections []*types.Section) map[string]*types.Task {
	tasks := make(map[string]*types.Task)
	for _, sec := range sections {
		for _, sub := range sec.Subsections {
			for _, task := range sub.Tasks {
				tasks[task.ID] = task
			}
		}
	}
	return tasks
}

// indexExpanded records the expand/collapse flag for every section and
// subsection id so the UI state survives a structural rebuild.
func indexExpanded(sections []*types.Section) map[string]bool {
	flags := make(map[string]bool)
	for _, sec := range sections {
		flags[sec.ID] = sec.Expanded
		for _, sub := range sec.Subsections {
			flags[sub.ID] = sub.Expanded
		}
	}
	return flags
}

func expandedFor(flags map[string]bool, id string) bool {
	if v, ok := flags[id]; ok {
		return v
	}
	return true
}
