// Package templatefile loads master template definitions from YAML or TOML
// files, so checklists can live in version control and be imported or synced
// into the document store.
package templatefile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/benresonance-star/tally/internal/idgen"
	"github.com/benresonance-star/tally/internal/types"
)

// Definition is the on-disk shape of a template. Ids are optional in the
// file; missing ones are generated on load, so hand-written files stay terse.
type Definition struct {
	ID       string       `yaml:"id" toml:"id"`
	Title    string       `yaml:"title" toml:"title"`
	Sections []SectionDef `yaml:"sections" toml:"sections"`
}

type SectionDef struct {
	ID          string          `yaml:"id" toml:"id"`
	Title       string          `yaml:"title" toml:"title"`
	Subsections []SubsectionDef `yaml:"subsections" toml:"subsections"`
}

type SubsectionDef struct {
	ID    string    `yaml:"id" toml:"id"`
	Title string    `yaml:"title" toml:"title"`
	Tasks []TaskDef `yaml:"tasks" toml:"tasks"`
}

type TaskDef struct {
	ID    string   `yaml:"id" toml:"id"`
	Title string   `yaml:"title" toml:"title"`
	Notes string   `yaml:"notes" toml:"notes"`
	Guide GuideDef `yaml:"guide" toml:"guide"`
}

type GuideDef struct {
	Description    string   `yaml:"description" toml:"description"`
	Complexity     string   `yaml:"complexity" toml:"complexity"`
	RequiredBefore []string `yaml:"required_before" toml:"required_before"`
	HelpfulPrep    []string `yaml:"helpful_prep" toml:"helpful_prep"`
	WatchOutFor    []string `yaml:"watch_out_for" toml:"watch_out_for"`
}

// Load parses the file at path, dispatching on extension (.yaml, .yml,
// .toml), and returns a validated template at version 1.
func Load(path string) (*types.Template, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("read template file: %w", err)
	}

	var def Definition
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported template file extension: %s", path)
	}

	return def.Build()
}

// Build converts a definition into a template, filling in missing ids and
// validating the result.
func (d *Definition) Build() (*types.Template, error) {
	tpl := &types.Template{
		ID:      d.ID,
		Title:   d.Title,
		Version: 1,
	}
	if tpl.ID == "" {
		tpl.ID = "tpl-" + idgen.EncodeBase36([]byte(d.Title), 8)
	}
	for _, secDef := range d.Sections {
		sec := &types.Section{ID: secDef.ID, Title: secDef.Title, Expanded: true}
		if sec.ID == "" {
			sec.ID = "sec-" + idgen.EncodeBase36([]byte(secDef.Title), 8)
		}
		for _, subDef := range secDef.Subsections {
			sub := &types.Subsection{ID: subDef.ID, Title: subDef.Title, Expanded: true}
			if sub.ID == "" {
				sub.ID = "sub-" + idgen.EncodeBase36([]byte(sec.ID+subDef.Title), 8)
			}
			for _, taskDef := range subDef.Tasks {
				task := &types.Task{
					ID:    taskDef.ID,
					Title: taskDef.Title,
					Notes: taskDef.Notes,
					Guide: types.TaskGuide{
						Description:    taskDef.Guide.Description,
						Complexity:     taskDef.Guide.Complexity,
						RequiredBefore: taskDef.Guide.RequiredBefore,
						HelpfulPrep:    taskDef.Guide.HelpfulPrep,
						WatchOutFor:    taskDef.Guide.WatchOutFor,
					},
				}
				// derived ids are stable across re-imports so instance
				// runtime state survives a file sync; give tasks explicit
				// ids in the file to also survive retitling
				if task.ID == "" {
					task.ID = "task-" + idgen.EncodeBase36([]byte(sub.ID+"/"+taskDef.Title), 10)
				}
				task.SetRuntimeDefaults()
				sub.Tasks = append(sub.Tasks, task)
			}
			sec.Subsections = append(sec.Subsections, sub)
		}
		tpl.Sections = append(tpl.Sections, sec)
	}
	if err := tpl.Validate(); err != nil {
		return nil, fmt.Errorf("template file invalid: %w", err)
	}
	return tpl, nil
}
