package templatefile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlDef = `
title: Site Setup
sections:
  - title: Preparation
    subsections:
      - title: Legal
        tasks:
          - id: task-permits
            title: Obtain permits
            notes: bring two copies
            guide:
              description: Visit the county office.
              complexity: medium
              watch_out_for:
                - seasonal closure in January
          - title: Arrange insurance
`

const tomlDef = `
title = "Site Setup"

[[sections]]
title = "Preparation"

[[sections.subsections]]
title = "Legal"

[[sections.subsections.tasks]]
id = "task-permits"
title = "Obtain permits"
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	tpl, err := Load(writeFile(t, "site.yaml", yamlDef))
	require.NoError(t, err)

	assert.Equal(t, "Site Setup", tpl.Title)
	assert.Equal(t, 1, tpl.Version)
	require.Len(t, tpl.Sections, 1)
	require.Len(t, tpl.Sections[0].Subsections, 1)
	tasks := tpl.Sections[0].Subsections[0].Tasks
	require.Len(t, tasks, 2)

	assert.Equal(t, "task-permits", tasks[0].ID)
	assert.Equal(t, "bring two copies", tasks[0].Notes)
	assert.Equal(t, "Visit the county office.", tasks[0].Guide.Description)
	assert.Equal(t, []string{"seasonal closure in January"}, tasks[0].Guide.WatchOutFor)

	// the second task got a generated id and runtime defaults
	assert.NotEmpty(t, tasks[1].ID)
	assert.Equal(t, 1200, tasks[1].TimerRemaining)
}

func TestLoadTOML(t *testing.T) {
	tpl, err := Load(writeFile(t, "site.toml", tomlDef))
	require.NoError(t, err)
	assert.Equal(t, "Site Setup", tpl.Title)
	assert.Equal(t, "task-permits", tpl.Sections[0].Subsections[0].Tasks[0].ID)
}

func TestGeneratedIDsAreStableAcrossLoads(t *testing.T) {
	path := writeFile(t, "site.yaml", yamlDef)
	a, err := Load(path)
	require.NoError(t, err)
	b, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t,
		a.Sections[0].Subsections[0].Tasks[1].ID,
		b.Sections[0].Subsections[0].Tasks[1].ID)
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	_, err := Load(writeFile(t, "site.json", "{}"))
	assert.ErrorContains(t, err, "unsupported template file extension")
}

func TestLoadRejectsInvalidTree(t *testing.T) {
	dup := `
title: Broken
sections:
  - title: A
    subsections:
      - title: B
        tasks:
          - id: task-x
            title: One
          - id: task-x
            title: Two
`
	_, err := Load(writeFile(t, "broken.yaml", dup))
	assert.ErrorContains(t, err, "duplicate id")
}

func TestWatchReloadsOnChange(t *testing.T) {
	path := writeFile(t, "site.yaml", yamlDef)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	applied := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(p string) error {
			tpl, err := Load(p)
			if err != nil {
				return err
			}
			applied <- tpl.Title
			return nil
		}, nil)
	}()

	// give the watcher a moment to register
	time.Sleep(100 * time.Millisecond)
	updated := yamlDef + "\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case title := <-applied:
		assert.Equal(t, "Site Setup", title)
	case <-time.After(3 * time.Second):
		t.Fatal("watch never applied the change")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
