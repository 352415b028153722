package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/benresonance-star/tally/internal/client"
	"github.com/benresonance-star/tally/internal/templatefile"
	"github.com/benresonance-star/tally/internal/ui"
)

var templateCmd = &cobra.Command{
	Use:     "template",
	Aliases: []string{"tpl"},
	Short:   "Manage master checklist templates",
}

func init() {
	templateCmd.AddCommand(
		templateListCmd,
		templateShowCmd,
		templateCreateCmd,
		templateImportCmd,
		templateDeleteCmd,
	)
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			templates := c.Templates()
			sort.Slice(templates, func(i, j int) bool { return templates[i].Title < templates[j].Title })
			if len(templates) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), ui.RenderMuted("no templates yet"))
				return nil
			}
			for _, tpl := range templates {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s %s\n",
					tpl.ID, tpl.Title, ui.RenderMuted(fmt.Sprintf("v%d", tpl.Version)))
			}
			return nil
		})
	},
}

var templateShowCmd = &cobra.Command{
	Use:   "show <template-id>",
	Short: "Show a template's structure",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			tpl := c.Template(args[0])
			if tpl == nil {
				return fmt.Errorf("template %s not found", args[0])
			}
			fmt.Fprint(cmd.OutOrStdout(), ui.RenderTemplate(tpl))
			return nil
		})
	},
}

var templateCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create an empty template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			tpl, err := c.CreateTemplate(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", tpl.ID)
			return nil
		})
	},
}

var templateImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a template definition from a YAML or TOML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			id, version, err := importTemplateFile(c, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s %s\n",
				id, ui.RenderMuted(fmt.Sprintf("v%d", version)))
			return nil
		})
	},
}

// importTemplateFile loads a definition and saves it through the client.
// Re-importing an existing template keeps its id and bumps its version, so
// live instances absorb the new structure.
func importTemplateFile(c *client.Client, path string) (id string, version int, err error) {
	tpl, err := templatefile.Load(path)
	if err != nil {
		return "", 0, err
	}
	if existing := c.Template(tpl.ID); existing != nil {
		tpl.Version = existing.Version
	}
	if err := c.SaveTemplate(tpl); err != nil {
		return "", 0, err
	}
	saved := c.Template(tpl.ID)
	if saved == nil {
		return tpl.ID, tpl.Version, nil
	}
	return saved.ID, saved.Version, nil
}

var templateDeleteCmd = &cobra.Command{
	Use:   "delete <template-id>",
	Short: "Delete a template (instances keep their current structure)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			return c.DeleteTemplate(args[0])
		})
	},
}
