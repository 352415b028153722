package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/benresonance-star/tally/internal/client"
	"github.com/benresonance-star/tally/internal/ui"
)

var instanceCmd = &cobra.Command{
	Use:     "instance",
	Aliases: []string{"ins"},
	Short:   "Manage live checklist instances",
}

var instanceProject string
var instanceTitle string

func init() {
	instanceCreateCmd.Flags().StringVar(&instanceProject, "project", "", "Project the instance belongs to")
	instanceCreateCmd.Flags().StringVar(&instanceTitle, "title", "", "Instance title (defaults to the template's)")
	_ = instanceCreateCmd.MarkFlagRequired("project")

	instanceCmd.AddCommand(
		instanceListCmd,
		instanceShowCmd,
		instanceCreateCmd,
		instanceDeleteCmd,
	)
}

var instanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known instances",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			instances := c.Instances()
			sort.Slice(instances, func(i, j int) bool { return instances[i].Title < instances[j].Title })
			if len(instances) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), ui.RenderMuted("no instances yet"))
				return nil
			}
			for _, in := range instances {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s %s\n",
					in.ID, in.Title,
					ui.RenderMuted(fmt.Sprintf("(%s, v%d)", in.ProjectID, in.Version)))
			}
			return nil
		})
	},
}

var instanceShowCmd = &cobra.Command{
	Use:   "show <instance-id>",
	Short: "Show an instance's checklist with progress and presence",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			in := c.Instance(args[0])
			if in == nil {
				return fmt.Errorf("instance %s not found", args[0])
			}
			fmt.Fprint(cmd.OutOrStdout(), ui.RenderInstance(in, time.Now()))
			return nil
		})
	},
}

var instanceCreateCmd = &cobra.Command{
	Use:   "create <template-id>",
	Short: "Create a live instance from a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			in, err := c.CreateInstance(args[0], instanceProject, instanceTitle)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", in.ID)
			return nil
		})
	},
}

var instanceDeleteCmd = &cobra.Command{
	Use:   "delete <instance-id>",
	Short: "Delete an instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			return c.DeleteInstance(args[0])
		})
	},
}
