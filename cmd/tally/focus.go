package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benresonance-star/tally/internal/client"
	"github.com/benresonance-star/tally/internal/types"
	"github.com/benresonance-star/tally/internal/ui"
)

var focusCmd = &cobra.Command{
	Use:   "focus",
	Short: "Manage your active focus",
}

func init() {
	focusCmd.AddCommand(focusShowCmd, focusSetCmd, focusAdvanceCmd, focusClearCmd)
}

func renderFocus(f *types.ActiveFocus) string {
	if f == nil {
		return ui.RenderMuted("no active focus")
	}
	return fmt.Sprintf("%s %s %s",
		ui.RenderAccent(f.TaskID),
		ui.RenderMuted("on "+f.InstanceID),
		ui.RenderWarn(string(f.Stage)))
}

var focusShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show your active focus",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			fmt.Fprintln(cmd.OutOrStdout(), renderFocus(c.CurrentUser().ActiveFocus))
			return nil
		})
	},
}

var focusSetCmd = &cobra.Command{
	Use:   "set <project-id> <instance-id> <task-id>",
	Short: "Point your focus at a task (staged stage)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			u := c.CurrentUser()
			if u.ActiveFocus.Same(args[0], args[1], args[2]) {
				return nil // already focused there
			}
			if u.ActiveFocus != nil {
				c.ToggleFocus(u.ActiveFocus.ProjectID, u.ActiveFocus.InstanceID, u.ActiveFocus.TaskID)
			}
			c.ToggleFocus(args[0], args[1], args[2])
			fmt.Fprintln(cmd.OutOrStdout(), renderFocus(c.CurrentUser().ActiveFocus))
			return nil
		})
	},
}

var focusAdvanceCmd = &cobra.Command{
	Use:   "advance",
	Short: "Advance the focus one stage (staged, preparing, executing)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			if c.CurrentUser().ActiveFocus == nil {
				return fmt.Errorf("no active focus to advance")
			}
			c.AdvanceFocusStage()
			fmt.Fprintln(cmd.OutOrStdout(), renderFocus(c.CurrentUser().ActiveFocus))
			return nil
		})
	},
}

var focusClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear your active focus",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			if f := c.CurrentUser().ActiveFocus; f != nil {
				c.ToggleFocus(f.ProjectID, f.InstanceID, f.TaskID)
			}
			return nil
		})
	},
}
