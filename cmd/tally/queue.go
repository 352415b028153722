package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/benresonance-star/tally/internal/client"
	"github.com/benresonance-star/tally/internal/ui"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage your personal work queue and scratchpad",
}

func init() {
	queueCmd.AddCommand(
		queueListCmd,
		queueToggleCmd,
		queueMoveCmd,
		queueNoteCmd,
		queueNoteRmCmd,
	)
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show your work queue and scratchpad notes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			u := c.CurrentUser()
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, ui.RenderHeader("queue"))
			if len(u.ActionSet) == 0 {
				fmt.Fprintln(out, ui.RenderMuted("empty"))
			}
			notes := map[string]string{}
			for _, n := range u.Scratchpad {
				notes[n.ID] = n.Text
			}
			for i, item := range u.ActionSet {
				if item.NoteID != "" {
					fmt.Fprintf(out, "%2d. %s %s\n", i+1, ui.RenderAccent("note"), notes[item.NoteID])
					continue
				}
				fmt.Fprintf(out, "%2d. %s %s\n", i+1, item.TaskID,
					ui.RenderMuted(fmt.Sprintf("(%s)", item.InstanceID)))
			}

			if len(u.Scratchpad) > 0 {
				fmt.Fprintln(out, ui.RenderHeader("scratchpad"))
				for _, n := range u.Scratchpad {
					fmt.Fprintf(out, "%s  %s\n", ui.RenderMuted(n.ID), n.Text)
				}
			}
			return nil
		})
	},
}

var queueToggleCmd = &cobra.Command{
	Use:   "toggle <project-id> <instance-id> <task-id>",
	Short: "Add a task to your queue, or remove it if already queued",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			c.ToggleTaskInActionSet(args[0], args[1], args[2])
			return nil
		})
	},
}

var queueMoveCmd = &cobra.Command{
	Use:   "move <from> <to>",
	Short: "Reorder the queue (1-based positions)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err1 := strconv.Atoi(args[0])
		to, err2 := strconv.Atoi(args[1])
		if err1 != nil || err2 != nil || from < 1 || to < 1 {
			return fmt.Errorf("positions must be positive integers")
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			c.MoveActionSetItem(from-1, to-1)
			return nil
		})
	},
}

var queueNoteCmd = &cobra.Command{
	Use:   "note <text>",
	Short: "Add a scratchpad note and queue it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			id := c.AddScratchpadNote(args[0])
			c.ToggleNoteInActionSet(id)
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		})
	},
}

var queueNoteRmCmd = &cobra.Command{
	Use:   "note-rm <note-id>",
	Short: "Delete a scratchpad note (and its queue entry)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			c.DeleteScratchpadNote(args[0])
			return nil
		})
	},
}
