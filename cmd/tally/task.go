package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/benresonance-star/tally/internal/client"
	"github.com/benresonance-star/tally/internal/ui"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Work with tasks on an instance",
}

func init() {
	taskCmd.AddCommand(
		taskToggleCmd,
		taskNotesCmd,
		taskGuideCmd,
		taskTimerCmd,
		taskTimeCmd,
	)
	taskTimerCmd.AddCommand(taskTimerSetCmd, taskTimerToggleCmd, taskTimerAddCmd, taskTimerResetCmd)
}

// requireTask looks the task up so a typo'd id fails loudly in the CLI even
// though the underlying mutators treat missing refs as no-ops.
func requireTask(c *client.Client, instanceID, taskID string) error {
	in := c.Instance(instanceID)
	if in == nil {
		return fmt.Errorf("instance %s not found", instanceID)
	}
	if in.FindTask(taskID) == nil {
		return fmt.Errorf("task %s not found on %s", taskID, instanceID)
	}
	return nil
}

var taskToggleCmd = &cobra.Command{
	Use:   "toggle <instance-id> <task-id>",
	Short: "Toggle a task's completion",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			if err := requireTask(c, args[0], args[1]); err != nil {
				return err
			}
			c.ToggleTask(args[0], args[1])
			task := c.Instance(args[0]).FindTask(args[1])
			if task.Completed {
				fmt.Fprintln(cmd.OutOrStdout(), ui.RenderDone(ui.IconDone+" "+task.Title))
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), ui.IconPending+" "+task.Title)
			}
			return nil
		})
	},
}

var taskNotesCmd = &cobra.Command{
	Use:   "notes <instance-id> <task-id> <text>",
	Short: "Set your personal notes on a task",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			if err := requireTask(c, args[0], args[1]); err != nil {
				return err
			}
			c.SetTaskNotes(args[0], args[1], args[2])
			return nil
		})
	},
}

var taskGuideCmd = &cobra.Command{
	Use:   "guide <instance-id> <task-id>",
	Short: "Show a task's guidance, rendered as markdown",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			if err := requireTask(c, args[0], args[1]); err != nil {
				return err
			}
			task := c.Instance(args[0]).FindTask(args[1])
			out := cmd.OutOrStdout()
			if task.Guide.Description == "" {
				fmt.Fprintln(out, ui.RenderMuted("no guidance for this task"))
				return nil
			}
			fmt.Fprint(out, ui.RenderMarkdown(task.Guide.Description))
			if task.Guide.Complexity != "" {
				fmt.Fprintln(out, ui.RenderMuted("complexity: "+task.Guide.Complexity))
			}
			for _, w := range task.Guide.WatchOutFor {
				fmt.Fprintln(out, ui.RenderWarn(ui.IconWarn+" "+w))
			}
			return nil
		})
	},
}

var taskTimerCmd = &cobra.Command{
	Use:   "timer",
	Short: "Control a task's countdown timer",
}

var taskTimerSetCmd = &cobra.Command{
	Use:   "set <instance-id> <task-id> <seconds>",
	Short: "Set a fresh countdown",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		seconds, err := strconv.Atoi(args[2])
		if err != nil || seconds < 0 {
			return fmt.Errorf("seconds must be a non-negative integer, got %q", args[2])
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			if err := requireTask(c, args[0], args[1]); err != nil {
				return err
			}
			c.SetTaskTimer(args[0], args[1], seconds)
			fmt.Fprintln(cmd.OutOrStdout(), ui.FormatCountdown(seconds))
			return nil
		})
	},
}

var taskTimerToggleCmd = &cobra.Command{
	Use:   "toggle <instance-id> <task-id>",
	Short: "Start or pause the countdown (starting pauses any other running timer)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			if err := requireTask(c, args[0], args[1]); err != nil {
				return err
			}
			c.ToggleTaskTimer(args[0], args[1])
			task := c.Instance(args[0]).FindTask(args[1])
			state := ui.IconPaused + " paused"
			if task.TimerIsRunning {
				state = ui.IconRunning + " running"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", state, ui.FormatCountdown(task.TimerRemaining))
			return nil
		})
	},
}

var taskTimerAddCmd = &cobra.Command{
	Use:   "add <instance-id> <task-id> <delta-seconds>",
	Short: "Add (or with a negative delta, remove) time on the countdown",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		delta, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("delta must be an integer, got %q", args[2])
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			if err := requireTask(c, args[0], args[1]); err != nil {
				return err
			}
			c.AddTaskTime(args[0], args[1], delta)
			task := c.Instance(args[0]).FindTask(args[1])
			fmt.Fprintln(cmd.OutOrStdout(), ui.FormatCountdown(task.TimerRemaining))
			return nil
		})
	},
}

var taskTimerResetCmd = &cobra.Command{
	Use:   "reset <instance-id> <task-id>",
	Short: "Reset the countdown to its full duration, paused",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			if err := requireTask(c, args[0], args[1]); err != nil {
				return err
			}
			c.ResetTaskTimer(args[0], args[1])
			return nil
		})
	},
}

var taskTimeCmd = &cobra.Command{
	Use:   "time <instance-id> <task-id> <seconds>",
	Short: "Record the actual time a task took",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		seconds, err := strconv.Atoi(args[2])
		if err != nil || seconds < 0 {
			return fmt.Errorf("seconds must be a non-negative integer, got %q", args[2])
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			if err := requireTask(c, args[0], args[1]); err != nil {
				return err
			}
			c.SetTimeTaken(args[0], args[1], seconds)
			return nil
		})
	},
}
