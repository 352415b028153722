package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/benresonance-star/tally/internal/client"
	"github.com/benresonance-star/tally/internal/templatefile"
	"github.com/benresonance-star/tally/internal/ui"
)

var watchInstanceID string
var watchTemplateFiles []string

func init() {
	watchCmd.Flags().StringVar(&watchInstanceID, "instance", "", "Instance to join and display")
	watchCmd.Flags().StringArrayVar(&watchTemplateFiles, "template-file", nil,
		"Template file to re-import automatically on change (repeatable)")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run a live session: presence, timers, and template file auto-import",
	Long: `watch joins an instance, keeps a presence heartbeat going, ticks running
timers locally, re-renders the checklist as collaborators make changes, and
re-imports any watched template files when they change on disk.

Runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if watchInstanceID != "" {
				if c.Instance(watchInstanceID) == nil {
					return fmt.Errorf("instance %s not found", watchInstanceID)
				}
				if err := c.JoinInstance(ctx, watchInstanceID); err != nil {
					return err
				}
				defer func() {
					leaveCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					_ = c.LeaveInstance(leaveCtx)
				}()
			}

			g, gctx := errgroup.WithContext(ctx)
			for _, path := range watchTemplateFiles {
				g.Go(func() error {
					return templatefile.Watch(gctx, path,
						func(p string) error {
							_, version, err := importTemplateFile(c, p)
							if err != nil {
								return err
							}
							fmt.Fprintf(cmd.OutOrStdout(), "%s re-imported %s %s\n",
								ui.RenderDone(ui.IconDone), p,
								ui.RenderMuted(fmt.Sprintf("v%d", version)))
							return nil
						},
						func(err error) {
							fmt.Fprintln(cmd.ErrOrStderr(), ui.RenderWarn(ui.IconWarn+" "+err.Error()))
						})
				})
			}
			if watchInstanceID != "" {
				g.Go(func() error { return renderLoop(gctx, cmd, c, watchInstanceID) })
			}

			err := g.Wait()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	},
}

// renderLoop re-renders the joined instance once a second, which also shows
// running countdowns ticking.
func renderLoop(ctx context.Context, cmd *cobra.Command, c *client.Client, instanceID string) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	last := ""
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			in := c.Instance(instanceID)
			if in == nil {
				fmt.Fprintln(cmd.OutOrStdout(), ui.RenderWarn("instance deleted"))
				return nil
			}
			out := ui.RenderInstance(in, time.Now())
			if out != last {
				fmt.Fprint(cmd.OutOrStdout(), "\n"+out)
				last = out
			}
		}
	}
}
