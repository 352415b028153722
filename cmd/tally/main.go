// Command tally is a collaborative checklist tool: master templates, live
// project instances, shared timers and presence over a local document store.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/benresonance-star/tally/internal/client"
	"github.com/benresonance-star/tally/internal/config"
	"github.com/benresonance-star/tally/internal/docstore"
	"github.com/benresonance-star/tally/internal/notify"
	"github.com/benresonance-star/tally/internal/telemetry"
	"github.com/benresonance-star/tally/internal/ui"
)

// Populated via -ldflags at release time.
var (
	version = "dev"
	commit  = "none"
)

var rootCmd = &cobra.Command{
	Use:   "tally",
	Short: "Collaborative checklists with synced templates, timers and presence",
	Long: `tally keeps project checklists in sync across a team: masters define
the structure, instances carry each project's progress, and edits from
every client converge through the shared document store.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(
		templateCmd,
		instanceCmd,
		taskCmd,
		focusCmd,
		queueCmd,
		watchCmd,
		versionCmd,
	)
}

func main() {
	ctx := context.Background()
	if err := telemetry.Init(ctx, "tally", version); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry init: %v\n", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		telemetry.Shutdown(shutdownCtx)
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.RenderFail("error: ")+err.Error())
		os.Exit(1)
	}
}

// openStore picks the backend from configuration.
func openStore(cfg *config.Config) (docstore.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return docstore.NewMemory(), nil
	default:
		return docstore.OpenSQLite(cfg.Store.Path)
	}
}

// withClient runs fn with a fully wired session: config loaded, store open,
// watches running, user document ensured. The session is flushed and closed
// when fn returns.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *client.Client) error) error {
	cfg, err := config.LoadFromCwd()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	notes := notify.NewCenter()
	notes.SetListener(func(active []notify.Notification) {
		for _, n := range active {
			if n.Level == notify.LevelError {
				fmt.Fprintln(cmd.ErrOrStderr(), ui.RenderFail(n.Message))
			}
		}
	})

	c := client.New(cfg, store, notes)
	defer c.Close() //nolint:errcheck

	runCtx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return c.Run(gctx) })

	if _, err := c.EnsureUser(gctx); err != nil {
		cancel()
		_ = g.Wait()
		return err
	}

	// let the initial snapshots land before the command reads state
	time.Sleep(150 * time.Millisecond)

	ferr := fn(gctx, c)
	cancel()
	if werr := g.Wait(); werr != nil && !errors.Is(werr, context.Canceled) && ferr == nil {
		ferr = werr
	}
	return ferr
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "tally %s (%s)\n", version, commit)
	},
}
