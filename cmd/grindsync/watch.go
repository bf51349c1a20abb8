package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/grindpulse/grindsync/internal/cloud"
	"github.com/grindpulse/grindsync/internal/daemon"
	"github.com/grindpulse/grindsync/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "sync",
	Short:   "Run in the foreground, watching files and syncing live",
	Long: `Run grindsync in the foreground:

  1. Watches the sets directory and reloads changed *.tsv files
  2. Debounces and pushes progress edits to the cloud
  3. Applies remote edits from other devices as they arrive
  4. Refreshes awareness state on the configured cadence

Press Ctrl+C to stop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if app.Engine != nil {
			conflicts, err := app.Engine.SignIn(ctx)
			if err != nil {
				return fmt.Errorf("initial sync failed: %w", err)
			}
			if len(conflicts) > 0 {
				// Watch mode is unattended; keep local and move on.
				fmt.Printf("%s %d conflict(s) resolved keep-local; run 'grindsync sync' to review\n",
					ui.RenderWarn("⚠"), len(conflicts))
				if err := app.Engine.ResolveConflicts(ctx, conflicts, nil); err != nil {
					return err
				}
			}
			app.Engine.OnStateChange(func(s cloud.State) {
				fmt.Printf("%s cloud: %s\n", ui.RenderFaint(time.Now().Format("15:04:05")), string(s))
			})
			if err := app.ConfigSync.PullAll(ctx); err != nil {
				app.Logger.Printf("config pull failed: %v", err)
			}
			go watchLoop(ctx, 5*time.Second, app.Logger, app.ConfigSync.Watch)
		}

		awarenessCfg := app.ConfigSync.Awareness()
		dcfg := daemon.DefaultConfig()
		dcfg.RefreshInterval = awarenessCfg.RefreshInterval
		dcfg.Logger = app.Logger

		d, err := daemon.New(app.SetsDir, app.Tracker, app.Engine, dcfg)
		if err != nil {
			return err
		}
		if app.Engine != nil {
			d.OnConflicts(func(conflicts []cloud.Conflict) {
				fmt.Printf("%s %d conflict(s) resolved keep-local; run 'grindsync sync' to review\n",
					ui.RenderWarn("⚠"), len(conflicts))
				if err := app.Engine.ResolveConflicts(ctx, conflicts, nil); err != nil {
					app.Logger.Printf("conflict resolution failed: %v", err)
				}
			})
		}
		d.OnRefresh(func() {
			solved, total := app.Tracker.UniqueProgressCounts()
			fmt.Printf("%s refreshed: %d/%d solved\n",
				ui.RenderFaint(time.Now().Format("15:04:05")), solved, total)
		})

		fmt.Printf("%s Watching %s\n", ui.RenderAccent("▶"), app.SetsDir)
		if app.Engine == nil {
			fmt.Println(ui.RenderFaint("  cloud sync off (no remote configured)"))
		}
		fmt.Println("Press Ctrl+C to stop")

		if err := d.Start(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

// watchLoop re-runs the config subscription until ctx ends, pausing
// between attempts. A subscription that closes cleanly re-dials on the
// same cadence as a failed one, never in a hot loop.
func watchLoop(ctx context.Context, delay time.Duration, logger *log.Logger, watch func(context.Context) error) {
	for ctx.Err() == nil {
		if err := watch(ctx); err != nil && ctx.Err() == nil {
			logger.Printf("config watch ended: %v", err)
		}
		if ctx.Err() == nil {
			time.Sleep(delay)
		}
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
