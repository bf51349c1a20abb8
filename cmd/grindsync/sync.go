package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/grindpulse/grindsync/internal/cloud"
	"github.com/grindpulse/grindsync/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Push local progress and pull remote changes",
	Long: `Run a full sync cycle against the configured remote: push every
problem with progress, then pull and reconcile remote documents.

Versions are compared by timestamp with a small tolerance; edits that
genuinely raced on two devices surface as conflicts. On a terminal each
conflict is resolved with its own prompt; --resolve skips the prompts
and applies one choice to the whole run (also the non-interactive
behavior, defaulting to local):

  --resolve=local    keep the local version
  --resolve=remote   adopt the remote version
  --resolve=merge    combine both (solved wins, comments concatenate)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		resolve, _ := cmd.Flags().GetString("resolve")
		choice, err := parseResolution(resolve)
		if err != nil {
			return err
		}

		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()
		if err := app.requireEngine(); err != nil {
			return err
		}

		ctx := cmd.Context()
		conflicts, err := app.Engine.ForceSync(ctx)
		if err != nil {
			return err
		}

		if len(conflicts) > 0 {
			perItem := !cmd.Flags().Changed("resolve") && term.IsTerminal(int(os.Stdin.Fd()))
			fmt.Printf("%s %d conflict(s):\n", ui.RenderWarn("⚠"), len(conflicts))
			choices := make(map[string]cloud.Resolution, len(conflicts))
			for _, c := range conflicts {
				fmt.Printf("  %s\n", ui.RenderHeader(c.Local.Name))
				fmt.Printf("    local:  solved=%t time=%s date=%s\n", c.Local.Solved, c.Local.TimeToSolve, c.Local.SolvedDate)
				fmt.Printf("    remote: solved=%t time=%s date=%s\n", c.Remote.Solved, c.Remote.TimeToSolve, c.Remote.SolvedDate)
				picked := choice
				if perItem {
					if picked, err = promptResolution(c.Local.Name); err != nil {
						return err
					}
				}
				choices[c.Local.Name] = picked
			}
			if err := app.Engine.ResolveConflicts(ctx, conflicts, choices); err != nil {
				return err
			}
			if perItem {
				fmt.Printf("%s Conflicts resolved\n", ui.RenderPass("✓"))
			} else {
				fmt.Printf("%s Resolved with %s\n", ui.RenderPass("✓"), resolve)
			}
		}

		state, stateErr := app.Engine.State()
		if stateErr != nil {
			return stateErr
		}
		fmt.Printf("%s Sync complete (%s)\n", ui.RenderPass("✓"), state)
		return nil
	},
}

// promptResolution asks for one conflict's resolution interactively.
func promptResolution(name string) (cloud.Resolution, error) {
	choice := cloud.ResolveKeepLocal
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[cloud.Resolution]().
			Title(fmt.Sprintf("Resolve %q", name)).
			Options(
				huh.NewOption("keep local", cloud.ResolveKeepLocal),
				huh.NewOption("keep remote", cloud.ResolveKeepRemote),
				huh.NewOption("merge", cloud.ResolveMerge),
			).
			Value(&choice),
	))
	if err := form.Run(); err != nil {
		return 0, fmt.Errorf("conflict resolution aborted: %w", err)
	}
	return choice, nil
}

func parseResolution(s string) (cloud.Resolution, error) {
	switch s {
	case "", "local":
		return cloud.ResolveKeepLocal, nil
	case "remote":
		return cloud.ResolveKeepRemote, nil
	case "merge":
		return cloud.ResolveMerge, nil
	default:
		return 0, fmt.Errorf("unknown resolution %q (use local, remote, or merge)", s)
	}
}

var clearCloudCmd = &cobra.Command{
	Use:     "clear-cloud-data",
	GroupID: "sync",
	Short:   "Delete all progress stored in the cloud",
	Long: `Delete every progress document from the cloud account. Local data is
untouched; the next push re-uploads whatever is still tracked locally.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("this deletes all cloud progress; re-run with --yes to confirm")
		}

		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()
		if err := app.requireEngine(); err != nil {
			return err
		}

		if err := app.Engine.ClearCloudData(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("%s Cloud progress deleted\n", ui.RenderPass("✓"))
		return nil
	},
}

func init() {
	syncCmd.Flags().String("resolve", "local", "conflict resolution: local, remote, or merge")
	clearCloudCmd.Flags().Bool("yes", false, "confirm deletion")
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(clearCloudCmd)
}
