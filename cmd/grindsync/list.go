package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/grindpulse/grindsync/internal/awareness"
	"github.com/grindpulse/grindsync/internal/model"
	"github.com/grindpulse/grindsync/internal/ui"
)

var listCmd = &cobra.Command{
	Use:     "list [set]",
	GroupID: "track",
	Short:   "List problems with their awareness scores",
	Long: `List problems across all sets, or one set, with awareness coloring.

The awareness score measures how far a solved problem has decayed from
memory: low and white means fresh, climbing through green, yellow and
red as days pass, with fully decayed problems flashing. Unsolved
problems list without a score.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		unsolvedOnly, _ := cmd.Flags().GetBool("unsolved")
		cfg := app.ConfigSync.Awareness()
		totalSolved, _ := app.Tracker.UniqueProgressCounts()
		now := time.Now()

		for _, set := range app.Tracker.Sets() {
			if len(args) == 1 && set.Key != args[0] {
				continue
			}
			solved, total := app.Tracker.SetProgressCounts(set.Key)
			fmt.Printf("\n%s  %s\n", ui.RenderHeader(set.Key), ui.RenderFaint(fmt.Sprintf("%d/%d solved", solved, total)))
			for _, p := range set.Problems {
				if unsolvedOnly && p.Solved {
					continue
				}
				printProblem(p, cfg, totalSolved, now)
			}
		}
		fmt.Println()
		return nil
	},
}

func printProblem(p *model.Problem, cfg awareness.Config, totalSolved int, now time.Time) {
	res := awareness.Score(p, cfg, totalSolved, now)
	bucket := awareness.BucketFor(res.Score, cfg.Thresholds)

	score := "unsolved"
	switch {
	case res.InvalidDate:
		score = "bad date"
	case p.Solved && res.Score < 0:
		score = "no date"
	case p.Solved:
		score = fmt.Sprintf("%.1f", res.Score)
	}

	line := fmt.Sprintf("  %-40s %-8s %-10s %s",
		p.Name, ui.RenderDifficulty(p.Difficulty), score,
		ui.RenderFaint(ui.FormatRelative(p.SolvedDate, now)))
	fmt.Println(ui.RenderBucket(bucket, line))
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "track",
	Short:   "Show overall progress and sync state",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		fmt.Printf("\n%s\n\n", ui.RenderHeader("GrindPulse status"))
		for _, set := range app.Tracker.Sets() {
			solved, total := app.Tracker.SetProgressCounts(set.Key)
			fmt.Printf("  %-20s %d/%d solved\n", set.Key, solved, total)
		}
		solved, total := app.Tracker.UniqueProgressCounts()
		fmt.Printf("  %-20s %d/%d solved\n", "unique problems", solved, total)

		fmt.Println()
		if app.Engine == nil {
			fmt.Printf("  Cloud: %s\n\n", ui.RenderFaint("not configured"))
			return nil
		}
		state, stateErr := app.Engine.State()
		fmt.Printf("  Cloud: %s\n", ui.RenderAccent(string(state)))
		if stateErr != nil {
			fmt.Printf("  Last error: %s\n", ui.RenderError(stateErr.Error()))
		}
		if last := app.Engine.LastSync(); !last.IsZero() {
			fmt.Printf("  Last sync: %s\n", ui.FormatRelative(last.Format(time.RFC3339), time.Now()))
		}
		fmt.Println()
		return nil
	},
}

func init() {
	listCmd.Flags().Bool("unsolved", false, "only list unsolved problems")
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
}
