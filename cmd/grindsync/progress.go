package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/grindpulse/grindsync/internal/model"
	"github.com/grindpulse/grindsync/internal/tracker"
	"github.com/grindpulse/grindsync/internal/ui"
)

var solveCmd = &cobra.Command{
	Use:     "solve <problem name>",
	GroupID: "track",
	Short:   "Mark a problem solved",
	Long: `Mark a problem solved. The solve propagates to every set containing a
problem with the same name, and the solved date is stamped with the
current time unless --date provides one.

Use --undo to mark the problem unsolved again; that clears the solved
date everywhere too.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.Join(args, " ")
		undo, _ := cmd.Flags().GetBool("undo")
		date, _ := cmd.Flags().GetString("date")

		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		if date != "" {
			if _, ok := model.ParseSolvedDate(date); !ok {
				return fmt.Errorf("cannot parse date %q (use ISO 8601, e.g. 2026-03-01)", date)
			}
		}

		if err := app.Tracker.Apply(tracker.SetSolved{Name: name, Solved: !undo}); err != nil {
			return err
		}
		if date != "" && !undo {
			if err := app.Tracker.Apply(tracker.SetSolvedDate{Name: name, Date: date}); err != nil {
				return err
			}
		}
		app.pushAfterEdit(cmd.Context())

		sets := app.Tracker.Index().SetsFor(name)
		if undo {
			fmt.Printf("%s Marked %q unsolved\n", ui.RenderPass("✓"), name)
		} else {
			fmt.Printf("%s Marked %q solved\n", ui.RenderPass("✓"), name)
		}
		if len(sets) > 1 {
			fmt.Printf("  propagated to %d sets: %s\n", len(sets), strings.Join(sets, ", "))
		}
		return nil
	},
}

var timeCmd = &cobra.Command{
	Use:     "time <problem name> <minutes>",
	GroupID: "track",
	Short:   "Record how long a problem took to solve",
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		minutes := args[len(args)-1]
		name := strings.Join(args[:len(args)-1], " ")
		if _, ok := model.ParseMinutes(minutes); !ok {
			return fmt.Errorf("cannot parse %q as minutes", minutes)
		}

		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Tracker.Apply(tracker.SetTime{Name: name, Minutes: minutes}); err != nil {
			return err
		}
		app.pushAfterEdit(cmd.Context())
		fmt.Printf("%s Recorded %s min for %q\n", ui.RenderPass("✓"), minutes, name)
		return nil
	},
}

var commentCmd = &cobra.Command{
	Use:     "comment <problem name> <text>",
	GroupID: "track",
	Short:   "Attach a comment to a problem",
	Long: `Attach a comment to a problem. An empty text clears the comment.
Comments propagate across duplicate sets like every other progress
field.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		text := strings.Join(args[1:], " ")

		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Tracker.Apply(tracker.SetComments{Name: name, Comments: text}); err != nil {
			return err
		}
		app.pushAfterEdit(cmd.Context())
		fmt.Printf("%s Updated comment on %q\n", ui.RenderPass("✓"), name)
		return nil
	},
}

func init() {
	solveCmd.Flags().Bool("undo", false, "mark the problem unsolved instead")
	solveCmd.Flags().String("date", "", "solved date override (ISO 8601)")
	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(timeCmd)
	rootCmd.AddCommand(commentCmd)
}
