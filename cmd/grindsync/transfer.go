package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/grindpulse/grindsync/internal/transfer"
	"github.com/grindpulse/grindsync/internal/ui"
)

var exportCmd = &cobra.Command{
	Use:     "export <set>",
	GroupID: "data",
	Short:   "Export a problem set",
	Long: `Export one problem set to stdout or a file.

Formats: tsv, csv, json, xml, yaml. Modes:
  full      problem definitions and your progress
  problems  definitions only, for sharing a set
  user      progress only, for moving your history

Format and mode default to your saved export preferences.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		prefs := app.ConfigSync.ExportPrefs()
		formatFlag, _ := cmd.Flags().GetString("format")
		if formatFlag == "" {
			formatFlag = prefs.DefaultFormat
		}
		modeFlag, _ := cmd.Flags().GetString("mode")
		if modeFlag == "" {
			modeFlag = prefs.DefaultMode
		}

		format, ok := transfer.ParseFormat(formatFlag)
		if !ok {
			return fmt.Errorf("unknown format %q (use tsv, csv, json, xml, or yaml)", formatFlag)
		}
		mode := transfer.ParseMode(modeFlag)

		for _, set := range app.Tracker.Sets() {
			if set.Key != args[0] {
				continue
			}
			out, err := transfer.Export(set, format, mode, time.Now())
			if err != nil {
				return err
			}
			if path, _ := cmd.Flags().GetString("output"); path != "" {
				if err := os.WriteFile(path, out, 0o644); err != nil {
					return fmt.Errorf("failed to write export: %w", err)
				}
				fmt.Printf("%s Exported %s (%s, %s mode) to %s\n", ui.RenderPass("✓"), set.Key, format, mode, path)
				return nil
			}
			os.Stdout.Write(out)
			return nil
		}
		return fmt.Errorf("unknown set %q", args[0])
	},
}

var importCmd = &cobra.Command{
	Use:     "import <file>",
	GroupID: "data",
	Short:   "Import a problem set or progress file",
	Long: `Import problems or progress from a file in any export format. The
format is detected from the extension and content; the target set comes
from the payload's fileKey, the --set flag, or the file name.

A payload row that disagrees with your current data is a conflict. On a
terminal each conflict gets its own prompt; --on-conflict skips the
prompts and applies one policy to all of them (also the non-interactive
behavior, defaulting to overwrite):

  overwrite    adopt the imported values
  skip         keep the existing values
  keep-latest  adopt only rows with a newer solved date

Before anything is overwritten the set's progress is snapshotted;
"grindsync undo-import <set>" restores it for up to an hour.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read import file: %w", err)
		}

		format := transfer.DetectFormat(args[0], content)
		doc, err := transfer.Parse(content, format)
		if err != nil {
			return err
		}
		if len(doc.Rows) == 0 {
			return fmt.Errorf("no problems found in %s", args[0])
		}

		setKey, _ := cmd.Flags().GetString("set")
		if setKey == "" {
			setKey = doc.FileKey
		}
		if setKey == "" {
			setKey = transfer.FileKeyFromFilename(args[0])
		}

		mode := doc.Mode
		if modeFlag, _ := cmd.Flags().GetString("mode"); modeFlag != "" {
			mode = transfer.ParseMode(modeFlag)
		}

		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		policy, _ := cmd.Flags().GetString("on-conflict")
		resolution, err := parseImportResolution(policy)
		if err != nil {
			return err
		}

		im := app.Importer()
		conflicts := im.DetectConflicts(setKey, doc.Rows, mode)
		resolutions := make(map[string]transfer.Resolution, len(conflicts))
		if len(conflicts) > 0 {
			perItem := !cmd.Flags().Changed("on-conflict") && term.IsTerminal(int(os.Stdin.Fd()))
			if perItem {
				fmt.Printf("%s %d conflict(s):\n", ui.RenderWarn("⚠"), len(conflicts))
			} else {
				fmt.Printf("%s %d conflict(s), resolving with %q:\n", ui.RenderWarn("⚠"), len(conflicts), policy)
			}
			for _, c := range conflicts {
				fmt.Printf("  %s\n", c.Name)
				picked := resolution
				if perItem {
					if picked, err = promptImportResolution(c.Name); err != nil {
						return err
					}
				}
				resolutions[c.Name] = picked
			}
		}

		res, err := im.Apply(cmd.Context(), setKey, doc.Rows, mode, resolutions)
		if err != nil {
			return err
		}
		app.pushAfterEdit(cmd.Context())

		fmt.Printf("%s Imported into %s (%s, %s mode): %d added, %d updated, %d skipped\n",
			ui.RenderPass("✓"), setKey, format, mode, res.Added, res.Updated, res.Skipped)
		if res.BackupID != 0 {
			fmt.Printf("  undo with: grindsync undo-import %s\n", setKey)
		}
		return nil
	},
}

// promptImportResolution asks for one import conflict's resolution.
func promptImportResolution(name string) (transfer.Resolution, error) {
	choice := transfer.ResolveOverwrite
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[transfer.Resolution]().
			Title(fmt.Sprintf("Resolve %q", name)).
			Options(
				huh.NewOption("overwrite", transfer.ResolveOverwrite),
				huh.NewOption("skip", transfer.ResolveSkip),
				huh.NewOption("keep latest", transfer.ResolveKeepLatest),
			).
			Value(&choice),
	))
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("import aborted: %w", err)
	}
	return choice, nil
}

func parseImportResolution(s string) (transfer.Resolution, error) {
	switch s {
	case "", "overwrite":
		return transfer.ResolveOverwrite, nil
	case "skip":
		return transfer.ResolveSkip, nil
	case "keep-latest":
		return transfer.ResolveKeepLatest, nil
	default:
		return "", fmt.Errorf("unknown conflict policy %q (use overwrite, skip, or keep-latest)", s)
	}
}

var undoImportCmd = &cobra.Command{
	Use:     "undo-import <set>",
	GroupID: "data",
	Short:   "Restore a set's progress from the last import snapshot",
	Long: `Restore a set's progress to the snapshot taken before the most recent
import. Snapshots expire after one hour.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Importer().Undo(cmd.Context(), args[0]); err != nil {
			return err
		}
		app.pushAfterEdit(cmd.Context())
		fmt.Printf("%s Restored %s from the pre-import snapshot\n", ui.RenderPass("✓"), args[0])
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", "", "export format: tsv, csv, json, xml, yaml")
	exportCmd.Flags().String("mode", "", "export mode: full, problems, user")
	exportCmd.Flags().StringP("output", "o", "", "write to file instead of stdout")
	importCmd.Flags().String("set", "", "target set key (default from payload or file name)")
	importCmd.Flags().String("mode", "", "import mode override: full, problems, user")
	importCmd.Flags().String("on-conflict", "overwrite", "conflict policy: overwrite, skip, keep-latest")
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(undoImportCmd)
}
