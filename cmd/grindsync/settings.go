package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/grindpulse/grindsync/internal/transfer"
	"github.com/grindpulse/grindsync/internal/ui"
)

var settingsCmd = &cobra.Command{
	Use:     "settings",
	GroupID: "track",
	Short:   "Show or change tracker settings",
	Long: `Show the current awareness, export, and UI settings.

Settings persist locally and, when a remote is configured, sync to your
other devices. Values outside their allowed range are clamped rather
than rejected, and decay thresholds that would be out of order are
repaired.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		cfg := app.ConfigSync.Awareness()
		export := app.ConfigSync.ExportPrefs()
		uiPrefs := app.ConfigSync.UIPrefs()

		fmt.Printf("\n%s\n", ui.RenderHeader("Awareness"))
		fmt.Printf("  problems-per-day    %g\n", cfg.ProblemsPerDay)
		fmt.Printf("  base-rate           %g\n", cfg.BaseRate)
		fmt.Printf("  solved-scaling      %g\n", cfg.BaseSolvedScaling)
		fmt.Printf("  thresholds          %g,%g,%g,%g,%g\n",
			cfg.Thresholds.White, cfg.Thresholds.Green, cfg.Thresholds.Yellow,
			cfg.Thresholds.Red, cfg.Thresholds.DarkRed)
		fmt.Printf("  refresh-interval    %s\n", cfg.RefreshInterval)
		fmt.Printf("  refresh-on-focus    %t\n", cfg.RefreshOnFocus)

		fmt.Printf("\n%s\n", ui.RenderHeader("Export"))
		fmt.Printf("  export-format       %s\n", export.DefaultFormat)
		fmt.Printf("  export-mode         %s\n", export.DefaultMode)

		fmt.Printf("\n%s\n", ui.RenderHeader("UI"))
		fmt.Printf("  theme               %s\n", uiPrefs.Theme)
		var cols []string
		for col, visible := range uiPrefs.ColumnVisibility {
			if visible {
				cols = append(cols, col)
			}
		}
		sort.Strings(cols)
		fmt.Printf("  visible columns     %s\n\n", strings.Join(cols, ", "))
		fmt.Println(ui.RenderFaint("  change with: grindsync settings set <key> <value>"))
		fmt.Println()
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long: `Change one setting. Keys:

  problems-per-day    daily practice commitment (1-50)
  base-rate           decay points per day (0.1-10)
  solved-scaling      how much total solves slow decay (0-1)
  thresholds          five comma-separated bucket boundaries (1-200 each)
  refresh-interval    watch-mode refresh cadence, e.g. 30m, 24h
  refresh-on-focus    true or false
  export-format       default export format
  export-mode         default export mode
  theme               light or dark`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		if err := applySetting(app, key, value); err != nil {
			return err
		}
		if err := app.ConfigSync.Flush(cmd.Context()); err != nil {
			fmt.Printf("%s saved locally; cloud push failed: %v\n", ui.RenderWarn("⚠"), err)
		}
		fmt.Printf("%s %s updated\n", ui.RenderPass("✓"), key)
		return nil
	},
}

func applySetting(app *App, key, value string) error {
	cfg := app.ConfigSync.Awareness()

	parseFloat := func() (float64, error) {
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as a number", value)
		}
		return v, nil
	}

	switch key {
	case "problems-per-day":
		v, err := parseFloat()
		if err != nil {
			return err
		}
		cfg.ProblemsPerDay = v
	case "base-rate":
		v, err := parseFloat()
		if err != nil {
			return err
		}
		cfg.BaseRate = v
	case "solved-scaling":
		v, err := parseFloat()
		if err != nil {
			return err
		}
		cfg.BaseSolvedScaling = v
	case "thresholds":
		parts := strings.Split(value, ",")
		if len(parts) != 5 {
			return fmt.Errorf("thresholds needs five comma-separated values")
		}
		vals := make([]float64, 5)
		for i, part := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return fmt.Errorf("cannot parse threshold %q", part)
			}
			vals[i] = v
		}
		cfg.Thresholds.White, cfg.Thresholds.Green, cfg.Thresholds.Yellow = vals[0], vals[1], vals[2]
		cfg.Thresholds.Red, cfg.Thresholds.DarkRed = vals[3], vals[4]
	case "refresh-interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("cannot parse %q as a duration (e.g. 30m, 24h)", value)
		}
		cfg.RefreshInterval = d
	case "refresh-on-focus":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("refresh-on-focus wants true or false")
		}
		cfg.RefreshOnFocus = b

	case "export-format":
		if _, ok := transfer.ParseFormat(value); !ok {
			return fmt.Errorf("unknown format %q", value)
		}
		export := app.ConfigSync.ExportPrefs()
		export.DefaultFormat = value
		app.ConfigSync.SetExportPrefs(export)
		return nil
	case "export-mode":
		export := app.ConfigSync.ExportPrefs()
		export.DefaultMode = string(transfer.ParseMode(value))
		app.ConfigSync.SetExportPrefs(export)
		return nil
	case "theme":
		if value != "light" && value != "dark" {
			return fmt.Errorf("theme wants light or dark")
		}
		uiPrefs := app.ConfigSync.UIPrefs()
		uiPrefs.Theme = value
		app.ConfigSync.SetUIPrefs(uiPrefs)
		return nil

	default:
		return fmt.Errorf("unknown setting %q", key)
	}

	app.ConfigSync.SetAwareness(cfg)
	return nil
}

func init() {
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}
