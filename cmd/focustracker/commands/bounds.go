package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bryanchriswhite/FocusTracker/internal/config"
	"github.com/bryanchriswhite/FocusTracker/internal/display"
	"github.com/bryanchriswhite/FocusTracker/internal/window"
	"github.com/spf13/cobra"
)

var boundsCmd = &cobra.Command{
	Use:   "bounds",
	Short: "Show the virtual screen and a planned capture region",
	Long: `Print the union of all displays. With --window-index, also print the
capture region that 'run' would use for that window.`,
	Example: `  # Screen bounds only
  focustracker bounds

  # Region for window 2 at the configured capture size
  focustracker bounds --window-index 2 --format json`,
	RunE: runBounds,
}

var (
	boundsWindow int
	boundsFormat string
)

func init() {
	rootCmd.AddCommand(boundsCmd)

	boundsCmd.Flags().IntVar(&boundsWindow, "window-index", -1, "window to plan a capture region for")
	boundsCmd.Flags().StringVarP(&boundsFormat, "format", "f", "text", "output format (text or json)")
}

type boundsReport struct {
	Screen display.ScreenBounds `json:"screen"`
	Window string               `json:"window,omitempty"`
	Region *display.Region      `json:"region,omitempty"`
}

func runBounds(cmd *cobra.Command, args []string) error {
	bounds, err := display.QueryBounds()
	if err != nil {
		return fmt.Errorf("failed to query screen bounds: %w", err)
	}
	report := boundsReport{Screen: bounds}

	if boundsWindow >= 0 {
		configMgr, err := config.NewManager(GetConfigFile())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg, err := configMgr.Get()
		if err != nil {
			return err
		}

		src, err := window.NewSource()
		if err != nil {
			return fmt.Errorf("failed to open window source: %w", err)
		}
		defer src.Close()

		windows, err := src.ListWindows()
		if err != nil {
			return fmt.Errorf("failed to list windows: %w", err)
		}
		if boundsWindow >= len(windows) {
			return fmt.Errorf("%w: index %d out of %d windows", window.ErrInvalidSelection, boundsWindow, len(windows))
		}
		win := windows[boundsWindow]

		region, err := display.PlanRegion(win.Box, cfg.Capture.Width, cfg.Capture.Height, bounds)
		if err != nil {
			return err
		}
		report.Window = win.Title
		report.Region = &region
	}

	switch boundsFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	case "text":
		fmt.Printf("Screen:  %s\n", report.Screen)
		if report.Region != nil {
			fmt.Printf("Window:  %s\n", report.Window)
			fmt.Printf("Region:  %s\n", report.Region)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (use 'text' or 'json')", boundsFormat)
	}
}
