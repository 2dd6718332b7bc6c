package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/bryanchriswhite/FocusTracker/internal/window"
	"github.com/spf13/cobra"
)

var windowsCmd = &cobra.Command{
	Use:     "windows",
	Aliases: []string{"ls"},
	Short:   "List top-level windows",
	Long: `List the top-level windows the window source can see. The index printed
here is the one 'focustracker run --window-index' expects.`,
	Example: `  # List titled windows as the run prompt shows them
  focustracker windows

  # Every window with geometry
  focustracker windows --all

  # JSON output
  focustracker windows --format json`,
	RunE: runWindows,
}

var (
	windowsFormat string
	windowsAll    bool
)

func init() {
	rootCmd.AddCommand(windowsCmd)

	windowsCmd.Flags().StringVarP(&windowsFormat, "format", "f", "prompt", "output format (prompt, table or json)")
	windowsCmd.Flags().BoolVarP(&windowsAll, "all", "a", false, "include untitled windows in table output")
}

func runWindows(cmd *cobra.Command, args []string) error {
	src, err := window.NewSource()
	if err != nil {
		return fmt.Errorf("failed to open window source: %w", err)
	}
	defer src.Close()

	windows, err := src.ListWindows()
	if err != nil {
		return fmt.Errorf("failed to list windows: %w", err)
	}

	switch windowsFormat {
	case "prompt":
		window.PrintWindows(os.Stdout, windows)
		return nil
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(windows)
	case "table":
		return printWindowsTable(windows)
	default:
		return fmt.Errorf("unsupported format: %s (use 'prompt', 'table' or 'json')", windowsFormat)
	}
}

func printWindowsTable(windows []window.Info) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "INDEX\tTITLE\tCLASS\tPID\tGEOMETRY")
	fmt.Fprintln(w, "-----\t-----\t-----\t---\t--------")

	for i, win := range windows {
		if win.Title == "" && !windowsAll {
			continue
		}
		b := win.Box
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%dx%d at (%d, %d)\n",
			i, win.Title, win.Class, win.PID, b.Right-b.Left, b.Bottom-b.Top, b.Left, b.Top)
	}

	return nil
}
