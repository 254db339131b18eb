package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "progressor",
	Short: "Tindeq Progressor force gauge client",
	Long: `Command-line client for the Tindeq Progressor force gauge over Bluetooth Low Energy:

- Discover gauges advertising as "Progressor..."
- Run a measurement session: read firmware version, battery and crash log,
  record weight samples into a CSV log, then put the gauge to sleep
- Send single commands such as tare, clear-errors or a calibration point
- Export recorded logs as a table, CSV or JSON with a summary

Configuration is read from --config (YAML); flags override file values.`,
	Version: fmt.Sprintf("%s (commit %s, built %s)", formatVersion(version), commit, date),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// Silence Cobra's "Error:" prefix - main() prints clean errors
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(measureCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(exportCmd)

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML configuration file")

	// Add -v as a short flag for --version
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
