package main

import (
	"github.com/spf13/cobra"
	"github.com/srg/progressor/internal/report"
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export <measurements.csv>",
	Short: "Read back a sample log",
	Long: `Read a sample log written by measure and print it with a summary
(sample count, peak, mean weight and duration). Time is the device timestamp
in seconds.`,
	Example: `  progressor export measurements_2026-10-19_14-03-07-1b4e28ba.csv
  progressor export --samples measurements_*.csv
  progressor export -f json measurements_2026-10-19_14-03-07-1b4e28ba.csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExport,
}

var (
	exportFormat  string
	exportSamples bool
)

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "table", "Output format (table, csv, json)")
	exportCmd.Flags().BoolVar(&exportSamples, "samples", false, "List every sample in the table output")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	name := cfg.OutputFormat
	if cmd.Flags().Changed("format") {
		name = exportFormat
	}
	format, err := report.ParseFormat(name)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	out := cmd.OutOrStdout()
	opts := report.Options{Color: isTerminal(out), Samples: exportSamples}
	for i, path := range args {
		rep, err := report.Load(path)
		if err != nil {
			return err
		}
		logger.WithField("path", path).WithField("samples", rep.Summary.Samples).Debug("Loaded sample log")

		if i > 0 && format == report.FormatTable {
			if _, err := out.Write([]byte("\n")); err != nil {
				return err
			}
		}
		if err := report.Render(out, rep, format, opts); err != nil {
			return err
		}
	}
	return nil
}
