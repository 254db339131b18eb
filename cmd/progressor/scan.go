package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/progressor/internal/device"
	"github.com/srg/progressor/internal/devicefactory"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for Progressor gauges",
	Long: `Scan for Bluetooth Low Energy devices whose advertised name starts with the
configured prefix ("Progressor" by default) and list them with their address and
signal strength. Use the address with --address to skip discovery later.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

var (
	scanDuration time.Duration
	scanFormat   string
	scanPrefix   string
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 10*time.Second, "Scan duration")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
	scanCmd.Flags().StringVar(&scanPrefix, "prefix", device.DefaultNamePrefix, "Advertised name prefix (case-sensitive)")
}

// scanEntry is one discovered gauge as printed by scan
type scanEntry struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	RSSI    int    `json:"rssi"`
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	format := cfg.OutputFormat
	if cmd.Flags().Changed("format") {
		format = scanFormat
	}
	if format != "table" && format != "json" {
		return fmt.Errorf("invalid format '%s': must be one of [table json]", format)
	}
	if cmd.Flags().Changed("duration") {
		cfg.Device.ScanTimeout = scanDuration
	}
	if cmd.Flags().Changed("prefix") {
		cfg.Device.NamePrefix = scanPrefix
	}
	if cfg.Device.ScanTimeout <= 0 {
		return fmt.Errorf("scan duration must be positive, got %s", cfg.Device.ScanTimeout)
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	entries, err := scanGauges(ctx, logger, device.DiscoverOptions{
		NamePrefix: cfg.Device.NamePrefix,
		Timeout:    cfg.Device.ScanTimeout,
	}, NewProgressPrinter(out, "Scanning for gauges", "Scanning"))
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("scan failed")
		return err
	}

	if format == "json" {
		return displayGaugesJSON(out, entries)
	}
	return displayGaugesTable(out, entries, isTerminal(out))
}

// scanGauges collects every matching gauge until the scan timeout, strongest first.
// Devices found before a cancellation are still returned.
func scanGauges(ctx context.Context, logger *logrus.Logger, opts device.DiscoverOptions, progress *ProgressPrinter) ([]scanEntry, error) {
	progress.WithCountdown("Scanning", opts.Timeout)
	progress.Start()
	defer progress.Stop()

	var (
		mu      sync.Mutex
		entries []scanEntry
	)
	err := devicefactory.NewScanner(logger).Scan(ctx, opts, func(info device.DeviceInfo) {
		mu.Lock()
		defer mu.Unlock()
		entries = append(entries, scanEntry{Name: info.Name, Address: info.Address, RSSI: info.RSSI})
	})

	mu.Lock()
	defer mu.Unlock()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].RSSI > entries[j].RSSI
	})
	return entries, err
}

func displayGaugesTable(w io.Writer, entries []scanEntry, colored bool) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No gauges discovered")
		return err
	}

	strong := color.New(color.FgGreen)
	weak := color.New(color.FgYellow)
	if colored {
		strong.EnableColor()
		weak.EnableColor()
	} else {
		strong.DisableColor()
		weak.DisableColor()
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tADDRESS\tRSSI")
	fmt.Fprintln(tw, strings.Repeat("-", 50))
	for _, e := range entries {
		rssi := fmt.Sprintf("%d dBm", e.RSSI)
		if e.RSSI >= -70 {
			rssi = strong.Sprint(rssi)
		} else {
			rssi = weak.Sprint(rssi)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, e.Address, rssi)
	}
	return tw.Flush()
}

func displayGaugesJSON(w io.Writer, entries []scanEntry) error {
	if entries == nil {
		entries = []scanEntry{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(entries)
}
