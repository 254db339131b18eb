package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/progressor/inspector"
	"github.com/srg/progressor/internal/device"
	"github.com/srg/progressor/internal/devicefactory"
	"github.com/srg/progressor/internal/report"
	"github.com/srg/progressor/internal/session"
	"github.com/srg/progressor/pkg/config"
)

// measureCmd represents the measure command
var measureCmd = &cobra.Command{
	Use:   "measure",
	Short: "Run a measurement session",
	Long: `Connect to a gauge and run one measurement session:

  1. subscribe to the data characteristic and open measurements_<session>.csv
  2. read firmware version, battery voltage and crash log
  3. start weight measurement and record samples for --duration
  4. put the gauge to sleep

Without --address the first gauge advertising the name prefix is used.
Ctrl+C stops early; samples recorded so far stay in the log.`,
	Example: `  progressor measure
  progressor measure --duration 30s --log-dir ./sessions
  progressor measure --address AA:BB:CC:DD:EE:FF --format json`,
	Args: cobra.NoArgs,
	RunE: runMeasure,
}

var (
	measureAddress        string
	measurePrefix         string
	measureDuration       time.Duration
	measureQuiescence     time.Duration
	measureLogDir         string
	measureSessionID      string
	measureScanTimeout    time.Duration
	measureConnectTimeout time.Duration
	measureFormat         string
	measureSamples        bool
)

func init() {
	measureCmd.Flags().StringVarP(&measureAddress, "address", "a", "", "Gauge address (skips discovery)")
	measureCmd.Flags().StringVar(&measurePrefix, "prefix", device.DefaultNamePrefix, "Advertised name prefix used for discovery")
	measureCmd.Flags().DurationVarP(&measureDuration, "duration", "d", 10*time.Second, "Measurement duration")
	measureCmd.Flags().DurationVar(&measureQuiescence, "quiescence", 500*time.Millisecond, "Wait after each device query")
	measureCmd.Flags().StringVarP(&measureLogDir, "log-dir", "o", ".", "Directory for the sample log")
	measureCmd.Flags().StringVar(&measureSessionID, "session-id", "", "Session id used in the log name (default: timestamp)")
	measureCmd.Flags().DurationVar(&measureScanTimeout, "scan-timeout", 10*time.Second, "Discovery timeout")
	measureCmd.Flags().DurationVar(&measureConnectTimeout, "connect-timeout", 30*time.Second, "Connection timeout")
	measureCmd.Flags().StringVarP(&measureFormat, "format", "f", "table", "Report format (table, csv, json)")
	measureCmd.Flags().BoolVar(&measureSamples, "samples", false, "List every sample in the table report")
}

// applyMeasureFlags overrides config values with flags given on the command line
func applyMeasureFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("address") {
		cfg.Device.Address = measureAddress
	}
	if flags.Changed("prefix") {
		cfg.Device.NamePrefix = measurePrefix
	}
	if flags.Changed("duration") {
		cfg.Session.MeasurementDuration = measureDuration
	}
	if flags.Changed("quiescence") {
		cfg.Session.Quiescence = measureQuiescence
	}
	if flags.Changed("log-dir") {
		cfg.Log.Dir = measureLogDir
	}
	if flags.Changed("scan-timeout") {
		cfg.Device.ScanTimeout = measureScanTimeout
	}
	if flags.Changed("connect-timeout") {
		cfg.Device.ConnectTimeout = measureConnectTimeout
	}
	if flags.Changed("format") {
		cfg.OutputFormat = measureFormat
	}
}

// inspectOptions maps the device section of cfg
func inspectOptions(cfg *config.Config) *inspector.InspectOptions {
	return &inspector.InspectOptions{
		Address:        cfg.Device.Address,
		NamePrefix:     cfg.Device.NamePrefix,
		ScanTimeout:    cfg.Device.ScanTimeout,
		ConnectTimeout: cfg.Device.ConnectTimeout,
	}
}

// sessionOptions maps the session and log sections of cfg
func sessionOptions(cfg *config.Config) session.Options {
	return session.Options{
		Quiescence:          cfg.Session.Quiescence,
		MeasurementDuration: cfg.Session.MeasurementDuration,
		NotificationBuffer:  cfg.Session.NotificationBuffer,
		LogDir:              cfg.Log.Dir,
	}
}

func runMeasure(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	applyMeasureFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	format, err := report.ParseFormat(cfg.OutputFormat)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	progress := NewProgressPrinter(out, "Measuring", inspector.PhaseConnecting, inspector.PhaseProcessing).
		WithCountdown(inspector.PhaseScanning, cfg.Device.ScanTimeout).
		WithCountdown(session.PhaseMeasurementActive.String(), cfg.Session.MeasurementDuration)
	progress.Start()
	defer progress.Stop()
	onProgress := progress.Callback()

	opts := sessionOptions(cfg)
	opts.SessionID = measureSessionID
	opts.OnPhase = func(p session.Phase) { onProgress(p.String()) }

	var gauge device.DeviceInfo
	res, err := inspector.InspectDevice(ctx, devicefactory.NewScanner(logger), devicefactory.NewConnector(logger),
		inspectOptions(cfg), logger, onProgress,
		func(ctx context.Context, info device.DeviceInfo, link device.Link) (*session.Result, error) {
			gauge = info
			return session.New(link, opts, logger).Run(ctx)
		})
	progress.Stop()

	if res == nil {
		return err
	}
	if err != nil {
		logger.WithFields(logrus.Fields{
			"phase":   res.LastPhase.String(),
			"samples": res.Samples,
		}).WithError(err).Warn("measurement ended early")
	}

	if printErr := printMeasurement(out, gauge, res, format, isTerminal(out)); printErr != nil && err == nil {
		err = printErr
	}
	if errors.Is(err, context.Canceled) {
		fmt.Fprintf(out, "Measurement cancelled; %d sample(s) kept in %s\n", res.Samples, res.LogPath)
	}
	return connectionLost(err)
}

// printMeasurement reports what the session reached; machine formats get the log only
func printMeasurement(w io.Writer, gauge device.DeviceInfo, res *session.Result, format report.Format, colored bool) error {
	if res.LogPath == "" {
		return nil
	}

	var rep *report.Report
	if res.Samples > 0 {
		loaded, err := report.Load(res.LogPath)
		if err != nil {
			return err
		}
		rep = loaded
	} else {
		rep = report.New(nil, res.SessionID, res.LogPath)
	}
	rep.SessionID = res.SessionID

	opts := report.Options{Color: colored, Samples: measureSamples}
	if format != report.FormatTable {
		return report.Render(w, rep, format, opts)
	}

	fmt.Fprintf(w, "Connected to %s (%s)\n", gauge.DisplayName(), gauge.Address)
	if res.LastPhase > session.PhaseSubscribed {
		if err := report.WriteGauge(w, res.Gauge, opts); err != nil {
			return err
		}
	}
	if err := report.WriteWarnings(w, res, opts); err != nil {
		return err
	}
	return report.Render(w, rep, report.FormatTable, opts)
}
