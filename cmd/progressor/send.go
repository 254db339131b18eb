package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/progressor/inspector"
	"github.com/srg/progressor/internal/device"
	"github.com/srg/progressor/internal/devicefactory"
	"github.com/srg/progressor/internal/protocol"
	"github.com/srg/progressor/internal/report"
	"github.com/srg/progressor/internal/session"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send <command>",
	Short: "Send a single command to the gauge",
	Long: fmt.Sprintf(`Connect to a gauge, write one command to its control point and print the
decoded reply for queries (version, battery, errors).

Commands: %s
A decimal opcode (100-111) is accepted as well.

add-calibration-point needs the reference weight in kilograms via --weight.`,
		strings.Join(protocol.CommandNames(), ", ")),
	Example: `  progressor send tare
  progressor send battery --address AA:BB:CC:DD:EE:FF
  progressor send add-calibration-point --weight 20
  progressor send save-calibration`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

var (
	sendAddress string
	sendPrefix  string
	sendWeight  float64
	sendWait    time.Duration
)

func init() {
	sendCmd.Flags().StringVarP(&sendAddress, "address", "a", "", "Gauge address (skips discovery)")
	sendCmd.Flags().StringVar(&sendPrefix, "prefix", device.DefaultNamePrefix, "Advertised name prefix used for discovery")
	sendCmd.Flags().Float64Var(&sendWeight, "weight", 0, "Reference weight in kg for add-calibration-point")
	sendCmd.Flags().DurationVar(&sendWait, "wait", 500*time.Millisecond, "How long to wait for a query reply")
}

// commandPayload validates and encodes the payload of cmd
func commandPayload(cmd *cobra.Command, c protocol.Command) ([]byte, error) {
	weightGiven := cmd.Flags().Changed("weight")
	if c != protocol.CmdAddCalibrationPoint {
		if weightGiven {
			return nil, fmt.Errorf("--weight is only valid with %s", protocol.CmdAddCalibrationPoint)
		}
		return nil, nil
	}
	if !weightGiven {
		return nil, fmt.Errorf("%s requires --weight", protocol.CmdAddCalibrationPoint)
	}
	if math.IsNaN(sendWeight) || math.IsInf(sendWeight, 0) || math.Abs(sendWeight) > math.MaxFloat32 {
		return nil, fmt.Errorf("invalid --weight %v", sendWeight)
	}
	return protocol.CalibrationPoint(float32(sendWeight)), nil
}

func runSend(cmd *cobra.Command, args []string) error {
	c, err := protocol.ParseCommand(args[0])
	if err != nil {
		return err
	}
	payload, err := commandPayload(cmd, c)
	if err != nil {
		return err
	}

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("address") {
		cfg.Device.Address = sendAddress
	}
	if cmd.Flags().Changed("prefix") {
		cfg.Device.NamePrefix = sendPrefix
	}
	if cmd.Flags().Changed("wait") {
		cfg.Session.Quiescence = sendWait
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	progress := NewProgressPrinter(out, fmt.Sprintf("Sending %s", c), inspector.PhaseConnecting, inspector.PhaseProcessing).
		WithCountdown(inspector.PhaseScanning, cfg.Device.ScanTimeout)
	progress.Start()
	defer progress.Stop()

	opts := sessionOptions(cfg)
	ex, err := inspector.InspectDevice(ctx, devicefactory.NewScanner(logger), devicefactory.NewConnector(logger),
		inspectOptions(cfg), logger, progress.Callback(),
		func(ctx context.Context, _ device.DeviceInfo, link device.Link) (*session.Exchange, error) {
			return session.New(link, opts, logger).Send(ctx, c, payload)
		})
	progress.Stop()
	if err != nil {
		return connectionLost(err)
	}

	return printReply(out, c, ex, cfg.Session.Quiescence, report.Options{Color: isTerminal(out)})
}

func printReply(w io.Writer, c protocol.Command, ex *session.Exchange, waited time.Duration, opts report.Options) error {
	if err := report.WriteDiagnostics(w, ex.Diagnostics, opts); err != nil {
		return err
	}

	reply := ex.Reply
	var err error
	switch {
	case !c.IsQuery():
		_, err = fmt.Fprintf(w, "Sent %s (%d)\n", c, uint8(c))
	case reply == nil && len(ex.Diagnostics) > 0:
		_, err = fmt.Fprintf(w, "Reply to %s was rejected\n", c)
	case reply == nil:
		_, err = fmt.Fprintf(w, "No reply to %s within %s\n", c, waited)
	case !reply.Attributed():
		_, err = fmt.Fprintf(w, "Unattributed reply: %x\n", reply.Raw)
	case c == protocol.CmdGetAppVersion:
		_, err = fmt.Fprintf(w, "Firmware: %s\n", reply.Version)
	case c == protocol.CmdGetBatteryVoltage:
		_, err = fmt.Fprintf(w, "Battery: %d mV\n", reply.BatteryMillivolts)
	case c == protocol.CmdGetErrorInformation && reply.ErrorInformation == "":
		_, err = fmt.Fprintln(w, "Crash log: empty")
	default:
		_, err = fmt.Fprintf(w, "Crash log: %s\n", reply.ErrorInformation)
	}
	return err
}
