package inspector

import (
	"context"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/progressor/internal/device"
)

// Progress phases reported through ProgressCallback
const (
	PhaseScanning   = "Scanning"
	PhaseConnecting = "Connecting"
	PhaseConnected  = "Connected"
	PhaseProcessing = "Processing results"
	PhaseFailed     = "Failed"
)

// ProgressCallback is called when the inspection phase changes
type ProgressCallback func(phase string)

// InspectOptions defines how the gauge is found and reached
type InspectOptions struct {
	// Address skips discovery when set
	Address        string
	NamePrefix     string        `default:"Progressor"`
	ScanTimeout    time.Duration `default:"10s"`
	ConnectTimeout time.Duration `default:"30s"`
}

// InspectCallback processes a connected gauge and produces output of type R
type InspectCallback[R any] func(ctx context.Context, info device.DeviceInfo, link device.Link) (R, error)

// InspectDevice finds the gauge (unless opts.Address is set), connects to it and runs
// callback with the live link. The link is always disconnected before returning, also
// when callback fails or ctx is cancelled.
func InspectDevice[R any](ctx context.Context, scanner device.Scanner, connector device.Connector, opts *InspectOptions, logger *logrus.Logger, progressCallback ProgressCallback, callback InspectCallback[R]) (R, error) {
	var zero R
	if opts == nil {
		opts = &InspectOptions{}
	}
	defaults.SetDefaults(opts)
	if logger == nil {
		logger = logrus.New()
	}
	if progressCallback == nil {
		progressCallback = func(string) {}
	}

	info := device.DeviceInfo{Address: opts.Address}
	if info.Address == "" {
		progressCallback(PhaseScanning)

		found, err := scanner.Discover(ctx, device.DiscoverOptions{
			NamePrefix: opts.NamePrefix,
			Timeout:    opts.ScanTimeout,
		})
		if err != nil {
			progressCallback(PhaseFailed)
			return zero, err
		}
		info = found

		logger.WithFields(logrus.Fields{
			"name":    info.Name,
			"address": info.Address,
			"rssi":    info.RSSI,
		}).Info("Found gauge")
	}

	progressCallback(PhaseConnecting)

	link, err := connector.Connect(ctx, info.Address, device.ConnectOptions{ConnectTimeout: opts.ConnectTimeout})
	if err != nil {
		progressCallback(PhaseFailed)
		return zero, err
	}

	progressCallback(PhaseConnected)

	defer func() {
		if err := link.Disconnect(); err != nil {
			logger.WithError(err).Error("failed to disconnect device")
		}
	}()

	result, err := callback(ctx, info, link)

	progressCallback(PhaseProcessing)
	return result, err
}
