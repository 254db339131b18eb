package main

import (
	"errors"
	"fmt"

	"github.com/srg/progressor/internal/device"
	"github.com/srg/progressor/internal/samplelog"
)

// Command-level errors
var (
	// ErrConnectionLost indicates the BLE connection was unexpectedly lost during operation.
	// This is distinct from device.ErrNotConnected, which indicates an attempt to use
	// a device that was never connected or was already disconnected.
	ErrConnectionLost = errors.New("connection lost")
)

// connectionLost marks a link drop observed mid-session
func connectionLost(err error) error {
	var terr *device.TransportError
	if errors.As(err, &terr) && terr.Op == "notify" && errors.Is(err, device.ErrNotConnected) {
		return fmt.Errorf("%w: %w", ErrConnectionLost, err)
	}
	return err
}

// FormatUserError turns typed errors into a short message with a hint
func FormatUserError(err error) string {
	var (
		notFound *device.NotFoundError
		logErr   *samplelog.LogError
	)
	switch {
	case errors.Is(err, device.ErrBluetoothOff):
		return "Bluetooth is turned off: enable it and try again"
	case errors.Is(err, device.ErrNoDevice):
		return fmt.Sprintf("%v (is the gauge awake? press its button and retry)", err)
	case errors.Is(err, ErrConnectionLost):
		return fmt.Sprintf("%v (the gauge went to sleep or out of range)", err)
	case errors.As(err, &notFound) && notFound.Resource == "service":
		return "the device does not expose the Progressor service; is it a Progressor?"
	case errors.As(err, &logErr) && logErr.Kind == samplelog.CreateFailed:
		return fmt.Sprintf("cannot create sample log %s: %v", logErr.Path, logErr.Err)
	default:
		return err.Error()
	}
}
