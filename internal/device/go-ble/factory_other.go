//go:build !darwin && !linux

package goble

import (
	"fmt"
	"runtime"

	"github.com/go-ble/ble"
	"github.com/srg/progressor/internal/device"
)

func newDevice() (ble.Device, error) {
	return nil, fmt.Errorf("%w: no BLE backend for %s", device.ErrUnsupported, runtime.GOOS)
}
