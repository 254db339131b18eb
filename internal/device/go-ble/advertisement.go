package goble

import (
	"strings"

	"github.com/go-ble/ble"
	"github.com/srg/progressor/internal/device"
)

// deviceInfoFrom converts an advertisement into device info; ok is false for advertisements without an address
func deviceInfoFrom(adv ble.Advertisement) (device.DeviceInfo, bool) {
	if adv == nil {
		return device.DeviceInfo{}, false
	}
	addr := adv.Addr()
	if addr == nil || addr.String() == "" {
		return device.DeviceInfo{}, false
	}
	return device.DeviceInfo{
		Name:    adv.LocalName(),
		Address: addr.String(),
		RSSI:    adv.RSSI(),
	}, true
}

// matchesPrefix reports whether the advertised local name starts with prefix (case-sensitive)
func matchesPrefix(info device.DeviceInfo, prefix string) bool {
	return info.Name != "" && strings.HasPrefix(info.Name, prefix)
}
