package goble

import (
	"github.com/srg/progressor/internal/device"
)

// NormalizeError maps known go-ble error strings to structured ConnectionError types.
// It ensures consistent handling even if the upstream library changes messages slightly.
func NormalizeError(err error) error {
	return device.NormalizeError(err)
}
