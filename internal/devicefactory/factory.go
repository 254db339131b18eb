// Package devicefactory hands out the transport used by the CLI. The constructors are
// variables so that tests can swap in doubles.
package devicefactory

import (
	"github.com/sirupsen/logrus"
	"github.com/srg/progressor/internal/device"
	"github.com/srg/progressor/internal/device/go-ble"
)

// NewScanner creates the scanner used for gauge discovery
var NewScanner = func(logger *logrus.Logger) device.Scanner {
	return goble.NewScanner(logger)
}

// NewConnector creates the connector used to open links
var NewConnector = func(logger *logrus.Logger) device.Connector {
	return goble.NewConnector(logger)
}
