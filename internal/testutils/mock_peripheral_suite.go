package testutils

import (
	"time"

	blelib "github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	goble "github.com/srg/progressor/internal/device/go-ble"
	"github.com/stretchr/testify/suite"
)

// MockBLEPeripheralSuite provides a reusable test suite with a mock Progressor peripheral.
// The go-ble device factory is swapped for the mock before each test and restored after it.
//
// Custom peripheral usage:
//
//	type MeasureSuite struct {
//	    testutils.MockBLEPeripheralSuite
//	}
//
//	func (s *MeasureSuite) SetupTest() {
//	    s.WithPeripheral().WithResponder(testutils.GaugeResponder("1.2.3", 3700))
//	    s.MockBLEPeripheralSuite.SetupTest() // Call parent last to apply configuration
//	}
type MockBLEPeripheralSuite struct {
	suite.Suite

	Helper *TestHelper
	Logger *logrus.Logger

	OriginalDeviceFactory func() (blelib.Device, error)
	TestTimeout           time.Duration

	PeripheralBuilder *PeripheralDeviceBuilder
	Peripheral        *MockPeripheral
}

// SetupSuite initializes the test suite.
func (s *MockBLEPeripheralSuite) SetupSuite() {
	s.Helper = NewTestHelper(s.T())
	s.Logger = s.Helper.Logger
	s.TestTimeout = 5 * time.Second
	s.OriginalDeviceFactory = goble.DeviceFactory

	s.T().Cleanup(func() {
		if s.OriginalDeviceFactory != nil {
			goble.DeviceFactory = s.OriginalDeviceFactory
		}
	})
}

// SetupTest builds the peripheral and installs it as the device factory.
func (s *MockBLEPeripheralSuite) SetupTest() {
	if s.PeripheralBuilder == nil {
		s.PeripheralBuilder = NewPeripheralDeviceBuilder().
			WithResponder(GaugeResponder("1.0.0", 3700))
	}

	s.Peripheral = s.PeripheralBuilder.Build()
	goble.DeviceFactory = func() (blelib.Device, error) {
		return s.Peripheral.Device, nil
	}

	s.Logger.Debug("Test setup completed - ready for execution")
}

// TearDownTest restores the device factory and resets the peripheral configuration.
func (s *MockBLEPeripheralSuite) TearDownTest() {
	if s.OriginalDeviceFactory != nil {
		goble.DeviceFactory = s.OriginalDeviceFactory
	}
	if s.Peripheral != nil {
		s.Peripheral.Drop()
	}
	s.PeripheralBuilder = nil
	s.Peripheral = nil
}

// WithPeripheral returns the peripheral builder for fluent configuration in SetupTest.
func (s *MockBLEPeripheralSuite) WithPeripheral() *PeripheralDeviceBuilder {
	if s.PeripheralBuilder == nil {
		s.PeripheralBuilder = NewPeripheralDeviceBuilder()
	}
	return s.PeripheralBuilder
}
