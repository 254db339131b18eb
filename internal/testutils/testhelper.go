package testutils

import (
	"testing"

	"github.com/sirupsen/logrus"
)

type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
}

// NewTestHelper creates a test helper with a debug logger.
func NewTestHelper(t *testing.T) *TestHelper {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel) // enable debug logs to track execution flow
	return &TestHelper{
		T:      t,
		Logger: logger,
	}
}

func CreateMockAdvertisement(name, address string, rssi int) *AdvertisementBuilder {
	return NewAdvertisementBuilder().WithName(name).WithAddress(address).WithRSSI(rssi)
}
