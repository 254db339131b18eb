package inspector_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/srg/progressor/inspector"
	"github.com/srg/progressor/internal/device"
	goble "github.com/srg/progressor/internal/device/go-ble"
	"github.com/srg/progressor/internal/protocol"
	"github.com/srg/progressor/internal/testutils"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type InspectorTestSuite struct {
	testutils.MockBLEPeripheralSuite

	phases []string
}

func (s *InspectorTestSuite) SetupTest() {
	s.phases = nil
	s.WithPeripheral().
		WithResponder(testutils.GaugeResponder("1.4.2", 3712)).
		WithScanAdvertisements(
			testutils.CreateMockAdvertisement("HeartRate", "11:11:11:11:11:11", -70).Build(),
			testutils.CreateMockAdvertisement("Progressor_7731", "AA:BB:CC:DD:EE:FF", -48).Build(),
		)
	s.MockBLEPeripheralSuite.SetupTest()
}

func (s *InspectorTestSuite) progress(phase string) {
	s.phases = append(s.phases, phase)
}

func (s *InspectorTestSuite) inspect(opts *inspector.InspectOptions, cb inspector.InspectCallback[string]) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.TestTimeout)
	defer cancel()
	return inspector.InspectDevice(ctx, goble.NewScanner(s.Logger), goble.NewConnector(s.Logger), opts, s.Logger, s.progress, cb)
}

func (s *InspectorTestSuite) TestDiscoversConnectsAndDisconnects() {
	// GOAL: Verify the gauge is discovered by name, handed to the callback and disconnected afterwards
	//
	// TEST SCENARIO: Two advertisements, one Progressor → callback sees its address → link torn down

	var linkSeen device.Link
	out, err := s.inspect(&inspector.InspectOptions{ScanTimeout: time.Second}, func(ctx context.Context, info device.DeviceInfo, link device.Link) (string, error) {
		linkSeen = link
		s.Assert().Equal("Progressor_7731", info.Name)
		s.Assert().Equal(-48, info.RSSI)
		return info.Address, link.Write(device.ControlPointCharUUID, protocol.EncodeCommand(protocol.CmdTare), true)
	})

	s.Require().NoError(err)
	s.Assert().Equal("AA:BB:CC:DD:EE:FF", out)
	s.Assert().Equal([]string{inspector.PhaseScanning, inspector.PhaseConnecting, inspector.PhaseConnected, inspector.PhaseProcessing}, s.phases)
	s.Assert().Equal([]protocol.Command{protocol.CmdTare}, s.Peripheral.Commands())

	select {
	case <-linkSeen.Done():
	default:
		s.Fail("link MUST be disconnected after the callback returns")
	}
	s.Peripheral.Client.AssertCalled(s.T(), "CancelConnection")
}

func (s *InspectorTestSuite) TestAddressSkipsDiscovery() {
	out, err := s.inspect(&inspector.InspectOptions{Address: "00:00:00:00:00:01"}, func(_ context.Context, info device.DeviceInfo, _ device.Link) (string, error) {
		return info.DisplayName(), nil
	})

	s.Require().NoError(err)
	s.Assert().Equal("00:00:00:00:00:01", out)
	s.Assert().NotContains(s.phases, inspector.PhaseScanning)
	s.Peripheral.Device.AssertNotCalled(s.T(), "Scan", mock.Anything, mock.Anything, mock.Anything)
}

func (s *InspectorTestSuite) TestNoMatchingDevice() {
	_, err := s.inspect(&inspector.InspectOptions{NamePrefix: "Climbro", ScanTimeout: 50 * time.Millisecond}, func(context.Context, device.DeviceInfo, device.Link) (string, error) {
		s.Fail("callback MUST NOT run without a device")
		return "", nil
	})

	s.Assert().ErrorIs(err, device.ErrNoDevice)
	s.Assert().Equal([]string{inspector.PhaseScanning, inspector.PhaseFailed}, s.phases)
}

func (s *InspectorTestSuite) TestCallbackErrorStillDisconnects() {
	boom := errors.New("boom")

	_, err := s.inspect(nil, func(context.Context, device.DeviceInfo, device.Link) (string, error) {
		return "", boom
	})

	s.Assert().ErrorIs(err, boom)
	s.Peripheral.Client.AssertCalled(s.T(), "CancelConnection")
}

func TestInspectorTestSuite(t *testing.T) {
	suite.Run(t, new(InspectorTestSuite))
}

type ConnectFailureTestSuite struct {
	testutils.MockBLEPeripheralSuite
}

func (s *ConnectFailureTestSuite) SetupTest() {
	s.WithPeripheral().WithDialError(errors.New("device not connected"))
	s.MockBLEPeripheralSuite.SetupTest()
}

func (s *ConnectFailureTestSuite) TestConnectFailure() {
	var phases []string
	_, err := inspector.InspectDevice(context.Background(), goble.NewScanner(s.Logger), goble.NewConnector(s.Logger),
		&inspector.InspectOptions{Address: "00:00:00:00:00:01", ConnectTimeout: time.Second}, s.Logger,
		func(p string) { phases = append(phases, p) },
		func(context.Context, device.DeviceInfo, device.Link) (struct{}, error) {
			s.Fail("callback MUST NOT run when connect fails")
			return struct{}{}, nil
		})

	var terr *device.TransportError
	s.Require().ErrorAs(err, &terr)
	s.Assert().Equal("connect", terr.Op)
	s.Assert().ErrorIs(err, device.ErrNotConnected)
	s.Assert().Equal([]string{inspector.PhaseConnecting, inspector.PhaseFailed}, phases)
}

func TestConnectFailureTestSuite(t *testing.T) {
	suite.Run(t, new(ConnectFailureTestSuite))
}
