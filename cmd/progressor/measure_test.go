package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/srg/progressor/internal/device"
	"github.com/srg/progressor/internal/protocol"
	"github.com/srg/progressor/internal/samplelog"
	"github.com/srg/progressor/internal/testutils"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type MeasureTestSuite struct {
	CommandTestSuite

	logDir string
}

func (s *MeasureTestSuite) SetupTest() {
	s.CommandTestSuite.SetupTest()
	s.logDir = s.T().TempDir()
}

func (s *MeasureTestSuite) measureArgs(extra ...string) []string {
	args := []string{"measure", "--duration", "60ms", "--quiescence", "20ms", "--log-dir", s.logDir, "--session-id", "test"}
	return append(args, extra...)
}

func (s *MeasureTestSuite) TestFullSession() {
	// GOAL: Verify measure discovers the gauge, runs the fixed command sequence and reports the result
	//
	// TEST SCENARIO: Healthy gauge streaming 2 samples → 5 writes in order → device info + summary printed → log persisted

	out, err := s.ExecuteCommand(s.measureArgs()...)

	s.Require().NoError(err, "stderr: %s", s.Stderr.String())
	testutils.NewTextAsserter(s.T()).Assert(out, `
Connected to Progressor_7731 (AA:BB:CC:DD:EE:FF)
--- Device information ---
Firmware:  1.4.2
Battery:   3712 mV
Crash log: empty
--------------------------
Session:  test
Log:      `+filepath.Join(s.logDir, "measurements_test.csv")+`
Samples:  2
Peak:     12.7 kg at 0.002s
Mean:     12.60 kg
Duration: 0.001s
`)

	s.Assert().Equal([]protocol.Command{
		protocol.CmdGetAppVersion,
		protocol.CmdGetBatteryVoltage,
		protocol.CmdGetErrorInformation,
		protocol.CmdStartWeightMeasurement,
		protocol.CmdEnterSleep,
	}, s.Peripheral.Commands(), "command sequence MUST match the session state machine")

	writes := s.Peripheral.Writes()
	for _, w := range writes[:4] {
		s.Assert().False(w.NoResponse, "%v MUST be acknowledged", protocol.Command(w.Data[0]))
	}
	s.Assert().True(writes[4].NoResponse, "sleep MUST be written without response")

	content, err := os.ReadFile(filepath.Join(s.logDir, "measurements_test.csv"))
	s.Require().NoError(err)
	s.Assert().Equal("weight,time\n12.5,1000\n12.7,2000\n", string(content))

	s.Peripheral.Client.AssertCalled(s.T(), "CancelConnection")
}

func (s *MeasureTestSuite) TestJSONReport() {
	out, err := s.ExecuteCommand(s.measureArgs("--format", "json")...)

	s.Require().NoError(err)
	testutils.NewJSONAsserter(s.T()).Assert(out, `{
		"session_id": "test",
		"summary": {"samples": 2, "peak_weight": 12.7},
		"samples": [{"weight": 12.5, "time_us": 1000}, {"weight": 12.7, "time_us": 2000}]
	}`)
}

func (s *MeasureTestSuite) TestAddressSkipsDiscovery() {
	out, err := s.ExecuteCommand(s.measureArgs("--address", TestDeviceAddress1)...)

	s.Require().NoError(err)
	s.Assert().Contains(out, "Connected to 00:00:00:00:00:01 (00:00:00:00:00:01)")
	s.Peripheral.Device.AssertNotCalled(s.T(), "Scan", mock.Anything, mock.Anything, mock.Anything)
}

func (s *MeasureTestSuite) TestNoGauge() {
	_, err := s.ExecuteCommand(s.measureArgs("--prefix", "Climbro", "--scan-timeout", "50ms")...)

	s.Require().ErrorIs(err, device.ErrNoDevice)
	s.Assert().Contains(FormatUserError(err), "press its button")
	s.Assert().Empty(s.Peripheral.Writes())
}

func (s *MeasureTestSuite) TestInvalidFlags() {
	tests := []struct {
		name   string
		args   []string
		errMsg string
	}{
		{name: "bad format", args: []string{"--format", "xml"}, errMsg: "output_format"},
		{name: "zero duration", args: []string{"--duration", "0s"}, errMsg: "measurement_duration"},
		{name: "bad log level", args: []string{"--log-level", "loud"}, errMsg: "invalid log level"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			resetFlags(rootCmd)
			_, err := s.ExecuteCommand(s.measureArgs(tt.args...)...)
			s.Require().Error(err)
			s.Assert().Contains(err.Error(), tt.errMsg)
		})
	}
}

func (s *MeasureTestSuite) TestLogDirectoryMissing() {
	_, err := s.ExecuteCommand(s.measureArgs("--log-dir", filepath.Join(s.logDir, "missing"))...)

	s.Require().ErrorIs(err, samplelog.ErrCreateFailed)
	s.Assert().Contains(FormatUserError(err), "cannot create sample log")
	s.Assert().Empty(s.Peripheral.Writes(), "no command MUST be written without a log")
}

func (s *MeasureTestSuite) TestConfigFile() {
	cfgPath := s.WriteFile("progressor.yaml", `
output_format: json
device:
  address: "`+TestDeviceAddress1+`"
session:
  quiescence: 20ms
  measurement_duration: 60ms
log:
  dir: `+s.logDir+`
`)

	out, err := s.ExecuteCommand("measure", "--config", cfgPath, "--session-id", "cfg")

	s.Require().NoError(err)
	s.Assert().Contains(out, `"session_id": "cfg"`)
	s.Assert().FileExists(filepath.Join(s.logDir, "measurements_cfg.csv"))
}

func TestMeasureTestSuite(t *testing.T) {
	suite.Run(t, new(MeasureTestSuite))
}

// LinkLossTestSuite drops the link as soon as measurement starts
type LinkLossTestSuite struct {
	CommandTestSuite
}

func (s *LinkLossTestSuite) SetupTest() {
	healthy := testutils.GaugeResponder("1.4.2", 3712, testSamples...)
	s.WithPeripheral().WithResponder(func(cmd protocol.Command, payload []byte) [][]byte {
		frames := healthy(cmd, payload)
		if cmd == protocol.CmdStartWeightMeasurement {
			for _, f := range frames {
				s.Peripheral.Notify(f)
			}
			s.Peripheral.Drop()
			return nil
		}
		return frames
	})
	s.CommandTestSuite.SetupTest()
}

func (s *LinkLossTestSuite) TestConnectionLost() {
	// GOAL: Verify a link drop mid-measurement ends the session with ErrConnectionLost and keeps the samples
	//
	// TEST SCENARIO: Gauge streams 2 samples then disconnects → ErrConnectionLost → log holds both samples

	logDir := s.T().TempDir()
	out, err := s.ExecuteCommand("measure", "--address", TestDeviceAddress1, "--duration", "5s",
		"--quiescence", "20ms", "--log-dir", logDir, "--session-id", "lost")

	s.Require().ErrorIs(err, ErrConnectionLost)
	s.Assert().ErrorIs(err, device.ErrNotConnected)
	s.Assert().NotContains(s.Peripheral.Commands(), protocol.CmdEnterSleep)
	s.Assert().Contains(out, "Samples:  2")

	content, readErr := os.ReadFile(filepath.Join(logDir, "measurements_lost.csv"))
	s.Require().NoError(readErr)
	s.Assert().Equal("weight,time\n12.5,1000\n12.7,2000\n", string(content))
}

func TestLinkLossTestSuite(t *testing.T) {
	suite.Run(t, new(LinkLossTestSuite))
}
