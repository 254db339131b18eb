package main

import (
	"bytes"
	"testing"

	"github.com/srg/progressor/internal/testutils"
	"github.com/stretchr/testify/suite"
)

type ScanTestSuite struct {
	CommandTestSuite
}

func (s *ScanTestSuite) SetupTest() {
	s.WithPeripheral().WithScanAdvertisements(
		testutils.CreateMockAdvertisement("Progressor_0042", "11:22:33:44:55:66", -81).Build(),
		testutils.CreateMockAdvertisement("HeartRate", "11:11:11:11:11:11", -40).Build(),
		testutils.CreateMockAdvertisement(TestGaugeName, TestGaugeAddress, -48).Build(),
		testutils.CreateMockAdvertisement(TestGaugeName, TestGaugeAddress, -50).Build(),
	)
	s.CommandTestSuite.SetupTest()
}

func (s *ScanTestSuite) TestTable() {
	// GOAL: Verify scan lists only matching gauges, once per address, strongest first
	//
	// TEST SCENARIO: 2 gauges + 1 foreign device + 1 duplicate advertisement → 2 rows sorted by RSSI

	out, err := s.ExecuteCommand("scan", "--duration", "50ms")

	s.Require().NoError(err)
	testutils.NewTextAsserter(s.T()).Assert(out, `
NAME  ADDRESS  RSSI
--------------------------------------------------
Progressor_7731  AA:BB:CC:DD:EE:FF  -48 dBm
Progressor_0042  11:22:33:44:55:66  -81 dBm
`)
}

func (s *ScanTestSuite) TestJSON() {
	out, err := s.ExecuteCommand("scan", "--duration", "50ms", "--format", "json")

	s.Require().NoError(err)
	testutils.NewJSONAsserter(s.T(), testutils.WithIgnoreExtraKeys(false)).Assert(out, `[
		{"name": "Progressor_7731", "address": "AA:BB:CC:DD:EE:FF", "rssi": -48},
		{"name": "Progressor_0042", "address": "11:22:33:44:55:66", "rssi": -81}
	]`)
}

func (s *ScanTestSuite) TestPrefix() {
	out, err := s.ExecuteCommand("scan", "--duration", "50ms", "--prefix", "Heart")

	s.Require().NoError(err)
	s.Assert().Contains(out, "HeartRate")
	s.Assert().NotContains(out, "Progressor")
}

func (s *ScanTestSuite) TestNoMatch() {
	tests := []struct {
		format   string
		expected string
	}{
		{format: "table", expected: "No gauges discovered\n"},
		{format: "json", expected: "[]\n"},
	}

	for _, tt := range tests {
		s.Run(tt.format, func() {
			resetFlags(rootCmd)
			out, err := s.ExecuteCommand("scan", "--duration", "50ms", "--prefix", "progressor", "--format", tt.format)
			s.Require().NoError(err)
			s.Assert().Equal(tt.expected, out, "prefix matching MUST be case-sensitive")
		})
	}
}

func (s *ScanTestSuite) TestInvalidArguments() {
	tests := []struct {
		name   string
		args   []string
		errMsg string
	}{
		{name: "csv format", args: []string{"--format", "csv"}, errMsg: "must be one of [table json]"},
		{name: "zero duration", args: []string{"--duration", "0s"}, errMsg: "scan duration must be positive"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			resetFlags(rootCmd)
			_, err := s.ExecuteCommand(append([]string{"scan"}, tt.args...)...)
			s.Require().Error(err)
			s.Assert().Contains(err.Error(), tt.errMsg)
		})
	}
}

func TestScanTestSuite(t *testing.T) {
	suite.Run(t, new(ScanTestSuite))
}

func TestDisplayGaugesTableColor(t *testing.T) {
	var buf bytes.Buffer
	err := displayGaugesTable(&buf, []scanEntry{
		{Name: "Progressor_1", Address: "A", RSSI: -60},
		{Name: "Progressor_2", Address: "B", RSSI: -90},
	}, true)

	if err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	ta := testutils.NewTextAsserter(t)
	ta.Assert(testutils.StripANSI(out), `
NAME  ADDRESS  RSSI
--------------------------------------------------
Progressor_1  A  -60 dBm
Progressor_2  B  -90 dBm
`)
	if !bytes.Contains(buf.Bytes(), []byte("\x1b[32m-60 dBm")) {
		t.Errorf("strong signal should be green: %q", out)
	}
	if !bytes.Contains(buf.Bytes(), []byte("\x1b[33m-90 dBm")) {
		t.Errorf("weak signal should be yellow: %q", out)
	}
}
