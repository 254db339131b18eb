package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/srg/progressor/internal/protocol"
	"github.com/srg/progressor/internal/testutils"
)

// Test device addresses for consistent mock device identification
const (
	TestDeviceAddress1 = "00:00:00:00:00:01"
	TestGaugeAddress   = "AA:BB:CC:DD:EE:FF"
	TestGaugeName      = "Progressor_7731"
)

// testSamples are streamed by the mock gauge once measurement starts
var testSamples = []protocol.Sample{
	{Weight: 12.5, TimestampUs: 1000},
	{Weight: 12.7, TimestampUs: 2000},
}

// CommandTestSuite extends MockBLEPeripheralSuite with command testing utilities.
// All cmd/progressor test suites should embed this instead of MockBLEPeripheralSuite.
type CommandTestSuite struct {
	testutils.MockBLEPeripheralSuite

	Stderr *bytes.Buffer
}

// SetupTest configures a healthy advertising gauge unless the embedding suite already did
func (s *CommandTestSuite) SetupTest() {
	if s.PeripheralBuilder == nil {
		s.WithPeripheral().
			WithResponder(testutils.GaugeResponder("1.4.2", 3712, testSamples...)).
			WithScanAdvertisements(
				testutils.CreateMockAdvertisement("HeartRate", "11:11:11:11:11:11", -60).Build(),
				testutils.CreateMockAdvertisement(TestGaugeName, TestGaugeAddress, -48).Build(),
			)
	}
	s.MockBLEPeripheralSuite.SetupTest()
	resetFlags(rootCmd)
}

// resetFlags restores every flag of cmd and its children to its default
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// ExecuteCommand runs the root command with args and returns stdout and the error.
// Log output goes to s.Stderr.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.TestTimeout)
	defer cancel()

	out := new(bytes.Buffer)
	s.Stderr = new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(s.Stderr)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

// WriteFile creates a file in a fresh temp directory and returns its path
func (s *CommandTestSuite) WriteFile(name, content string) string {
	path := filepath.Join(s.T().TempDir(), name)
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o600))
	return path
}
