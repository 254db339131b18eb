package main

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/srg/progressor/internal/device"
	"github.com/srg/progressor/internal/samplelog"
	"github.com/stretchr/testify/assert"
)

func TestConnectionLost(t *testing.T) {
	dropped := &device.TransportError{Op: "notify", UUID: device.DataCharUUID, Err: device.ErrNotConnected}

	tests := []struct {
		name string
		err  error
		lost bool
	}{
		{name: "link dropped", err: dropped, lost: true},
		{name: "wrapped link drop", err: fmt.Errorf("measure: %w", dropped), lost: true},
		{name: "write failure", err: &device.TransportError{Op: "write", Err: device.ErrNotConnected}},
		{name: "notify timeout", err: &device.TransportError{Op: "notify", Err: device.ErrTimeout}},
		{name: "plain error", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := connectionLost(tt.err)
			assert.ErrorIs(t, got, tt.err, "original error MUST stay reachable")
			assert.Equal(t, tt.lost, errors.Is(got, ErrConnectionLost))
		})
	}
}

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{
			name:     "bluetooth off",
			err:      fmt.Errorf("scan: %w", device.ErrBluetoothOff),
			contains: "Bluetooth is turned off",
		},
		{
			name:     "no device",
			err:      fmt.Errorf("%w: no device named \"Progressor\"* within 10s", device.ErrNoDevice),
			contains: "press its button and retry",
		},
		{
			name:     "connection lost",
			err:      connectionLost(&device.TransportError{Op: "notify", Err: device.ErrNotConnected}),
			contains: "the gauge went to sleep or out of range",
		},
		{
			name:     "missing service",
			err:      &device.NotFoundError{Resource: "service", UUIDs: []string{device.ServiceUUID}},
			contains: "is it a Progressor?",
		},
		{
			name:     "log not creatable",
			err:      &samplelog.LogError{Kind: samplelog.CreateFailed, Path: "/nope/m.csv", Err: os.ErrPermission},
			contains: "cannot create sample log /nope/m.csv: permission denied",
		},
		{
			name:     "anything else",
			err:      errors.New("boom"),
			contains: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, FormatUserError(tt.err), tt.contains)
		})
	}
}
