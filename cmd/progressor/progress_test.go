package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressPrinter_Line(t *testing.T) {
	tests := []struct {
		name     string
		phase    string
		elapsed  time.Duration
		expected string
	}{
		{name: "just started", phase: "Connecting", elapsed: 0, expected: "\rMeasuring (Connecting...)   "},
		{name: "counts up", phase: "Connecting", elapsed: 2300 * time.Millisecond, expected: "\rMeasuring (Connecting 2s)   "},
		{name: "counts down", phase: "Scanning", elapsed: 2300 * time.Millisecond, expected: "\rMeasuring (Scanning 8s)   "},
		{name: "countdown expired", phase: "Scanning", elapsed: 15 * time.Second, expected: "\rMeasuring (Scanning...)   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProgressPrinter(&bytes.Buffer{}, "Measuring", tt.phase).
				WithCountdown("Scanning", 10*time.Second)

			start := time.Unix(0, p.phaseStart.Load())
			assert.Equal(t, tt.expected, p.line(start.Add(tt.elapsed)))
		})
	}
}

func TestProgressPrinter_NotTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressPrinter(&buf, "Measuring", "Scanning", "Processing results")

	p.Start()
	cb := p.Callback()
	cb("Connecting")
	assert.Equal(t, "Connecting", p.Phase())
	cb("Processing results")
	p.Stop()

	assert.Empty(t, buf.String(), "nothing MUST be drawn on a non-terminal writer")
}

func TestProgressPrinter_StartTwicePanics(t *testing.T) {
	p := NewProgressPrinter(&bytes.Buffer{}, "Sending", "Connecting")
	p.Start()
	defer p.Stop()

	require.Panics(t, p.Start)
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v1.2.0", formatVersion("1.2.0"))
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "", formatVersion(""))
}
