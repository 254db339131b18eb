package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeUUID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		// 16-bit UUID formats
		{name: "16-bit UUID lowercase", input: "2902", expected: "2902"},
		{name: "16-bit UUID uppercase", input: "2A37", expected: "2a37"},
		{name: "16-bit UUID with 0x prefix", input: "0x2902", expected: "2902"},

		// Bluetooth SIG base UUID format (should extract 16-bit form)
		{name: "Full Bluetooth SIG UUID with dashes", input: "00002902-0000-1000-8000-00805f9b34fb", expected: "2902"},
		{name: "Full Bluetooth SIG UUID without dashes", input: "0000290200001000800000805f9b34fb", expected: "2902"},
		{name: "Full Bluetooth SIG UUID with odd dashes", input: "0000-2902-0000-1000-8000-00805F9B34FB", expected: "2902"},

		// Progressor profile (custom 128-bit, never shortened)
		{name: "Progressor service", input: ServiceUUID, expected: "7e4e17011ea640c99dcc13d34ffead57"},
		{name: "Progressor data uppercase", input: "7E4E1702-1EA6-40C9-9DCC-13D34FFEAD57", expected: "7e4e17021ea640c99dcc13d34ffead57"},
		{name: "Progressor control point without dashes", input: "7e4e17031ea640c99dcc13d34ffead57", expected: "7e4e17031ea640c99dcc13d34ffead57"},

		// Edge cases
		{name: "Empty string", input: "", expected: ""},
		{name: "32-bit UUID", input: "12345678", expected: "12345678"},
		{name: "Not hex", input: "progressor", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeUUID(tt.input))
		})
	}
}

func TestNormalizeUUIDs(t *testing.T) {
	input := []string{"2902", "0x180d", DataCharUUID}
	expected := []string{"2902", "180d", "7e4e17021ea640c99dcc13d34ffead57"}

	assert.Equal(t, expected, NormalizeUUIDs(input))
}

func TestSameUUID(t *testing.T) {
	assert.True(t, SameUUID(DataCharUUID, "7E4E17021EA640C99DCC13D34FFEAD57"))
	assert.True(t, SameUUID("2a19", "00002A19-0000-1000-8000-00805f9b34fb"))
	assert.False(t, SameUUID(DataCharUUID, ControlPointCharUUID))
	assert.False(t, SameUUID("", ""), "empty UUIDs MUST NOT match")
}

func TestShortenUUID(t *testing.T) {
	assert.Equal(t, "7e4e1702", ShortenUUID(NormalizeUUID(DataCharUUID)))
	assert.Equal(t, "2a37", ShortenUUID("2a37"))
}
