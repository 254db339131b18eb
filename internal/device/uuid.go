package device

import (
	"strings"

	"github.com/google/uuid"
)

// sigBaseSuffix is the tail of the Bluetooth SIG base UUID (0000xxxx-0000-1000-8000-00805f9b34fb)
const sigBaseSuffix = "00001000800000805f9b34fb"

// NormalizeUUID converts a UUID string to the internal format (lowercase, no dashes).
// Strips a 0x prefix, and for full 128-bit UUIDs in Bluetooth SIG base format
// extracts the 16-bit short form. Returns "" for strings that are not UUIDs.
func NormalizeUUID(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "0x")
	s = strings.ReplaceAll(s, "-", "")

	if len(s) != 32 {
		if isHex(s) {
			return s
		}
		return ""
	}

	parsed, err := uuid.Parse(s)
	if err != nil {
		return ""
	}
	hex := strings.ReplaceAll(parsed.String(), "-", "")
	if strings.HasPrefix(hex, "0000") && strings.HasSuffix(hex, sigBaseSuffix) {
		return hex[4:8]
	}
	return hex
}

// NormalizeUUIDs normalizes a slice of UUID strings to internal format.
func NormalizeUUIDs(uuids []string) []string {
	result := make([]string, len(uuids))
	for i, u := range uuids {
		result[i] = NormalizeUUID(u)
	}
	return result
}

// SameUUID reports whether two UUID strings denote the same UUID
func SameUUID(a, b string) bool {
	na := NormalizeUUID(a)
	return na != "" && na == NormalizeUUID(b)
}

// ShortenUUID returns a truncated version of a UUID for display purposes.
// Returns the first eight characters for long UUIDs and short UUIDs by themselves.
func ShortenUUID(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

func isHex(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return s != ""
}
