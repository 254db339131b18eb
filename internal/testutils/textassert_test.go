package testutils

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// recordingT captures failures instead of failing the enclosing test
type recordingT struct {
	failures []string
}

func (r *recordingT) Helper() {}

func (r *recordingT) Errorf(format string, args ...interface{}) {
	r.failures = append(r.failures, fmt.Sprintf(format, args...))
}

func TestTextAsserter_Defaults(t *testing.T) {
	ta := NewTextAsserter(t)

	assert.True(t, ta.options.TrimSpace)
	assert.True(t, ta.options.IgnoreTrailingWhitespace)
	assert.False(t, ta.options.IgnoreEmptyLines)
	assert.False(t, ta.options.StripANSI)
	assert.False(t, ta.options.EnableColors)
}

func TestTextAsserter_Match(t *testing.T) {
	tests := []struct {
		name     string
		opts     []TextOption
		actual   string
		expected string
	}{
		{name: "identical", actual: "a\nb", expected: "a\nb"},
		{name: "surrounding whitespace", actual: "\n  a\nb\n\n", expected: "a\nb"},
		{name: "trailing spaces from tabwriter", actual: "a   \nb\t", expected: "a\nb"},
		{name: "blank lines ignored", opts: []TextOption{WithIgnoreEmptyLines(true)}, actual: "a\n\n\nb", expected: "a\nb"},
		{name: "colour escapes stripped", opts: []TextOption{WithStripANSI(true)}, actual: "\x1b[36mPeak:\x1b[0m 12.7", expected: "Peak: 12.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingT{}
			ok := NewTextAsserter(rec, tt.opts...).Assert(tt.actual, tt.expected)

			assert.True(t, ok)
			assert.Empty(t, rec.failures)
		})
	}
}

func TestTextAsserter_Mismatch(t *testing.T) {
	rec := &recordingT{}

	ok := NewTextAsserter(rec).Assert("weight,time\n12.5,1000\n", "weight,time\n12.6,1000\n")

	assert.False(t, ok)
	if assert.Len(t, rec.failures, 1) {
		assert.Contains(t, rec.failures[0], "--- expected")
		assert.Contains(t, rec.failures[0], "+++ actual")
		assert.Contains(t, rec.failures[0], "-12.6,1000")
		assert.Contains(t, rec.failures[0], "+12.5,1000")
	}
}

func TestTextAsserter_ColoredDiff(t *testing.T) {
	diff := NewTextAsserter(t, WithEnableColors(true)).Diff("a b", "a  b")

	assert.Contains(t, diff, "\x1b[")
	assert.Contains(t, diff, "a·b", "whitespace MUST be made visible in changed lines")
}

func TestStripANSI(t *testing.T) {
	assert.Equal(t, "plain", StripANSI("plain"))
	assert.Equal(t, "bold green", StripANSI("\x1b[1;32mbold green\x1b[0m"))
	assert.Equal(t, "\x1b[unterminated", StripANSI("\x1b[unterminated"))
	assert.False(t, strings.Contains(StripANSI("\x1b[33mwarn\x1b[0m"), "\x1b"))
}
