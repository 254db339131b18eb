package testutils

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/mcuadros/go-defaults"
)

// TestingT is the subset of testing.T the asserters report through
type TestingT interface {
	Helper()
	Errorf(format string, args ...interface{})
}

// TextAssertOptions control normalization before comparing CLI output
type TextAssertOptions struct {
	TrimSpace                bool `default:"true"`
	IgnoreTrailingWhitespace bool `default:"true"`
	IgnoreEmptyLines         bool `default:"false"`
	StripANSI                bool `default:"false"`
	EnableColors             bool `default:"false"`
}

// TextOption is a functional option for configuring TextAsserter
type TextOption func(*TextAssertOptions)

// TextAsserter compares multi-line output and reports a unified diff on mismatch
type TextAsserter struct {
	t       TestingT
	options TextAssertOptions
}

// NewTextAsserter creates a TextAsserter with default options
func NewTextAsserter(t TestingT, opts ...TextOption) *TextAsserter {
	options := TextAssertOptions{}
	defaults.SetDefaults(&options)
	for _, opt := range opts {
		opt(&options)
	}
	return &TextAsserter{t: t, options: options}
}

// Assert compares actual text against expected text
func (ta *TextAsserter) Assert(actual, expected string) bool {
	ta.t.Helper()
	if diff := ta.Diff(actual, expected); diff != "" {
		ta.t.Errorf("Text assertion failed - unified diff:\n%s", diff)
		return false
	}
	return true
}

// Diff returns the unified diff between normalized texts, empty when they match
func (ta *TextAsserter) Diff(actual, expected string) string {
	normalizedActual := ta.normalize(actual)
	normalizedExpected := ta.normalize(expected)
	if normalizedActual == normalizedExpected {
		return ""
	}

	edits := myers.ComputeEdits("", normalizedExpected, normalizedActual)
	unified := fmt.Sprint(gotextdiff.ToUnified("expected", "actual", normalizedExpected, edits))
	if !ta.options.EnableColors {
		return unified
	}
	return colorizeUnifiedDiff(unified)
}

func colorizeUnifiedDiff(diff string) string {
	red := color.New(color.FgRed)
	red.EnableColor()
	green := color.New(color.FgGreen)
	green.EnableColor()
	cyan := color.New(color.FgCyan)
	cyan.EnableColor()

	lines := strings.Split(diff, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "@@"):
			lines[i] = cyan.Sprint(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = red.Sprint(visibleWhitespace(line))
		case strings.HasPrefix(line, "+"):
			lines[i] = green.Sprint(visibleWhitespace(line))
		}
	}
	return strings.Join(lines, "\n")
}

// visibleWhitespace shows spaces as · and tabs as →
func visibleWhitespace(line string) string {
	return strings.NewReplacer(" ", "·", "\t", "→").Replace(line)
}

func (ta *TextAsserter) normalize(text string) string {
	if ta.options.StripANSI {
		text = StripANSI(text)
	}
	if ta.options.TrimSpace {
		text = strings.TrimSpace(text)
	}

	lines := strings.Split(text, "\n")
	result := lines[:0]
	for _, line := range lines {
		if ta.options.IgnoreTrailingWhitespace {
			line = strings.TrimRight(line, " \t\r")
		}
		if ta.options.IgnoreEmptyLines && line == "" {
			continue
		}
		result = append(result, line)
	}
	return strings.Join(result, "\n")
}

// StripANSI removes SGR escape sequences such as the ones fatih/color emits
func StripANSI(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && (s[j] == ';' || (s[j] >= '0' && s[j] <= '9')) {
				j++
			}
			if j < len(s) && s[j] == 'm' {
				i = j
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// WithTrimSpace sets whether to trim the whole text before comparing
func WithTrimSpace(trim bool) TextOption {
	return func(opts *TextAssertOptions) {
		opts.TrimSpace = trim
	}
}

// WithIgnoreEmptyLines sets whether to drop blank lines
func WithIgnoreEmptyLines(ignore bool) TextOption {
	return func(opts *TextAssertOptions) {
		opts.IgnoreEmptyLines = ignore
	}
}

// WithStripANSI sets whether colour escapes are removed before comparing
func WithStripANSI(strip bool) TextOption {
	return func(opts *TextAssertOptions) {
		opts.StripANSI = strip
	}
}

// WithEnableColors sets whether the reported diff is coloured
func WithEnableColors(enable bool) TextOption {
	return func(opts *TextAssertOptions) {
		opts.EnableColors = enable
	}
}
