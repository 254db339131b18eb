package testutils

import (
	"encoding/json"
	"fmt"

	"github.com/mcuadros/go-defaults"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// PresencePlaceholder in expected JSON matches any actual value at that key
const PresencePlaceholder = "<<PRESENCE>>"

// JSONAssertOptions control how expected and actual documents are compared
type JSONAssertOptions struct {
	IgnoreExtraKeys          bool     `default:"true"`
	AllowPresencePlaceholder bool     `default:"true"`
	IgnoredFields            []string `default:""`
}

// Option is a functional option for configuring JSONAsserter
type Option func(*JSONAssertOptions)

// JSONAsserter compares JSON documents structurally and reports a readable diff
type JSONAsserter struct {
	t       TestingT
	options JSONAssertOptions
}

// NewJSONAsserter creates a JSONAsserter with default options
func NewJSONAsserter(t TestingT, opts ...Option) *JSONAsserter {
	options := JSONAssertOptions{}
	defaults.SetDefaults(&options)
	for _, opt := range opts {
		opt(&options)
	}
	return &JSONAsserter{t: t, options: options}
}

// MustJSON marshals v or panics
func MustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// Assert compares actualJSON against expectedJSON
func (ja *JSONAsserter) Assert(actualJSON, expectedJSON string) bool {
	ja.t.Helper()
	if diff := ja.Diff(actualJSON, expectedJSON); diff != "" {
		ja.t.Errorf("JSON assertion failed:\n%s", diff)
		return false
	}
	return true
}

// Diff returns a human readable difference, empty when the documents match
func (ja *JSONAsserter) Diff(actualJSON, expectedJSON string) string {
	var expected, actual interface{}
	if err := json.Unmarshal([]byte(expectedJSON), &expected); err != nil {
		return fmt.Sprintf("invalid expected JSON: %v", err)
	}
	if err := json.Unmarshal([]byte(actualJSON), &actual); err != nil {
		return fmt.Sprintf("invalid actual JSON: %v", err)
	}

	// gojsondiff compares objects only
	if isArray(expected) || isArray(actual) {
		expected = map[string]interface{}{"array": expected}
		actual = map[string]interface{}{"array": actual}
	}

	if ja.options.AllowPresencePlaceholder {
		replacePresenceWithActual(expected, actual)
	}
	if len(ja.options.IgnoredFields) > 0 {
		removeIgnoredFields(expected, actual, ja.options.IgnoredFields)
	}
	if ja.options.IgnoreExtraKeys {
		pruneExtraKeys(actual, expected)
	}

	expectedBytes, _ := json.Marshal(expected)
	actualBytes, _ := json.Marshal(actual)

	diff, err := gojsondiff.New().Compare(expectedBytes, actualBytes)
	if err != nil {
		return fmt.Sprintf("JSON comparison failed: %v", err)
	}
	if !diff.Modified() {
		return ""
	}

	f := formatter.NewAsciiFormatter(expected, formatter.AsciiFormatterConfig{ShowArrayIndex: true})
	out, err := f.Format(diff)
	if err != nil {
		return fmt.Sprintf("JSON differs (format failed: %v)", err)
	}
	return out
}

func replacePresenceWithActual(expected, actual interface{}) {
	switch exp := expected.(type) {
	case map[string]interface{}:
		act, ok := actual.(map[string]interface{})
		if !ok {
			return
		}
		for k := range exp {
			if s, ok := exp[k].(string); ok && s == PresencePlaceholder {
				if v, present := act[k]; present {
					exp[k] = v
				}
				continue
			}
			replacePresenceWithActual(exp[k], act[k])
		}
	case []interface{}:
		act, ok := actual.([]interface{})
		if !ok {
			return
		}
		for i := range exp {
			if i < len(act) {
				replacePresenceWithActual(exp[i], act[i])
			}
		}
	}
}

// pruneExtraKeys removes keys of actual that expected does not mention
func pruneExtraKeys(actual, expected interface{}) {
	switch exp := expected.(type) {
	case map[string]interface{}:
		act, ok := actual.(map[string]interface{})
		if !ok {
			return
		}
		for k := range act {
			if _, exists := exp[k]; !exists {
				delete(act, k)
			}
		}
		for k := range exp {
			pruneExtraKeys(act[k], exp[k])
		}
	case []interface{}:
		act, ok := actual.([]interface{})
		if !ok {
			return
		}
		for i := range exp {
			if i < len(act) {
				pruneExtraKeys(act[i], exp[i])
			}
		}
	}
}

func removeIgnoredFields(expected, actual interface{}, ignored []string) {
	switch exp := expected.(type) {
	case map[string]interface{}:
		act, _ := actual.(map[string]interface{})
		for _, field := range ignored {
			delete(exp, field)
			if act != nil {
				delete(act, field)
			}
		}
		for k := range exp {
			if act != nil {
				removeIgnoredFields(exp[k], act[k], ignored)
			}
		}
	case []interface{}:
		act, ok := actual.([]interface{})
		if !ok {
			return
		}
		for i := range exp {
			if i < len(act) {
				removeIgnoredFields(exp[i], act[i], ignored)
			}
		}
	}
}

func isArray(v interface{}) bool {
	_, ok := v.([]interface{})
	return ok
}

// WithIgnoreExtraKeys sets whether keys missing from expected are ignored
func WithIgnoreExtraKeys(ignore bool) Option {
	return func(opts *JSONAssertOptions) {
		opts.IgnoreExtraKeys = ignore
	}
}

// WithIgnoredFields drops the named keys at every level before comparing
func WithIgnoredFields(fields ...string) Option {
	return func(opts *JSONAssertOptions) {
		opts.IgnoredFields = fields
	}
}
