package samplelog

import (
	"errors"
	"fmt"
)

// ErrorKind represents the specific kind of sample log failure
type ErrorKind string

const (
	CreateFailed  ErrorKind = "create_failed"
	AppendFailed  ErrorKind = "append_failed"
	RecordSkipped ErrorKind = "record_skipped"
	ReadFailed    ErrorKind = "read_failed"
	Closed        ErrorKind = "closed"
)

// LogError represents a sample log failure. CreateFailed is fatal to a session;
// every other kind is scoped to a single record.
type LogError struct {
	Kind ErrorKind
	Path string
	Err  error
}

// Error implements the error interface
func (e *LogError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := string(e.Kind)
	if e.Path != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *LogError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is allows errors.Is to compare LogError values by Kind
func (e *LogError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*LogError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Predefined sentinel errors for log failures
var (
	ErrCreateFailed  = &LogError{Kind: CreateFailed}
	ErrAppendFailed  = &LogError{Kind: AppendFailed}
	ErrRecordSkipped = &LogError{Kind: RecordSkipped}
	ErrReadFailed    = &LogError{Kind: ReadFailed}
	ErrClosed        = &LogError{Kind: Closed}
)

// IsKind reports whether err is a LogError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var lerr *LogError
	if errors.As(err, &lerr) {
		return lerr.Kind == kind
	}
	return false
}
