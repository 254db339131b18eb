package protocol

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the kind of protocol failure
type ErrorCode string

const (
	CodeEmpty         ErrorCode = "empty"
	CodeUnknownKind   ErrorCode = "unknown_kind"
	CodeTruncated     ErrorCode = "truncated"
	CodeTrailingBytes ErrorCode = "trailing_bytes"
	CodeMalformed     ErrorCode = "malformed"
	CodeEncoding      ErrorCode = "encoding"
)

// ProtocolError describes a malformed or unrecognised frame. It is scoped to a single
// frame: callers report it and keep processing subsequent frames.
type ProtocolError struct {
	Code  ErrorCode
	Tag   byte // response kind byte, set for CodeUnknownKind
	Count int  // trailing byte count for CodeTrailingBytes, observed length for CodeMalformed
	Msg   string
}

// Error implements the error interface
func (e *ProtocolError) Error() string {
	if e == nil {
		return "<nil>"
	}

	var detail string
	switch e.Code {
	case CodeUnknownKind:
		detail = fmt.Sprintf("tag %d", e.Tag)
	case CodeTrailingBytes:
		detail = fmt.Sprintf("%d byte(s) after last sub-record", e.Count)
	}

	switch {
	case detail != "" && e.Msg != "":
		return fmt.Sprintf("protocol %s: %s: %s", e.Code, detail, e.Msg)
	case detail != "":
		return fmt.Sprintf("protocol %s: %s", e.Code, detail)
	case e.Msg != "":
		return fmt.Sprintf("protocol %s: %s", e.Code, e.Msg)
	default:
		return fmt.Sprintf("protocol %s", e.Code)
	}
}

// Is allows errors.Is to compare ProtocolError values by Code
func (e *ProtocolError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ProtocolError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Predefined sentinel errors, one per code
var (
	ErrEmptyFrame    = &ProtocolError{Code: CodeEmpty}
	ErrUnknownKind   = &ProtocolError{Code: CodeUnknownKind}
	ErrTruncated     = &ProtocolError{Code: CodeTruncated}
	ErrTrailingBytes = &ProtocolError{Code: CodeTrailingBytes}
	ErrMalformed     = &ProtocolError{Code: CodeMalformed}
	ErrEncoding      = &ProtocolError{Code: CodeEncoding}
)

// IsCode reports whether err is a ProtocolError with the given code
func IsCode(err error, code ErrorCode) bool {
	var perr *ProtocolError
	if errors.As(err, &perr) {
		return perr.Code == code
	}
	return false
}
