// Package protocol implements the Progressor wire protocol.
//
// It translates between domain values and the bytes exchanged over the two GATT
// characteristics of the device:
//   - Command frames written to the control point: [opcode] ++ payload
//   - Response frames notified on the data characteristic: [kind][header][payload...]
//
// The package is pure: no I/O and no state. Correlating a generic command response
// with the command that triggered it is the caller's job (see the session package).
package protocol
