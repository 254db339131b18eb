package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Command is a one-byte opcode written to the control point characteristic.
type Command uint8

// Opcodes as defined by the device firmware. The values are fixed; do not renumber.
const (
	CmdTare                          Command = 100
	CmdStartWeightMeasurement        Command = 101
	CmdStopWeightMeasurement         Command = 102
	CmdStartPeakRFDMeasurement       Command = 103
	CmdStartPeakRFDMeasurementSeries Command = 104
	CmdAddCalibrationPoint           Command = 105
	CmdSaveCalibration               Command = 106
	CmdGetAppVersion                 Command = 107
	CmdGetErrorInformation           Command = 108
	CmdClearErrorInformation         Command = 109
	CmdEnterSleep                    Command = 110
	CmdGetBatteryVoltage             Command = 111
)

// CalibrationPointSize is the payload length of CmdAddCalibrationPoint.
const CalibrationPointSize = 4

var commandNames = map[Command]string{
	CmdTare:                          "tare",
	CmdStartWeightMeasurement:        "start",
	CmdStopWeightMeasurement:         "stop",
	CmdStartPeakRFDMeasurement:       "start-peak-rfd",
	CmdStartPeakRFDMeasurementSeries: "start-peak-rfd-series",
	CmdAddCalibrationPoint:           "add-calibration-point",
	CmdSaveCalibration:               "save-calibration",
	CmdGetAppVersion:                 "version",
	CmdGetErrorInformation:           "errors",
	CmdClearErrorInformation:         "clear-errors",
	CmdEnterSleep:                    "sleep",
	CmdGetBatteryVoltage:             "battery",
}

// String returns the short command name used on the command line.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("command(%d)", uint8(c))
}

// Known reports whether c is part of the opcode table.
func (c Command) Known() bool {
	_, ok := commandNames[c]
	return ok
}

// IsQuery reports whether the device answers c with a CommandResponse frame.
func (c Command) IsQuery() bool {
	switch c {
	case CmdGetAppVersion, CmdGetBatteryVoltage, CmdGetErrorInformation:
		return true
	default:
		return false
	}
}

// CommandNames returns all command names in opcode order.
func CommandNames() []string {
	cmds := make([]int, 0, len(commandNames))
	for c := range commandNames {
		cmds = append(cmds, int(c))
	}
	sort.Ints(cmds)

	names := make([]string, 0, len(cmds))
	for _, c := range cmds {
		names = append(names, commandNames[Command(c)])
	}
	return names
}

// ParseCommand resolves a command by name (case-insensitive) or by decimal opcode.
func ParseCommand(s string) (Command, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for c, name := range commandNames {
		if name == s {
			return c, nil
		}
	}

	if n, err := strconv.ParseUint(s, 10, 8); err == nil && Command(n).Known() {
		return Command(n), nil
	}

	return 0, fmt.Errorf("unknown command %q: use one of %s", s, strings.Join(CommandNames(), ", "))
}

// EncodeCommand builds a control point frame: the opcode followed by the payload.
// Payload length constraints are command specific and enforced by the caller.
func EncodeCommand(cmd Command, payload ...byte) []byte {
	frame := make([]byte, 0, 1+len(payload))
	frame = append(frame, byte(cmd))
	return append(frame, payload...)
}

// CalibrationPoint encodes the known reference weight sent with CmdAddCalibrationPoint.
func CalibrationPoint(weight float32) []byte {
	b := make([]byte, CalibrationPointSize)
	binary.LittleEndian.PutUint32(b, math.Float32bits(weight))
	return b
}
