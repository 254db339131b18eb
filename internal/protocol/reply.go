package protocol

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// BatteryVoltageSize is the payload length of a battery voltage reply.
const BatteryVoltageSize = 4

// DecodeAppVersion interprets a CmdGetAppVersion reply as UTF-8 firmware version text.
func DecodeAppVersion(payload []byte) (string, error) {
	return decodeText(payload, "firmware version")
}

// DecodeBatteryVoltage interprets a CmdGetBatteryVoltage reply as millivolts.
func DecodeBatteryVoltage(payload []byte) (uint32, error) {
	if len(payload) != BatteryVoltageSize {
		return 0, &ProtocolError{
			Code:  CodeMalformed,
			Count: len(payload),
			Msg:   fmt.Sprintf("battery voltage needs %d bytes", BatteryVoltageSize),
		}
	}
	return binary.LittleEndian.Uint32(payload), nil
}

// DecodeErrorInformation interprets a CmdGetErrorInformation reply. An empty payload
// means the device holds no crash log and is not an error.
func DecodeErrorInformation(payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", nil
	}
	return decodeText(payload, "crash log")
}

func decodeText(payload []byte, what string) (string, error) {
	if !utf8.Valid(payload) {
		return "", &ProtocolError{Code: CodeEncoding, Count: len(payload), Msg: what + " is not valid UTF-8"}
	}
	return string(payload), nil
}
