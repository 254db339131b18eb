package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ResponseKind is the leading byte of every frame notified on the data characteristic.
type ResponseKind uint8

const (
	KindCommandResponse   ResponseKind = 0
	KindWeightMeasurement ResponseKind = 1
	KindPeakRFD           ResponseKind = 2
	KindPeakRFDSeries     ResponseKind = 3
	KindLowPowerWarning   ResponseKind = 4
)

const (
	// HeaderSize is the [kind][reserved_or_length] prefix of a response frame.
	HeaderSize = 2

	// SampleSize is the length of one packed (weight, timestamp) sub-record.
	SampleSize = 8
)

// String returns a human-readable response kind
func (k ResponseKind) String() string {
	switch k {
	case KindCommandResponse:
		return "command_response"
	case KindWeightMeasurement:
		return "weight_measurement"
	case KindPeakRFD:
		return "peak_rfd"
	case KindPeakRFDSeries:
		return "peak_rfd_series"
	case KindLowPowerWarning:
		return "low_power_warning"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Known reports whether k is a recognised response kind.
func (k ResponseKind) Known() bool {
	return k <= KindLowPowerWarning
}

// Sample is a single decoded force measurement.
type Sample struct {
	Weight      float32 // as reported by the device, no unit conversion
	TimestampUs uint32  // device clock, microseconds
}

// Response is one decoded inbound frame.
//
// Header holds byte 1 of the frame: reserved for command responses and the declared
// payload length for weight measurements. It is informational only; decoding always
// follows the actual buffer length.
type Response struct {
	Kind    ResponseKind
	Header  byte
	Samples []Sample // KindWeightMeasurement
	Payload []byte   // KindCommandResponse, KindPeakRFD, KindPeakRFDSeries
}

// EncodeSample appends the 8-byte little-endian sub-record for s to dst.
func EncodeSample(dst []byte, s Sample) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(s.Weight))
	return binary.LittleEndian.AppendUint32(dst, s.TimestampUs)
}

// DecodeSample decodes one sub-record: little-endian float32 weight followed by a
// little-endian uint32 timestamp.
func DecodeSample(b []byte) (Sample, error) {
	if len(b) < SampleSize {
		return Sample{}, &ProtocolError{Code: CodeMalformed, Count: len(b), Msg: fmt.Sprintf("sub-record needs %d bytes", SampleSize)}
	}
	return sampleAt(b), nil
}

// sampleAt reads the sub-record at the start of b, which holds at least SampleSize bytes
func sampleAt(b []byte) Sample {
	return Sample{
		Weight:      math.Float32frombits(binary.LittleEndian.Uint32(b[0:4])),
		TimestampUs: binary.LittleEndian.Uint32(b[4:8]),
	}
}

// EncodeWeightFrame builds a WeightMeasurement frame carrying samples. The length
// byte is set to the payload size (truncated to a byte, as the device does).
func EncodeWeightFrame(samples ...Sample) []byte {
	frame := make([]byte, 0, HeaderSize+len(samples)*SampleSize)
	frame = append(frame, byte(KindWeightMeasurement), byte(len(samples)*SampleSize))
	for _, s := range samples {
		frame = EncodeSample(frame, s)
	}
	return frame
}

// EncodeCommandResponse builds a CommandResponse frame around payload.
func EncodeCommandResponse(payload []byte) []byte {
	frame := make([]byte, 0, HeaderSize+len(payload))
	frame = append(frame, byte(KindCommandResponse), byte(len(payload)))
	return append(frame, payload...)
}

// DecodeResponse classifies and decodes one inbound frame.
//
// For weight measurements a payload that is not a multiple of SampleSize yields the
// complete samples together with an ErrTrailingBytes error (decode and warn); callers
// must use the returned Response even when err is non-nil in that case. Any other
// error comes with a nil Response.
func DecodeResponse(frame []byte) (*Response, error) {
	if len(frame) == 0 {
		return nil, ErrEmptyFrame
	}

	kind := ResponseKind(frame[0])
	if !kind.Known() {
		return nil, &ProtocolError{Code: CodeUnknownKind, Tag: frame[0]}
	}

	resp := &Response{Kind: kind}
	if len(frame) > 1 {
		resp.Header = frame[1]
	}

	switch kind {
	case KindLowPowerWarning:
		return resp, nil

	case KindWeightMeasurement:
		if len(frame) < HeaderSize {
			return nil, &ProtocolError{Code: CodeTruncated, Msg: "weight measurement without length byte"}
		}
		return decodeSamples(resp, frame[HeaderSize:])

	default:
		// Command responses and peak RFD frames are opaque at this layer
		if len(frame) > HeaderSize {
			resp.Payload = append([]byte(nil), frame[HeaderSize:]...)
		} else {
			resp.Payload = []byte{}
		}
		return resp, nil
	}
}

func decodeSamples(resp *Response, payload []byte) (*Response, error) {
	n := len(payload) / SampleSize
	resp.Samples = make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		resp.Samples = append(resp.Samples, sampleAt(payload[i*SampleSize:]))
	}

	if rem := len(payload) % SampleSize; rem != 0 {
		return resp, &ProtocolError{
			Code:  CodeTrailingBytes,
			Count: rem,
			Msg:   fmt.Sprintf("declared length %d, actual %d", resp.Header, len(payload)),
		}
	}
	return resp, nil
}
