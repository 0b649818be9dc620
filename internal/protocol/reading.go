package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedPayload marks a well-framed data payload that fails the fixed
// layout for its declared report type. The frame is lost; the stream itself
// is fine and decoding continues.
var ErrMalformedPayload = errors.New("malformed report payload")

// TargetState is the module's aggregate presence classification.
type TargetState uint8

const (
	NoTarget              TargetState = 0
	MovingTarget          TargetState = 1
	StaticTarget          TargetState = 2
	MovingAndStaticTarget TargetState = 3
)

func (s TargetState) String() string {
	switch s {
	case NoTarget:
		return "no_target"
	case MovingTarget:
		return "moving"
	case StaticTarget:
		return "static"
	case MovingAndStaticTarget:
		return "moving+static"
	default:
		return fmt.Sprintf("target_state(%d)", uint8(s))
	}
}

// Mode is the reporting mode a frame was produced in.
type Mode int

const (
	ModeBasic Mode = iota
	ModeEngineering
)

func (m Mode) String() string {
	if m == ModeEngineering {
		return "engineering"
	}
	return "basic"
}

// Reading is one decoded sensor observation. The per-gate energy slices are
// populated only in engineering mode and then always hold exactly GateCount
// entries. DetectionDistanceCM is meaningful only when TargetState is not
// NoTarget.
type Reading struct {
	Timestamp time.Time
	Mode      Mode

	TargetState         TargetState
	MovingDistanceCM    uint16
	MovingEnergy        uint8
	StaticDistanceCM    uint16
	StaticEnergy        uint8
	DetectionDistanceCM uint16

	MovingGateEnergy []uint8
	StaticGateEnergy []uint8
	MaxMovingGate    uint8
	MaxStaticGate    uint8
}

// Fixed report payload sizes: type byte, head byte, target data, trailer.
// Basic target data is 9 bytes; engineering appends GateCount energies plus a
// max-gate index for each of the two profiles.
const (
	basicTargetLen = 9
	engTargetLen   = basicTargetLen + 2*(GateCount+1)

	basicPayloadLen = 4 + basicTargetLen
	engPayloadLen   = 4 + engTargetLen
)

// DecodeReading interprets a data-frame payload as a Reading captured at ts.
func DecodeReading(payload []byte, ts time.Time) (Reading, error) {
	if len(payload) < 4 {
		return Reading{}, fmt.Errorf("%w: %d bytes", ErrMalformedPayload, len(payload))
	}

	var mode Mode
	switch payload[0] {
	case reportTypeBasic:
		if len(payload) != basicPayloadLen {
			return Reading{}, fmt.Errorf("%w: basic report is %d bytes, want %d", ErrMalformedPayload, len(payload), basicPayloadLen)
		}
		mode = ModeBasic
	case reportTypeEngineering:
		if len(payload) != engPayloadLen {
			return Reading{}, fmt.Errorf("%w: engineering report is %d bytes, want %d", ErrMalformedPayload, len(payload), engPayloadLen)
		}
		mode = ModeEngineering
	default:
		return Reading{}, fmt.Errorf("%w: unknown report type 0x%02X", ErrMalformedPayload, payload[0])
	}

	if payload[1] != reportHead {
		return Reading{}, fmt.Errorf("%w: bad head byte 0x%02X", ErrMalformedPayload, payload[1])
	}
	if payload[len(payload)-2] != reportTrailer0 || payload[len(payload)-1] != reportTrailer1 {
		return Reading{}, fmt.Errorf("%w: bad trailer", ErrMalformedPayload)
	}

	data := payload[2 : len(payload)-2]
	state := TargetState(data[0])
	if state > MovingAndStaticTarget {
		return Reading{}, fmt.Errorf("%w: target state %d", ErrMalformedPayload, data[0])
	}

	r := Reading{
		Timestamp:           ts,
		Mode:                mode,
		TargetState:         state,
		MovingDistanceCM:    binary.LittleEndian.Uint16(data[1:3]),
		MovingEnergy:        data[3],
		StaticDistanceCM:    binary.LittleEndian.Uint16(data[4:6]),
		StaticEnergy:        data[6],
		DetectionDistanceCM: binary.LittleEndian.Uint16(data[7:9]),
	}

	if mode == ModeEngineering {
		eng := data[basicTargetLen:]
		r.MovingGateEnergy = append([]uint8(nil), eng[:GateCount]...)
		r.MaxMovingGate = eng[GateCount]
		r.StaticGateEnergy = append([]uint8(nil), eng[GateCount+1:2*GateCount+1]...)
		r.MaxStaticGate = eng[2*GateCount+1]
	}
	return r, nil
}

// EncodeReading builds a complete data frame carrying r, markers included.
// The inverse of the decode path; used by fixtures and tests to synthesise
// module output.
func EncodeReading(r Reading) []byte {
	var data []byte
	data = append(data, byte(r.TargetState))
	data = binary.LittleEndian.AppendUint16(data, r.MovingDistanceCM)
	data = append(data, r.MovingEnergy)
	data = binary.LittleEndian.AppendUint16(data, r.StaticDistanceCM)
	data = append(data, r.StaticEnergy)
	data = binary.LittleEndian.AppendUint16(data, r.DetectionDistanceCM)

	typeByte := byte(reportTypeBasic)
	if r.Mode == ModeEngineering {
		typeByte = reportTypeEngineering
		moving := make([]uint8, GateCount)
		copy(moving, r.MovingGateEnergy)
		static := make([]uint8, GateCount)
		copy(static, r.StaticGateEnergy)
		data = append(data, moving...)
		data = append(data, r.MaxMovingGate)
		data = append(data, static...)
		data = append(data, r.MaxStaticGate)
	}

	payload := make([]byte, 0, 4+len(data))
	payload = append(payload, typeByte, reportHead)
	payload = append(payload, data...)
	payload = append(payload, reportTrailer0, reportTrailer1)

	frame := make([]byte, 0, frameOverhead+len(payload))
	frame = append(frame, DataHeader...)
	frame = binary.LittleEndian.AppendUint16(frame, uint16(len(payload)))
	frame = append(frame, payload...)
	frame = append(frame, DataTail...)
	return frame
}
