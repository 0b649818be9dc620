// Package protocol implements the LD2410 binary wire protocol: frame
// boundaries, the report-frame payload layouts and the command/ACK frame
// encoding.
//
// The module multiplexes two framing grammars on one serial stream, both of
// the shape
//
//	[header marker][length:u16 LE][payload][tail marker]
//
// distinguished by disjoint marker pairs. There is no checksum; frame
// acceptance rests entirely on marker/length/tail consistency.
package protocol

// Marker byte sequences for the two framing grammars.
var (
	DataHeader = []byte{0xF4, 0xF3, 0xF2, 0xF1}
	DataTail   = []byte{0xF8, 0xF7, 0xF6, 0xF5}

	CommandHeader = []byte{0xFD, 0xFC, 0xFB, 0xFA}
	CommandTail   = []byte{0x04, 0x03, 0x02, 0x01}
)

const (
	markerLen = 4
	lengthLen = 2

	// frameOverhead is the number of non-payload bytes in every frame:
	// header marker, length field and tail marker.
	frameOverhead = 2*markerLen + lengthLen
)

// Kind identifies which framing grammar a decoded frame belongs to.
type Kind int

const (
	KindData Kind = iota
	KindCommand
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindCommand:
		return "command"
	default:
		return "unknown"
	}
}

// Distance gates. The module reports one energy value per gate; gate pitch is
// fixed by the hardware at 0.75m, nine gates covering 0 to 6.75m.
const (
	GateCount   = 9
	GatePitchCM = 75
)

// Report payload type bytes. Inside a data frame the first payload byte
// declares the reporting mode.
const (
	reportTypeEngineering = 0x01
	reportTypeBasic       = 0x02
)

// Intra-payload framing of report data: a head byte after the type byte and a
// two-byte trailer closing the payload.
const (
	reportHead     = 0xAA
	reportTrailer0 = 0x55
	reportTrailer1 = 0x00
)

// Command words understood by the module. Words are sent as u16 LE at the
// start of a command payload; the ACK echoes the word with bit 8 set.
const (
	CmdEnableConfig       uint16 = 0x00FF
	CmdEndConfig          uint16 = 0x00FE
	CmdSetMaxGateAndNoOne uint16 = 0x0060
	CmdReadParameters     uint16 = 0x0061
	CmdEnableEngineering  uint16 = 0x0062
	CmdEndEngineering     uint16 = 0x0063
	CmdSetGateSensitivity uint16 = 0x0064
	CmdReadFirmware       uint16 = 0x00A0
	CmdFactoryReset       uint16 = 0x00A2
	CmdRestart            uint16 = 0x00A3

	// AckFlag is OR-ed into the request word by the module when replying.
	AckFlag uint16 = 0x0100
)
