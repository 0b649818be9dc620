package protocol

import (
	"bytes"
	"encoding/binary"
)

// RawFrame is one validated frame lifted off the byte stream. Payload
// excludes the markers and the length field; Consumed counts every byte the
// frame occupied on the wire, markers included.
type RawFrame struct {
	Kind     Kind
	Payload  []byte
	Consumed int
}

// Status reports the outcome of a decode attempt.
type Status int

const (
	// StatusFrame: a complete frame was decoded and consumed.
	StatusFrame Status = iota
	// StatusIncomplete: no complete frame is buffered yet; nothing that
	// could still become a frame was consumed. Call again after appending
	// more input.
	StatusIncomplete
)

// Result accompanies every decode attempt. Discarded counts bytes dropped as
// garbage while locating the frame boundary: noise before a header, or bytes
// shed one at a time while resynchronising after a false header. Discards are
// self-healing and never fatal; the count exists for observability.
type Result struct {
	Status    Status
	Discarded int
}

// Decoder scans a StreamBuffer for the next complete frame in either
// grammar.
type Decoder struct {
	buf *StreamBuffer
}

func NewDecoder(buf *StreamBuffer) *Decoder {
	return &Decoder{buf: buf}
}

// Next locates, validates and consumes the next frame in the buffer.
//
// Bytes ahead of the first recognisable header are discarded. A header whose
// declared length cannot fit the buffer cap, or whose computed tail position
// holds the wrong marker, is treated as a false positive: exactly one byte is
// shed and the scan restarts. A header whose frame is merely not fully
// buffered yet consumes nothing, so the same header is re-found on the next
// call.
func (d *Decoder) Next() (RawFrame, Result) {
	discarded := 0
	for {
		b := d.buf.Bytes()

		start, kind := findHeader(b)
		if start < 0 {
			// No header. Keep any trailing bytes that could be the
			// start of a marker split across reads; the rest is
			// garbage.
			keep := headerPrefixLen(b)
			n := len(b) - keep
			d.buf.DropFront(n)
			discarded += n
			return RawFrame{}, Result{Status: StatusIncomplete, Discarded: discarded}
		}
		if start > 0 {
			d.buf.DropFront(start)
			discarded += start
			b = d.buf.Bytes()
		}

		if len(b) < markerLen+lengthLen {
			return RawFrame{}, Result{Status: StatusIncomplete, Discarded: discarded}
		}
		length := int(binary.LittleEndian.Uint16(b[markerLen:]))
		total := frameOverhead + length

		if total > d.buf.Cap() {
			// Declared length can never fit: false header. Shed one
			// byte rather than waiting forever.
			d.buf.DropFront(1)
			discarded++
			continue
		}
		if len(b) < total {
			return RawFrame{}, Result{Status: StatusIncomplete, Discarded: discarded}
		}

		tail := DataTail
		if kind == KindCommand {
			tail = CommandTail
		}
		if !bytes.Equal(b[total-markerLen:total], tail) {
			// Wrong tail at the computed offset: the header was a
			// false positive. One-byte resynchronisation.
			d.buf.DropFront(1)
			discarded++
			continue
		}

		payload := make([]byte, length)
		copy(payload, b[markerLen+lengthLen:markerLen+lengthLen+length])
		d.buf.DropFront(total)
		return RawFrame{Kind: kind, Payload: payload, Consumed: total}, Result{Status: StatusFrame, Discarded: discarded}
	}
}

// findHeader returns the offset and grammar of the nearest header marker, or
// -1 if neither marker occurs in b.
func findHeader(b []byte) (int, Kind) {
	di := bytes.Index(b, DataHeader)
	ci := bytes.Index(b, CommandHeader)
	switch {
	case di < 0 && ci < 0:
		return -1, KindData
	case ci < 0 || (di >= 0 && di < ci):
		return di, KindData
	default:
		return ci, KindCommand
	}
}

// headerPrefixLen reports the length of the longest suffix of b that is a
// proper prefix of either header marker. Those bytes must survive a garbage
// flush because the rest of the marker may still be in flight.
func headerPrefixLen(b []byte) int {
	longest := markerLen - 1
	if len(b) < longest {
		longest = len(b)
	}
	for n := longest; n > 0; n-- {
		suffix := b[len(b)-n:]
		if bytes.Equal(suffix, DataHeader[:n]) || bytes.Equal(suffix, CommandHeader[:n]) {
			return n
		}
	}
	return 0
}

// EncodeCommand builds a command frame for the given command word and value
// bytes, ready to write to the port.
func EncodeCommand(word uint16, value []byte) []byte {
	length := 2 + len(value)
	frame := make([]byte, 0, frameOverhead+length)
	frame = append(frame, CommandHeader...)
	frame = binary.LittleEndian.AppendUint16(frame, uint16(length))
	frame = binary.LittleEndian.AppendUint16(frame, word)
	frame = append(frame, value...)
	frame = append(frame, CommandTail...)
	return frame
}
