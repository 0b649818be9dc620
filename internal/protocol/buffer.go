package protocol

import "errors"

// ErrBufferOverflow is returned by Append when the accumulated bytes would
// exceed the buffer cap without a complete frame having been consumed. The
// caller is expected to Reset and resynchronise from fresh input.
var ErrBufferOverflow = errors.New("stream buffer overflow: framing lost")

// DefaultBufferCap bounds how many bytes may accumulate while searching for a
// frame boundary. The largest legal frame is well under 100 bytes, so a few
// KB gives ample slack for bursts of garbage without unbounded growth.
const DefaultBufferCap = 4096

// StreamBuffer accumulates raw serial bytes and lets the decoder scan and
// advance over them. It carries no frame semantics of its own.
//
// Not safe for concurrent use; the owning handler serialises access.
type StreamBuffer struct {
	buf []byte
	cap int
}

// NewStreamBuffer returns a buffer bounded at max bytes. A max of zero or
// less selects DefaultBufferCap.
func NewStreamBuffer(max int) *StreamBuffer {
	if max <= 0 {
		max = DefaultBufferCap
	}
	return &StreamBuffer{cap: max}
}

// Append adds newly read bytes at the tail. If the result would exceed the
// buffer cap the buffer is left unchanged and ErrBufferOverflow is returned.
func (b *StreamBuffer) Append(p []byte) error {
	if len(b.buf)+len(p) > b.cap {
		return ErrBufferOverflow
	}
	b.buf = append(b.buf, p...)
	return nil
}

// Bytes returns a view of the accumulated bytes. The slice is only valid
// until the next Append, DropFront or Reset.
func (b *StreamBuffer) Bytes() []byte { return b.buf }

// Len returns the number of accumulated bytes.
func (b *StreamBuffer) Len() int { return len(b.buf) }

// Cap returns the configured maximum buffer size.
func (b *StreamBuffer) Cap() int { return b.cap }

// DropFront discards the first n bytes. Dropping more than is buffered
// empties the buffer.
func (b *StreamBuffer) DropFront(n int) {
	if n >= len(b.buf) {
		b.buf = b.buf[:0]
		return
	}
	b.buf = append(b.buf[:0], b.buf[n:]...)
}

// Reset discards all buffered bytes.
func (b *StreamBuffer) Reset() { b.buf = b.buf[:0] }
