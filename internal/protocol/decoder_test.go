package protocol

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// buildFrame assembles a frame by hand so the decoder tests do not depend on
// the encode path they are meant to check against.
func buildFrame(header []byte, payload []byte, tail []byte) []byte {
	f := append([]byte{}, header...)
	f = append(f, byte(len(payload)), byte(len(payload)>>8))
	f = append(f, payload...)
	f = append(f, tail...)
	return f
}

func decodeAll(t *testing.T, d *Decoder) []RawFrame {
	t.Helper()
	var frames []RawFrame
	for {
		f, res := d.Next()
		if res.Status != StatusFrame {
			return frames
		}
		frames = append(frames, f)
	}
}

func TestDecodeBothGrammars(t *testing.T) {
	buf := NewStreamBuffer(0)
	d := NewDecoder(buf)

	data := buildFrame(DataHeader, []byte{0x02, 0xAA, 1, 2, 3}, DataTail)
	cmd := buildFrame(CommandHeader, []byte{0xFF, 0x01, 0x00, 0x01}, CommandTail)
	if err := buf.Append(append(data, cmd...)); err != nil {
		t.Fatal(err)
	}

	got := decodeAll(t, d)
	want := []RawFrame{
		{Kind: KindData, Payload: []byte{0x02, 0xAA, 1, 2, 3}, Consumed: len(data)},
		{Kind: KindCommand, Payload: []byte{0xFF, 0x01, 0x00, 0x01}, Consumed: len(cmd)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decoded frames mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeChunkBoundaryIndependence(t *testing.T) {
	frameA := buildFrame(DataHeader, []byte{0x02, 0xAA, 9, 9}, DataTail)
	frameB := buildFrame(CommandHeader, []byte{0xFE, 0x01}, CommandTail)
	stream := append(append([]byte{}, frameA...), frameB...)

	// Decode the whole stream in one append as the reference.
	refBuf := NewStreamBuffer(0)
	refDec := NewDecoder(refBuf)
	if err := refBuf.Append(stream); err != nil {
		t.Fatal(err)
	}
	want := decodeAll(t, refDec)

	// Then feed it one byte at a time; the frame sequence must be
	// identical regardless of chunking.
	buf := NewStreamBuffer(0)
	d := NewDecoder(buf)
	var got []RawFrame
	for _, c := range stream {
		if err := buf.Append([]byte{c}); err != nil {
			t.Fatal(err)
		}
		got = append(got, decodeAll(t, d)...)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("chunked decode differs from single-shot (-want +got):\n%s", diff)
	}
}

func TestDecodeDiscardsLeadingGarbage(t *testing.T) {
	buf := NewStreamBuffer(0)
	d := NewDecoder(buf)

	garbage := []byte{0x00, 0x13, 0x37, 0xF4, 0x99, 0xAB, 0xCD}
	frame := buildFrame(DataHeader, []byte{0x02, 0xAA}, DataTail)
	if err := buf.Append(append(garbage, frame...)); err != nil {
		t.Fatal(err)
	}

	f, res := d.Next()
	if res.Status != StatusFrame {
		t.Fatalf("status = %v, want StatusFrame", res.Status)
	}
	if res.Discarded != len(garbage) {
		t.Errorf("Discarded = %d, want %d", res.Discarded, len(garbage))
	}
	if f.Kind != KindData {
		t.Errorf("Kind = %v, want KindData", f.Kind)
	}
}

func TestDecodeIncompleteConsumesNothing(t *testing.T) {
	buf := NewStreamBuffer(0)
	d := NewDecoder(buf)

	frame := buildFrame(DataHeader, []byte{0x02, 0xAA, 5, 5, 5}, DataTail)
	if err := buf.Append(frame[:len(frame)-3]); err != nil {
		t.Fatal(err)
	}

	// Repeated attempts on a truncated frame must not eat the header.
	for i := 0; i < 3; i++ {
		_, res := d.Next()
		if res.Status != StatusIncomplete {
			t.Fatalf("attempt %d: status = %v, want StatusIncomplete", i, res.Status)
		}
		if res.Discarded != 0 {
			t.Fatalf("attempt %d: Discarded = %d, want 0", i, res.Discarded)
		}
	}

	if err := buf.Append(frame[len(frame)-3:]); err != nil {
		t.Fatal(err)
	}
	_, res := d.Next()
	if res.Status != StatusFrame {
		t.Errorf("status after completing frame = %v, want StatusFrame", res.Status)
	}
}

func TestDecodeBadTailResynchronises(t *testing.T) {
	buf := NewStreamBuffer(0)
	d := NewDecoder(buf)

	corrupt := buildFrame(DataHeader, []byte{0x02, 0xAA, 1}, []byte{0xDE, 0xAD, 0xBE, 0xEF})
	good := buildFrame(DataHeader, []byte{0x02, 0xAA, 2}, DataTail)
	if err := buf.Append(append(corrupt, good...)); err != nil {
		t.Fatal(err)
	}

	f, res := d.Next()
	if res.Status != StatusFrame {
		t.Fatalf("status = %v, want StatusFrame", res.Status)
	}
	// The whole corrupted frame is shed byte-by-byte before the good one.
	if res.Discarded != len(corrupt) {
		t.Errorf("Discarded = %d, want %d", res.Discarded, len(corrupt))
	}
	if diff := cmp.Diff([]byte{0x02, 0xAA, 2}, f.Payload); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeZeroLengthFrame(t *testing.T) {
	buf := NewStreamBuffer(0)
	d := NewDecoder(buf)

	if err := buf.Append(buildFrame(CommandHeader, nil, CommandTail)); err != nil {
		t.Fatal(err)
	}
	f, res := d.Next()
	if res.Status != StatusFrame {
		t.Fatalf("status = %v, want StatusFrame", res.Status)
	}
	if len(f.Payload) != 0 {
		t.Errorf("payload = %v, want empty", f.Payload)
	}
	if f.Consumed != frameOverhead {
		t.Errorf("Consumed = %d, want %d", f.Consumed, frameOverhead)
	}
}

func TestDecodeOversizeLengthIsFalseHeader(t *testing.T) {
	buf := NewStreamBuffer(64)
	d := NewDecoder(buf)

	// A header whose declared length exceeds the buffer cap can never
	// complete; the decoder must shed it instead of waiting forever.
	bogus := append([]byte{}, DataHeader...)
	bogus = append(bogus, 0xFF, 0xFF)
	good := buildFrame(DataHeader, []byte{0x02, 0xAA}, DataTail)
	if err := buf.Append(append(bogus, good...)); err != nil {
		t.Fatal(err)
	}

	f, res := d.Next()
	if res.Status != StatusFrame {
		t.Fatalf("status = %v, want StatusFrame", res.Status)
	}
	if f.Kind != KindData || len(f.Payload) != 2 {
		t.Errorf("unexpected frame %+v", f)
	}
	if res.Discarded != len(bogus) {
		t.Errorf("Discarded = %d, want %d", res.Discarded, len(bogus))
	}
}

func TestDecodeKeepsSplitHeaderPrefix(t *testing.T) {
	buf := NewStreamBuffer(0)
	d := NewDecoder(buf)

	// Garbage followed by the first half of a header marker: the garbage
	// goes, the prefix stays for the next read to complete.
	if err := buf.Append([]byte{0x42, 0x42, 0xF4, 0xF3}); err != nil {
		t.Fatal(err)
	}
	_, res := d.Next()
	if res.Status != StatusIncomplete {
		t.Fatalf("status = %v, want StatusIncomplete", res.Status)
	}
	if res.Discarded != 2 {
		t.Errorf("Discarded = %d, want 2", res.Discarded)
	}

	rest := buildFrame(DataHeader, []byte{0x02, 0xAA}, DataTail)[2:]
	if err := buf.Append(rest); err != nil {
		t.Fatal(err)
	}
	_, res = d.Next()
	if res.Status != StatusFrame {
		t.Errorf("status = %v, want StatusFrame after header completes", res.Status)
	}
}

func TestEncodeCommandRoundTrip(t *testing.T) {
	buf := NewStreamBuffer(0)
	d := NewDecoder(buf)

	frame := EncodeCommand(CmdEnableConfig, []byte{0x01, 0x00})
	if err := buf.Append(frame); err != nil {
		t.Fatal(err)
	}

	f, res := d.Next()
	if res.Status != StatusFrame {
		t.Fatalf("status = %v, want StatusFrame", res.Status)
	}
	want := RawFrame{Kind: KindCommand, Payload: []byte{0xFF, 0x00, 0x01, 0x00}, Consumed: len(frame)}
	if diff := cmp.Diff(want, f); diff != "" {
		t.Errorf("frame mismatch (-want +got):\n%s", diff)
	}
}
