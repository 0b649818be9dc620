// Package radar drives the LD2410 presence-detection module over a serial
// link: it owns the port, turns the byte stream into readings, and runs the
// command/ACK exchanges used to configure the module.
package radar

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/ld2410/internal/monitoring"
	"github.com/banshee-data/ld2410/internal/protocol"
	"github.com/banshee-data/ld2410/internal/serialport"
	"github.com/banshee-data/ld2410/internal/timeutil"
)

// DefaultCommandTimeout bounds how long a command waits for its ACK.
const DefaultCommandTimeout = time.Second

const readChunkSize = 512

// ConnectionState is the handler's view of the module's mode. Both flags are
// reset when the transport goes away: a reconnected module starts outside
// configuration mode regardless of what was negotiated before.
type ConnectionState struct {
	ConfigModeEntered      bool
	EngineeringModeEnabled bool
}

// Options tunes a Handler. The zero value selects production defaults.
type Options struct {
	// Clock substitutes a test clock. Nil means the real one.
	Clock timeutil.Clock

	// CommandTimeout bounds each command/ACK exchange. Zero means
	// DefaultCommandTimeout.
	CommandTimeout time.Duration

	// BufferCap bounds the stream scratch buffer. Zero means
	// protocol.DefaultBufferCap.
	BufferCap int

	// HistorySize bounds the in-memory readings history. Zero means the
	// history default.
	HistorySize int
}

// Handler is the single owner of one radar module's serial link. One
// goroutine runs Monitor; any number of callers may subscribe to readings or
// issue commands through the typed command surface.
type Handler struct {
	port       serialport.Porter
	clock      timeutil.Clock
	cmdTimeout time.Duration

	buf  *protocol.StreamBuffer
	dec  *protocol.Decoder
	sess *commandSession

	history *History

	subMu       sync.Mutex
	subscribers map[string]chan protocol.Reading

	stateMu sync.Mutex
	state   ConnectionState
	// Last values pushed for the 0x0060 parameter triplet. The module
	// only accepts max gates and the no-one duration together, so the
	// handler remembers the counterparts each setter should resend.
	maxMovingGate uint8
	maxStaticGate uint8
	noOneDuration uint16

	closingMu sync.Mutex
	closing   bool

	// Observability counters. Framing trouble is self-healing and never
	// surfaced to callers, so the counters are the only record of it.
	FramesDecoded   monitoring.Counter
	FramingDiscards monitoring.Counter
	DroppedFrames   monitoring.Counter
}

// NewHandler wraps an open serial port. The handler takes ownership of the
// port and closes it on Close.
func NewHandler(port serialport.Porter, opts Options) *Handler {
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	timeout := opts.CommandTimeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}

	buf := protocol.NewStreamBuffer(opts.BufferCap)
	return &Handler{
		port:          port,
		clock:         clock,
		cmdTimeout:    timeout,
		buf:           buf,
		dec:           protocol.NewDecoder(buf),
		sess:          newCommandSession(clock),
		history:       NewHistory(opts.HistorySize),
		subscribers:   make(map[string]chan protocol.Reading),
		maxMovingGate: protocol.GateCount - 1,
		maxStaticGate: protocol.GateCount - 1,
		noOneDuration: 5,
	}
}

// State returns the handler's view of the module's mode.
func (h *Handler) State() ConnectionState {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	return h.state
}

// History returns the bounded in-memory readings history.
func (h *Handler) History() *History { return h.history }

// Subscribe registers a channel receiving every decoded reading. The
// returned id identifies the subscription for Unsubscribe. Slow subscribers
// miss readings rather than stalling the decode loop.
func (h *Handler) Subscribe() (string, <-chan protocol.Reading) {
	id := uuid.NewString()
	ch := make(chan protocol.Reading, 16)
	h.subMu.Lock()
	defer h.subMu.Unlock()
	h.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscription and closes its channel.
func (h *Handler) Unsubscribe(id string) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
	}
}

// ReadFrame blocks until the next reading arrives or timeout elapses.
func (h *Handler) ReadFrame(timeout time.Duration) (protocol.Reading, error) {
	id, ch := h.Subscribe()
	defer h.Unsubscribe(id)

	timer := h.clock.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r, ok := <-ch:
		if !ok {
			return protocol.Reading{}, ErrClosed
		}
		return r, nil
	case <-timer.C():
		return protocol.Reading{}, ErrTimeout
	}
}

// Monitor pumps the serial port until ctx is cancelled or the transport
// fails. Exactly one goroutine must run Monitor per handler; it is the only
// reader of the port.
func (h *Handler) Monitor(ctx context.Context) error {
	readCh := make(chan []byte)
	errCh := make(chan error, 1)

	// Reads block in their own goroutine so the loop stays responsive to
	// cancellation.
	go func() {
		defer close(readCh)
		buf := make([]byte, readChunkSize)
		for {
			n, err := h.port.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case readCh <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					select {
					case errCh <- err:
					case <-ctx.Done():
					}
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.resetState()
			return ctx.Err()

		case err := <-errCh:
			h.resetState()
			return fmt.Errorf("serial read failed: %w", err)

		case chunk, ok := <-readCh:
			if !ok {
				// Port drained (EOF) or cancelled.
				h.resetState()
				return nil
			}
			h.closingMu.Lock()
			if h.closing {
				h.closingMu.Unlock()
				return nil
			}
			h.closingMu.Unlock()

			h.ingest(chunk)
		}
	}
}

// ingest appends newly read bytes and drains every complete frame.
func (h *Handler) ingest(chunk []byte) {
	if err := h.buf.Append(chunk); err != nil {
		// Framing lost: flush everything and resynchronise on fresh
		// input.
		monitoring.Logf("radar: %v, flushing %d bytes", err, h.buf.Len())
		h.FramingDiscards.Add(int64(h.buf.Len()))
		h.buf.Reset()
		if err := h.buf.Append(chunk); err != nil {
			monitoring.Logf("radar: dropping oversized read chunk (%d bytes)", len(chunk))
			h.FramingDiscards.Add(int64(len(chunk)))
			return
		}
	}

	for {
		frame, res := h.dec.Next()
		if res.Discarded > 0 {
			monitoring.Logf("radar: discarded %d garbage bytes while framing", res.Discarded)
			h.FramingDiscards.Add(int64(res.Discarded))
		}
		if res.Status != protocol.StatusFrame {
			return
		}
		h.dispatch(frame)
	}
}

func (h *Handler) dispatch(frame protocol.RawFrame) {
	h.FramesDecoded.Add(1)
	switch frame.Kind {
	case protocol.KindData:
		reading, err := protocol.DecodeReading(frame.Payload, h.clock.Now())
		if err != nil {
			// The frame is lost but the stream is intact; keep
			// reading.
			monitoring.Logf("radar: dropping frame: %v", err)
			h.DroppedFrames.Add(1)
			return
		}
		h.history.Add(reading)
		h.publish(reading)
	case protocol.KindCommand:
		h.sess.handleAck(frame.Payload)
	}
}

func (h *Handler) publish(r protocol.Reading) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	for _, ch := range h.subscribers {
		select {
		case ch <- r:
		default:
			// Subscriber not keeping up; skip rather than block the
			// decode loop.
		}
	}
}

// execute runs one command/ACK exchange: claim the session slot, write the
// frame, and wait for the correlated reply, the timeout or cancellation.
// Abandoning the wait releases the slot immediately; a reply arriving later
// is discarded as stale by the session.
func (h *Handler) execute(ctx context.Context, word uint16, value []byte) (CommandResult, error) {
	p, err := h.sess.begin(word)
	if err != nil {
		return CommandResult{}, err
	}

	timer := h.clock.NewTimer(h.cmdTimeout)
	defer timer.Stop()

	if _, err := h.port.Write(protocol.EncodeCommand(word, value)); err != nil {
		h.sess.release(p)
		return CommandResult{}, fmt.Errorf("serial write failed: %w", err)
	}

	select {
	case res := <-p.done:
		return res, nil
	case <-timer.C():
		h.sess.release(p)
		return CommandResult{}, fmt.Errorf("command 0x%04X: %w", word, ErrTimeout)
	case <-ctx.Done():
		h.sess.release(p)
		return CommandResult{}, ctx.Err()
	}
}

func (h *Handler) resetState() {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	h.state = ConnectionState{}
}

// Close shuts down the handler: subscribers are closed, the monitor loop is
// told to stop, and the port is closed.
func (h *Handler) Close() error {
	h.closingMu.Lock()
	h.closing = true
	h.closingMu.Unlock()

	h.subMu.Lock()
	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
	h.subMu.Unlock()

	h.resetState()
	return h.port.Close()
}
