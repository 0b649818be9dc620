package radar

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/banshee-data/ld2410/internal/monitoring"
	"github.com/banshee-data/ld2410/internal/protocol"
	"github.com/banshee-data/ld2410/internal/timeutil"
)

// CommandResult is the decoded outcome of one command/ACK exchange.
type CommandResult struct {
	Word    uint16
	Success bool
	Body    []byte
}

// pendingCommand is the single outstanding exchange. Its done channel is a
// one-shot completion slot: either the ACK router delivers a result or the
// issuer abandons the slot on timeout/cancellation.
type pendingCommand struct {
	word     uint16
	issuedAt time.Time
	done     chan CommandResult
}

// commandSession enforces the strict request/then/response discipline of the
// command grammar: at most one command in flight, replies correlated by
// command word, unsolicited or stale ACKs dropped.
type commandSession struct {
	mu      sync.Mutex
	clock   timeutil.Clock
	pending *pendingCommand
}

func newCommandSession(clock timeutil.Clock) *commandSession {
	return &commandSession{clock: clock}
}

// begin claims the pending slot for word. It fails with ErrSessionBusy if a
// command is already awaiting its reply.
func (s *commandSession) begin(word uint16) (*pendingCommand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		return nil, ErrSessionBusy
	}
	p := &pendingCommand{
		word:     word,
		issuedAt: s.clock.Now(),
		done:     make(chan CommandResult, 1),
	}
	s.pending = p
	return p, nil
}

// release abandons p if it is still the outstanding command. Called on
// timeout or cancellation so that a reply arriving afterwards is treated as
// stale and discarded without error.
func (s *commandSession) release(p *pendingCommand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == p {
		s.pending = nil
	}
}

// handleAck routes a command-frame payload to the outstanding command. The
// ACK payload is [word|AckFlag: u16 LE][status: u16 LE][body...]; status zero
// means success. Replies with no pending command, or for a different word,
// are logged and dropped.
func (s *commandSession) handleAck(payload []byte) {
	if len(payload) < 4 {
		monitoring.Logf("radar: dropping short ACK payload (%d bytes)", len(payload))
		return
	}
	ackWord := binary.LittleEndian.Uint16(payload[0:2])
	status := binary.LittleEndian.Uint16(payload[2:4])

	s.mu.Lock()
	p := s.pending
	if p == nil || ackWord != p.word|protocol.AckFlag {
		s.mu.Unlock()
		monitoring.Logf("radar: dropping unsolicited ACK for command 0x%04X", ackWord&^protocol.AckFlag)
		return
	}
	s.pending = nil
	s.mu.Unlock()

	body := append([]byte(nil), payload[4:]...)
	p.done <- CommandResult{Word: p.word, Success: status == 0, Body: body}
}
