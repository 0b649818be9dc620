package radar

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionBusy: a command was issued while another is awaiting its
	// reply. The protocol carries one exchange at a time; there is no
	// queueing.
	ErrSessionBusy = errors.New("command session busy")

	// ErrTimeout: no matching ACK arrived within the command timeout. The
	// condition is retryable.
	ErrTimeout = errors.New("command timed out")

	// ErrProtocolState: the command requires configuration mode and the
	// module has not been put in it. Surfaced before any bytes are sent.
	ErrProtocolState = errors.New("configuration mode not entered")

	// ErrClosed: the handler has been closed.
	ErrClosed = errors.New("radar handler closed")
)

// CommandError reports a command the module acknowledged with failure
// status.
type CommandError struct {
	Word uint16
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("module rejected command 0x%04X", e.Word)
}
