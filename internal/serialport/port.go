// Package serialport abstracts the serial link to the radar module so the
// protocol engine can run against a real port or an in-memory fake.
package serialport

import "io"

// Porter is the minimal transport surface the radar handler needs: raw
// reads, raw writes and close. The real implementation is a go.bug.st/serial
// port.
type Porter interface {
	io.ReadWriter
	io.Closer
}
