package serialport

import (
	"io"
	"sync"
)

// MockPort implements Porter for tests and fixture playback. Reads block
// until bytes are pushed with Push (or the port is closed), which mirrors a
// quiet serial line better than returning zero-length reads in a tight loop.
type MockPort struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []byte
	written []byte
	closed  bool

	WriteError error
}

func NewMockPort() *MockPort {
	m := &MockPort{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Push queues bytes for subsequent reads, waking any blocked reader. Chunk
// boundaries are not preserved: Read drains whatever is queued, like a real
// port's receive buffer.
func (m *MockPort) Push(p []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, p...)
	m.cond.Broadcast()
}

func (m *MockPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.pending) == 0 && !m.closed {
		m.cond.Wait()
	}
	if len(m.pending) == 0 {
		return 0, io.EOF
	}
	n := copy(p, m.pending)
	m.pending = m.pending[n:]
	return n, nil
}

func (m *MockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteError != nil {
		return 0, m.WriteError
	}
	m.written = append(m.written, p...)
	return len(p), nil
}

// Written returns a copy of everything written to the port so far.
func (m *MockPort) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.written...)
}

// ResetWritten clears the write capture between test phases.
func (m *MockPort) ResetWritten() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = nil
}

func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cond.Broadcast()
	return nil
}

// Closed reports whether Close has been called.
func (m *MockPort) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
