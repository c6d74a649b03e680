package transport

import (
	"bytes"
	"errors"
	"sync"
)

var errMemoryClosed = errors.New("transport: memory transport closed")

// Memory is an in-process transport: reads drain bytes queued with Feed and
// writes accumulate until inspected with Written. It lets tests drive the full
// client stack without a socket.
type Memory struct {
	mu      sync.Mutex
	in      bytes.Buffer
	out     bytes.Buffer
	flushes int
	closed  bool
}

func NewMemory() *Memory {
	return &Memory{}
}

// Feed queues bytes for subsequent reads.
func (m *Memory) Feed(p []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.in.Write(p)
}

// Read returns io.EOF once the fed bytes are exhausted.
func (m *Memory) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, errMemoryClosed
	}
	return m.in.Read(p)
}

func (m *Memory) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, errMemoryClosed
	}
	return m.out.Write(p)
}

// Flush only counts; writes are visible to Written immediately.
func (m *Memory) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errMemoryClosed
	}
	m.flushes++
	return nil
}

// Written returns a copy of every byte written so far.
func (m *Memory) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return bytes.Clone(m.out.Bytes())
}

// Flushes counts calls to Flush.
func (m *Memory) Flushes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}

// Reset drops all buffered input and output.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.in.Reset()
	m.out.Reset()
	m.flushes = 0
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
