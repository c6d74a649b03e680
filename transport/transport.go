// Package transport moves encoded messages between a client and a peer.
//
// The protocol layer writes into a Transport and calls Flush once a whole
// message has been written; reads pull bytes back out. Two wire framings are
// provided:
//
//	Buffered:  raw protocol bytes over a buffered connection
//	Framed:    each flushed message prefixed with a 4-byte big-endian length,
//	           optionally snappy-compressed
//
// Framed also implements FrameReader, which lets the accelerated codec decode a
// reply from one in-memory slice instead of pulling it primitive by primitive.
package transport

import (
	"errors"
	"io"
	"time"
)

var (
	ErrFrameTooLarge = errors.New("transport: frame exceeds limit")
	ErrPoolClosed    = errors.New("transport: pool closed")
	ErrNoInstances   = errors.New("transport: no instances to dial")
)

// Transport is a byte stream with an explicit message boundary on the write
// side.
type Transport interface {
	io.ReadWriteCloser
	// Flush sends everything written since the last Flush.
	Flush() error
}

// Deadliner is implemented by transports backed by a connection that supports
// I/O deadlines. The zero time clears the deadline.
type Deadliner interface {
	SetDeadline(t time.Time) error
}

// FrameReader is implemented by transports that can deliver one whole inbound
// message at a time. The returned slice is valid until the next read.
type FrameReader interface {
	ReadFrame() ([]byte, error)
}

func setDeadline(c any, t time.Time) error {
	if d, ok := c.(Deadliner); ok {
		return d.SetDeadline(t)
	}
	return nil
}
