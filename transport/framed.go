package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang/snappy"
)

// Compression selects how Framed encodes frame payloads. Both ends of a
// connection must agree.
type Compression string

const (
	CompressionNone   Compression = "none"
	CompressionSnappy Compression = "snappy"
)

const DefaultMaxFrameBytes = 16 << 20

type FramedOptions struct {
	MaxFrameBytes int
	Compression   Compression
}

// Framed sends every flushed message as one length-prefixed frame:
//
//	| length (4, big-endian) | payload (length bytes) |
//
// With snappy compression the payload is a snappy block and the limit applies
// to both the compressed and the decoded size.
type Framed struct {
	conn io.ReadWriteCloser
	opts FramedOptions

	wbuf []byte
	rbuf []byte // current inbound frame
	roff int
	hdr  [4]byte
}

func NewFramed(conn io.ReadWriteCloser, opts FramedOptions) *Framed {
	if opts.MaxFrameBytes <= 0 {
		opts.MaxFrameBytes = DefaultMaxFrameBytes
	}
	if opts.Compression == "" {
		opts.Compression = CompressionNone
	}
	return &Framed{conn: conn, opts: opts}
}

func (f *Framed) Write(p []byte) (int, error) {
	f.wbuf = append(f.wbuf, p...)
	return len(p), nil
}

// Flush writes the pending bytes as a single frame. An empty flush sends
// nothing.
func (f *Framed) Flush() error {
	if len(f.wbuf) == 0 {
		return nil
	}
	payload := f.wbuf
	if f.opts.Compression == CompressionSnappy {
		payload = snappy.Encode(nil, f.wbuf)
	}
	f.wbuf = f.wbuf[:0]
	if len(payload) > f.opts.MaxFrameBytes {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(payload), f.opts.MaxFrameBytes)
	}

	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[4:], payload)
	_, err := f.conn.Write(frame)
	return err
}

// Read serves bytes from the current frame, fetching the next one when it is
// exhausted.
func (f *Framed) Read(p []byte) (int, error) {
	if f.roff == len(f.rbuf) {
		if _, err := f.ReadFrame(); err != nil {
			return 0, err
		}
		// ReadFrame hands the frame out whole; Read consumes it piecewise.
		f.roff = 0
	}
	n := copy(p, f.rbuf[f.roff:])
	f.roff += n
	return n, nil
}

// ReadFrame reads the next whole frame. Any unread bytes of the previous
// frame are dropped. A connection closed between frames returns io.EOF.
func (f *Framed) ReadFrame() ([]byte, error) {
	if _, err := io.ReadFull(f.conn, f.hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("transport: short frame header: %w", err)
		}
		return nil, err
	}
	size := int(binary.BigEndian.Uint32(f.hdr[:]))
	if size < 0 || size > f.opts.MaxFrameBytes {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, size, f.opts.MaxFrameBytes)
	}
	if cap(f.rbuf) < size {
		f.rbuf = make([]byte, size)
	}
	f.rbuf = f.rbuf[:size]
	if _, err := io.ReadFull(f.conn, f.rbuf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("transport: short frame: %w", err)
	}

	if f.opts.Compression == CompressionSnappy {
		n, err := snappy.DecodedLen(f.rbuf)
		if err != nil {
			return nil, fmt.Errorf("transport: corrupt snappy frame: %w", err)
		}
		if n > f.opts.MaxFrameBytes {
			return nil, fmt.Errorf("%w: decoded %d > %d", ErrFrameTooLarge, n, f.opts.MaxFrameBytes)
		}
		decoded, err := snappy.Decode(nil, f.rbuf)
		if err != nil {
			return nil, fmt.Errorf("transport: corrupt snappy frame: %w", err)
		}
		f.rbuf = decoded
	}
	f.roff = len(f.rbuf)
	return f.rbuf, nil
}

func (f *Framed) Close() error { return f.conn.Close() }

func (f *Framed) SetDeadline(t time.Time) error {
	return setDeadline(f.conn, t)
}
