package protocol

import (
	"encoding/binary"
	"io"
	"math"

	"hqlrpc/message"
	"hqlrpc/schema"
)

// Writer encodes protocol primitives.
//
// A stream Writer forwards every primitive to an io.Writer (normally a
// buffered transport). A buffer Writer appends to an in-memory slice instead;
// it never fails and is what the accelerated path uses to build a whole
// message before issuing a single write. Both produce identical bytes.
type Writer struct {
	w       io.Writer
	buf     []byte
	scratch [8]byte
	opts    Options
}

// NewWriter returns a Writer that streams to w.
func NewWriter(w io.Writer, opts Options) *Writer {
	return &Writer{w: w, opts: opts.withDefaults()}
}

// NewBufferWriter returns a Writer that appends to buf[:0].
func NewBufferWriter(buf []byte, opts Options) *Writer {
	return &Writer{buf: buf[:0], opts: opts.withDefaults()}
}

// Bytes returns the bytes accumulated by a buffer Writer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Reset empties a buffer Writer, keeping its capacity.
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
}

func (w *Writer) write(p []byte) error {
	if w.w == nil {
		w.buf = append(w.buf, p...)
		return nil
	}
	_, err := w.w.Write(p)
	return err
}

// WriteMessageBegin writes the message header.
func (w *Writer) WriteMessageBegin(env message.Envelope) error {
	if w.opts.StrictWrite {
		if err := w.WriteI32(int32(Version1 | uint32(env.Kind))); err != nil {
			return err
		}
		if err := w.WriteString(env.Name); err != nil {
			return err
		}
		return w.WriteI32(env.SeqID)
	}
	if err := w.WriteString(env.Name); err != nil {
		return err
	}
	if err := w.WriteI8(int8(env.Kind)); err != nil {
		return err
	}
	return w.WriteI32(env.SeqID)
}

// WriteMessageEnd closes a message. The binary form has no trailer.
func (w *Writer) WriteMessageEnd() error {
	return nil
}

// WriteFieldBegin writes a field header.
func (w *Writer) WriteFieldBegin(t schema.WireType, id uint16) error {
	w.scratch[0] = byte(t)
	binary.BigEndian.PutUint16(w.scratch[1:3], id)
	return w.write(w.scratch[:3])
}

// WriteFieldStop terminates the current struct.
func (w *Writer) WriteFieldStop() error {
	w.scratch[0] = byte(schema.Stop)
	return w.write(w.scratch[:1])
}

// WriteListBegin writes a list header.
func (w *Writer) WriteListBegin(elem schema.WireType, n int) error {
	return w.writeCollectionBegin(elem, n)
}

// WriteSetBegin writes a set header.
func (w *Writer) WriteSetBegin(elem schema.WireType, n int) error {
	return w.writeCollectionBegin(elem, n)
}

func (w *Writer) writeCollectionBegin(elem schema.WireType, n int) error {
	w.scratch[0] = byte(elem)
	binary.BigEndian.PutUint32(w.scratch[1:5], uint32(n))
	return w.write(w.scratch[:5])
}

// WriteMapBegin writes a map header.
func (w *Writer) WriteMapBegin(key, value schema.WireType, n int) error {
	w.scratch[0] = byte(key)
	w.scratch[1] = byte(value)
	binary.BigEndian.PutUint32(w.scratch[2:6], uint32(n))
	return w.write(w.scratch[:6])
}

func (w *Writer) WriteBool(v bool) error {
	if v {
		return w.WriteI8(1)
	}
	return w.WriteI8(0)
}

func (w *Writer) WriteI8(v int8) error {
	w.scratch[0] = byte(v)
	return w.write(w.scratch[:1])
}

func (w *Writer) WriteI16(v int16) error {
	binary.BigEndian.PutUint16(w.scratch[:2], uint16(v))
	return w.write(w.scratch[:2])
}

func (w *Writer) WriteI32(v int32) error {
	binary.BigEndian.PutUint32(w.scratch[:4], uint32(v))
	return w.write(w.scratch[:4])
}

func (w *Writer) WriteI64(v int64) error {
	binary.BigEndian.PutUint64(w.scratch[:8], uint64(v))
	return w.write(w.scratch[:8])
}

func (w *Writer) WriteDouble(v float64) error {
	binary.BigEndian.PutUint64(w.scratch[:8], math.Float64bits(v))
	return w.write(w.scratch[:8])
}

func (w *Writer) WriteString(v string) error {
	if err := w.WriteI32(int32(len(v))); err != nil {
		return err
	}
	if len(v) == 0 {
		return nil
	}
	if w.w == nil {
		w.buf = append(w.buf, v...)
		return nil
	}
	_, err := io.WriteString(w.w, v)
	return err
}

func (w *Writer) WriteBinary(v []byte) error {
	if err := w.WriteI32(int32(len(v))); err != nil {
		return err
	}
	if len(v) == 0 {
		return nil
	}
	return w.write(v)
}
