package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"hqlrpc/message"
	"hqlrpc/schema"
)

// Reader decodes protocol primitives from either a stream or a whole message
// already held in memory.
//
// Running out of bytes in the middle of a message is a malformed-wire error
// (ErrTruncated). Running out before the first byte of a message header is
// reported as io.EOF so callers can tell a closed connection from a short one.
// Any other error comes from the underlying reader and is returned unchanged.
type Reader struct {
	r       io.Reader
	data    []byte
	off     int
	scratch [8]byte
	opts    Options
}

// NewReader returns a Reader that pulls from r.
func NewReader(r io.Reader, opts Options) *Reader {
	return &Reader{r: r, opts: opts.withDefaults()}
}

// NewSliceReader returns a Reader over one in-memory message.
func NewSliceReader(data []byte, opts Options) *Reader {
	return &Reader{data: data, opts: opts.withDefaults()}
}

// Limits returns the decode limits in force.
func (r *Reader) Limits() Limits {
	return r.opts.Limits
}

// Remaining reports the unread bytes of a slice Reader; it is always zero for
// stream readers.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// next returns the next n bytes. The slice is only valid until the next call.
func (r *Reader) next(n int) ([]byte, error) {
	if r.r == nil {
		if len(r.data)-r.off < n {
			r.off = len(r.data)
			return nil, fmt.Errorf("%w: need %d bytes", ErrTruncated, n)
		}
		p := r.data[r.off : r.off+n]
		r.off += n
		return p, nil
	}
	buf := r.scratch[:n]
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, r.streamErr(err, n)
	}
	return buf, nil
}

func (r *Reader) streamErr(err error, n int) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: need %d bytes", ErrTruncated, n)
	}
	return err
}

func (r *Reader) readBytes(n int) ([]byte, error) {
	if r.r == nil {
		p, err := r.next(n)
		if err != nil {
			return nil, err
		}
		out := make([]byte, n)
		copy(out, p)
		return out, nil
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r.r, out); err != nil {
		return nil, r.streamErr(err, n)
	}
	return out, nil
}

// ReadMessageBegin reads a message header in either form.
func (r *Reader) ReadMessageBegin() (message.Envelope, error) {
	size, err := r.readHeaderWord()
	if err != nil {
		return message.Envelope{}, err
	}

	var env message.Envelope
	if size < 0 {
		word := uint32(size)
		if word&VersionMask != Version1 {
			return message.Envelope{}, fmt.Errorf("%w: 0x%08x", ErrBadVersion, word&VersionMask)
		}
		env.Kind = message.Kind(word & 0xff)
		if env.Name, err = r.ReadString(); err != nil {
			return message.Envelope{}, err
		}
	} else {
		if r.opts.StrictRead {
			return message.Envelope{}, ErrMissingVersion
		}
		name, err := r.readSizedString(int(size))
		if err != nil {
			return message.Envelope{}, err
		}
		env.Name = name
		kind, err := r.ReadI8()
		if err != nil {
			return message.Envelope{}, err
		}
		env.Kind = message.Kind(kind)
	}
	if !env.Kind.Valid() {
		return message.Envelope{}, fmt.Errorf("%w: %d", ErrInvalidKind, byte(env.Kind))
	}
	if env.SeqID, err = r.ReadI32(); err != nil {
		return message.Envelope{}, err
	}
	return env, nil
}

// readHeaderWord reads the first four bytes of a message, mapping a clean
// end of stream to io.EOF.
func (r *Reader) readHeaderWord() (int32, error) {
	if r.r == nil {
		if r.Remaining() == 0 {
			return 0, fmt.Errorf("%w: empty message", ErrTruncated)
		}
		return r.ReadI32()
	}
	n, err := io.ReadFull(r.r, r.scratch[:4])
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return 0, io.EOF
		}
		return 0, r.streamErr(err, 4)
	}
	return int32(binary.BigEndian.Uint32(r.scratch[:4])), nil
}

// ReadMessageEnd closes a message. The binary form has no trailer.
func (r *Reader) ReadMessageEnd() error {
	return nil
}

// ReadFieldBegin reads a field header. On STOP the id is zero.
func (r *Reader) ReadFieldBegin() (schema.WireType, uint16, error) {
	t, err := r.readType()
	if err != nil {
		return 0, 0, err
	}
	if t == schema.Stop {
		return schema.Stop, 0, nil
	}
	id, err := r.ReadI16()
	if err != nil {
		return 0, 0, err
	}
	return t, uint16(id), nil
}

// ReadListBegin reads a list header.
func (r *Reader) ReadListBegin() (schema.WireType, int, error) {
	return r.readCollectionBegin()
}

// ReadSetBegin reads a set header.
func (r *Reader) ReadSetBegin() (schema.WireType, int, error) {
	return r.readCollectionBegin()
}

func (r *Reader) readCollectionBegin() (schema.WireType, int, error) {
	elem, err := r.readType()
	if err != nil {
		return 0, 0, err
	}
	n, err := r.readSize(r.opts.Limits.MaxCollection)
	if err != nil {
		return 0, 0, err
	}
	return elem, n, nil
}

// ReadMapBegin reads a map header.
func (r *Reader) ReadMapBegin() (schema.WireType, schema.WireType, int, error) {
	key, err := r.readType()
	if err != nil {
		return 0, 0, 0, err
	}
	value, err := r.readType()
	if err != nil {
		return 0, 0, 0, err
	}
	n, err := r.readSize(r.opts.Limits.MaxCollection)
	if err != nil {
		return 0, 0, 0, err
	}
	return key, value, n, nil
}

func (r *Reader) readType() (schema.WireType, error) {
	b, err := r.next(1)
	if err != nil {
		return 0, err
	}
	return schema.WireType(b[0]), nil
}

func (r *Reader) readSize(limit int) (int, error) {
	n, err := r.ReadI32()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegativeSize, n)
	}
	if int(n) > limit {
		return 0, fmt.Errorf("%w: %d > %d", ErrSizeLimit, n, limit)
	}
	return int(n), nil
}

func (r *Reader) ReadBool() (bool, error) {
	b, err := r.next(1)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

func (r *Reader) ReadI8() (int8, error) {
	b, err := r.next(1)
	if err != nil {
		return 0, err
	}
	return int8(b[0]), nil
}

func (r *Reader) ReadI16() (int16, error) {
	b, err := r.next(2)
	if err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(b)), nil
}

func (r *Reader) ReadI32() (int32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (r *Reader) ReadI64() (int64, error) {
	b, err := r.next(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func (r *Reader) ReadDouble() (float64, error) {
	b, err := r.next(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

func (r *Reader) ReadString() (string, error) {
	n, err := r.readSize(r.opts.Limits.MaxStringBytes)
	if err != nil {
		return "", err
	}
	return r.readSizedString(n)
}

func (r *Reader) readSizedString(n int) (string, error) {
	if n > r.opts.Limits.MaxStringBytes {
		return "", fmt.Errorf("%w: %d > %d", ErrSizeLimit, n, r.opts.Limits.MaxStringBytes)
	}
	if n == 0 {
		return "", nil
	}
	if r.r == nil {
		p, err := r.next(n)
		if err != nil {
			return "", err
		}
		return string(p), nil
	}
	b, err := r.readBytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *Reader) ReadBinary() ([]byte, error) {
	n, err := r.readSize(r.opts.Limits.MaxStringBytes)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}
	return r.readBytes(n)
}

// Skip consumes exactly the bytes of one value of type t, recursing into
// compound values. It never interprets the bytes beyond what is needed to find
// the value's end, so a skipped field cannot desynchronize the stream.
func (r *Reader) Skip(t schema.WireType) error {
	return r.skip(t, 0)
}

func (r *Reader) skip(t schema.WireType, depth int) error {
	if depth > r.opts.Limits.MaxDepth {
		return ErrDepthLimit
	}
	switch t {
	case schema.Bool, schema.Byte:
		_, err := r.next(1)
		return err
	case schema.I16:
		_, err := r.next(2)
		return err
	case schema.I32:
		_, err := r.next(4)
		return err
	case schema.I64, schema.Double:
		_, err := r.next(8)
		return err
	case schema.String:
		n, err := r.readSize(r.opts.Limits.MaxStringBytes)
		if err != nil {
			return err
		}
		return r.discard(n)
	case schema.Struct:
		for {
			ft, _, err := r.ReadFieldBegin()
			if err != nil {
				return err
			}
			if ft == schema.Stop {
				return nil
			}
			if err := r.skip(ft, depth+1); err != nil {
				return err
			}
		}
	case schema.List, schema.Set:
		elem, n, err := r.readCollectionBegin()
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := r.skip(elem, depth+1); err != nil {
				return err
			}
		}
		return nil
	case schema.Map:
		key, value, n, err := r.ReadMapBegin()
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := r.skip(key, depth+1); err != nil {
				return err
			}
			if err := r.skip(value, depth+1); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrInvalidType, byte(t))
	}
}

func (r *Reader) discard(n int) error {
	if r.r == nil {
		_, err := r.next(n)
		return err
	}
	copied, err := io.CopyN(io.Discard, r.r, int64(n))
	if err != nil {
		return r.streamErr(err, n-int(copied))
	}
	return nil
}
