package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"hqlrpc/message"
	"hqlrpc/schema"
)

func TestMessageHeaderRoundTrip(t *testing.T) {
	cases := []struct {
		name   string
		strict bool
		env    message.Envelope
	}{
		{"strict call", true, message.Envelope{Name: "hql_query", Kind: message.Call, SeqID: 7}},
		{"strict exception", true, message.Envelope{Name: "hql_exec", Kind: message.Exception, SeqID: -1}},
		{"plain reply", false, message.Envelope{Name: "namespace_open", Kind: message.Reply, SeqID: 12345}},
		{"plain oneway empty name", false, message.Envelope{Name: "", Kind: message.Oneway, SeqID: 0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.StrictWrite = tc.strict

			var buf bytes.Buffer
			w := NewWriter(&buf, opts)
			if err := w.WriteMessageBegin(tc.env); err != nil {
				t.Fatalf("WriteMessageBegin failed: %v", err)
			}
			if err := w.WriteMessageEnd(); err != nil {
				t.Fatalf("WriteMessageEnd failed: %v", err)
			}

			r := NewReader(&buf, DefaultOptions())
			got, err := r.ReadMessageBegin()
			if err != nil {
				t.Fatalf("ReadMessageBegin failed: %v", err)
			}
			if got != tc.env {
				t.Errorf("envelope mismatch: got %v, want %v", got, tc.env)
			}
			if buf.Len() != 0 {
				t.Errorf("%d bytes left unread", buf.Len())
			}
		})
	}
}

func TestStrictHeaderLayout(t *testing.T) {
	w := NewBufferWriter(nil, DefaultOptions())
	w.WriteMessageBegin(message.Envelope{Name: "ping", Kind: message.Call, SeqID: 7})

	want := []byte{
		0x80, 0x01, 0x00, 0x01, // version | CALL
		0x00, 0x00, 0x00, 0x04, 'p', 'i', 'n', 'g',
		0x00, 0x00, 0x00, 0x07,
	}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("header bytes: got % x, want % x", w.Bytes(), want)
	}
}

func TestStrictReadRejectsUnversionedHeader(t *testing.T) {
	opts := DefaultOptions()
	opts.StrictWrite = false
	w := NewBufferWriter(nil, opts)
	w.WriteMessageBegin(message.Envelope{Name: "ping", Kind: message.Call, SeqID: 1})

	strict := DefaultOptions()
	strict.StrictRead = true
	_, err := NewSliceReader(w.Bytes(), strict).ReadMessageBegin()
	if !errors.Is(err, ErrMissingVersion) {
		t.Fatalf("expected ErrMissingVersion, got %v", err)
	}
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected error to be malformed wire data, got %v", err)
	}
}

func TestReadMessageBeginInvalidHeaders(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want error
	}{
		{"bad version", []byte{0x80, 0x02, 0x00, 0x01, 0, 0, 0, 0, 0, 0, 0, 1}, ErrBadVersion},
		{"bad kind", []byte{0x80, 0x01, 0x00, 0x09, 0, 0, 0, 0, 0, 0, 0, 1}, ErrInvalidKind},
		{"short name", []byte{0x80, 0x01, 0x00, 0x02, 0, 0, 0, 9, 'a'}, ErrTruncated},
		{"empty", []byte{}, ErrTruncated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSliceReader(tc.data, DefaultOptions()).ReadMessageBegin()
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestStreamEndOfInput(t *testing.T) {
	// A closed stream before any header byte is a clean EOF.
	_, err := NewReader(bytes.NewReader(nil), DefaultOptions()).ReadMessageBegin()
	if err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}

	// Part of a header is a truncated message.
	_, err = NewReader(bytes.NewReader([]byte{0x80, 0x01}), DefaultOptions()).ReadMessageBegin()
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestStreamReaderPassesTransportErrors(t *testing.T) {
	boom := errors.New("connection reset")
	r := NewReader(io.MultiReader(bytes.NewReader([]byte{0, 0}), errReader{boom}), DefaultOptions())
	_, err := r.ReadI32()
	if !errors.Is(err, boom) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if errors.Is(err, ErrMalformed) {
		t.Fatalf("transport error must not be classified as malformed")
	}
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }

func TestStreamAndBufferWritersAgree(t *testing.T) {
	write := func(w *Writer) {
		w.WriteMessageBegin(message.Envelope{Name: "hql_exec", Kind: message.Call, SeqID: 3})
		w.WriteFieldBegin(schema.I64, 1)
		w.WriteI64(42)
		w.WriteFieldBegin(schema.String, 2)
		w.WriteString("SELECT * FROM t")
		w.WriteFieldBegin(schema.Bool, 3)
		w.WriteBool(true)
		w.WriteFieldBegin(schema.List, 4)
		w.WriteListBegin(schema.Double, 2)
		w.WriteDouble(1.5)
		w.WriteDouble(-2.25)
		w.WriteFieldBegin(schema.Map, 5)
		w.WriteMapBegin(schema.String, schema.I16, 1)
		w.WriteString("k")
		w.WriteI16(-7)
		w.WriteFieldBegin(schema.String, 6)
		w.WriteBinary([]byte{0x00, 0xff})
		w.WriteFieldStop()
		w.WriteMessageEnd()
	}

	var stream bytes.Buffer
	write(NewWriter(&stream, DefaultOptions()))
	buffered := NewBufferWriter(make([]byte, 0, 16), DefaultOptions())
	write(buffered)

	if !bytes.Equal(stream.Bytes(), buffered.Bytes()) {
		t.Fatalf("writers disagree:\nstream % x\nbuffer % x", stream.Bytes(), buffered.Bytes())
	}
}

func TestSkipConsumesExactlyOneValue(t *testing.T) {
	w := NewBufferWriter(nil, DefaultOptions())
	// struct { 1: list<map<string, struct{1: i32}>> } followed by a marker i32
	w.WriteFieldBegin(schema.List, 1)
	w.WriteListBegin(schema.Map, 2)
	for i := 0; i < 2; i++ {
		w.WriteMapBegin(schema.String, schema.Struct, 1)
		w.WriteString("key")
		w.WriteFieldBegin(schema.I32, 1)
		w.WriteI32(int32(i))
		w.WriteFieldStop()
	}
	w.WriteFieldBegin(schema.Set, 2)
	w.WriteSetBegin(schema.I64, 0)
	w.WriteFieldStop()
	w.WriteI32(0x0badf00d)

	r := NewSliceReader(w.Bytes(), DefaultOptions())
	if err := r.Skip(schema.Struct); err != nil {
		t.Fatalf("Skip failed: %v", err)
	}
	marker, err := r.ReadI32()
	if err != nil {
		t.Fatalf("ReadI32 after skip failed: %v", err)
	}
	if marker != 0x0badf00d {
		t.Fatalf("skip desynchronized stream: got marker %#x", marker)
	}
	if r.Remaining() != 0 {
		t.Fatalf("%d bytes left after marker", r.Remaining())
	}
}

func TestSkipRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name string
		typ  schema.WireType
		data []byte
		want error
	}{
		{"unknown type", schema.WireType(99), nil, ErrInvalidType},
		{"stop as value", schema.Stop, nil, ErrInvalidType},
		{"negative list", schema.List, []byte{byte(schema.I32), 0xff, 0xff, 0xff, 0xff}, ErrNegativeSize},
		{"string past end", schema.String, []byte{0, 0, 0, 10, 'a'}, ErrTruncated},
		{"struct without stop", schema.Struct, []byte{byte(schema.I32), 0, 1, 0, 0, 0, 1}, ErrTruncated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := NewSliceReader(tc.data, DefaultOptions()).Skip(tc.typ)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSkipDepthLimit(t *testing.T) {
	w := NewBufferWriter(nil, DefaultOptions())
	const depth = 10
	for i := 0; i < depth; i++ {
		w.WriteFieldBegin(schema.Struct, 1)
	}
	for i := 0; i <= depth; i++ {
		w.WriteFieldStop()
	}

	opts := DefaultOptions()
	opts.Limits.MaxDepth = 4
	err := NewSliceReader(w.Bytes(), opts).Skip(schema.Struct)
	if !errors.Is(err, ErrDepthLimit) {
		t.Fatalf("expected ErrDepthLimit, got %v", err)
	}

	if err := NewSliceReader(w.Bytes(), DefaultOptions()).Skip(schema.Struct); err != nil {
		t.Fatalf("skip within default depth failed: %v", err)
	}
}

func TestStringSizeLimit(t *testing.T) {
	w := NewBufferWriter(nil, DefaultOptions())
	w.WriteString("0123456789")

	opts := DefaultOptions()
	opts.Limits.MaxStringBytes = 4
	_, err := NewSliceReader(w.Bytes(), opts).ReadString()
	if !errors.Is(err, ErrSizeLimit) {
		t.Fatalf("expected ErrSizeLimit, got %v", err)
	}

	got, err := NewReader(bytes.NewReader(w.Bytes()), DefaultOptions()).ReadString()
	if err != nil || got != "0123456789" {
		t.Fatalf("ReadString = %q, %v", got, err)
	}
}
