package codec

import (
	"io"
	"sync"

	"hqlrpc/message"
	"hqlrpc/protocol"
	"hqlrpc/schema"
	"hqlrpc/transport"
)

// MessageCodec writes and reads whole messages: header, body struct, trailer.
//
// ReadMessage decodes the body with result for REPLY messages and with
// message.ApplicationExceptionDesc for EXCEPTION messages. The caller checks
// the returned envelope.
type MessageCodec interface {
	WriteMessage(w io.Writer, env message.Envelope, body *Struct) error
	ReadMessage(r io.Reader, result *schema.StructDesc) (message.Envelope, *Struct, error)
}

// Generic streams primitives straight through the transport's buffer.
type Generic struct {
	Options protocol.Options
}

func NewGeneric(opts protocol.Options) *Generic {
	return &Generic{Options: opts}
}

func (g *Generic) WriteMessage(w io.Writer, env message.Envelope, body *Struct) error {
	if err := Validate(body); err != nil {
		return err
	}
	pw := protocol.NewWriter(w, g.Options)
	if err := pw.WriteMessageBegin(env); err != nil {
		return err
	}
	if err := Encode(pw, body); err != nil {
		return err
	}
	return pw.WriteMessageEnd()
}

func (g *Generic) ReadMessage(r io.Reader, result *schema.StructDesc) (message.Envelope, *Struct, error) {
	return readMessage(protocol.NewReader(r, g.Options), result)
}

func readMessage(pr *protocol.Reader, result *schema.StructDesc) (message.Envelope, *Struct, error) {
	env, err := pr.ReadMessageBegin()
	if err != nil {
		return message.Envelope{}, nil, err
	}
	desc := result
	if env.Kind == message.Exception {
		desc = message.ApplicationExceptionDesc
	}
	body, err := Decode(pr, desc)
	if err != nil {
		return env, nil, err
	}
	if err := pr.ReadMessageEnd(); err != nil {
		return env, nil, err
	}
	return env, body, nil
}

// Accelerated builds each outgoing message in one pooled buffer and hands it
// to the transport in a single Write. Replies are decoded from a whole frame
// held in memory when the reader is a transport.FrameReader.
//
// Both directions use the same protocol Writer and Reader types as Generic, so
// the bytes written and the values decoded are identical.
type Accelerated struct {
	Options protocol.Options
	bufs    sync.Pool
}

func NewAccelerated(opts protocol.Options) *Accelerated {
	a := &Accelerated{Options: opts}
	a.bufs.New = func() any {
		b := make([]byte, 0, 4096)
		return &b
	}
	return a
}

func (a *Accelerated) WriteMessage(w io.Writer, env message.Envelope, body *Struct) error {
	bp := a.bufs.Get().(*[]byte)
	defer a.bufs.Put(bp)

	pw := protocol.NewBufferWriter(*bp, a.Options)
	if err := pw.WriteMessageBegin(env); err != nil {
		return err
	}
	if err := Encode(pw, body); err != nil {
		return err
	}
	if err := pw.WriteMessageEnd(); err != nil {
		return err
	}
	*bp = pw.Bytes()[:0]
	_, err := w.Write(pw.Bytes())
	return err
}

func (a *Accelerated) ReadMessage(r io.Reader, result *schema.StructDesc) (message.Envelope, *Struct, error) {
	fr, ok := r.(transport.FrameReader)
	if !ok {
		return readMessage(protocol.NewReader(r, a.Options), result)
	}
	frame, err := fr.ReadFrame()
	if err != nil {
		return message.Envelope{}, nil, err
	}
	return readMessage(protocol.NewSliceReader(frame, a.Options), result)
}
