// Package client drives request/reply exchanges over one transport.
//
// A call is a CALL message carrying the method's argument struct, answered by
// a REPLY carrying its result struct:
//
//	Send:  header(name, CALL, seq) | args struct | flush
//	Recv:  header(name, REPLY, seq) | result struct  →  success, or a raised exception
//
// A Client owns its transport's stream and is not safe for concurrent use.
// Overlapping calls are rejected with ErrConcurrentUse rather than allowed to
// interleave bytes; pools hand out one client per connection instead.
package client

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"hqlrpc/codec"
	"hqlrpc/message"
	"hqlrpc/protocol"
	"hqlrpc/schema"
	"hqlrpc/transport"
)

// Call describes one invocation as it passes through middleware.
type Call struct {
	Method *schema.Method
	Args   *codec.Struct
	SeqID  int32 // set once the call has been sent
}

type HandlerFunc func(ctx context.Context, call *Call) (codec.Value, error)

type Middleware func(next HandlerFunc) HandlerFunc

type Client struct {
	t           transport.Transport
	codec       codec.MessageCodec
	accelerated bool
	handler     HandlerFunc
	exceptions  map[*schema.StructDesc]func(*codec.Struct) error
	logger      zerolog.Logger

	seq  int32
	busy atomic.Bool
}

type options struct {
	accelerated bool
	proto       protocol.Options
	middleware  []Middleware
	exceptions  map[*schema.StructDesc]func(*codec.Struct) error
	logger      zerolog.Logger
}

type Option func(*options)

// WithAccelerated requests the whole-message codec. It takes effect only when
// the transport implements transport.FrameReader.
func WithAccelerated(on bool) Option {
	return func(o *options) { o.accelerated = on }
}

func WithProtocolOptions(p protocol.Options) Option {
	return func(o *options) { o.proto = p }
}

// WithMiddleware wraps Call. The first middleware is the outermost.
func WithMiddleware(mw ...Middleware) Option {
	return func(o *options) { o.middleware = append(o.middleware, mw...) }
}

// WithException registers the typed error for a declared exception shape.
func WithException(desc *schema.StructDesc, fn func(*codec.Struct) error) Option {
	return func(o *options) { o.exceptions[desc] = fn }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New binds a client to t. The codec strategy is fixed here and never
// re-chosen per call.
func New(t transport.Transport, opts ...Option) *Client {
	o := options{
		proto:      protocol.DefaultOptions(),
		exceptions: make(map[*schema.StructDesc]func(*codec.Struct) error),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{
		t:          t,
		exceptions: o.exceptions,
		logger:     o.logger,
	}
	if _, ok := t.(transport.FrameReader); ok && o.accelerated {
		c.codec = codec.NewAccelerated(o.proto)
		c.accelerated = true
	} else {
		c.codec = codec.NewGeneric(o.proto)
	}

	h := c.invoke
	for i := len(o.middleware) - 1; i >= 0; i-- {
		h = o.middleware[i](h)
	}
	c.handler = h
	return c
}

// Accelerated reports which codec strategy New chose.
func (c *Client) Accelerated() bool {
	return c.accelerated
}

func (c *Client) Transport() transport.Transport {
	return c.t
}

// LastSeqID returns the sequence id of the most recent Send.
func (c *Client) LastSeqID() int32 {
	return c.seq
}

func (c *Client) acquire(method string) error {
	if !c.busy.CompareAndSwap(false, true) {
		c.logger.Error().Str("method", method).Msg("client used concurrently")
		return &Error{Kind: KindTransport, Method: method, Err: ErrConcurrentUse}
	}
	return nil
}

func (c *Client) release() {
	c.busy.Store(false)
}

// Call sends args and waits for the reply, through the middleware chain.
// Oneway methods return codec.Void{} once the message is flushed.
func (c *Client) Call(ctx context.Context, m *schema.Method, args *codec.Struct) (codec.Value, error) {
	if err := c.acquire(m.Name); err != nil {
		return nil, err
	}
	defer c.release()
	return c.handler(ctx, &Call{Method: m, Args: args})
}

func (c *Client) invoke(ctx context.Context, call *Call) (codec.Value, error) {
	seq, err := c.send(ctx, call.Method, call.Args)
	if err != nil {
		return nil, err
	}
	call.SeqID = seq
	if call.Method.Oneway {
		return codec.Void{}, nil
	}
	return c.recv(ctx, call.Method, seq)
}

// Send writes one CALL (or ONEWAY) message and flushes it, returning the
// sequence id it carried.
func (c *Client) Send(ctx context.Context, m *schema.Method, args *codec.Struct) (int32, error) {
	if err := c.acquire(m.Name); err != nil {
		return 0, err
	}
	defer c.release()
	return c.send(ctx, m, args)
}

// Recv reads the reply to the message sent with seq and resolves it.
func (c *Client) Recv(ctx context.Context, m *schema.Method, seq int32) (codec.Value, error) {
	if err := c.acquire(m.Name); err != nil {
		return nil, err
	}
	defer c.release()
	return c.recv(ctx, m, seq)
}

func (c *Client) send(ctx context.Context, m *schema.Method, args *codec.Struct) (int32, error) {
	if args == nil || args.Desc() != m.Args {
		return 0, &Error{Kind: KindEncode, Method: m.Name, Err: fmt.Errorf("%w: arguments are not %s", codec.ErrBadValue, m.Args.Name)}
	}
	if err := c.begin(ctx, m.Name); err != nil {
		return 0, err
	}

	c.seq++
	env := message.Envelope{Name: m.Name, Kind: message.Call, SeqID: c.seq}
	if m.Oneway {
		env.Kind = message.Oneway
	}
	if err := c.codec.WriteMessage(c.t, env, args); err != nil {
		return 0, classifyIO(m.Name, err)
	}
	if err := c.t.Flush(); err != nil {
		return 0, classifyIO(m.Name, err)
	}
	return env.SeqID, nil
}

func (c *Client) recv(ctx context.Context, m *schema.Method, seq int32) (codec.Value, error) {
	if err := c.begin(ctx, m.Name); err != nil {
		return nil, err
	}

	env, body, err := c.codec.ReadMessage(c.t, m.Result)
	if err != nil {
		return nil, classifyIO(m.Name, err)
	}

	if env.Kind == message.Exception {
		return nil, &Error{Kind: KindApplication, Method: m.Name, Err: applicationException(body)}
	}
	if env.Kind != message.Reply {
		return nil, malformed(m.Name, message.ExceptionInvalidMessageType, "expected REPLY, got %s", env.Kind)
	}
	if env.Name != m.Name {
		return nil, malformed(m.Name, message.ExceptionWrongMethodName, "reply for %q", env.Name)
	}
	if env.SeqID != seq {
		c.logger.Warn().Str("method", m.Name).Int32("want", seq).Int32("got", env.SeqID).Msg("out of sequence reply")
		return nil, malformed(m.Name, message.ExceptionBadSequenceID, "sequence id %d, want %d", env.SeqID, seq)
	}
	return c.Resolve(m, body)
}

// begin refuses to start on a finished context and arms the transport's
// deadline from ctx. A transport without deadlines only honours ctx between
// messages.
func (c *Client) begin(ctx context.Context, method string) error {
	if err := ctx.Err(); err != nil {
		return &Error{Kind: KindTransport, Method: method, Err: err}
	}
	d, ok := c.t.(transport.Deadliner)
	if !ok {
		return nil
	}
	deadline, _ := ctx.Deadline()
	if err := d.SetDeadline(deadline); err != nil {
		return &Error{Kind: KindTransport, Method: method, Err: err}
	}
	return nil
}

// Resolve turns a decoded result struct into the call's outcome:
//  1. success present → the success value (codec.Void{} for void methods
//     when no exception is present)
//  2. otherwise the first present declared exception, by ascending field id
//  3. otherwise an unknown-result error
func (c *Client) Resolve(m *schema.Method, result *codec.Struct) (codec.Value, error) {
	if !m.Void {
		if v, ok := result.GetID(schema.SuccessFieldID); ok {
			return v, nil
		}
	}
	for _, f := range m.Exceptions() {
		v, ok := result.GetID(f.ID)
		if !ok {
			continue
		}
		exc, _ := v.(*codec.Struct)
		de := &DeclaredError{Field: f, Value: exc}
		if fn, ok := c.exceptions[f.Type.StructDesc()]; ok && exc != nil {
			de.Err = fn(exc)
		}
		return nil, &Error{Kind: KindDeclared, Method: m.Name, Err: de}
	}
	if m.Void {
		return codec.Void{}, nil
	}
	return nil, &Error{
		Kind:   KindUnknownResult,
		Method: m.Name,
		Err: &message.ApplicationException{
			Type:    message.ExceptionMissingResult,
			Message: m.Name + " failed: unknown result",
		},
	}
}

func applicationException(body *codec.Struct) *message.ApplicationException {
	ae := &message.ApplicationException{}
	ae.Message = codec.Field[string](body, "message").OrElse("")
	ae.Type = message.ExceptionType(codec.Field[int32](body, "type").OrElse(0))
	return ae
}

// Close closes the transport.
func (c *Client) Close() error {
	return c.t.Close()
}
