package client

import (
	"errors"
	"fmt"

	"hqlrpc/codec"
	"hqlrpc/message"
	"hqlrpc/protocol"
	"hqlrpc/schema"
)

// ErrorKind classifies why a call failed.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	// KindMalformedWire: the reply bytes could not be decoded, or the header
	// did not match the call (kind, method name or sequence id).
	KindMalformedWire
	// KindDeclared: the callee raised one of the method's declared exceptions.
	KindDeclared
	// KindApplication: the callee answered with an EXCEPTION message.
	KindApplication
	// KindUnknownResult: a reply with neither success nor any exception.
	KindUnknownResult
	// KindTransport: the connection failed underneath the protocol.
	KindTransport
	// KindEncode: the caller's arguments did not fit the method's declaration.
	KindEncode
)

var kindNames = [...]string{
	KindNone:          "none",
	KindMalformedWire: "malformed wire data",
	KindDeclared:      "declared exception",
	KindApplication:   "application exception",
	KindUnknownResult: "unknown result",
	KindTransport:     "transport error",
	KindEncode:        "encode error",
}

func (k ErrorKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

var ErrConcurrentUse = errors.New("client: concurrent use of a single client")

// Error is returned by every failing client operation.
type Error struct {
	Kind   ErrorKind
	Method string
	Err    error
}

func (e *Error) Error() string {
	if e.Kind == KindUnknownResult {
		return e.Method + " failed: unknown result"
	}
	return fmt.Sprintf("%s: %s: %v", e.Method, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf classifies any error returned by this module.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	switch {
	case errors.Is(err, protocol.ErrMalformed):
		return KindMalformedWire
	case errors.Is(err, codec.ErrBadValue):
		return KindEncode
	}
	var ae *message.ApplicationException
	if errors.As(err, &ae) {
		return KindApplication
	}
	return KindTransport
}

// DeclaredError is a declared exception taken from a reply's result struct.
// Err holds the typed form when one is registered for the exception's shape.
type DeclaredError struct {
	Field schema.Field
	Value *codec.Struct
	Err   error
}

func (e *DeclaredError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Field.Name, e.Value)
}

func (e *DeclaredError) Unwrap() error {
	return e.Err
}

// malformed builds a header-mismatch error. It matches both
// protocol.ErrMalformed and *message.ApplicationException.
func malformed(method string, typ message.ExceptionType, format string, args ...any) error {
	ae := &message.ApplicationException{Type: typ, Message: fmt.Sprintf(format, args...)}
	return &Error{Kind: KindMalformedWire, Method: method, Err: fmt.Errorf("%w: %w", protocol.ErrMalformed, ae)}
}

// classifyIO tags an error from writing or reading a message.
func classifyIO(method string, err error) error {
	switch {
	case errors.Is(err, protocol.ErrMalformed):
		return &Error{Kind: KindMalformedWire, Method: method, Err: err}
	case errors.Is(err, codec.ErrBadValue):
		return &Error{Kind: KindEncode, Method: method, Err: err}
	default:
		return &Error{Kind: KindTransport, Method: method, Err: err}
	}
}
