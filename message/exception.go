package message

import (
	"fmt"

	"hqlrpc/schema"
)

// ExceptionType is the integer kind code carried by an ApplicationException.
type ExceptionType int32

const (
	ExceptionUnknown            ExceptionType = 0
	ExceptionUnknownMethod      ExceptionType = 1
	ExceptionInvalidMessageType ExceptionType = 2
	ExceptionWrongMethodName    ExceptionType = 3
	ExceptionBadSequenceID      ExceptionType = 4
	ExceptionMissingResult      ExceptionType = 5
	ExceptionInternalError      ExceptionType = 6
	ExceptionProtocolError      ExceptionType = 7
)

var exceptionTypeNames = map[ExceptionType]string{
	ExceptionUnknown:            "unknown",
	ExceptionUnknownMethod:      "unknown method",
	ExceptionInvalidMessageType: "invalid message type",
	ExceptionWrongMethodName:    "wrong method name",
	ExceptionBadSequenceID:      "bad sequence id",
	ExceptionMissingResult:      "missing result",
	ExceptionInternalError:      "internal error",
	ExceptionProtocolError:      "protocol error",
}

func (t ExceptionType) String() string {
	if name, ok := exceptionTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("exception type %d", int32(t))
}

// ApplicationException is the payload of an EXCEPTION message: a fault the
// callee could not express through the method's declared result type.
type ApplicationException struct {
	Message string
	Type    ExceptionType
}

func (e *ApplicationException) Error() string {
	if e.Message == "" {
		return "application exception: " + e.Type.String()
	}
	return fmt.Sprintf("application exception (%s): %s", e.Type, e.Message)
}

// ApplicationExceptionDesc is the wire shape of ApplicationException.
var ApplicationExceptionDesc = schema.NewStruct("TApplicationException",
	schema.Field{ID: 1, Name: "message", Type: schema.Scalar(schema.String)},
	schema.Field{ID: 2, Name: "type", Type: schema.Scalar(schema.I32)},
)
