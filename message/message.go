// Package message defines the envelope that frames every RPC message.
//
// An Envelope is written in front of exactly one encoded struct: the argument
// struct of a CALL, the result struct of a REPLY, or an ApplicationException
// record when the callee answers with an EXCEPTION.
package message

import "fmt"

// Kind tells the receiver how to interpret the payload that follows the header.
type Kind byte

const (
	Call      Kind = 1
	Reply     Kind = 2
	Exception Kind = 3
	Oneway    Kind = 4
)

func (k Kind) String() string {
	switch k {
	case Call:
		return "CALL"
	case Reply:
		return "REPLY"
	case Exception:
		return "EXCEPTION"
	case Oneway:
		return "ONEWAY"
	default:
		return fmt.Sprintf("Kind(%d)", byte(k))
	}
}

// Valid reports whether k is one of the four defined kinds.
func (k Kind) Valid() bool {
	return k >= Call && k <= Oneway
}

// Envelope is the message header.
//
//   - Name is the method name, echoed by the reply.
//   - SeqID correlates a reply with the call on the same connection.
type Envelope struct {
	Name  string
	Kind  Kind
	SeqID int32
}

func (e Envelope) String() string {
	return fmt.Sprintf("%s %s seq=%d", e.Kind, e.Name, e.SeqID)
}
