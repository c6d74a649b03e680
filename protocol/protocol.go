// Package protocol implements the tagged binary protocol: the primitive
// encoding of scalars, field and collection headers, and the message header
// that frames one RPC call or reply.
//
// All integers are fixed-width big-endian (network byte order). Strings are an
// i32 length followed by the raw bytes.
//
// Message header, strict form (written by default):
//
//	0        4             4+n      8+n
//	┌────────┬─────────────┬────────┐
//	│version │ name        │ seqid  │
//	│|kind   │ i32 len + n │ i32    │
//	└────────┴─────────────┴────────┘
//
// where version|kind is 0x8001_00kk. The non-strict form is
// i32 len, name bytes, one kind byte, i32 seqid. Readers accept both unless
// StrictRead is set.
//
// Field header: one type byte followed by an i16 field id. A lone type byte of
// zero (STOP) ends a struct. Lists and sets: element type byte + i32 count.
// Maps: key type byte + value type byte + i32 count.
package protocol

const (
	// VersionMask selects the version bits of a strict message header.
	VersionMask uint32 = 0xffff0000
	// Version1 is the only protocol version this package speaks.
	Version1 uint32 = 0x80010000
)

// Limits bounds the memory and recursion a decoder is willing to spend on
// untrusted input.
type Limits struct {
	MaxStringBytes int // longest string or binary value
	MaxCollection  int // most elements in one list, set or map
	MaxDepth       int // deepest struct/collection nesting
}

// DefaultLimits returns limits sized for query results.
func DefaultLimits() Limits {
	return Limits{
		MaxStringBytes: 16 * 1024 * 1024,
		MaxCollection:  1 << 24,
		MaxDepth:       64,
	}
}

// Options controls header strictness and decode limits.
type Options struct {
	StrictRead  bool
	StrictWrite bool
	Limits      Limits
}

// DefaultOptions writes strict headers and accepts either header form.
func DefaultOptions() Options {
	return Options{
		StrictRead:  false,
		StrictWrite: true,
		Limits:      DefaultLimits(),
	}
}

func (o Options) withDefaults() Options {
	def := DefaultLimits()
	if o.Limits.MaxStringBytes <= 0 {
		o.Limits.MaxStringBytes = def.MaxStringBytes
	}
	if o.Limits.MaxCollection <= 0 {
		o.Limits.MaxCollection = def.MaxCollection
	}
	if o.Limits.MaxDepth <= 0 {
		o.Limits.MaxDepth = def.MaxDepth
	}
	return o
}
