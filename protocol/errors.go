package protocol

import (
	"errors"
	"fmt"
)

// ErrMalformed is wrapped by every error that means the bytes themselves are
// wrong, as opposed to the transport failing underneath them.
var ErrMalformed = errors.New("protocol: malformed wire data")

var (
	ErrTruncated      = fmt.Errorf("%w: truncated data", ErrMalformed)
	ErrNegativeSize   = fmt.Errorf("%w: negative size", ErrMalformed)
	ErrSizeLimit      = fmt.Errorf("%w: size exceeds limit", ErrMalformed)
	ErrBadVersion     = fmt.Errorf("%w: bad protocol version", ErrMalformed)
	ErrMissingVersion = fmt.Errorf("%w: missing version in strict read", ErrMalformed)
	ErrInvalidType    = fmt.Errorf("%w: invalid type tag", ErrMalformed)
	ErrInvalidKind    = fmt.Errorf("%w: invalid message kind", ErrMalformed)
	ErrDepthLimit     = fmt.Errorf("%w: nesting too deep", ErrMalformed)
)
