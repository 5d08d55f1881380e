package resp

import (
	"errors"
	"fmt"
)

var ErrProtocolError = errors.New("protocol error")

var ErrTooLarge = fmt.Errorf("%w: bulk string length too large", ErrProtocolError)

var ErrArrayTooLarge = fmt.Errorf("%w: array length too large", ErrProtocolError)

var ErrUnknownValueType = fmt.Errorf("%w: unknown value type", ErrProtocolError)

// ErrInvalidValue is returned by the serializer when a Value's content
// cannot be encoded as the RESP type it claims (a simple string or error
// containing a CR or LF, which the protocol has no way to escape).
var ErrInvalidValue = errors.New("invalid value for resp type")

// ErrInvalidType is returned by Serialize when asked to encode a Value
// whose Type has no corresponding wire representation.
var ErrInvalidType = errors.New("invalid resp value type")

// maxBulkStringSize caps the length a client may declare for a bulk string
// at 1 MiB, so a malformed or hostile length prefix can't make the server
// allocate unbounded memory.
const maxBulkStringSize = 1 << 20

// maxArrayLength caps the element count a client may declare for an array,
// for the same reason maxBulkStringSize caps bulk string length: a raw
// make([]Value, length) from an unvalidated prefix is an easy memory-
// exhaustion vector for anything speaking RESP to cmd/kvserver.
const maxArrayLength = 1 << 20
