// Package transport implements length-delimited message I/O over an
// abstract byte stream: frame/deframe via pkg/wire, tolerating
// arbitrary fragmentation and packet coalescing on the underlying
// connection.
package transport

import (
	"fmt"

	"github.com/lumisync/lumisync-core/pkg/wire"
)

// TransportErrorKind discriminates the transport-level failure modes.
// Codec failures (CRC mismatch, unknown protocol, ...) are not
// wrapped here; they propagate verbatim from pkg/wire.
type TransportErrorKind uint8

const (
	KindIo TransportErrorKind = iota
	KindBufferFull
	KindConnectionClosed
)

func (k TransportErrorKind) String() string {
	switch k {
	case KindIo:
		return "Io"
	case KindBufferFull:
		return "BufferFull"
	case KindConnectionClosed:
		return "ConnectionClosed"
	default:
		return "Unknown"
	}
}

type TransportError struct {
	Kind TransportErrorKind
	Msg  string
	Wrap error
}

func (e *TransportError) Error() string {
	if e.Wrap != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Wrap)
	}
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *TransportError) Unwrap() error { return e.Wrap }

func (e *TransportError) Is(target error) bool {
	t, ok := target.(*TransportError)
	return ok && t.Kind == e.Kind
}

var ErrConnectionClosed = &TransportError{Kind: KindConnectionClosed}

// MaxBufferSize caps how much unconsumed data ReceiveMessage will
// accumulate while waiting for a frame to complete, guarding against a
// peer that never sends a terminator for an oversized claimed length.
const MaxBufferSize = wire.MaxFrameSize + 8 + 4
