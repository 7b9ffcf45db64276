package transport

import (
	"errors"
	"io"

	"github.com/lumisync/lumisync-core/pkg/message"
	"github.com/lumisync/lumisync-core/pkg/wire"
)

// SyncMessageTransport frames messages over a blocking io.ReadWriter.
// It accumulates read bytes across calls so a frame split across
// several underlying reads (fragmentation) or several frames arriving
// in one read (sticky packets) are both handled transparently.
type SyncMessageTransport struct {
	rw              io.ReadWriter
	crcEnabled      bool
	defaultProtocol wire.ProtocolTag

	readBuf []byte
	scratch []byte
}

// NewSyncMessageTransport wraps rw. CRC is off and the binary profile
// is the default until overridden.
func NewSyncMessageTransport(rw io.ReadWriter) *SyncMessageTransport {
	return &SyncMessageTransport{
		rw:              rw,
		defaultProtocol: wire.ProtocolBinary,
		scratch:         make([]byte, 4096),
	}
}

func (t *SyncMessageTransport) WithCRC(enabled bool) *SyncMessageTransport {
	t.crcEnabled = enabled
	return t
}

func (t *SyncMessageTransport) WithDefaultProtocol(p wire.ProtocolTag) *SyncMessageTransport {
	t.defaultProtocol = p
	return t
}

func (t *SyncMessageTransport) DefaultProtocol() wire.ProtocolTag { return t.defaultProtocol }
func (t *SyncMessageTransport) IsCRCEnabled() bool                { return t.crcEnabled }
func (t *SyncMessageTransport) Inner() io.ReadWriter              { return t.rw }

// WithInitialBuffer seeds the read buffer with bytes a previous owner
// of the stream had already pulled off the socket, so adopting a
// connection mid-stream loses nothing that arrived sticky-packed
// behind the last frame the previous owner decoded.
func (t *SyncMessageTransport) WithInitialBuffer(b []byte) *SyncMessageTransport {
	t.readBuf = append(t.readBuf, b...)
	return t
}

// Buffered returns a copy of the bytes read past the last returned
// frame's boundary and not yet decoded. Callers handing the underlying
// stream to a new owner pass this to the new owner's WithInitialBuffer.
func (t *SyncMessageTransport) Buffered() []byte {
	return append([]byte(nil), t.readBuf...)
}

// SendMessage serializes msg with protocolOverride (or the transport's
// default), frames it, and writes the whole frame in one call.
func (t *SyncMessageTransport) SendMessage(msg *message.Message, protocolOverride *wire.ProtocolTag, streamID *uint16) error {
	protocol := t.defaultProtocol
	if protocolOverride != nil {
		protocol = *protocolOverride
	}
	ser, err := serializerFor(protocol)
	if err != nil {
		return err
	}

	frame, err := wire.EncodeFrame(msg, ser, streamID, t.crcEnabled)
	if err != nil {
		return err
	}

	if _, err := t.rw.Write(frame); err != nil {
		return &TransportError{Kind: KindIo, Msg: "write", Wrap: err}
	}
	return nil
}

// ReceiveMessage reads and decodes exactly one frame, reading only as
// much from the underlying stream as is needed to complete it; any
// bytes read past the frame boundary (the start of the next sticky
// packet) are retained for the next call.
func (t *SyncMessageTransport) ReceiveMessage() (*message.Message, wire.ProtocolTag, *uint16, error) {
	for {
		df, err := wire.DecodeFrame(t.readBuf)
		if err == nil {
			t.readBuf = t.readBuf[df.Consumed:]
			return df.Message, df.Protocol, df.StreamID, nil
		}
		if errors.Is(err, wire.ErrCrcMismatch) {
			// The frame's extent is known even though its payload is
			// corrupt: discard just this frame and let the next call
			// resume on whatever follows it, per spec.md's "the
			// transport continues with the next frame".
			t.readBuf = t.readBuf[df.Consumed:]
			return nil, 0, nil, err
		}
		if !errors.Is(err, wire.ErrTruncatedFrame) {
			// Header itself is unreadable (unknown protocol, oversized,
			// bad serialization): the frame boundary can't be trusted,
			// so drop everything buffered and start fresh.
			t.readBuf = nil
			return nil, 0, nil, err
		}

		if len(t.readBuf) > MaxBufferSize {
			t.readBuf = nil
			return nil, 0, nil, &TransportError{Kind: KindBufferFull, Msg: "frame exceeds buffer limit"}
		}

		n, err := t.rw.Read(t.scratch)
		if n > 0 {
			t.readBuf = append(t.readBuf, t.scratch[:n]...)
		}
		if err != nil {
			if err == io.EOF && n == 0 {
				return nil, 0, nil, &TransportError{Kind: KindIo, Msg: "EOF", Wrap: err}
			}
			if err != io.EOF {
				return nil, 0, nil, &TransportError{Kind: KindIo, Msg: "read", Wrap: err}
			}
		}
		if n == 0 && err == nil {
			return nil, 0, nil, &TransportError{Kind: KindIo, Msg: "EOF"}
		}
	}
}

func serializerFor(p wire.ProtocolTag) (wire.Serializer, error) {
	switch p {
	case wire.ProtocolBinary:
		return wire.BinarySerializer{}, nil
	case wire.ProtocolJSON:
		return wire.JSONSerializer{}, nil
	default:
		return nil, wire.ErrUnknownProtocol
	}
}
