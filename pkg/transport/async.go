package transport

import (
	"context"
	"errors"
	"io"

	"github.com/lumisync/lumisync-core/pkg/message"
	"github.com/lumisync/lumisync-core/pkg/wire"
)

// AsyncMessageTransport is the context-cancellable counterpart of
// SyncMessageTransport, for callers that need to abandon an in-flight
// receive (e.g. the node's shutdown path). Cancellation never exposes a
// partially-consumed frame: either ReceiveMessage returns a complete
// frame, or it returns ctx.Err() and leaves any in-flight read pending
// for the next call to collect, so the stream resumes exactly where the
// cancelled call left off with no byte dropped.
type AsyncMessageTransport struct {
	rw              io.ReadWriter
	crcEnabled      bool
	defaultProtocol wire.ProtocolTag
	readBuf         []byte

	// pending holds the result channel of a read a cancelled call left
	// in flight. The next ReceiveMessage waits on it instead of issuing
	// a second read, so bytes the abandoned read eventually pulls off
	// the stream land in readBuf rather than being lost.
	pending chan readResult
}

func NewAsyncMessageTransport(rw io.ReadWriter) *AsyncMessageTransport {
	return &AsyncMessageTransport{rw: rw, defaultProtocol: wire.ProtocolBinary}
}

func (t *AsyncMessageTransport) WithCRC(enabled bool) *AsyncMessageTransport {
	t.crcEnabled = enabled
	return t
}

func (t *AsyncMessageTransport) WithDefaultProtocol(p wire.ProtocolTag) *AsyncMessageTransport {
	t.defaultProtocol = p
	return t
}

func (t *AsyncMessageTransport) DefaultProtocol() wire.ProtocolTag { return t.defaultProtocol }
func (t *AsyncMessageTransport) IsCRCEnabled() bool                { return t.crcEnabled }
func (t *AsyncMessageTransport) Inner() io.ReadWriter               { return t.rw }

// SendMessage has no suspension point worth cancelling (a single
// framed write), so it takes no context, matching the sync variant.
func (t *AsyncMessageTransport) SendMessage(msg *message.Message, protocolOverride *wire.ProtocolTag, streamID *uint16) error {
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

type readResult struct {
	buf []byte
	err error
}

// ReceiveMessage blocks until one full frame is available, ctx is
// cancelled, or the underlying read fails.
func (t *AsyncMessageTransport) ReceiveMessage(ctx context.Context) (*message.Message, wire.ProtocolTag, *uint16, error) {
	for {
		df, err := wire.DecodeFrame(t.readBuf)
		if err == nil {
			t.readBuf = t.readBuf[df.Consumed:]
			return df.Message, df.Protocol, df.StreamID, nil
		}
		if errors.Is(err, wire.ErrCrcMismatch) {
			// Frame extent is known; skip just this frame and resume on
			// whatever follows it next call.
			t.readBuf = t.readBuf[df.Consumed:]
			return nil, 0, nil, err
		}
		if !errors.Is(err, wire.ErrTruncatedFrame) {
			t.readBuf = nil
			return nil, 0, nil, err
		}
		if len(t.readBuf) > MaxBufferSize {
			t.readBuf = nil
			return nil, 0, nil, &TransportError{Kind: KindBufferFull, Msg: "frame exceeds buffer limit"}
		}

		if t.pending == nil {
			scratch := make([]byte, 4096)
			result := make(chan readResult, 1)
			go func() {
				n, err := t.rw.Read(scratch)
				result <- readResult{buf: scratch[:n], err: err}
			}()
			t.pending = result
		}

		select {
		case <-ctx.Done():
			// The in-flight read stays pending: the next call collects
			// its result and merges it into readBuf, so cancellation
			// never loses bytes already consumed from the stream.
			return nil, 0, nil, ctx.Err()
		case r := <-t.pending:
			t.pending = nil
			if len(r.buf) > 0 {
				t.readBuf = append(t.readBuf, r.buf...)
			}
			if r.err != nil {
				if r.err == io.EOF && len(r.buf) == 0 {
					return nil, 0, nil, &TransportError{Kind: KindIo, Msg: "EOF", Wrap: r.err}
				}
				if r.err != io.EOF {
					return nil, 0, nil, &TransportError{Kind: KindIo, Msg: "read", Wrap: r.err}
				}
			}
			if len(r.buf) == 0 && r.err == nil {
				return nil, 0, nil, &TransportError{Kind: KindIo, Msg: "EOF"}
			}
		}
	}
}
