package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lumisync/lumisync-core/pkg/message"
	"github.com/lumisync/lumisync-core/pkg/wire"
)

// chunkedReader serves written-then-reset data back in fixed-size
// chunks, simulating a fragmented underlying connection the way
// original_source's AsyncMockIo/SyncMockIo did.
type chunkedReader struct {
	data      []byte
	pos       int
	chunkSize int // 0 means "whatever the caller's buffer holds"
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	max := len(p)
	if r.chunkSize > 0 && r.chunkSize < max {
		max = r.chunkSize
	}
	remaining := len(r.data) - r.pos
	if max > remaining {
		max = remaining
	}
	n := copy(p, r.data[r.pos:r.pos+max])
	r.pos += n
	return n, nil
}

// writeCollector is an io.Writer that just appends.
type writeCollector struct {
	buf bytes.Buffer
}

func (w *writeCollector) Write(p []byte) (int, error) { return w.buf.Write(p) }

type readWriter struct {
	*writeCollector
	*chunkedReader
}

func testMessage(id uuid.UUID, text string) *message.Message {
	return &message.Message{
		Header: message.MessageHeader{
			ID:        id,
			Timestamp: time.Unix(1700000000, 0).UTC(),
			Priority:  message.PriorityRegular,
			Source:    message.NewEdge(1),
			Target:    message.Cloud,
		},
		Payload: message.Acknowledge{OriginalMessageID: id, Status: text},
	}
}

func encodeAll(t *testing.T, msgs []*message.Message, ser wire.Serializer, crc bool) []byte {
	t.Helper()
	var out []byte
	for _, m := range msgs {
		frame, err := wire.EncodeFrame(m, ser, nil, crc)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		out = append(out, frame...)
	}
	return out
}

func TestSyncStickyPacketScenario(t *testing.T) {
	msgs := []*message.Message{
		testMessage(uuid.New(), "first"),
		testMessage(uuid.New(), "second"),
		testMessage(uuid.New(), "third"),
	}
	data := encodeAll(t, msgs, wire.BinarySerializer{}, false)

	transport := NewSyncMessageTransport(&readWriter{&writeCollector{}, &chunkedReader{data: data}})
	for _, want := range msgs {
		got, _, _, err := transport.ReceiveMessage()
		if err != nil {
			t.Fatalf("receive: %v", err)
		}
		if got.Header.ID != want.Header.ID {
			t.Errorf("id mismatch: got %v want %v", got.Header.ID, want.Header.ID)
		}
	}
}

func TestSyncFragmentedPacketScenario(t *testing.T) {
	want := testMessage(uuid.New(), "fragmented-body-filler-text-to-span-multiple-reads")
	data := encodeAll(t, []*message.Message{want}, wire.BinarySerializer{}, false)

	transport := NewSyncMessageTransport(&readWriter{&writeCollector{}, &chunkedReader{data: data, chunkSize: 5}})
	got, _, _, err := transport.ReceiveMessage()
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if got.Header.ID != want.Header.ID {
		t.Fatal("id mismatch after fragmented read")
	}
}

func TestSyncProtocolMixing(t *testing.T) {
	type testCase struct {
		msg *message.Message
		ser wire.Serializer
	}
	cases := []testCase{
		{testMessage(uuid.New(), "a"), wire.BinarySerializer{}},
		{testMessage(uuid.New(), "b"), wire.JSONSerializer{}},
		{testMessage(uuid.New(), "c"), wire.BinarySerializer{}},
	}

	var data []byte
	for _, c := range cases {
		frame, err := wire.EncodeFrame(c.msg, c.ser, nil, true)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		data = append(data, frame...)
	}

	transport := NewSyncMessageTransport(&readWriter{&writeCollector{}, &chunkedReader{data: data}}).WithCRC(true)
	for _, c := range cases {
		got, protocol, _, err := transport.ReceiveMessage()
		if err != nil {
			t.Fatalf("receive: %v", err)
		}
		if got.Header.ID != c.msg.Header.ID {
			t.Error("id mismatch")
		}
		if protocol != c.ser.Protocol() {
			t.Errorf("protocol mismatch: got %v want %v", protocol, c.ser.Protocol())
		}
	}
}

func TestSyncCRCCorruption(t *testing.T) {
	msg := testMessage(uuid.New(), "crc-test")
	data := encodeAll(t, []*message.Message{msg}, wire.BinarySerializer{}, true)

	// Corrupt the last byte (part of the CRC trailer).
	data[len(data)-1] ^= 0xFF

	transport := NewSyncMessageTransport(&readWriter{&writeCollector{}, &chunkedReader{data: data}}).WithCRC(true)
	_, _, _, err := transport.ReceiveMessage()
	if err == nil {
		t.Fatal("expected CrcMismatch")
	}
	if !errors.Is(err, wire.ErrCrcMismatch) {
		t.Fatalf("expected CrcMismatch, got %v", err)
	}
}

func TestSyncCRCCorruptionThenNextFrameRecovers(t *testing.T) {
	good := testMessage(uuid.New(), "before")
	bad := testMessage(uuid.New(), "corrupt")
	next := testMessage(uuid.New(), "after")

	data := encodeAll(t, []*message.Message{good, bad, next}, wire.BinarySerializer{}, true)

	goodFrame, err := wire.EncodeFrame(good, wire.BinarySerializer{}, nil, true)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// Corrupt a payload byte inside the second (bad) frame only.
	data[len(goodFrame)+6] ^= 0xFF

	transport := NewSyncMessageTransport(&readWriter{&writeCollector{}, &chunkedReader{data: data}}).WithCRC(true)

	got, _, _, err := transport.ReceiveMessage()
	if err != nil {
		t.Fatalf("first receive: %v", err)
	}
	if got.Header.ID != good.Header.ID {
		t.Fatal("first frame id mismatch")
	}

	_, _, _, err = transport.ReceiveMessage()
	if !errors.Is(err, wire.ErrCrcMismatch) {
		t.Fatalf("expected CrcMismatch on second frame, got %v", err)
	}

	got, _, _, err = transport.ReceiveMessage()
	if err != nil {
		t.Fatalf("third receive: %v", err)
	}
	if got.Header.ID != next.Header.ID {
		t.Fatal("third frame id mismatch")
	}
}

func TestSyncSendThenReceiveRoundTrip(t *testing.T) {
	rw := &readWriter{&writeCollector{}, &chunkedReader{}}
	transport := NewSyncMessageTransport(rw).WithCRC(true)

	msg := testMessage(uuid.New(), "round-trip")
	if err := transport.SendMessage(msg, nil, nil); err != nil {
		t.Fatalf("send: %v", err)
	}

	rw.chunkedReader = &chunkedReader{data: rw.writeCollector.buf.Bytes()}
	got, _, _, err := transport.ReceiveMessage()
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if got.Header.ID != msg.Header.ID {
		t.Fatal("id mismatch")
	}
}

func TestAsyncReceiveMessage(t *testing.T) {
	msg := testMessage(uuid.New(), "async")
	data := encodeAll(t, []*message.Message{msg}, wire.BinarySerializer{}, false)

	transport := NewAsyncMessageTransport(&readWriter{&writeCollector{}, &chunkedReader{data: data, chunkSize: 7}})
	got, _, _, err := transport.ReceiveMessage(context.Background())
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if got.Header.ID != msg.Header.ID {
		t.Fatal("id mismatch")
	}
}

func TestAsyncReceiveMessageCancellation(t *testing.T) {
	// A reader that never produces data: ReceiveMessage should respect
	// ctx cancellation rather than block forever.
	blockingRW := &readWriter{&writeCollector{}, &chunkedReader{data: nil}}
	transport := NewAsyncMessageTransport(blockRW{blockingRW})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, _, err := transport.ReceiveMessage(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}

// blockRW wraps a readWriter so Read never returns (simulating an idle
// connection), to exercise the cancellation path.
type blockRW struct {
	*readWriter
}

func (b blockRW) Read(p []byte) (int, error) {
	select {}
}

// slowReader serves its whole payload in one read after a fixed delay,
// then blocks forever, simulating a peer whose frame lands just after
// the caller gave up waiting for it.
type slowReader struct {
	data  []byte
	delay time.Duration
	done  bool
}

func (r *slowReader) Read(p []byte) (int, error) {
	if r.done {
		select {}
	}
	time.Sleep(r.delay)
	r.done = true
	return copy(p, r.data), nil
}

func TestAsyncCancellationDoesNotLoseInFlightRead(t *testing.T) {
	msg := testMessage(uuid.New(), "late-arrival")
	data := encodeAll(t, []*message.Message{msg}, wire.BinarySerializer{}, false)

	rw := &readWriter{&writeCollector{}, nil}
	transport := NewAsyncMessageTransport(struct {
		io.Reader
		io.Writer
	}{&slowReader{data: data, delay: 50 * time.Millisecond}, rw})

	// Give up before the slow read completes: the read it started must
	// stay pending rather than being discarded with its bytes.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	_, _, _, err := transport.ReceiveMessage(ctx)
	cancel()
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}

	// The retried call collects the pending read's result and decodes
	// the frame those bytes carried.
	got, _, _, err := transport.ReceiveMessage(context.Background())
	if err != nil {
		t.Fatalf("receive after cancellation: %v", err)
	}
	if got.Header.ID != msg.Header.ID {
		t.Fatal("frame arriving after a cancelled call was lost or corrupted")
	}
}

// TestBufferedHandoffKeepsStickyFrame models the accept-path handoff:
// one owner decodes the first of two sticky-packed frames, then a new
// owner takes over the stream seeded with the first owner's leftover
// buffer, and must see the second frame even though the underlying
// stream has nothing more to give.
func TestBufferedHandoffKeepsStickyFrame(t *testing.T) {
	first := testMessage(uuid.New(), "identity")
	second := testMessage(uuid.New(), "pipelined")
	data := encodeAll(t, []*message.Message{first, second}, wire.BinarySerializer{}, false)

	peek := NewSyncMessageTransport(&readWriter{&writeCollector{}, &chunkedReader{data: data}})
	got, _, _, err := peek.ReceiveMessage()
	if err != nil {
		t.Fatalf("peek receive: %v", err)
	}
	if got.Header.ID != first.Header.ID {
		t.Fatal("peek decoded the wrong frame")
	}

	// The stream is exhausted: everything the second frame needs must
	// come through the handed-off buffer.
	adopted := NewSyncMessageTransport(&readWriter{&writeCollector{}, &chunkedReader{}}).
		WithInitialBuffer(peek.Buffered())
	got, _, _, err = adopted.ReceiveMessage()
	if err != nil {
		t.Fatalf("adopted receive: %v", err)
	}
	if got.Header.ID != second.Header.ID {
		t.Fatal("sticky-packed second frame was lost in the handoff")
	}
}
