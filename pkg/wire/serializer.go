package wire

import (
	"encoding/binary"

	"github.com/lumisync/lumisync-core/pkg/message"
)

// Serializer turns a Message into payload bytes and back. The two
// profiles required by the wire format each implement this.
type Serializer interface {
	Serialize(msg *message.Message) ([]byte, error)
	Deserialize(data []byte) (*message.Message, error)
	Protocol() ProtocolTag
}

type BinarySerializer struct{}

func (BinarySerializer) Serialize(msg *message.Message) ([]byte, error) {
	return EncodeMessageBinary(msg)
}
func (BinarySerializer) Deserialize(data []byte) (*message.Message, error) {
	return DecodeMessageBinary(data)
}
func (BinarySerializer) Protocol() ProtocolTag { return ProtocolBinary }

type JSONSerializer struct{}

func (JSONSerializer) Serialize(msg *message.Message) ([]byte, error) {
	return EncodeMessageJSON(msg)
}
func (JSONSerializer) Deserialize(data []byte) (*message.Message, error) {
	return DecodeMessageJSON(data)
}
func (JSONSerializer) Protocol() ProtocolTag { return ProtocolJSON }

func serializerFor(p ProtocolTag) (Serializer, error) {
	switch p {
	case ProtocolBinary:
		return BinarySerializer{}, nil
	case ProtocolJSON:
		return JSONSerializer{}, nil
	default:
		return nil, ErrUnknownProtocol
	}
}

// EncodeFrame serializes msg with the given serializer and wraps it in
// a frame: header, payload, optional CRC trailer.
func EncodeFrame(msg *message.Message, ser Serializer, streamID *uint16, crc bool) ([]byte, error) {
	payload, err := ser.Serialize(msg)
	if err != nil {
		return nil, err
	}
	if len(payload) > MaxFrameSize {
		return nil, ErrOversizedFrame
	}

	header := NewFrameHeader(ser.Protocol(), streamID, uint32(len(payload)), crc)
	out := header.Encode()
	out = append(out, payload...)
	if crc {
		var trailer [4]byte
		binary.BigEndian.PutUint32(trailer[:], ChecksumCRC32(payload))
		out = append(out, trailer[:]...)
	}
	return out, nil
}

// DecodedFrame is everything DecodeFrame recovers from one frame.
type DecodedFrame struct {
	Message  *message.Message
	Protocol ProtocolTag
	StreamID *uint16
	Consumed int
}

// DecodeFrame parses and deserializes exactly one frame prefix of data.
// It returns ErrTruncatedFrame (without consuming anything) whenever
// data does not yet hold a complete frame, so callers can read more and
// retry with the same buffer plus newly-read bytes.
func DecodeFrame(data []byte) (DecodedFrame, error) {
	header, headerLen, err := DecodeFrameHeader(data)
	if err != nil {
		return DecodedFrame{}, err
	}

	trailerLen := 0
	if header.Flags.HasCRC() {
		trailerLen = 4
	}
	total := headerLen + int(header.PayloadLength) + trailerLen
	if len(data) < total {
		return DecodedFrame{}, ErrTruncatedFrame
	}

	payload := data[headerLen : headerLen+int(header.PayloadLength)]
	if header.Flags.HasCRC() {
		trailer := data[headerLen+int(header.PayloadLength) : total]
		expected := binary.BigEndian.Uint32(trailer)
		if ChecksumCRC32(payload) != expected {
			// The frame boundary is still known even though the payload
			// is corrupt, so callers can skip exactly this frame and
			// resume decoding at the next one instead of discarding
			// everything buffered after it.
			return DecodedFrame{Consumed: total}, ErrCrcMismatch
		}
	}

	ser, err := serializerFor(header.Protocol)
	if err != nil {
		return DecodedFrame{}, err
	}
	msg, err := ser.Deserialize(payload)
	if err != nil {
		return DecodedFrame{}, err
	}

	var streamID *uint16
	if header.HasStreamID {
		id := header.StreamID
		streamID = &id
	}

	return DecodedFrame{Message: msg, Protocol: header.Protocol, StreamID: streamID, Consumed: total}, nil
}
