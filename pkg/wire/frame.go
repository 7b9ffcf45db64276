// Package wire implements the LumiSync frame format: a small
// fixed-layout header (protocol tag, flags, optional stream id, payload
// length) plus two interchangeable payload serialization profiles.
package wire

import "encoding/binary"

// ProtocolTag names the payload serialization profile a frame carries.
type ProtocolTag uint8

const (
	ProtocolBinary ProtocolTag = 1
	ProtocolJSON   ProtocolTag = 2
)

func (p ProtocolTag) valid() bool {
	return p == ProtocolBinary || p == ProtocolJSON
}

// FrameFlags is the header's single flag byte. Only bits 0 and 2 are
// defined; the rest must be zero on encode and are ignored on decode.
type FrameFlags uint8

const (
	flagCRC      FrameFlags = 1 << 0
	flagStreamID FrameFlags = 1 << 2
)

func (f FrameFlags) HasCRC() bool      { return f&flagCRC != 0 }
func (f FrameFlags) HasStreamID() bool { return f&flagStreamID != 0 }

// MaxFrameSize is the hard ceiling on a frame's payload length (16 MiB).
const MaxFrameSize = 16 * 1024 * 1024

// BLEMTUMax is the largest encoded frame (header + payload) that fits
// a single BLE GATT characteristic write on the hardware this system
// targets. The compact binary profile exists specifically to let
// Device<->Edge traffic stay under this.
const BLEMTUMax = 244

// FrameHeader is the fixed-layout prefix of every frame: 6 bytes, or 8
// if a stream id is present.
type FrameHeader struct {
	Protocol      ProtocolTag
	Flags         FrameFlags
	StreamID      uint16
	HasStreamID   bool
	PayloadLength uint32
}

// NewFrameHeader builds a header for a frame carrying payload of the
// given length, optionally CRC-protected and/or stream-tagged.
func NewFrameHeader(protocol ProtocolTag, streamID *uint16, payloadLength uint32, crc bool) FrameHeader {
	h := FrameHeader{Protocol: protocol, PayloadLength: payloadLength}
	if crc {
		h.Flags |= flagCRC
	}
	if streamID != nil {
		h.Flags |= flagStreamID
		h.StreamID = *streamID
		h.HasStreamID = true
	}
	return h
}

// Len reports the header's encoded size: 6 bytes, or 8 with a stream id.
func (h FrameHeader) Len() int {
	if h.HasStreamID {
		return 8
	}
	return 6
}

// Encode writes the header in wire order: protocol tag, flags, optional
// big-endian stream id, big-endian payload length.
func (h FrameHeader) Encode() []byte {
	buf := make([]byte, h.Len())
	buf[0] = byte(h.Protocol)
	buf[1] = byte(h.Flags)
	if h.HasStreamID {
		binary.BigEndian.PutUint16(buf[2:4], h.StreamID)
		binary.BigEndian.PutUint32(buf[4:8], h.PayloadLength)
	} else {
		binary.BigEndian.PutUint32(buf[2:6], h.PayloadLength)
	}
	return buf
}

// DecodeFrameHeader parses a header prefix from data, returning the
// header and the number of bytes consumed. It returns KindTruncatedFrame
// if data is too short to contain a full header (the caller should read
// more and retry), KindUnknownProtocol for an unrecognized tag, and
// KindOversizedFrame if payload_length exceeds MaxFrameSize.
func DecodeFrameHeader(data []byte) (FrameHeader, int, error) {
	if len(data) < 2 {
		return FrameHeader{}, 0, ErrTruncatedFrame
	}
	protocol := ProtocolTag(data[0])
	if !protocol.valid() {
		return FrameHeader{}, 0, ErrUnknownProtocol
	}
	flags := FrameFlags(data[1])
	hasStream := flags.HasStreamID()

	need := 6
	if hasStream {
		need = 8
	}
	if len(data) < need {
		return FrameHeader{}, 0, ErrTruncatedFrame
	}

	h := FrameHeader{Protocol: protocol, Flags: flags, HasStreamID: hasStream}
	if hasStream {
		h.StreamID = binary.BigEndian.Uint16(data[2:4])
		h.PayloadLength = binary.BigEndian.Uint32(data[4:8])
	} else {
		h.PayloadLength = binary.BigEndian.Uint32(data[2:6])
	}
	if h.PayloadLength > MaxFrameSize {
		return FrameHeader{}, 0, ErrOversizedFrame
	}
	return h, need, nil
}
