package message

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

// PayloadType discriminates the seven application-level payload variants
// that a Message can carry. The router keys its handler registry on this.
type PayloadType uint8

const (
	PayloadCloudCommand PayloadType = iota
	PayloadEdgeReport
	PayloadEdgeCommand
	PayloadDeviceReport
	PayloadTimeSync
	PayloadAcknowledge
	PayloadError
)

func (p PayloadType) String() string {
	switch p {
	case PayloadCloudCommand:
		return "CloudCommand"
	case PayloadEdgeReport:
		return "EdgeReport"
	case PayloadEdgeCommand:
		return "EdgeCommand"
	case PayloadDeviceReport:
		return "DeviceReport"
	case PayloadTimeSync:
		return "TimeSync"
	case PayloadAcknowledge:
		return "Acknowledge"
	case PayloadError:
		return "Error"
	default:
		return "Unknown"
	}
}

// MessagePayload is implemented by every concrete payload type. The core
// fully owns TimeSync/Acknowledge/Error; the other four variants are
// opaque as far as routing is concerned (the router only needs Kind()).
type MessagePayload interface {
	Kind() PayloadType
}

// MessageHeader carries message metadata. ID is unique per emission.
type MessageHeader struct {
	ID        uuid.UUID
	Timestamp time.Time
	Priority  Priority
	Source    NodeId
	Target    NodeId
}

// Message is the envelope handed between the application layer and the
// transport stack.
type Message struct {
	Header  MessageHeader
	Payload MessagePayload
}

// NewMessageID returns a fresh random (v4) message identifier, used on
// Cloud and Edge where a real CSPRNG is cheap.
func NewMessageID() uuid.UUID {
	return uuid.New()
}

// deviceIDNamespace is the fixed namespace deterministic device message
// ids are derived from. Devices have no CSPRNG worth relying on for
// uniqueness guarantees, so spec.md calls for a MAC-derived id instead.
var deviceIDNamespace = uuid.MustParse("b2b4a9d4-8c0b-4e62-9c0e-2a6a6f6d6c61")

// NewDeterministicMessageID derives a stable-looking but unique-per-call
// UUID (v5, name-based) from a device's MAC address and a monotonically
// increasing per-device counter, avoiding any dependency on a random
// source on constrained nodes.
func NewDeterministicMessageID(mac [6]byte, counter uint32) uuid.UUID {
	var name [10]byte
	copy(name[:6], mac[:])
	binary.BigEndian.PutUint32(name[6:], counter)
	return uuid.NewSHA1(deviceIDNamespace, name[:])
}
