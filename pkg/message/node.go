// Package message defines the LumiSync wire data model: node identity,
// message envelopes, and the payload variants the core transport and
// time-sync layers know how to interpret.
package message

import "fmt"

// NodeKind discriminates the three LumiSync node classes.
type NodeKind uint8

const (
	NodeCloud NodeKind = iota
	NodeEdge
	NodeDevice
	// NodeAny is a routing-table wildcard only; it must never appear as a
	// Message source or target on the wire.
	NodeAny
)

// EdgeBroadcast is the reserved Edge id meaning "all of this edge's devices".
const EdgeBroadcast uint8 = 255

// NodeId identifies any LumiSync participant. It is a plain comparable
// struct so it can be used directly as a map key (routing tables, the
// coordinator's service map, pending-request bookkeeping).
type NodeId struct {
	Kind   NodeKind
	Edge   uint8   // meaningful iff Kind == NodeEdge
	Device [6]byte // meaningful iff Kind == NodeDevice, holds a MAC address
}

// Cloud is the singleton Cloud node identity.
var Cloud = NodeId{Kind: NodeCloud}

// NewEdge returns the identity of edge gateway number id.
func NewEdge(id uint8) NodeId {
	return NodeId{Kind: NodeEdge, Edge: id}
}

// EdgeBroadcastID is the well-known address for "every device on this edge".
func EdgeBroadcastID() NodeId {
	return NewEdge(EdgeBroadcast)
}

// NewDevice returns the identity of the device with the given MAC address.
func NewDevice(mac [6]byte) NodeId {
	return NodeId{Kind: NodeDevice, Device: mac}
}

// IsBroadcast reports whether n is the Edge broadcast address.
func (n NodeId) IsBroadcast() bool {
	return n.Kind == NodeEdge && n.Edge == EdgeBroadcast
}

// Less implements a total order over NodeId, used for routing-table and
// coordinator iteration (Cloud < Edge(...) < Device(...), each group
// ordered by its own numeric/byte identifier).
func (n NodeId) Less(other NodeId) bool {
	if n.Kind != other.Kind {
		return n.Kind < other.Kind
	}
	switch n.Kind {
	case NodeEdge:
		return n.Edge < other.Edge
	case NodeDevice:
		for i := range n.Device {
			if n.Device[i] != other.Device[i] {
				return n.Device[i] < other.Device[i]
			}
		}
		return false
	default:
		return false
	}
}

func (n NodeId) String() string {
	switch n.Kind {
	case NodeCloud:
		return "cloud"
	case NodeEdge:
		if n.Edge == EdgeBroadcast {
			return "edge(*)"
		}
		return fmt.Sprintf("edge(%d)", n.Edge)
	case NodeDevice:
		return fmt.Sprintf("device(%02x:%02x:%02x:%02x:%02x:%02x)",
			n.Device[0], n.Device[1], n.Device[2], n.Device[3], n.Device[4], n.Device[5])
	default:
		return "any"
	}
}

// Priority is the message urgency tag.
type Priority uint8

const (
	PriorityRegular Priority = iota
	PriorityEmergency
)

func (p Priority) String() string {
	if p == PriorityEmergency {
		return "emergency"
	}
	return "regular"
}
