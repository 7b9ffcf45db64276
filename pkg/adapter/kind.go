// Package adapter implements the pluggable per-link transport layer:
// one TransportAdapter per physical link kind, and an AdapterManager
// that routes outbound messages to the right adapter by destination
// node and polls all adapters for inbound traffic.
package adapter

// TransportKind names a physical link an adapter speaks.
type TransportKind uint8

const (
	Tcp TransportKind = iota
	Udp
	Ble
	WebSocket
	Mock
	// kindNone is the routing table's "no route" sentinel. It is never
	// a real adapter's Kind().
	kindNone
)

func (k TransportKind) String() string {
	switch k {
	case Tcp:
		return "Tcp"
	case Udp:
		return "Udp"
	case Ble:
		return "Ble"
	case WebSocket:
		return "WebSocket"
	case Mock:
		return "Mock"
	default:
		return "None"
	}
}
