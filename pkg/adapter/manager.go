package adapter

import (
	"sync"

	"github.com/lumisync/lumisync-core/pkg/message"
)

// AdapterManager holds every registered adapter, grouped by kind for
// routing and kept in a flat registration-order list for polling, which
// always starts from the first registered adapter.
type AdapterManager struct {
	mu sync.Mutex

	byKind map[TransportKind][]TransportAdapter
	order  []TransportAdapter

	// overrides lets a specific node bypass the Kind-based default
	// routing table below.
	overrides map[message.NodeId]TransportKind
}

// NewAdapterManager returns an empty manager; register adapters with
// RegisterAdapter before sending/receiving.
func NewAdapterManager() *AdapterManager {
	return &AdapterManager{
		byKind:    make(map[TransportKind][]TransportAdapter),
		overrides: make(map[message.NodeId]TransportKind),
	}
}

// RegisterAdapter adds a to the manager's pool.
func (m *AdapterManager) RegisterAdapter(a TransportAdapter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byKind[a.Kind()] = append(m.byKind[a.Kind()], a)
	m.order = append(m.order, a)
}

// SetRoute overrides the default routing table entry for a specific
// node, e.g. to pin one Edge onto a WebSocket link instead of TCP.
func (m *AdapterManager) SetRoute(node message.NodeId, kind TransportKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[node] = kind
}

// defaultRouteFor implements the routing table named in spec.md §4.3:
// Cloud -> Tcp, Edge(_) -> Tcp, Device(_) -> Ble, Any -> no route.
func defaultRouteFor(node message.NodeId) TransportKind {
	switch node.Kind {
	case message.NodeCloud:
		return Tcp
	case message.NodeEdge:
		return Tcp
	case message.NodeDevice:
		return Ble
	default:
		return kindNone
	}
}

// RouteFor reports which TransportKind target should be reached
// through, honoring any override set via SetRoute.
func (m *AdapterManager) RouteFor(target message.NodeId) TransportKind {
	m.mu.Lock()
	if kind, ok := m.overrides[target]; ok {
		m.mu.Unlock()
		return kind
	}
	m.mu.Unlock()
	return defaultRouteFor(target)
}

// SendTo picks the first connected adapter of the routed kind and
// delegates. It returns NodeNotConnected if the route has no kind, or
// no registered adapter of that kind currently reports the target
// connected.
func (m *AdapterManager) SendTo(target message.NodeId, msg *message.Message) error {
	kind := m.RouteFor(target)
	if kind == kindNone {
		return &AdapterError{Kind: KindNodeNotConnected, Msg: "no route for " + target.String()}
	}

	m.mu.Lock()
	candidates := append([]TransportAdapter(nil), m.byKind[kind]...)
	m.mu.Unlock()

	for _, a := range candidates {
		if a.IsConnected(target) {
			return a.SendTo(target, msg)
		}
	}
	return &AdapterError{Kind: KindNodeNotConnected, Msg: target.String()}
}

// TryReceiveAny polls every registered adapter, in registration order,
// returning the first message found. ok is false when none has one
// waiting right now.
func (m *AdapterManager) TryReceiveAny() (msg *message.Message, from message.NodeId, ok bool, err error) {
	m.mu.Lock()
	candidates := append([]TransportAdapter(nil), m.order...)
	m.mu.Unlock()

	for _, a := range candidates {
		msg, from, ok, err = a.TryReceive()
		if err != nil {
			return nil, message.NodeId{}, false, err
		}
		if ok {
			return msg, from, true, nil
		}
	}
	return nil, message.NodeId{}, false, nil
}

// Adapters returns every adapter of a given kind, in registration order.
func (m *AdapterManager) Adapters(kind TransportKind) []TransportAdapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TransportAdapter(nil), m.byKind[kind]...)
}
