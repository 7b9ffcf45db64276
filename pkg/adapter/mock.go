package adapter

import (
	"context"
	"sync"

	"github.com/lumisync/lumisync-core/pkg/message"
)

// MockAdapter is an in-memory adapter for tests: Connect marks a node
// reachable, SendTo only updates the send counters (no framing, no
// real I/O, nothing is enqueued anywhere), and TryReceive drains the
// adapter's own inbox (what other test code has injected via Deliver).
type MockAdapter struct {
	mu        sync.Mutex
	cfg       TransportConfig
	stats     TransportStats
	kind      TransportKind
	connected map[message.NodeId]bool
	inbox     []mockDelivery
}

type mockDelivery struct {
	msg  *message.Message
	from message.NodeId
}

func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		cfg:       DefaultTransportConfig(),
		kind:      Mock,
		connected: make(map[message.NodeId]bool),
	}
}

// NewMockAdapterWithKind returns a MockAdapter that reports kind as its
// Kind(), so AdapterManager routing tests can exercise a specific
// default-route entry without a real TCP/BLE/WebSocket adapter.
func NewMockAdapterWithKind(kind TransportKind) *MockAdapter {
	a := NewMockAdapter()
	a.kind = kind
	return a
}

func (a *MockAdapter) Kind() TransportKind { return a.kind }

func (a *MockAdapter) Connect(_ context.Context, target message.NodeId) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected[target] = true
	a.stats.recordConnect(true)
	return nil
}

func (a *MockAdapter) Disconnect(target message.NodeId) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.connected, target)
	return nil
}

func (a *MockAdapter) IsConnected(target message.NodeId) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected[target]
}

func (a *MockAdapter) ConnectedNodes() []message.NodeId {
	a.mu.Lock()
	defer a.mu.Unlock()
	nodes := make([]message.NodeId, 0, len(a.connected))
	for n := range a.connected {
		nodes = append(nodes, n)
	}
	return nodes
}

// SendTo records the send as successful bookkeeping-wise; tests that
// want to observe delivery call Deliver on the peer's adapter directly.
func (a *MockAdapter) SendTo(target message.NodeId, msg *message.Message) error {
	if !a.IsConnected(target) {
		a.stats.recordSend(false, 0)
		return &AdapterError{Kind: KindNodeNotConnected, Msg: target.String()}
	}
	a.stats.recordSend(true, 0)
	return nil
}

// Deliver injects msg into this adapter's inbox, as if it had arrived
// from from over the (nonexistent) wire.
func (a *MockAdapter) Deliver(from message.NodeId, msg *message.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inbox = append(a.inbox, mockDelivery{msg: msg, from: from})
}

func (a *MockAdapter) TryReceive() (*message.Message, message.NodeId, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.inbox) == 0 {
		return nil, message.NodeId{}, false, nil
	}
	d := a.inbox[0]
	a.inbox = a.inbox[1:]
	a.stats.recordReceive(0)
	return d.msg, d.from, true, nil
}

func (a *MockAdapter) Config() TransportConfig { return a.cfg }
func (a *MockAdapter) Stats() TransportStatsSnapshot { return a.stats.Snapshot() }
