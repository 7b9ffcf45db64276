package adapter

import (
	"context"
	"net"
	"sync"

	"github.com/lumisync/lumisync-core/pkg/message"
	"github.com/lumisync/lumisync-core/pkg/transport"
)

// AddressResolver maps a node identity to a dialable network address.
// The core has no notion of DNS/service-discovery; callers supply one
// (a static map, a config lookup, etc).
type AddressResolver func(message.NodeId) (string, error)

type received struct {
	msg *message.Message
	err error
}

type tcpConn struct {
	conn      net.Conn
	transport *transport.SyncMessageTransport
	inbox     chan received
}

// TCPAdapter is the Cloud/Edge default-route adapter: one persistent
// net.Conn per connected node, framed with pkg/transport.
type TCPAdapter struct {
	mu       sync.Mutex
	cfg      TransportConfig
	stats    TransportStats
	resolver AddressResolver
	conns    map[message.NodeId]*tcpConn
}

func NewTCPAdapter(cfg TransportConfig, resolver AddressResolver) *TCPAdapter {
	return &TCPAdapter{
		cfg:      cfg,
		resolver: resolver,
		conns:    make(map[message.NodeId]*tcpConn),
	}
}

func (a *TCPAdapter) Kind() TransportKind { return Tcp }

func (a *TCPAdapter) Connect(ctx context.Context, target message.NodeId) error {
	addr, err := a.resolver(target)
	if err != nil {
		return &AdapterError{Kind: KindConfigError, Msg: "resolve " + target.String(), Wrap: err}
	}

	dialer := net.Dialer{Timeout: a.cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		a.stats.recordConnect(false)
		return &AdapterError{Kind: KindTimeout, Msg: "dial " + addr, Wrap: err}
	}
	a.stats.recordConnect(true)

	tc := &tcpConn{
		conn:      conn,
		transport: transport.NewSyncMessageTransport(conn).WithCRC(a.cfg.EnableCRC),
		inbox:     make(chan received, 32),
	}

	a.mu.Lock()
	a.conns[target] = tc
	a.mu.Unlock()

	go a.readLoop(tc)
	return nil
}

// AdoptConn registers a connection already accepted by a caller-owned
// net.Listener (the server side of a Cloud/Edge relationship), mirroring
// WebSocketAdapter.AdoptConn's split between dial-side Connect and
// accept-side adoption. buffered carries any bytes the caller already
// pulled off the socket past the frames it decoded itself (a second
// frame arriving sticky-packed behind the identity frame it peeked);
// they are prepended to the adopted transport's read buffer so nothing
// already consumed from the OS socket is lost in the handoff.
func (a *TCPAdapter) AdoptConn(target message.NodeId, conn net.Conn, buffered []byte) {
	tc := &tcpConn{
		conn:      conn,
		transport: transport.NewSyncMessageTransport(conn).WithCRC(a.cfg.EnableCRC).WithInitialBuffer(buffered),
		inbox:     make(chan received, 32),
	}

	a.mu.Lock()
	a.conns[target] = tc
	a.mu.Unlock()

	a.stats.recordConnect(true)
	go a.readLoop(tc)
}

func (a *TCPAdapter) readLoop(tc *tcpConn) {
	for {
		msg, _, _, err := tc.transport.ReceiveMessage()
		tc.inbox <- received{msg: msg, err: err}
		if err != nil {
			return
		}
	}
}

func (a *TCPAdapter) Disconnect(target message.NodeId) error {
	a.mu.Lock()
	tc, ok := a.conns[target]
	delete(a.conns, target)
	a.mu.Unlock()
	if !ok {
		return nil
	}
	return tc.conn.Close()
}

func (a *TCPAdapter) IsConnected(target message.NodeId) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.conns[target]
	return ok
}

func (a *TCPAdapter) ConnectedNodes() []message.NodeId {
	a.mu.Lock()
	defer a.mu.Unlock()
	nodes := make([]message.NodeId, 0, len(a.conns))
	for n := range a.conns {
		nodes = append(nodes, n)
	}
	return nodes
}

func (a *TCPAdapter) SendTo(target message.NodeId, msg *message.Message) error {
	a.mu.Lock()
	tc, ok := a.conns[target]
	a.mu.Unlock()
	if !ok {
		a.stats.recordSend(false, 0)
		return &AdapterError{Kind: KindNodeNotConnected, Msg: target.String()}
	}
	if err := tc.transport.SendMessage(msg, nil, nil); err != nil {
		a.stats.recordSend(false, 0)
		return err
	}
	a.stats.recordSend(true, 0)
	return nil
}

func (a *TCPAdapter) TryReceive() (*message.Message, message.NodeId, bool, error) {
	a.mu.Lock()
	snapshot := make(map[message.NodeId]*tcpConn, len(a.conns))
	for k, v := range a.conns {
		snapshot[k] = v
	}
	a.mu.Unlock()

	for node, tc := range snapshot {
		select {
		case r := <-tc.inbox:
			if r.err != nil {
				a.Disconnect(node)
				return nil, message.NodeId{}, false, r.err
			}
			a.stats.recordReceive(0)
			return r.msg, node, true, nil
		default:
		}
	}
	return nil, message.NodeId{}, false, nil
}

func (a *TCPAdapter) Config() TransportConfig         { return a.cfg }
func (a *TCPAdapter) Stats() TransportStatsSnapshot    { return a.stats.Snapshot() }
