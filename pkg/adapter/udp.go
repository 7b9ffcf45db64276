package adapter

import (
	"context"
	"net"
	"sync"

	"github.com/lumisync/lumisync-core/pkg/message"
	"github.com/lumisync/lumisync-core/pkg/wire"
)

type udpDelivery struct {
	msg  *message.Message
	from message.NodeId
}

// UDPAdapter is a single listening socket shared by every peer, the
// way lwl.Client owns one *net.UDPConn for all LWL traffic. UDP is
// message-oriented, so unlike TCPAdapter there is no per-peer framing
// loop: each datagram is decoded as exactly one frame.
type UDPAdapter struct {
	mu       sync.Mutex
	cfg      TransportConfig
	stats    TransportStats
	resolver AddressResolver
	conn     *net.UDPConn
	peers    map[message.NodeId]*net.UDPAddr
	inbox    chan udpDelivery
}

// NewUDPAdapter opens a UDP socket on listenAddr (e.g. ":9761") and
// starts its receive loop.
func NewUDPAdapter(cfg TransportConfig, resolver AddressResolver, listenAddr string) (*UDPAdapter, error) {
	addr, err := net.ResolveUDPAddr("udp4", listenAddr)
	if err != nil {
		return nil, &AdapterError{Kind: KindConfigError, Msg: "resolve listen addr", Wrap: err}
	}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, &AdapterError{Kind: KindConfigError, Msg: "listen udp", Wrap: err}
	}

	a := &UDPAdapter{
		cfg:      cfg,
		resolver: resolver,
		conn:     conn,
		peers:    make(map[message.NodeId]*net.UDPAddr),
		inbox:    make(chan udpDelivery, 64),
	}
	go a.listen()
	return a, nil
}

func (a *UDPAdapter) listen() {
	buf := make([]byte, a.cfg.ReceiveBufferSize)
	for {
		n, raddr, err := a.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}

		df, err := wire.DecodeFrame(buf[:n])
		if err != nil {
			// Malformed datagram: drop it and keep listening, matching
			// the "discard the current frame" CRC-mismatch policy.
			continue
		}

		from := df.Message.Header.Source
		a.mu.Lock()
		a.peers[from] = raddr
		a.mu.Unlock()
		a.stats.recordReceive(n)

		select {
		case a.inbox <- udpDelivery{msg: df.Message, from: from}:
		default:
			// Inbox full: drop rather than block the receive loop.
		}
	}
}

func (a *UDPAdapter) Kind() TransportKind { return Udp }

func (a *UDPAdapter) Connect(_ context.Context, target message.NodeId) error {
	addrStr, err := a.resolver(target)
	if err != nil {
		return &AdapterError{Kind: KindConfigError, Msg: "resolve " + target.String(), Wrap: err}
	}
	raddr, err := net.ResolveUDPAddr("udp4", addrStr)
	if err != nil {
		a.stats.recordConnect(false)
		return &AdapterError{Kind: KindConfigError, Msg: "resolve " + addrStr, Wrap: err}
	}
	a.mu.Lock()
	a.peers[target] = raddr
	a.mu.Unlock()
	a.stats.recordConnect(true)
	return nil
}

func (a *UDPAdapter) Disconnect(target message.NodeId) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.peers, target)
	return nil
}

func (a *UDPAdapter) IsConnected(target message.NodeId) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.peers[target]
	return ok
}

func (a *UDPAdapter) ConnectedNodes() []message.NodeId {
	a.mu.Lock()
	defer a.mu.Unlock()
	nodes := make([]message.NodeId, 0, len(a.peers))
	for n := range a.peers {
		nodes = append(nodes, n)
	}
	return nodes
}

func (a *UDPAdapter) SendTo(target message.NodeId, msg *message.Message) error {
	a.mu.Lock()
	raddr, ok := a.peers[target]
	a.mu.Unlock()
	if !ok {
		a.stats.recordSend(false, 0)
		return &AdapterError{Kind: KindNodeNotConnected, Msg: target.String()}
	}

	frame, err := wire.EncodeFrame(msg, wire.BinarySerializer{}, nil, a.cfg.EnableCRC)
	if err != nil {
		a.stats.recordSend(false, 0)
		return err
	}

	n, err := a.conn.WriteToUDP(frame, raddr)
	if err != nil {
		a.stats.recordSend(false, 0)
		return &AdapterError{Kind: KindTimeout, Msg: "write", Wrap: err}
	}
	a.stats.recordSend(true, n)
	return nil
}

func (a *UDPAdapter) TryReceive() (*message.Message, message.NodeId, bool, error) {
	select {
	case d := <-a.inbox:
		return d.msg, d.from, true, nil
	default:
		return nil, message.NodeId{}, false, nil
	}
}

func (a *UDPAdapter) Config() TransportConfig      { return a.cfg }
func (a *UDPAdapter) Stats() TransportStatsSnapshot { return a.stats.Snapshot() }

// Close releases the underlying socket.
func (a *UDPAdapter) Close() error {
	return a.conn.Close()
}
