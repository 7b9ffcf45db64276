package adapter

import (
	"context"
	"io"
	"sync"

	"github.com/lumisync/lumisync-core/pkg/message"
	"github.com/lumisync/lumisync-core/pkg/wire"
)

type bleLink struct {
	rwc io.ReadWriteCloser
	in  chan bleDelivery
}

type bleDelivery struct {
	msg *message.Message
	err error
}

// BLEAdapter is Device's default-route adapter. No real BLE GATT stack
// is in reach here, so links are not dialed: the platform-specific
// scanning/pairing/characteristic-subscription code lives outside this
// package and hands this adapter an already-open io.ReadWriteCloser per
// peripheral via AttachLink, the same seam TCPAdapter/WebSocketAdapter
// use net.Conn/*websocket.Conn for.
type BLEAdapter struct {
	mu    sync.Mutex
	cfg   TransportConfig
	stats TransportStats
	links map[message.NodeId]*bleLink
}

func NewBLEAdapter(cfg TransportConfig) *BLEAdapter {
	return &BLEAdapter{
		cfg:   cfg,
		links: make(map[message.NodeId]*bleLink),
	}
}

func (a *BLEAdapter) Kind() TransportKind { return Ble }

// Connect always fails: BLE links are established out-of-band (scan,
// pair, subscribe to characteristic) and attached via AttachLink.
func (a *BLEAdapter) Connect(context.Context, message.NodeId) error {
	return &AdapterError{Kind: KindUnsupportedOperation, Msg: "use AttachLink for BLE peripherals"}
}

// AttachLink registers an already-connected BLE characteristic stream
// for node, using the compact binary profile's BLE_MTU_MAX-bounded
// frames on both ends.
func (a *BLEAdapter) AttachLink(node message.NodeId, rwc io.ReadWriteCloser) {
	link := &bleLink{rwc: rwc, in: make(chan bleDelivery, 16)}
	a.mu.Lock()
	a.links[node] = link
	a.mu.Unlock()
	a.stats.recordConnect(true)
	go a.readLoop(node, link)
}

func (a *BLEAdapter) readLoop(node message.NodeId, link *bleLink) {
	buf := make([]byte, wire.BLEMTUMax)
	for {
		n, err := link.rwc.Read(buf)
		if err != nil {
			link.in <- bleDelivery{err: err}
			return
		}
		df, err := wire.DecodeFrame(buf[:n])
		if err != nil {
			continue
		}
		a.stats.recordReceive(n)
		link.in <- bleDelivery{msg: df.Message}
	}
}

func (a *BLEAdapter) Disconnect(target message.NodeId) error {
	a.mu.Lock()
	link, ok := a.links[target]
	delete(a.links, target)
	a.mu.Unlock()
	if !ok {
		return nil
	}
	return link.rwc.Close()
}

func (a *BLEAdapter) IsConnected(target message.NodeId) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.links[target]
	return ok
}

func (a *BLEAdapter) ConnectedNodes() []message.NodeId {
	a.mu.Lock()
	defer a.mu.Unlock()
	nodes := make([]message.NodeId, 0, len(a.links))
	for n := range a.links {
		nodes = append(nodes, n)
	}
	return nodes
}

func (a *BLEAdapter) SendTo(target message.NodeId, msg *message.Message) error {
	a.mu.Lock()
	link, ok := a.links[target]
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
	if len(frame) > wire.BLEMTUMax {
		a.stats.recordSend(false, 0)
		return &AdapterError{Kind: KindConfigError, Msg: "frame exceeds BLE MTU"}
	}
	if _, err := link.rwc.Write(frame); err != nil {
		a.stats.recordSend(false, 0)
		return &AdapterError{Kind: KindTimeout, Msg: "write", Wrap: err}
	}
	a.stats.recordSend(true, len(frame))
	return nil
}

func (a *BLEAdapter) TryReceive() (*message.Message, message.NodeId, bool, error) {
	a.mu.Lock()
	snapshot := make(map[message.NodeId]*bleLink, len(a.links))
	for k, v := range a.links {
		snapshot[k] = v
	}
	a.mu.Unlock()

	for node, link := range snapshot {
		select {
		case d := <-link.in:
			if d.err != nil {
				a.Disconnect(node)
				return nil, message.NodeId{}, false, d.err
			}
			return d.msg, node, true, nil
		default:
		}
	}
	return nil, message.NodeId{}, false, nil
}

func (a *BLEAdapter) Config() TransportConfig       { return a.cfg }
func (a *BLEAdapter) Stats() TransportStatsSnapshot { return a.stats.Snapshot() }
