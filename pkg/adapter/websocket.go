package adapter

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/lumisync/lumisync-core/pkg/message"
	"github.com/lumisync/lumisync-core/pkg/wire"
)

type wsDelivery struct {
	msg  *message.Message
	from message.NodeId
}

// WebSocketAdapter speaks one binary-framed message per WS frame, the
// same message-per-datagram model UDPAdapter uses, since gorilla's Conn
// is message-oriented rather than a byte stream.
type WebSocketAdapter struct {
	mu       sync.Mutex
	cfg      TransportConfig
	stats    TransportStats
	dialer   *websocket.Dialer
	resolver AddressResolver // resolves to a ws:// or wss:// URL
	conns    map[message.NodeId]*websocket.Conn
	inbox    chan wsDelivery
}

func NewWebSocketAdapter(cfg TransportConfig, resolver AddressResolver) *WebSocketAdapter {
	return &WebSocketAdapter{
		cfg:      cfg,
		dialer:   websocket.DefaultDialer,
		resolver: resolver,
		conns:    make(map[message.NodeId]*websocket.Conn),
		inbox:    make(chan wsDelivery, 64),
	}
}

func (a *WebSocketAdapter) Kind() TransportKind { return WebSocket }

func (a *WebSocketAdapter) Connect(ctx context.Context, target message.NodeId) error {
	url, err := a.resolver(target)
	if err != nil {
		return &AdapterError{Kind: KindConfigError, Msg: "resolve " + target.String(), Wrap: err}
	}
	conn, _, err := a.dialer.DialContext(ctx, url, nil)
	if err != nil {
		a.stats.recordConnect(false)
		return &AdapterError{Kind: KindTimeout, Msg: "dial " + url, Wrap: err}
	}
	a.stats.recordConnect(true)
	a.adopt(target, conn)
	return nil
}

// AdoptConn registers a connection already established on the server
// side (after an http.Upgrader handshake performed by the caller,
// which pkg/adapter has no business doing itself).
func (a *WebSocketAdapter) AdoptConn(target message.NodeId, conn *websocket.Conn) {
	a.stats.recordConnect(true)
	a.adopt(target, conn)
}

func (a *WebSocketAdapter) adopt(target message.NodeId, conn *websocket.Conn) {
	a.mu.Lock()
	a.conns[target] = conn
	a.mu.Unlock()
	go a.readLoop(target, conn)
}

func (a *WebSocketAdapter) readLoop(target message.NodeId, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			a.Disconnect(target)
			return
		}
		df, err := wire.DecodeFrame(data)
		if err != nil {
			continue
		}
		a.stats.recordReceive(len(data))
		select {
		case a.inbox <- wsDelivery{msg: df.Message, from: target}:
		default:
		}
	}
}

func (a *WebSocketAdapter) Disconnect(target message.NodeId) error {
	a.mu.Lock()
	conn, ok := a.conns[target]
	delete(a.conns, target)
	a.mu.Unlock()
	if !ok {
		return nil
	}
	return conn.Close()
}

func (a *WebSocketAdapter) IsConnected(target message.NodeId) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.conns[target]
	return ok
}

func (a *WebSocketAdapter) ConnectedNodes() []message.NodeId {
	a.mu.Lock()
	defer a.mu.Unlock()
	nodes := make([]message.NodeId, 0, len(a.conns))
	for n := range a.conns {
		nodes = append(nodes, n)
	}
	return nodes
}

func (a *WebSocketAdapter) SendTo(target message.NodeId, msg *message.Message) error {
	a.mu.Lock()
	conn, ok := a.conns[target]
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
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		a.stats.recordSend(false, 0)
		return &AdapterError{Kind: KindTimeout, Msg: "write", Wrap: err}
	}
	a.stats.recordSend(true, len(frame))
	return nil
}

func (a *WebSocketAdapter) TryReceive() (*message.Message, message.NodeId, bool, error) {
	select {
	case d := <-a.inbox:
		return d.msg, d.from, true, nil
	default:
		return nil, message.NodeId{}, false, nil
	}
}

func (a *WebSocketAdapter) Config() TransportConfig      { return a.cfg }
func (a *WebSocketAdapter) Stats() TransportStatsSnapshot { return a.stats.Snapshot() }
