package noderuntime

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/lumisync/lumisync-core/internal/nodelog"
	"github.com/lumisync/lumisync-core/pkg/adapter"
	"github.com/lumisync/lumisync-core/pkg/message"
	"github.com/lumisync/lumisync-core/pkg/router"
	"github.com/lumisync/lumisync-core/pkg/transport"
)

// Pump repeatedly drains rtr's AdapterManager and hands whatever it
// finds to RouteMessage, the way every cmd/ entry point's main loop
// turns inbound adapter traffic into handler dispatch. It never blocks
// past one idle-poll sleep, matching the cooperative-scheduling shape
// spec.md §5 asks the core to support on a single-threaded host.
func Pump(ctx context.Context, rtr *router.BaseMessageRouter, log *slog.Logger, idle time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, from, ok, err := rtr.AdapterManager().TryReceiveAny()
		if err != nil {
			log.Debug("adapter receive error", "err", err)
			continue
		}
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idle):
			}
			continue
		}

		if routeErr := rtr.RouteMessage(msg); routeErr != nil {
			log.Debug("route message", "from", from, "err", routeErr)
			nodelog.Dump(log, "unroutable message payload", msg.Payload)
		}
	}
}

// AcceptAndAdopt accepts connections off ln forever, learns each
// connection's peer identity from the first frame it sends (a
// TCPAdapter has no way to know who dialed in until it reads
// something), registers the connection with ta under that identity
// (which starts ta's own read loop for everything after the first
// frame), and then dispatches the peeked first message through rtr,
// so a reply to it can already be sent over the adopted connection.
// Any bytes the peek pulled off the socket past the first frame's
// boundary travel into the adopted transport's buffer along with the
// connection, so a peer that pipelines its first frames loses nothing.
// onAccept is called with the learned node id once adopted, so a
// caller (an Edge learning about a new Device) can do its own
// bookkeeping; it may be nil.
func AcceptAndAdopt(
	ctx context.Context,
	ln net.Listener,
	ta *adapter.TCPAdapter,
	rtr *router.BaseMessageRouter,
	crcEnabled bool,
	log *slog.Logger,
	onAccept func(nodeID message.NodeId),
) {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
					log.Debug("accept", "err", err)
					continue
				}
			}

			go func() {
				peek := transport.NewSyncMessageTransport(conn).WithCRC(crcEnabled)
				msg, _, _, err := peek.ReceiveMessage()
				if err != nil {
					log.Warn("reading first frame from new connection", "err", err)
					conn.Close()
					return
				}

				source := msg.Header.Source
				ta.AdoptConn(source, conn, peek.Buffered())
				log.Info("connection adopted", "node", source.String())
				if onAccept != nil {
					onAccept(source)
				}
				if routeErr := rtr.RouteMessage(msg); routeErr != nil {
					log.Debug("route first message", "from", source, "err", routeErr)
				}
			}()
		}
	}()
}
