package adapter

import (
	"context"

	"github.com/lumisync/lumisync-core/pkg/message"
)

// TransportAdapter is the capability every physical link kind provides.
// One adapter instance owns one or more connections of its kind.
type TransportAdapter interface {
	Kind() TransportKind

	Connect(ctx context.Context, target message.NodeId) error
	Disconnect(target message.NodeId) error
	IsConnected(target message.NodeId) bool
	ConnectedNodes() []message.NodeId

	SendTo(target message.NodeId, msg *message.Message) error
	// TryReceive is non-blocking: ok is false when nothing is waiting,
	// not an error.
	TryReceive() (msg *message.Message, from message.NodeId, ok bool, err error)

	Config() TransportConfig
	Stats() TransportStatsSnapshot
}
