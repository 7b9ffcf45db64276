// Package router implements the message dispatch half of the transport
// stack: a payload-type-keyed handler registry and a router that tries
// each registered handler in turn, stopping at the first one that
// accepts a message, and posting any returned response back to the
// message's source node.
package router

import (
	"time"

	"github.com/lumisync/lumisync-core/pkg/message"
)

// MessageHandler processes messages of the payload kinds it declares
// via SupportedPayloads. Returning a non-nil response causes the
// router to post it back to the original message's source.
type MessageHandler interface {
	HandleMessage(msg *message.Message) (*message.Message, error)
	SupportedPayloads() []message.PayloadType
	NodeID() message.NodeId
	Name() string
}

// handlerEntry pairs a registered handler with its router-assigned id.
type handlerEntry struct {
	id      uint32
	handler MessageHandler
}

// handleWithTiming calls the wrapped handler and reports how long it took.
func (e *handlerEntry) handleWithTiming(msg *message.Message) (*message.Message, time.Duration, error) {
	start := time.Now()
	resp, err := e.handler.HandleMessage(msg)
	return resp, time.Since(start), err
}
