package noderuntime

import (
	"log/slog"

	"github.com/lumisync/lumisync-core/pkg/message"
	"github.com/lumisync/lumisync-core/pkg/timesync"
)

// ServiceHandler adapts one *timesync.TimeSyncService to
// router.MessageHandler, for a node that only ever answers for its own
// identity (Cloud, or an Edge talking to its one upstream Cloud link).
type ServiceHandler struct {
	svc *timesync.TimeSyncService
}

func NewServiceHandler(svc *timesync.TimeSyncService) *ServiceHandler {
	return &ServiceHandler{svc: svc}
}

func (h *ServiceHandler) SupportedPayloads() []message.PayloadType {
	return []message.PayloadType{message.PayloadTimeSync}
}

func (h *ServiceHandler) NodeID() message.NodeId { return h.svc.NodeID() }
func (h *ServiceHandler) Name() string           { return "timesync" }

func (h *ServiceHandler) HandleMessage(msg *message.Message) (*message.Message, error) {
	variant, ok := msg.Payload.(message.TimeSyncMessage)
	if !ok {
		return nil, nil
	}

	switch variant.TimeSyncVariant() {
	case message.TimeSyncVariantRequest:
		return h.svc.HandleSyncRequest(msg)
	case message.TimeSyncVariantResponse:
		return nil, h.svc.HandleSyncResponse(msg)
	case message.TimeSyncVariantStatusQuery:
		return h.svc.HandleStatusQuery(msg), nil
	case message.TimeSyncVariantBroadcast:
		// Broadcast carries no reply and this single-service handler has
		// no fan-out target to apply it to, so there is nothing to send
		// back; the received offset is logged for operators and left
		// for application-level code to act on, outside the router.
		b := variant.(message.TimeSyncBroadcast)
		slog.Debug("received time broadcast", "node", h.svc.NodeID().String(), "offset_ms", b.OffsetMS, "accuracy_ms", b.AccuracyMS)
		return nil, nil
	default:
		return nil, nil
	}
}

// CoordinatorHandler adapts a *timesync.TimeSyncCoordinator to
// router.MessageHandler, for a node (an Edge) juggling one TimeSyncService
// per downstream peer and dispatching by the message's Target field.
type CoordinatorHandler struct {
	nodeID message.NodeId
	coord  *timesync.TimeSyncCoordinator
}

func NewCoordinatorHandler(nodeID message.NodeId, coord *timesync.TimeSyncCoordinator) *CoordinatorHandler {
	return &CoordinatorHandler{nodeID: nodeID, coord: coord}
}

func (h *CoordinatorHandler) SupportedPayloads() []message.PayloadType {
	return []message.PayloadType{message.PayloadTimeSync}
}

func (h *CoordinatorHandler) NodeID() message.NodeId { return h.nodeID }
func (h *CoordinatorHandler) Name() string           { return "timesync-coordinator" }

func (h *CoordinatorHandler) HandleMessage(msg *message.Message) (*message.Message, error) {
	return h.coord.HandleTimeSyncMessage(msg), nil
}
