package timesync

import (
	"sync"

	"github.com/lumisync/lumisync-core/pkg/message"
)

// TimeSyncCoordinator fans an incoming TimeSync message out to the
// TimeSyncService registered for its Target node, letting a single
// process (e.g. an Edge node juggling many Device connections) host
// one synchronizer per peer without the router needing to know about
// TimeSyncService at all.
type TimeSyncCoordinator struct {
	mu       sync.RWMutex
	services map[message.NodeId]*TimeSyncService
}

func NewTimeSyncCoordinator() *TimeSyncCoordinator {
	return &TimeSyncCoordinator{services: make(map[message.NodeId]*TimeSyncService)}
}

func (c *TimeSyncCoordinator) AddService(nodeID message.NodeId, svc *TimeSyncService) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[nodeID] = svc
}

func (c *TimeSyncCoordinator) GetService(nodeID message.NodeId) (*TimeSyncService, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	svc, ok := c.services[nodeID]
	return svc, ok
}

// RemoveService drops the service owning nodeID, e.g. when a Device
// disconnects from its Edge: spec.md §4.5 calls for resetting that
// device's synchronizer rather than leaving a stale entry behind.
func (c *TimeSyncCoordinator) RemoveService(nodeID message.NodeId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.services, nodeID)
}

// ServiceCount reports how many services this coordinator currently owns.
func (c *TimeSyncCoordinator) ServiceCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.services)
}

// NodeIDs returns every node this coordinator currently owns a service
// for, letting a caller (an Edge reconciling against its live device
// connections) find services that have gone stale.
func (c *TimeSyncCoordinator) NodeIDs() []message.NodeId {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]message.NodeId, 0, len(c.services))
	for id := range c.services {
		ids = append(ids, id)
	}
	return ids
}

// HandleTimeSyncMessage dispatches msg to the service owning its
// Target node. Broadcasts have no single target service to answer on
// this node's behalf, so they are ignored here; a caller that wants to
// feed a Broadcast into a synchronizer does so directly against the
// relevant TimeSyncService.
func (c *TimeSyncCoordinator) HandleTimeSyncMessage(msg *message.Message) *message.Message {
	variant, ok := msg.Payload.(message.TimeSyncMessage)
	if !ok {
		return nil
	}

	svc, found := c.GetService(msg.Header.Target)
	if !found {
		return nil
	}

	switch variant.TimeSyncVariant() {
	case message.TimeSyncVariantRequest:
		resp, err := svc.HandleSyncRequest(msg)
		if err != nil {
			return nil
		}
		return resp
	case message.TimeSyncVariantResponse:
		_ = svc.HandleSyncResponse(msg)
		return nil
	case message.TimeSyncVariantStatusQuery:
		return svc.HandleStatusQuery(msg)
	default:
		return nil
	}
}

// NetworkStatus summarizes sync health across every service this
// coordinator owns.
type NetworkStatus struct {
	TotalNodes       int
	SyncedNodes      int
	FailedNodes      int
	AverageAccuracyMS float64
}

func (c *TimeSyncCoordinator) GetNetworkStatus() NetworkStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := NetworkStatus{TotalNodes: len(c.services)}
	var accuracySum float64
	for _, svc := range c.services {
		switch svc.GetSyncStatus() {
		case Synced:
			status.SyncedNodes++
		case Failed:
			status.FailedNodes++
		}
		accuracySum += float64(svc.GetCurrentAccuracyMS())
	}
	if status.TotalNodes > 0 {
		status.AverageAccuracyMS = accuracySum / float64(status.TotalNodes)
	}
	return status
}
