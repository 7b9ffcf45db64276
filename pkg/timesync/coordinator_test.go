package timesync

import (
	"testing"

	"github.com/lumisync/lumisync-core/pkg/message"
)

func TestCoordinatorAddAndGetService(t *testing.T) {
	c := NewTimeSyncCoordinator()
	edge := message.NewEdge(1)
	svc, _ := newTestService(edge)
	c.AddService(edge, svc)

	got, ok := c.GetService(edge)
	if !ok || got != svc {
		t.Fatalf("expected to retrieve the registered service")
	}

	if _, ok := c.GetService(message.NewEdge(2)); ok {
		t.Fatalf("unregistered node should not resolve to a service")
	}
}

func TestCoordinatorHandleTimeSyncMessageRequest(t *testing.T) {
	c := NewTimeSyncCoordinator()
	edge := message.NewEdge(1)
	edgeSvc, _ := newTestService(edge)
	c.AddService(edge, edgeSvc)

	device := message.NodeId{Kind: message.NodeDevice, Device: [6]byte{1, 2, 3, 4, 5, 6}}
	req := &message.Message{
		Header:  message.MessageHeader{Source: device, Target: edge},
		Payload: message.TimeSyncRequest{Sequence: 3, PrecisionMS: 50},
	}

	resp := c.HandleTimeSyncMessage(req)
	if resp == nil {
		t.Fatalf("expected a response message")
	}
	payload := resp.Payload.(message.TimeSyncResponse)
	if payload.RequestSequence != 3 {
		t.Fatalf("expected echoed sequence 3, got %d", payload.RequestSequence)
	}
}

func TestCoordinatorHandleTimeSyncMessageUnknownTarget(t *testing.T) {
	c := NewTimeSyncCoordinator()
	req := &message.Message{
		Header:  message.MessageHeader{Source: message.Cloud, Target: message.NewEdge(9)},
		Payload: message.TimeSyncRequest{Sequence: 1, PrecisionMS: 1},
	}
	if resp := c.HandleTimeSyncMessage(req); resp != nil {
		t.Fatalf("expected nil for a target with no registered service")
	}
}

func TestNetworkStatusAggregation(t *testing.T) {
	c := NewTimeSyncCoordinator()

	synced, _ := newTestService(message.NewEdge(1))
	synced.synchronizer.NoteRequestEmitted()
	if _, err := synced.synchronizer.Observe(1000, 1020, 1010); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.AddService(message.NewEdge(1), synced)

	unsynced, _ := newTestService(message.NewEdge(2))
	c.AddService(message.NewEdge(2), unsynced)

	status := c.GetNetworkStatus()
	if status.TotalNodes != 2 {
		t.Fatalf("expected 2 total nodes, got %d", status.TotalNodes)
	}
	if status.SyncedNodes != 1 {
		t.Fatalf("expected 1 synced node, got %d", status.SyncedNodes)
	}
	if status.AverageAccuracyMS <= 0 {
		t.Fatalf("expected a positive average accuracy, got %f", status.AverageAccuracyMS)
	}
}

func TestCoordinatorRemoveServiceDropsEntry(t *testing.T) {
	c := NewTimeSyncCoordinator()
	edge := message.NewEdge(1)
	svc, _ := newTestService(edge)
	c.AddService(edge, svc)

	if c.ServiceCount() != 1 {
		t.Fatalf("expected 1 service before removal, got %d", c.ServiceCount())
	}

	c.RemoveService(edge)

	if c.ServiceCount() != 0 {
		t.Fatalf("expected 0 services after removal, got %d", c.ServiceCount())
	}
	if _, ok := c.GetService(edge); ok {
		t.Fatalf("removed service should no longer resolve")
	}
}

func TestCoordinatorRemoveServiceUnknownNodeIsNoop(t *testing.T) {
	c := NewTimeSyncCoordinator()
	c.RemoveService(message.NewEdge(1))
	if c.ServiceCount() != 0 {
		t.Fatalf("expected 0 services, got %d", c.ServiceCount())
	}
}

func TestCoordinatorNodeIDsListsEveryOwnedService(t *testing.T) {
	c := NewTimeSyncCoordinator()
	edge1, edge2 := message.NewEdge(1), message.NewEdge(2)
	svc1, _ := newTestService(edge1)
	svc2, _ := newTestService(edge2)
	c.AddService(edge1, svc1)
	c.AddService(edge2, svc2)

	ids := c.NodeIDs()
	if len(ids) != 2 {
		t.Fatalf("expected 2 node ids, got %d", len(ids))
	}
	seen := map[message.NodeId]bool{ids[0]: true, ids[1]: true}
	if !seen[edge1] || !seen[edge2] {
		t.Fatalf("NodeIDs() = %v, want both %v and %v", ids, edge1, edge2)
	}
}
