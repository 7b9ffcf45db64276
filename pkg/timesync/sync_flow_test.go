package timesync

import (
	"errors"
	"testing"
	"time"

	"github.com/lumisync/lumisync-core/pkg/message"
)

// TestEdgeSyncsAgainstCloudWallClock walks one full request/response
// round trip with concrete numbers: the cloud's wall clock sits at
// 1_000_000_000_000 ms while the edge's uptime is 5_000 ms, with 50 ms
// of link delay in each direction. The edge must land within a few ms
// of the true 999_999_995_000 ms offset and report Synced.
func TestEdgeSyncsAgainstCloudWallClock(t *testing.T) {
	const (
		cloudWallMS   = int64(1_000_000_000_000)
		linkDelayMS   = 50
		requestUptime = uint64(5_000)
	)

	clock := &fakeClock{uptime: requestUptime}
	edge := NewTimeSyncService(clock, message.NewEdge(1), testConfig())

	req, err := edge.CreateSyncRequest(message.Cloud)
	if err != nil {
		t.Fatalf("CreateSyncRequest: %v", err)
	}
	seq := req.Payload.(message.TimeSyncRequest).Sequence

	// The request spends linkDelayMS in flight; the cloud answers
	// immediately with its own wall clock, and the response spends
	// another linkDelayMS coming back.
	resp := &message.Message{
		Header: message.MessageHeader{
			ID:     message.NewMessageID(),
			Source: message.Cloud,
			Target: edge.NodeID(),
		},
		Payload: message.TimeSyncResponse{
			RequestSequence:  seq,
			ResponseSendTime: time.UnixMilli(cloudWallMS + linkDelayMS).UTC(),
			EstimatedDelayMS: 50,
			AccuracyMS:       1,
		},
	}

	clock.uptime = requestUptime + 2*linkDelayMS
	if err := edge.HandleSyncResponse(resp); err != nil {
		t.Fatalf("HandleSyncResponse: %v", err)
	}

	if edge.GetSyncStatus() != Synced {
		t.Fatalf("status = %v, want Synced", edge.GetSyncStatus())
	}
	const wantOffset = int64(999_999_995_000)
	got := edge.GetCurrentOffsetMS()
	if diff := got - wantOffset; diff < -5 || diff > 5 {
		t.Fatalf("offset = %d, want within 5ms of %d", got, wantOffset)
	}
}

// TestHighDelayResponseLeavesRingAndStatusUntouched injects a response
// whose synthetic round trip is 400 ms against a 50 ms delay threshold:
// the sample is rejected, nothing enters the ring, and the service
// stays Syncing rather than falling back or advancing.
func TestHighDelayResponseLeavesRingAndStatusUntouched(t *testing.T) {
	clock := &fakeClock{uptime: 1_000}
	edge := NewTimeSyncService(clock, message.NewEdge(1), testConfig())

	req, err := edge.CreateSyncRequest(message.Cloud)
	if err != nil {
		t.Fatalf("CreateSyncRequest: %v", err)
	}

	resp := &message.Message{
		Header: message.MessageHeader{Source: message.Cloud, Target: edge.NodeID()},
		Payload: message.TimeSyncResponse{
			RequestSequence:  req.Payload.(message.TimeSyncRequest).Sequence,
			ResponseSendTime: time.UnixMilli(1_200).UTC(),
		},
	}

	clock.uptime = 1_400 // rtt = 400
	err = edge.HandleSyncResponse(resp)
	if !errors.Is(err, ErrHighNetworkDelay) {
		t.Fatalf("expected ErrHighNetworkDelay, got %v", err)
	}
	if edge.synchronizer.RingLen() != 0 {
		t.Fatalf("ring length = %d, want 0", edge.synchronizer.RingLen())
	}
	if edge.GetSyncStatus() != Syncing {
		t.Fatalf("status = %v, want Syncing", edge.GetSyncStatus())
	}
}

// TestDriftingSampleBumpsFailureCounter establishes a Synced state with
// a 1_000 ms offset, then feeds a sample that would move it to 1_500 ms
// against a 100 ms drift cap: the sample is rejected and the failure
// counter advances by exactly one.
func TestDriftingSampleBumpsFailureCounter(t *testing.T) {
	s := NewTimeSynchronizer(message.NewEdge(1), testConfig())
	s.NoteRequestEmitted()

	// T1=1000, T4=1010 -> delay 5; T2 = T1 + delay + 1000 -> offset 1000.
	if _, err := s.Observe(1_000, 2_005, 1_010); err != nil {
		t.Fatalf("seeding sample rejected: %v", err)
	}
	if s.Status() != Synced || s.CurrentOffsetMS() != 1_000 {
		t.Fatalf("seed state = (%v, %d), want (Synced, 1000)", s.Status(), s.CurrentOffsetMS())
	}

	// Same shape, but offset 1500: drift 500 > 100.
	_, err := s.Observe(2_000, 3_505, 2_010)
	if !errors.Is(err, ErrExcessiveDrift) {
		t.Fatalf("expected ErrExcessiveDrift, got %v", err)
	}
	if s.consecutiveFailures != 1 {
		t.Fatalf("consecutiveFailures = %d, want 1", s.consecutiveFailures)
	}
	if s.CurrentOffsetMS() != 1_000 {
		t.Fatalf("offset moved to %d on a rejected sample", s.CurrentOffsetMS())
	}
}

// TestCleanupDropsAllStalePendingRequests emits five requests at uptime
// 1_000 ms, advances to 12_000 ms, and expects cleanup to reap every
// entry without disturbing sync status.
func TestCleanupDropsAllStalePendingRequests(t *testing.T) {
	clock := &fakeClock{uptime: 1_000}
	edge := NewTimeSyncService(clock, message.NewEdge(1), testConfig())

	for i := 0; i < 5; i++ {
		if _, err := edge.CreateSyncRequest(message.Cloud); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if len(edge.pending) != 5 {
		t.Fatalf("pending = %d, want 5", len(edge.pending))
	}
	statusBefore := edge.GetSyncStatus()

	clock.uptime = 12_000
	edge.CleanupExpiredRequests()

	if len(edge.pending) != 0 {
		t.Fatalf("pending = %d after cleanup, want 0", len(edge.pending))
	}
	if edge.GetSyncStatus() != statusBefore {
		t.Fatalf("status changed from %v to %v during cleanup", statusBefore, edge.GetSyncStatus())
	}
}

// TestDeviceMayNotBroadcastTime is the device half of the broadcast
// hierarchy rule; the edge half (well-formed source and the Edge(255)
// target) is asserted alongside it.
func TestDeviceMayNotBroadcastTime(t *testing.T) {
	device, _ := newTestService(message.NewDevice([6]byte{1, 2, 3, 4, 5, 6}))
	if _, err := device.CreateTimeBroadcast(); err == nil {
		t.Fatal("device should not be allowed to broadcast time")
	}

	edge, _ := newTestService(message.NewEdge(4))
	msg, err := edge.CreateTimeBroadcast()
	if err != nil {
		t.Fatalf("edge broadcast: %v", err)
	}
	if msg.Header.Source != message.NewEdge(4) {
		t.Fatalf("broadcast source = %v, want edge(4)", msg.Header.Source)
	}
	if msg.Header.Target != message.EdgeBroadcastID() {
		t.Fatalf("broadcast target = %v, want edge broadcast", msg.Header.Target)
	}
	if _, ok := msg.Payload.(message.TimeSyncBroadcast); !ok {
		t.Fatalf("broadcast payload = %T, want TimeSyncBroadcast", msg.Payload)
	}
}

// TestSequenceNumbersAreConsecutive drives several requests through one
// service and checks the emitted sequences count up without gaps.
func TestSequenceNumbersAreConsecutive(t *testing.T) {
	clock := &fakeClock{uptime: 10_000}
	edge := NewTimeSyncService(clock, message.NewEdge(1), testConfig())

	var prev uint32
	for i := 0; i < 10; i++ {
		req, err := edge.CreateSyncRequest(message.Cloud)
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		seq := req.Payload.(message.TimeSyncRequest).Sequence
		if i > 0 && seq != prev+1 {
			t.Fatalf("sequence %d followed %d, want consecutive", seq, prev)
		}
		prev = seq
		clock.uptime += 2_000
	}
}
