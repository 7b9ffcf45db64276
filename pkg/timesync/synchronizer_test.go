package timesync

import (
	"errors"
	"testing"

	"github.com/lumisync/lumisync-core/pkg/message"
)

func testConfig() SyncConfig {
	return SyncConfig{
		SyncIntervalMS:    1000,
		MaxDriftMS:        100,
		OffsetHistorySize: 5,
		DelayThresholdMS:  50,
		MaxRetryCount:     3,
		FailureCooldownMS: 1000,
	}
}

func TestNewTimeSynchronizerStartsUnsynced(t *testing.T) {
	s := NewTimeSynchronizer(message.NodeId{Kind: message.NodeEdge, Edge: 1}, testConfig())
	if s.Status() != Unsynced {
		t.Fatalf("expected Unsynced, got %v", s.Status())
	}
	if s.CurrentOffsetMS() != 0 {
		t.Fatalf("expected zero offset, got %d", s.CurrentOffsetMS())
	}
}

func TestObserveAcceptsGoodSample(t *testing.T) {
	s := NewTimeSynchronizer(message.NodeId{Kind: message.NodeEdge, Edge: 1}, testConfig())
	s.NoteRequestEmitted()
	if s.Status() != Syncing {
		t.Fatalf("expected Syncing after request emission, got %v", s.Status())
	}

	// T1=1000, T2 (remote send)=1020, T4=1010 -> rtt=10, delay=5, offset=1020-1000-5=15
	offset, err := s.Observe(1000, 1020, 1010)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if offset != 15 {
		t.Fatalf("expected offset 15, got %d", offset)
	}
	if s.Status() != Synced {
		t.Fatalf("expected Synced, got %v", s.Status())
	}
	if s.RingLen() != 1 {
		t.Fatalf("expected ring length 1, got %d", s.RingLen())
	}
}

func TestObserveRejectsHighDelay(t *testing.T) {
	s := NewTimeSynchronizer(message.NodeId{Kind: message.NodeDevice}, testConfig())
	s.NoteRequestEmitted()

	// rtt = 500, well above 2*50
	_, err := s.Observe(1000, 1100, 1500)
	if !errors.Is(err, ErrHighNetworkDelay) {
		t.Fatalf("expected ErrHighNetworkDelay, got %v", err)
	}
	if s.RingLen() != 0 {
		t.Fatalf("sample should not have been accepted")
	}
}

// TestObserveRejectsOddRttBoundary guards against comparing a
// truncated delay (rtt/2) instead of rtt itself against the doubled
// threshold: rtt=101 must be rejected against a 50ms threshold even
// though 101/2 truncates to 50.
func TestObserveRejectsOddRttBoundary(t *testing.T) {
	s := NewTimeSynchronizer(message.NodeId{Kind: message.NodeDevice}, testConfig())
	s.NoteRequestEmitted()

	_, err := s.Observe(1000, 1050, 1101)
	if !errors.Is(err, ErrHighNetworkDelay) {
		t.Fatalf("expected rejection at rtt=101 against threshold=50, got %v", err)
	}
}

func TestObserveRejectsExcessiveDriftOnceSynced(t *testing.T) {
	s := NewTimeSynchronizer(message.NodeId{Kind: message.NodeDevice}, testConfig())
	s.NoteRequestEmitted()
	if _, err := s.Observe(1000, 1020, 1010); err != nil {
		t.Fatalf("unexpected error on first sample: %v", err)
	}

	// No new request is emitted, so status is still Synced and the drift
	// check applies: offset here would be ~1020 away from the established
	// ~15ms offset.
	_, err := s.Observe(2000, 3040, 2010)
	if !errors.Is(err, ErrExcessiveDrift) {
		t.Fatalf("expected ErrExcessiveDrift, got %v", err)
	}
}

func TestMedianOffsetRingEviction(t *testing.T) {
	s := NewTimeSynchronizer(message.NodeId{Kind: message.NodeDevice}, testConfig())
	base := uint64(1000)
	for i := 0; i < 7; i++ {
		s.NoteRequestEmitted()
		t1 := base
		t4 := base + 10
		if _, err := s.Observe(t1, int64(t1)+10, t4); err != nil {
			t.Fatalf("sample %d rejected: %v", i, err)
		}
		base += 1000
	}
	if s.RingLen() != 5 {
		t.Fatalf("expected ring capped at 5, got %d", s.RingLen())
	}
}

func TestFailureCooldownRecovery(t *testing.T) {
	cfg := testConfig()
	s := NewTimeSynchronizer(message.NodeId{Kind: message.NodeDevice}, cfg)

	for i := 0; i < cfg.MaxRetryCount; i++ {
		s.NoteRequestEmitted()
		if _, err := s.Observe(1000, 1100, 1500); err == nil {
			t.Fatalf("expected rejection on iteration %d", i)
		}
	}
	if s.Status() != Failed {
		t.Fatalf("expected Failed after %d consecutive rejections, got %v", cfg.MaxRetryCount, s.Status())
	}

	if s.NeedsSync(1500) {
		t.Fatalf("should not need sync before cooldown elapses")
	}
	if !s.NeedsSync(1500 + cfg.FailureCooldownMS) {
		t.Fatalf("should need sync once cooldown elapses")
	}
	if s.Status() != Unsynced {
		t.Fatalf("expected recovery to Unsynced, got %v", s.Status())
	}
}

func TestNeedsSyncIntervalGating(t *testing.T) {
	cfg := testConfig()
	s := NewTimeSynchronizer(message.NodeId{Kind: message.NodeDevice}, cfg)
	s.NoteRequestEmitted()
	if _, err := s.Observe(1000, 1020, 1010); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.NeedsSync(1010 + cfg.SyncIntervalMS - 1) {
		t.Fatalf("should not need sync before interval elapses")
	}
	if !s.NeedsSync(1010 + cfg.SyncIntervalMS) {
		t.Fatalf("should need sync once interval elapses")
	}
}

func TestResetClearsState(t *testing.T) {
	s := NewTimeSynchronizer(message.NodeId{Kind: message.NodeDevice}, testConfig())
	s.NoteRequestEmitted()
	if _, err := s.Observe(1000, 1020, 1010); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Reset()
	if s.Status() != Unsynced || s.CurrentOffsetMS() != 0 || s.RingLen() != 0 {
		t.Fatalf("Reset did not fully clear state: %+v", s)
	}
}
