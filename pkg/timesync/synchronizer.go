package timesync

import (
	"sort"

	"github.com/lumisync/lumisync-core/pkg/message"
)

// TimeSynchronizer is the pure, non-blocking estimation core: it turns
// a (request-emit, remote-send, response-receive) timestamp triple
// into a clock offset, filtering outliers via a bounded median ring.
// It never touches a clock or a byte stream itself — every input is
// handed in by the caller (TimeSyncService), which is what keeps this
// type trivially unit-testable.
type TimeSynchronizer struct {
	nodeID message.NodeId
	config SyncConfig

	ring []SampleRecord // FIFO, oldest at index 0

	status              SyncStatus
	currentOffsetMS     int64
	lastSyncUptimeMS    uint64
	consecutiveFailures int
	failedAtUptimeMS    uint64
}

func NewTimeSynchronizer(nodeID message.NodeId, config SyncConfig) *TimeSynchronizer {
	return &TimeSynchronizer{nodeID: nodeID, config: config, status: Unsynced}
}

// NoteRequestEmitted transitions Unsynced/Synced into Syncing, marking
// that a fresh round-trip is in flight. Failed stays Failed until its
// cooldown lapses (checked by NeedsSync), so a caller that ignores
// NeedsSync's answer and emits anyway does not escape the cooldown.
func (s *TimeSynchronizer) NoteRequestEmitted() {
	if s.status == Unsynced || s.status == Synced {
		s.status = Syncing
	}
}

// Observe feeds one round-trip sample: requestSendUptime (T1) and
// responseReceiveUptime (T4) are local monotonic milliseconds;
// remoteSendMS (T2) is the remote's wall-clock send time in
// milliseconds. Returns the new effective offset (the median of the
// ring once the sample is added), or an error naming why the sample
// was rejected.
func (s *TimeSynchronizer) Observe(requestSendUptime uint64, remoteSendMS int64, responseReceiveUptime uint64) (int64, error) {
	rtt := int64(responseReceiveUptime) - int64(requestSendUptime)
	delay := rtt / 2
	offset := remoteSendMS - int64(requestSendUptime) - delay

	if rtt < 0 || rtt > 2*s.config.DelayThresholdMS {
		s.reject(responseReceiveUptime)
		return 0, ErrHighNetworkDelay
	}
	if s.status == Synced {
		drift := offset - s.currentOffsetMS
		if drift < 0 {
			drift = -drift
		}
		if drift > s.config.MaxDriftMS {
			s.reject(responseReceiveUptime)
			return 0, ErrExcessiveDrift
		}
	}

	s.accept(SampleRecord{OffsetMS: offset, DelayMS: uint32(delay), LocalUptimeMS: responseReceiveUptime})
	return s.currentOffsetMS, nil
}

func (s *TimeSynchronizer) accept(sample SampleRecord) {
	s.ring = append(s.ring, sample)
	if len(s.ring) > s.config.OffsetHistorySize {
		s.ring = s.ring[1:]
	}
	s.currentOffsetMS = medianOffset(s.ring)
	s.lastSyncUptimeMS = sample.LocalUptimeMS
	s.consecutiveFailures = 0
	if s.status == Syncing || s.status == Unsynced {
		s.status = Synced
	}
}

func (s *TimeSynchronizer) reject(nowUptime uint64) {
	s.consecutiveFailures++
	if s.consecutiveFailures >= s.config.MaxRetryCount {
		s.status = Failed
		s.failedAtUptimeMS = nowUptime
	}
}

// medianOffset returns the median of the ring's OffsetMS field, ties
// broken toward the lower index of the sorted middle.
func medianOffset(ring []SampleRecord) int64 {
	if len(ring) == 0 {
		return 0
	}
	offsets := make([]int64, len(ring))
	for i, r := range ring {
		offsets[i] = r.OffsetMS
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	return offsets[(len(offsets)-1)/2]
}

func (s *TimeSynchronizer) Status() SyncStatus     { return s.status }
func (s *TimeSynchronizer) CurrentOffsetMS() int64 { return s.currentOffsetMS }
func (s *TimeSynchronizer) RingLen() int           { return len(s.ring) }

// AdjustedTime returns localUptimeMS shifted by the current offset,
// saturating at zero rather than wrapping negative.
func (s *TimeSynchronizer) AdjustedTime(localUptimeMS uint64) uint64 {
	adjusted := int64(localUptimeMS) + s.currentOffsetMS
	if adjusted < 0 {
		return 0
	}
	return uint64(adjusted)
}

// NeedsSync reports whether a new sync round should be started at
// nowUptime. A Failed synchronizer lazily recovers to Unsynced once
// its cooldown has elapsed, which is why this method takes the
// current uptime rather than being a pure getter.
func (s *TimeSynchronizer) NeedsSync(nowUptime uint64) bool {
	if s.status == Failed {
		if nowUptime-s.failedAtUptimeMS >= s.config.FailureCooldownMS {
			s.status = Unsynced
		} else {
			return false
		}
	}
	if s.status == Unsynced {
		return true
	}
	return nowUptime-s.lastSyncUptimeMS >= s.config.SyncIntervalMS
}

// Reset returns the synchronizer to its initial Unsynced state,
// discarding all history.
func (s *TimeSynchronizer) Reset() {
	s.ring = nil
	s.status = Unsynced
	s.currentOffsetMS = 0
	s.lastSyncUptimeMS = 0
	s.consecutiveFailures = 0
	s.failedAtUptimeMS = 0
}
