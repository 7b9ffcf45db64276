package timesync

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumisync/lumisync-core/internal/latency"
	"github.com/lumisync/lumisync-core/pkg/message"
)

// TimeProvider is the synchronizer's only external capability: a
// monotonic millisecond uptime counter. It is a plain interface
// (statically parameterizable in Rust, capability-injected here)
// rather than a wrapped clock, since nothing else in this service
// needs to read wall-clock time directly.
type TimeProvider interface {
	UptimeMS() uint64
}

const pendingRequestTimeoutMS = 10_000

// precisionMS is the node class's own clock-reporting precision, used
// both as Request.precision_ms and as the Synced-state accuracy.
func precisionMS(kind message.NodeKind) uint16 {
	switch kind {
	case message.NodeCloud:
		return 1
	case message.NodeEdge:
		return 10
	default:
		return 50
	}
}

// estimatedDelayMS is a static per-node-class processing delay handed
// back in Response.estimated_delay_ms. spec.md keeps this a constant
// rather than deriving it from synchronizer history (an explicit open
// question it resolves that way).
func estimatedDelayMS(kind message.NodeKind) uint32 {
	switch kind {
	case message.NodeCloud:
		return 50
	case message.NodeEdge:
		return 20
	default:
		return 10
	}
}

// TimeSyncService binds one TimeSynchronizer to one NodeId, owning the
// sequence counter and the pending-request map that glue timestamp
// observations into the Request/Response message exchange.
type TimeSyncService struct {
	mu sync.Mutex

	timeProvider    TimeProvider
	synchronizer    *TimeSynchronizer
	nodeID          message.NodeId
	sequenceCounter uint32
	msgIDCounter    uint32
	pending         map[uint32]uint64 // sequence -> T1 uptime ms

	latency *latency.Registry // optional, nil when no caller is watching
}

func NewTimeSyncService(tp TimeProvider, nodeID message.NodeId, config SyncConfig) *TimeSyncService {
	return &TimeSyncService{
		timeProvider: tp,
		synchronizer: NewTimeSynchronizer(nodeID, config),
		nodeID:       nodeID,
		pending:      make(map[uint32]uint64),
	}
}

// WithLatencyRegistry has the service feed one round-trip sample per
// accepted Response into r, keyed on the responding node.
func (s *TimeSyncService) WithLatencyRegistry(r *latency.Registry) *TimeSyncService {
	s.latency = r
	return s
}

// cloudBypass reports whether this service is the authoritative Cloud
// node: per spec.md §4.5's hierarchical propagation rule, Cloud always
// reports offset 0 / accuracy = precision regardless of synchronizer
// state (which stays Unsynced since Cloud is never fed samples).
func (s *TimeSyncService) cloudBypass() bool {
	return s.nodeID.Kind == message.NodeCloud
}

func (s *TimeSyncService) currentTimeMS() uint64 {
	return s.synchronizer.AdjustedTime(s.timeProvider.UptimeMS())
}

func (s *TimeSyncService) currentTime() time.Time {
	return time.UnixMilli(int64(s.currentTimeMS())).UTC()
}

// newMessageID picks a random or MAC-derived id depending on node class,
// mirroring how every other message-emitting component in this module
// stamps MessageHeader.ID. It has its own counter, independent of the
// sync-request sequence counter.
func (s *TimeSyncService) newMessageID() uuid.UUID {
	if s.nodeID.Kind == message.NodeDevice {
		s.msgIDCounter++
		return message.NewDeterministicMessageID(s.nodeID.Device, s.msgIDCounter)
	}
	return message.NewMessageID()
}

func (s *TimeSyncService) currentAccuracyMS() uint16 {
	if s.cloudBypass() {
		return precisionMS(message.NodeCloud)
	}
	p := precisionMS(s.nodeID.Kind)
	switch s.synchronizer.Status() {
	case Synced:
		return p
	case Syncing:
		return 2 * p
	default:
		return 65535
	}
}

func (s *TimeSyncService) isSynced() bool {
	if s.cloudBypass() {
		return true
	}
	return s.synchronizer.Status() == Synced
}

// CreateSyncRequest builds a Request message addressed to target,
// recording the emission so a later matching Response can be
// correlated. Returns InvalidTimestamp if the synchronizer reports no
// sync is currently needed.
func (s *TimeSyncService) CreateSyncRequest(target message.NodeId) (*message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.timeProvider.UptimeMS()
	if !s.synchronizer.NeedsSync(now) {
		return nil, ErrInvalidTimestamp
	}

	s.sequenceCounter++
	sequence := s.sequenceCounter
	s.pending[sequence] = now
	s.synchronizer.NoteRequestEmitted()

	var sendTime *time.Time
	if s.isSynced() {
		t := s.currentTime()
		sendTime = &t
	}

	return &message.Message{
		Header: message.MessageHeader{
			ID:        s.newMessageID(),
			Timestamp: s.currentTime(),
			Priority:  message.PriorityRegular,
			Source:    s.nodeID,
			Target:    target,
		},
		Payload: message.TimeSyncRequest{
			Sequence:    sequence,
			SendTime:    sendTime,
			PrecisionMS: precisionMS(s.nodeID.Kind),
		},
	}, nil
}

// HandleSyncRequest answers a Request with a Response. Cloud refuses
// requests sourced from a Device: a REDESIGN relative to the original,
// which let any source reach Cloud's handler. Enforcing this here
// keeps the hierarchical topology (Device -> Edge -> Cloud) intact at
// the one place a violation would otherwise slip through silently.
func (s *TimeSyncService) HandleSyncRequest(req *message.Message) (*message.Message, error) {
	reqPayload, ok := req.Payload.(message.TimeSyncRequest)
	if !ok {
		return nil, ErrInvalidTimestamp
	}

	if s.nodeID.Kind == message.NodeCloud && req.Header.Source.Kind == message.NodeDevice {
		return nil, &SyncError{Kind: KindInvalidTimestamp, Msg: "cloud refuses device-sourced sync requests"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	requestReceiveTime := time.Time{}
	if reqPayload.SendTime != nil {
		requestReceiveTime = *reqPayload.SendTime
	}

	return &message.Message{
		Header: message.MessageHeader{
			ID:        s.newMessageID(),
			Timestamp: s.currentTime(),
			Priority:  message.PriorityRegular,
			Source:    s.nodeID,
			Target:    req.Header.Source,
		},
		Payload: message.TimeSyncResponse{
			RequestSequence:    reqPayload.Sequence,
			RequestReceiveTime: requestReceiveTime,
			ResponseSendTime:   s.currentTime(),
			EstimatedDelayMS:   estimatedDelayMS(s.nodeID.Kind),
			AccuracyMS:         s.currentAccuracyMS(),
		},
	}, nil
}

// HandleSyncResponse matches a Response against the pending map and,
// on a match, feeds the round trip into the synchronizer. An
// unmatched sequence is dropped silently per spec.md's propagation
// policy (retransmission/cancellation produce these routinely; they
// are not a fault).
func (s *TimeSyncService) HandleSyncResponse(resp *message.Message) error {
	respPayload, ok := resp.Payload.(message.TimeSyncResponse)
	if !ok {
		return ErrInvalidTimestamp
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t1, found := s.pending[respPayload.RequestSequence]
	if !found {
		return nil
	}
	delete(s.pending, respPayload.RequestSequence)

	t4 := s.timeProvider.UptimeMS()
	t2Ms := respPayload.ResponseSendTime.UnixMilli()
	_, err := s.synchronizer.Observe(t1, t2Ms, t4)
	if err == nil && s.latency != nil {
		s.latency.Sample(
			latency.Key{Node: resp.Header.Source, Payload: message.PayloadTimeSync},
			time.Duration(t4-t1)*time.Millisecond,
		)
	}
	return err
}

// CreateTimeBroadcast builds an unsolicited Broadcast, permitted only
// for Edge nodes (spec.md §3 invariant 4).
func (s *TimeSyncService) CreateTimeBroadcast() (*message.Message, error) {
	if s.nodeID.Kind != message.NodeEdge {
		return nil, &SyncError{Kind: KindInvalidTimestamp, Msg: "only edge nodes may broadcast time"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return &message.Message{
		Header: message.MessageHeader{
			ID:        s.newMessageID(),
			Timestamp: s.currentTime(),
			Priority:  message.PriorityRegular,
			Source:    s.nodeID,
			Target:    message.EdgeBroadcastID(),
		},
		Payload: message.TimeSyncBroadcast{
			Timestamp:  s.currentTime(),
			OffsetMS:   s.synchronizer.CurrentOffsetMS(),
			AccuracyMS: s.currentAccuracyMS(),
		},
	}, nil
}

func (s *TimeSyncService) CreateStatusQuery(target message.NodeId) *message.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &message.Message{
		Header: message.MessageHeader{
			ID:        s.newMessageID(),
			Timestamp: s.currentTime(),
			Priority:  message.PriorityRegular,
			Source:    s.nodeID,
			Target:    target,
		},
		Payload: message.TimeSyncStatusQuery{},
	}
}

func (s *TimeSyncService) HandleStatusQuery(query *message.Message) *message.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &message.Message{
		Header: message.MessageHeader{
			ID:        s.newMessageID(),
			Timestamp: s.currentTime(),
			Priority:  message.PriorityRegular,
			Source:    s.nodeID,
			Target:    query.Header.Source,
		},
		Payload: message.TimeSyncStatusResponse{
			IsSynced:        s.isSynced(),
			CurrentOffsetMS: s.synchronizer.CurrentOffsetMS(),
			LastSyncTime:    s.currentTime(),
			AccuracyMS:      s.currentAccuracyMS(),
		},
	}
}

// CleanupExpiredRequests drops pending entries that are 10s old or older.
func (s *TimeSyncService) CleanupExpiredRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.timeProvider.UptimeMS()
	for seq, t1 := range s.pending {
		if now-t1 >= pendingRequestTimeoutMS {
			delete(s.pending, seq)
		}
	}
}

// NodeID returns the node identity this service answers for.
func (s *TimeSyncService) NodeID() message.NodeId {
	return s.nodeID
}

func (s *TimeSyncService) GetSyncStatus() SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synchronizer.Status()
}

func (s *TimeSyncService) GetAdjustedTime() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentTimeMS()
}

func (s *TimeSyncService) GetCurrentAccuracyMS() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentAccuracyMS()
}

func (s *TimeSyncService) GetCurrentOffsetMS() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synchronizer.CurrentOffsetMS()
}

func (s *TimeSyncService) NeedsSync() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synchronizer.NeedsSync(s.timeProvider.UptimeMS())
}

func (s *TimeSyncService) ResetSync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synchronizer.Reset()
	s.pending = make(map[uint32]uint64)
	s.sequenceCounter = 0
	s.msgIDCounter = 0
}
