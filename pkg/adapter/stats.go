package adapter

import "sync"

// TransportStatsSnapshot is a point-in-time, lock-free copy of an
// adapter's counters.
type TransportStatsSnapshot struct {
	MessagesSent      uint64
	MessagesReceived  uint64
	MessagesFailed    uint64
	ConnectionsOpened uint64
	ConnectionsFailed uint64
	BytesSent         uint64
	BytesReceived     uint64
}

// MessageSuccessRate is sent / (sent + failed), or 1 when nothing has
// been attempted yet.
func (s TransportStatsSnapshot) MessageSuccessRate() float64 {
	total := s.MessagesSent + s.MessagesFailed
	if total == 0 {
		return 1
	}
	return float64(s.MessagesSent) / float64(total)
}

// ConnectionSuccessRate is opened / (opened + failed), or 1 when no
// connection has been attempted yet.
func (s TransportStatsSnapshot) ConnectionSuccessRate() float64 {
	total := s.ConnectionsOpened + s.ConnectionsFailed
	if total == 0 {
		return 1
	}
	return float64(s.ConnectionsOpened) / float64(total)
}

// TransportStats accumulates per-adapter counters behind a mutex.
// Unlike internal/latency's per-message-kind sampling, this tracks
// pass/fail counts an operator would read off a status page.
type TransportStats struct {
	mu   sync.Mutex
	data TransportStatsSnapshot
}

func (s *TransportStats) recordSend(ok bool, bytes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		s.data.MessagesSent++
		s.data.BytesSent += uint64(bytes)
	} else {
		s.data.MessagesFailed++
	}
}

func (s *TransportStats) recordReceive(bytes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.MessagesReceived++
	s.data.BytesReceived += uint64(bytes)
}

func (s *TransportStats) recordConnect(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		s.data.ConnectionsOpened++
	} else {
		s.data.ConnectionsFailed++
	}
}

// Snapshot returns a copy safe to read without holding any lock.
func (s *TransportStats) Snapshot() TransportStatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}
