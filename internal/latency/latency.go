// Package latency tracks min/mean/max timing per (node, payload kind),
// used to watch message-router handling times and time-sync round trips
// rather than a single flat command name.
package latency

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lumisync/lumisync-core/pkg/message"
)

// Key identifies one latency series: a peer node and the kind of
// payload exchanged with it.
type Key struct {
	Node    message.NodeId
	Payload message.PayloadType
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Node, k.Payload)
}

// Stats holds min/mean/max duration for one Key's samples.
type Stats struct {
	mu    sync.RWMutex
	key   Key
	count int64
	total time.Duration
	min   time.Duration
	max   time.Duration
}

// NewStats returns a pointer-owned Stats so its mutex is never copied
// when stored in a map.
func NewStats(key Key) *Stats {
	return &Stats{key: key}
}

func (s *Stats) Sample(t time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	s.total += t
	if s.min == 0 || s.min > t {
		s.min = t
	}
	if t > s.max {
		s.max = t
	}
}

func (s *Stats) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var mean time.Duration
	if s.count > 0 {
		mean = time.Duration(s.total.Nanoseconds() / s.count)
	}
	return fmt.Sprintf(
		"%s: samples=%d min=%v mean=%v max=%v",
		s.key, s.count, s.min, mean, s.max,
	)
}

// Registry owns one Stats per Key, created lazily on first sample.
type Registry struct {
	mu    sync.Mutex
	stats map[Key]*Stats
}

func NewRegistry() *Registry {
	return &Registry{stats: make(map[Key]*Stats)}
}

func (r *Registry) Sample(key Key, t time.Duration) {
	r.mu.Lock()
	s, ok := r.stats[key]
	if !ok {
		s = NewStats(key)
		r.stats[key] = s
	}
	r.mu.Unlock()
	s.Sample(t)
}

func (r *Registry) Get(key Key) (*Stats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stats[key]
	return s, ok
}

// Report renders every tracked series for human consumption, ordered
// by node then payload kind so repeated reports diff cleanly.
func (r *Registry) Report() string {
	r.mu.Lock()
	keys := make([]Key, 0, len(r.stats))
	for k := range r.stats {
		keys = append(keys, k)
	}
	snapshot := make(map[Key]*Stats, len(r.stats))
	for k, v := range r.stats {
		snapshot[k] = v
	}
	r.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Node != keys[j].Node {
			return keys[i].Node.Less(keys[j].Node)
		}
		return keys[i].Payload < keys[j].Payload
	})

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(snapshot[k].String())
		b.WriteByte('\n')
	}
	return b.String()
}
