package noderuntime

import "time"

// MonotonicClock implements timesync.TimeProvider off the process's own
// start time, matching the Rust examples' EdgeTimeProvider/DeviceTimeProvider
// (an Instant captured at construction, elapsed() read on demand) rather
// than reading the wall clock directly on every call.
type MonotonicClock struct {
	start time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

func (c *MonotonicClock) UptimeMS() uint64 {
	return uint64(time.Since(c.start).Milliseconds())
}
