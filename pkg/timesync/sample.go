package timesync

// SampleRecord is one accepted offset observation, kept in the
// synchronizer's bounded ring.
type SampleRecord struct {
	OffsetMS      int64
	DelayMS       uint32
	LocalUptimeMS uint64
}
