package timesync

// SyncConfig tunes one TimeSynchronizer/TimeSyncService instance.
type SyncConfig struct {
	SyncIntervalMS    uint64 `yaml:"sync_interval_ms"`
	MaxDriftMS        int64  `yaml:"max_drift_ms"`
	OffsetHistorySize int    `yaml:"offset_history_size"`
	DelayThresholdMS  int64  `yaml:"delay_threshold_ms"`
	MaxRetryCount     int    `yaml:"max_retry_count"`
	FailureCooldownMS uint64 `yaml:"failure_cooldown_ms"`
}

// DefaultSyncConfig mirrors the original synchronizer's test fixture
// values (create_test_config in time/mod.rs and time/service.rs),
// plus a failure_cooldown_ms the original left as a bare literal in
// its own end-to-end test scenario rather than a named config field.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		SyncIntervalMS:    1000,
		MaxDriftMS:        100,
		OffsetHistorySize: 5,
		DelayThresholdMS:  50,
		MaxRetryCount:     3,
		FailureCooldownMS: 1000,
	}
}
