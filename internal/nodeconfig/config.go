// Package nodeconfig loads the small per-node YAML configuration files
// each cmd/ entry point reads at startup, following the teacher's own
// config.load pattern in main.go (a plain os.ReadFile + yaml.Unmarshal,
// tolerant of a missing file).
package nodeconfig

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lumisync/lumisync-core/pkg/adapter"
	"github.com/lumisync/lumisync-core/pkg/timesync"
)

// Load reads fn as YAML into v. A missing file is not an error: the
// caller's zero/default value is left untouched, matching the
// teacher's own "warn and continue with defaults" handling of
// os.IsNotExist in config.load.
func Load(fn string, v any) error {
	data, err := os.ReadFile(fn)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, v)
}

// CloudConfig is cmd/cloud-node's config.yaml shape.
type CloudConfig struct {
	ListenAddr string                  `yaml:"listen_addr"`
	Sync       timesync.SyncConfig     `yaml:"sync"`
	Transport  adapter.TransportConfig `yaml:"-"`
}

func DefaultCloudConfig() CloudConfig {
	return CloudConfig{
		ListenAddr: ":8080",
		Sync:       timesync.DefaultSyncConfig(),
		Transport:  adapter.DefaultTransportConfig(),
	}
}

// EdgeConfig is cmd/edge-node's config.yaml shape.
type EdgeConfig struct {
	EdgeID              uint8               `yaml:"edge_id"`
	CloudAddr           string              `yaml:"cloud_addr"`
	DeviceListenAddr    string              `yaml:"device_listen_addr"`
	MaxDevices          int                 `yaml:"max_devices"`
	BroadcastIntervalMS uint64              `yaml:"broadcast_interval_ms"`
	Sync                timesync.SyncConfig `yaml:"sync"`
	DeviceSync          timesync.SyncConfig `yaml:"device_sync"`
}

func DefaultEdgeConfig() EdgeConfig {
	return EdgeConfig{
		EdgeID:              1,
		CloudAddr:           "127.0.0.1:8080",
		DeviceListenAddr:    ":9090",
		MaxDevices:          32,
		BroadcastIntervalMS: 30_000,
		Sync: timesync.SyncConfig{
			SyncIntervalMS:    30_000,
			MaxDriftMS:        100,
			OffsetHistorySize: 5,
			DelayThresholdMS:  50,
			MaxRetryCount:     3,
			FailureCooldownMS: 30_000,
		},
		DeviceSync: timesync.SyncConfig{
			SyncIntervalMS:    10_000,
			MaxDriftMS:        50,
			OffsetHistorySize: 3,
			DelayThresholdMS:  30,
			MaxRetryCount:     2,
			FailureCooldownMS: 10_000,
		},
	}
}

// DeviceConfig is cmd/device-node's config.yaml shape.
type DeviceConfig struct {
	MAC        string              `yaml:"mac"`
	EdgeID     uint8               `yaml:"edge_id"`
	EdgeAddr   string              `yaml:"edge_addr"`
	Sync       timesync.SyncConfig `yaml:"sync"`
}

func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		MAC:      "de:dc:ce:00:00:01",
		EdgeID:   1,
		EdgeAddr: "127.0.0.1:9090",
		Sync: timesync.SyncConfig{
			SyncIntervalMS:    10_000,
			MaxDriftMS:        50,
			OffsetHistorySize: 3,
			DelayThresholdMS:  30,
			MaxRetryCount:     2,
			FailureCooldownMS: 10_000,
		},
	}
}
