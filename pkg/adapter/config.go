package adapter

import "time"

// TransportConfig tunes one adapter instance. The defaults mirror the
// original implementation's: generous enough for a Cloud/Edge TCP link,
// conservative enough to be safe on a BLE/Device link too.
type TransportConfig struct {
	MaxConnections      int
	ConnectTimeout       time.Duration
	SendTimeout          time.Duration
	ReceiveBufferSize    int
	SendBufferSize       int
	EnableCRC            bool
	MaxRetries           int
	HeartbeatInterval    time.Duration
}

// DefaultTransportConfig returns the baseline config every adapter
// constructor starts from.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		MaxConnections:    32,
		ConnectTimeout:    5 * time.Second,
		SendTimeout:       3 * time.Second,
		ReceiveBufferSize: 4096,
		SendBufferSize:    4096,
		EnableCRC:         true,
		MaxRetries:        3,
		HeartbeatInterval: 30 * time.Second,
	}
}
