// Command edge-node runs an Edge-tier gateway: it keeps itself
// synchronized against the Cloud's authoritative time, accepts
// Devices on a local TCP port, answers their sync requests, and
// periodically broadcasts its own offset to every connected Device.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/lumisync/lumisync-core/internal/latency"
	"github.com/lumisync/lumisync-core/internal/nodeconfig"
	"github.com/lumisync/lumisync-core/internal/nodelog"
	"github.com/lumisync/lumisync-core/internal/noderuntime"
	"github.com/lumisync/lumisync-core/pkg/adapter"
	"github.com/lumisync/lumisync-core/pkg/message"
	"github.com/lumisync/lumisync-core/pkg/router"
	"github.com/lumisync/lumisync-core/pkg/timesync"
)

const (
	configFile      = "config.yaml"
	deviceNamesFile = "devices.yaml"
)

var (
	isVerbose  = flag.Bool("verbose", false, "enable debug-level logging")
	edgeIDFlag = flag.Uint("edge-id", 0, "override edge_id from config.yaml (0 = use config)")
	cloudFlag  = flag.String("cloud-addr", "", "override cloud_addr from config.yaml")
)

func main() {
	flag.Parse()

	cfg := nodeconfig.DefaultEdgeConfig()
	if err := nodeconfig.Load(configFile, &cfg); err != nil {
		os.Stderr.WriteString("loading " + configFile + ": " + err.Error() + "\n")
	}
	if *edgeIDFlag != 0 {
		cfg.EdgeID = uint8(*edgeIDFlag)
	}
	if *cloudFlag != "" {
		cfg.CloudAddr = *cloudFlag
	}

	nodelog.Init(*isVerbose)
	nodeID := message.NewEdge(cfg.EdgeID)
	log := nodelog.For(nodeID)

	names, err := loadDeviceNames(deviceNamesFile)
	if err != nil {
		log.Error("loading device names", "fn", deviceNamesFile, "err", err)
		os.Exit(1)
	}

	lat := latency.NewRegistry()
	coordinator := timesync.NewTimeSyncCoordinator()
	edgeSvc := timesync.NewTimeSyncService(noderuntime.NewMonotonicClock(), nodeID, cfg.Sync).
		WithLatencyRegistry(lat)
	coordinator.AddService(nodeID, edgeSvc)

	rtr := router.NewBaseMessageRouter(router.DefaultRouterConfig()).WithLatencyRegistry(lat)
	if _, err := rtr.RegisterHandler(noderuntime.NewCoordinatorHandler(nodeID, coordinator)); err != nil {
		log.Error("registering time-sync handler", "err", err)
		os.Exit(1)
	}

	transportCfg := adapter.DefaultTransportConfig()

	cloudAdapter := adapter.NewTCPAdapter(transportCfg, func(n message.NodeId) (string, error) {
		return cfg.CloudAddr, nil
	})
	rtr.AdapterManager().RegisterAdapter(cloudAdapter)

	deviceAdapter := adapter.NewTCPAdapter(transportCfg, func(n message.NodeId) (string, error) {
		return "", &adapter.AdapterError{Kind: adapter.KindUnsupportedOperation, Msg: "devices dial in"}
	})
	rtr.AdapterManager().RegisterAdapter(deviceAdapter)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cloudAdapter.Connect(ctx, message.Cloud); err != nil {
		log.Error("connecting to cloud", "addr", cfg.CloudAddr, "err", err)
	} else {
		log.Info("connected to cloud", "addr", cfg.CloudAddr)
	}

	ln, err := net.Listen("tcp", cfg.DeviceListenAddr)
	if err != nil {
		log.Error("listen for devices", "addr", cfg.DeviceListenAddr, "err", err)
		os.Exit(1)
	}
	log.Info("accepting devices", "addr", cfg.DeviceListenAddr)

	onDeviceConnect := func(deviceID message.NodeId) {
		if coordinator.ServiceCount() >= cfg.MaxDevices+1 { // +1 for the edge's own service
			log.Warn("max devices reached, refusing new device service", "device", deviceID.String())
			return
		}
		rtr.AdapterManager().SetRoute(deviceID, adapter.Tcp)
		if _, exists := coordinator.GetService(deviceID); !exists {
			deviceSvc := timesync.NewTimeSyncService(noderuntime.NewMonotonicClock(), deviceID, cfg.DeviceSync).
				WithLatencyRegistry(lat)
			coordinator.AddService(deviceID, deviceSvc)
		}
		name := names.seen(deviceID.String(), "")
		log.Info("device registered", "device", deviceID.String(), "name", name)
	}

	noderuntime.AcceptAndAdopt(ctx, ln, deviceAdapter, rtr, transportCfg.EnableCRC, log, onDeviceConnect)
	go noderuntime.Pump(ctx, rtr, log, 5*time.Millisecond)

	syncTicker := time.NewTicker(time.Duration(cfg.Sync.SyncIntervalMS) * time.Millisecond)
	defer syncTicker.Stop()
	broadcastTicker := time.NewTicker(time.Duration(cfg.BroadcastIntervalMS) * time.Millisecond)
	defer broadcastTicker.Stop()
	statusTicker := time.NewTicker(2 * time.Minute)
	defer statusTicker.Stop()

loop:
	for {
		select {
		case <-syncTicker.C:
			syncWithCloud(edgeSvc, rtr, log)

		case <-broadcastTicker.C:
			broadcastTime(nodeID, edgeSvc, deviceAdapter, rtr, log)

		case <-statusTicker.C:
			status := coordinator.GetNetworkStatus()
			log.Info("network status",
				"total", status.TotalNodes,
				"synced", status.SyncedNodes,
				"failed", status.FailedNodes,
				"avg_accuracy_ms", status.AverageAccuracyMS,
				"devices_connected", len(deviceAdapter.ConnectedNodes()),
			)
			if report := lat.Report(); report != "" {
				log.Debug("latency", "report", report)
			}
			edgeSvc.CleanupExpiredRequests()
			connected := make(map[message.NodeId]bool)
			for _, dev := range deviceAdapter.ConnectedNodes() {
				connected[dev] = true
				if svc, ok := coordinator.GetService(dev); ok {
					svc.CleanupExpiredRequests()
				}
			}
			// A device that dropped its TCP connection since the last
			// tick is no longer reachable through deviceAdapter; drop
			// its synchronizer rather than let it sit reporting stale
			// sync state forever.
			for _, id := range coordinator.NodeIDs() {
				if id == nodeID || connected[id] {
					continue
				}
				coordinator.RemoveService(id)
				log.Info("device disconnected, synchronizer reset", "device", id.String())
			}
			if err := names.write(deviceNamesFile); err != nil {
				log.Error("writing device names", "fn", deviceNamesFile, "err", err)
			}

		case <-ctx.Done():
			log.Info("shutting down")
			break loop
		}
	}

	if err := names.write(deviceNamesFile); err != nil {
		log.Error("writing device names", "fn", deviceNamesFile, "err", err)
	}
}

func syncWithCloud(edgeSvc *timesync.TimeSyncService, rtr *router.BaseMessageRouter, log *slog.Logger) {
	if !edgeSvc.NeedsSync() {
		return
	}
	req, err := edgeSvc.CreateSyncRequest(message.Cloud)
	if err != nil {
		log.Debug("create sync request", "err", err)
		return
	}
	if err := rtr.SendMessage(message.Cloud, req); err != nil {
		log.Warn("send sync request to cloud", "err", err)
	}
}

func broadcastTime(nodeID message.NodeId, edgeSvc *timesync.TimeSyncService, deviceAdapter *adapter.TCPAdapter, rtr *router.BaseMessageRouter, log *slog.Logger) {
	msg, err := edgeSvc.CreateTimeBroadcast()
	if err != nil {
		log.Debug("create time broadcast", "from", nodeID.String(), "err", err)
		return
	}
	for _, dev := range deviceAdapter.ConnectedNodes() {
		if err := rtr.SendMessage(dev, msg); err != nil {
			log.Debug("broadcast to device", "from", nodeID.String(), "device", dev.String(), "err", err)
		}
	}
}
