// Command device-node runs a constrained Device-tier endpoint: it
// dials its configured Edge gateway over TCP, requests time sync on
// its own interval, and answers any StatusQuery the Edge sends back.
package main

import (
	"context"
	"flag"
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

const configFile = "config.yaml"

var (
	isVerbose = flag.Bool("verbose", false, "enable debug-level logging")
	macFlag   = flag.String("mac", "", "override mac from config.yaml, e.g. de:dc:ce:00:00:01")
	edgeFlag  = flag.String("edge-addr", "", "override edge_addr from config.yaml")
)

func main() {
	flag.Parse()

	cfg := nodeconfig.DefaultDeviceConfig()
	if err := nodeconfig.Load(configFile, &cfg); err != nil {
		os.Stderr.WriteString("loading " + configFile + ": " + err.Error() + "\n")
	}
	if *macFlag != "" {
		cfg.MAC = *macFlag
	}
	if *edgeFlag != "" {
		cfg.EdgeAddr = *edgeFlag
	}

	mac, err := nodeconfig.ParseMAC(cfg.MAC)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	nodelog.Init(*isVerbose)
	nodeID := message.NewDevice(mac)
	edgeID := message.NewEdge(cfg.EdgeID)
	log := nodelog.For(nodeID)

	lat := latency.NewRegistry()
	svc := timesync.NewTimeSyncService(noderuntime.NewMonotonicClock(), nodeID, cfg.Sync).
		WithLatencyRegistry(lat)
	rtr := router.NewBaseMessageRouter(router.DefaultRouterConfig()).WithLatencyRegistry(lat)
	if _, err := rtr.RegisterHandler(noderuntime.NewServiceHandler(svc)); err != nil {
		log.Error("registering time-sync handler", "err", err)
		os.Exit(1)
	}

	transportCfg := adapter.DefaultTransportConfig()
	tcp := adapter.NewTCPAdapter(transportCfg, func(n message.NodeId) (string, error) {
		return cfg.EdgeAddr, nil
	})
	rtr.AdapterManager().RegisterAdapter(tcp)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := tcp.Connect(ctx, edgeID); err != nil {
		log.Error("connecting to edge", "addr", cfg.EdgeAddr, "err", err)
		os.Exit(1)
	}
	log.Info("connected to edge", "addr", cfg.EdgeAddr)

	go noderuntime.Pump(ctx, rtr, log, 10*time.Millisecond)

	syncTicker := time.NewTicker(time.Duration(cfg.Sync.SyncIntervalMS) * time.Millisecond)
	defer syncTicker.Stop()
	cleanupTicker := time.NewTicker(15 * time.Second)
	defer cleanupTicker.Stop()

loop:
	for {
		select {
		case <-syncTicker.C:
			if !svc.NeedsSync() {
				continue
			}
			req, err := svc.CreateSyncRequest(edgeID)
			if err != nil {
				log.Debug("create sync request", "err", err)
				continue
			}
			if err := rtr.SendMessage(edgeID, req); err != nil {
				log.Warn("send sync request", "err", err)
			}

		case <-cleanupTicker.C:
			svc.CleanupExpiredRequests()
			if report := lat.Report(); report != "" {
				log.Debug("latency", "report", report)
			}

		case <-ctx.Done():
			log.Info("shutting down")
			break loop
		}
	}
}
