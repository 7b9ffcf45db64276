// Command cloud-node runs the authoritative Cloud-tier time service:
// it accepts TCP connections from Edge gateways and answers their
// TimeSync requests with its own wall-clock time.
package main

import (
	"context"
	"flag"
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

const configFile = "config.yaml"

var (
	isVerbose = flag.Bool("verbose", false, "enable debug-level logging")
	portFlag  = flag.String("listen", "", "override listen_addr from config.yaml, e.g. :8080")
)

func main() {
	flag.Parse()
	nodelog.Init(*isVerbose)
	log := nodelog.For(message.Cloud)

	cfg := nodeconfig.DefaultCloudConfig()
	if err := nodeconfig.Load(configFile, &cfg); err != nil {
		log.Error("loading config", "fn", configFile, "err", err)
	}
	if *portFlag != "" {
		cfg.ListenAddr = *portFlag
	}

	lat := latency.NewRegistry()
	svc := timesync.NewTimeSyncService(noderuntime.NewMonotonicClock(), message.Cloud, cfg.Sync).
		WithLatencyRegistry(lat)
	rtr := router.NewBaseMessageRouter(router.DefaultRouterConfig()).WithLatencyRegistry(lat)
	if _, err := rtr.RegisterHandler(noderuntime.NewServiceHandler(svc)); err != nil {
		log.Error("registering time-sync handler", "err", err)
		os.Exit(1)
	}

	// Cloud never dials out; it only ever accepts, so the adapter's
	// resolver is never exercised.
	tcp := adapter.NewTCPAdapter(cfg.Transport, func(n message.NodeId) (string, error) {
		return "", &adapter.AdapterError{Kind: adapter.KindUnsupportedOperation, Msg: "cloud does not dial out"}
	})
	rtr.AdapterManager().RegisterAdapter(tcp)

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Error("listen", "addr", cfg.ListenAddr, "err", err)
		os.Exit(1)
	}
	log.Info("listening", "addr", cfg.ListenAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	noderuntime.AcceptAndAdopt(ctx, ln, tcp, rtr, cfg.Transport.EnableCRC, log, nil)
	go noderuntime.Pump(ctx, rtr, log, 5*time.Millisecond)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	svc.CleanupExpiredRequests()
loop:
	for {
		select {
		case <-ticker.C:
			svc.CleanupExpiredRequests()
			stats := rtr.Stats()
			log.Info("stats",
				"total", stats.TotalMessages,
				"routed", stats.RoutedMessages,
				"success_rate", stats.SuccessRate(),
				"connected_edges", len(tcp.ConnectedNodes()),
			)
			if report := lat.Report(); report != "" {
				log.Debug("latency", "report", report)
			}
		case <-ctx.Done():
			log.Info("shutting down")
			break loop
		}
	}
}
