// snapshot-ingestor refreshes market_data from the bulk day snapshot on a
// fixed interval.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rickgao/hodwatch/internal/app"
	"github.com/rickgao/hodwatch/internal/ingest"
	"github.com/rickgao/hodwatch/internal/poller"
)

func main() {
	configPath := flag.String("config", "configs/hodwatch.local.yaml", "path to config file")
	metricsAddr := flag.String("metrics-addr", "", `health/metrics listen address; overrides the config port, "off" disables`)
	flag.Parse()

	if err := run(*configPath, *metricsAddr); err != nil {
		fmt.Fprintln(os.Stderr, "snapshot-ingestor:", err)
		os.Exit(1)
	}
}

func run(configPath, metricsAddr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := app.Setup("snapshot-ingestor", configPath)
	if err != nil {
		return err
	}
	p.MetricsAddr = app.ListenAddr(metricsAddr, p.Config.Snapshot.MetricsPort, p.Config.Metrics.Port)
	if err := p.OpenStore(ctx); err != nil {
		return err
	}
	defer p.Close()

	cfg := p.Config
	client := app.NewAPIClient(cfg.Polygon, p.Logger)
	ingestor := ingest.NewSnapshotIngestor(client, p.Store, cfg.Snapshot.PageSize, p.Metrics, p.Logger)

	loop := poller.New("snapshot", cfg.Snapshot.Interval, ingestor.RunCycle, p.Metrics, p.Logger)

	p.Logger.Info("snapshot ingestor running", "interval", cfg.Snapshot.Interval)
	return p.Run(ctx, loop.Run)
}
