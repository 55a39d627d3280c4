// trade-streamer applies live trade prices to market_data.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rickgao/hodwatch/internal/app"
	"github.com/rickgao/hodwatch/internal/connection"
)

func main() {
	configPath := flag.String("config", "configs/hodwatch.local.yaml", "path to config file")
	metricsAddr := flag.String("metrics-addr", "", `health/metrics listen address; overrides the config port, "off" disables`)
	flag.Parse()

	if err := run(*configPath, *metricsAddr); err != nil {
		fmt.Fprintln(os.Stderr, "trade-streamer:", err)
		os.Exit(1)
	}
}

func run(configPath, metricsAddr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := app.Setup("trade-streamer", configPath)
	if err != nil {
		return err
	}
	p.MetricsAddr = app.ListenAddr(metricsAddr, p.Config.Stream.MetricsPort, p.Config.Metrics.Port)
	if err := p.OpenStore(ctx); err != nil {
		return err
	}
	defer p.Close()

	cfg := app.StreamerConfig(p.Config)
	streamer := connection.NewStreamer(cfg, p.Store, p.Metrics, p.Logger)

	p.Logger.Info("trade streamer running", "url", cfg.Client.URL, "subscription", cfg.Subscription)
	return p.Run(ctx, streamer.Run)
}
