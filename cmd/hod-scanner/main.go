// hod-scanner raises high-of-day alerts for the low-float watch-list.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rickgao/hodwatch/internal/app"
	"github.com/rickgao/hodwatch/internal/poller"
	"github.com/rickgao/hodwatch/internal/scanner"
)

func main() {
	configPath := flag.String("config", "configs/hodwatch.local.yaml", "path to config file")
	metricsAddr := flag.String("metrics-addr", "", `health/metrics listen address; overrides the config port, "off" disables`)
	flag.Parse()

	if err := run(*configPath, *metricsAddr); err != nil {
		fmt.Fprintln(os.Stderr, "hod-scanner:", err)
		os.Exit(1)
	}
}

func run(configPath, metricsAddr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := app.Setup("hod-scanner", configPath)
	if err != nil {
		return err
	}
	p.MetricsAddr = app.ListenAddr(metricsAddr, p.Config.Scanner.MetricsPort, p.Config.Metrics.Port)

	scanCfg, err := app.ScannerConfig(p.Config.Scanner)
	if err != nil {
		return err
	}

	if err := p.OpenStore(ctx); err != nil {
		return err
	}
	defer p.Close()

	sc := scanner.New(scanCfg, p.Store, p.Metrics, p.Logger)
	if scanCfg.RestartPolicy == scanner.PolicyFresh {
		p.Logger.Warn("restart policy is fresh: breakouts alerted before this start may alert again")
	}

	loop := poller.New("scan", p.Config.Scanner.Interval, func(ctx context.Context) error {
		_, err := sc.Scan(ctx)
		return err
	}, p.Metrics, p.Logger)

	p.Logger.Info("hod scanner running",
		"interval", p.Config.Scanner.Interval,
		"restart_policy", scanCfg.RestartPolicy,
	)
	return p.Run(ctx, loop.Run)
}
