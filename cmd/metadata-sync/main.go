// metadata-sync refreshes ticker_metadata once and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/hodwatch/internal/app"
	"github.com/rickgao/hodwatch/internal/ingest"
)

func main() {
	configPath := flag.String("config", "configs/hodwatch.local.yaml", "path to config file")
	source := flag.String("source", "", "symbol source override: store or snapshot")
	flag.Parse()

	if err := run(*configPath, *source); err != nil {
		fmt.Fprintln(os.Stderr, "metadata-sync:", err)
		os.Exit(1)
	}
}

func run(configPath, source string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := app.Setup("metadata-sync", configPath)
	if err != nil {
		return err
	}
	if err := p.OpenStore(ctx); err != nil {
		return err
	}
	defer p.Close()

	jobCfg := app.MetadataConfig(p.Config.Metadata)
	if source != "" {
		jobCfg.Source = source
	}

	client := app.NewAPIClient(p.Config.Polygon, p.Logger)
	job := ingest.NewMetadataIngestor(jobCfg, client, p.Store, p.Metrics, p.Logger)

	start := time.Now()
	n, err := job.Run(ctx)
	if err != nil {
		return fmt.Errorf("metadata sync: %w", err)
	}

	p.Logger.Info("metadata sync complete",
		"upserted", n,
		"source", jobCfg.Source,
		"elapsed", time.Since(start).Round(time.Second),
	)
	return nil
}
