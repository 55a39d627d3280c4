// streamtest connects to the trade stream and prints accepted trades to the
// console. Nothing is written to the store.
// Usage: go run ./cmd/streamtest --config configs/hodwatch.local.yaml
//
// Required environment variables:
//
//	POLYGON_API_KEY - API key referenced by polygon.api_key
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rickgao/hodwatch/internal/app"
	"github.com/rickgao/hodwatch/internal/config"
	"github.com/rickgao/hodwatch/internal/connection"
	"github.com/rickgao/hodwatch/internal/model"
)

func main() {
	configPath := flag.String("config", "configs/hodwatch.example.yaml", "path to config file")
	symbols := flag.String("symbols", "", "comma-separated tickers to print, case-sensitive (default: all)")
	verbose := flag.Bool("verbose", false, "print full update JSON")
	flag.Parse()

	logger := app.NewLogger(config.LoggingConfig{Level: "debug"}, os.Stdout)

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Polygon.APIKey == "" {
		logger.Error("polygon.api_key is required")
		logger.Info("Set environment variable: POLYGON_API_KEY")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink := &consoleSink{verbose: *verbose, only: parseSymbols(*symbols)}

	streamer := connection.NewStreamer(app.StreamerConfig(cfg), sink, nil, logger)

	go printStats(ctx, sink, logger)

	logger.Info("streaming started - press Ctrl+C to stop", "url", cfg.Polygon.WSURL)
	if err := streamer.Run(ctx); err != nil {
		logger.Error("streamer failed", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete", "trades", sink.count.Load())
}

// parseSymbols splits a comma-separated ticker list. Tickers are
// case-sensitive and kept as given. An empty list means no filter.
func parseSymbols(list string) map[string]bool {
	var only map[string]bool
	for _, s := range strings.Split(list, ",") {
		sym := strings.TrimSpace(s)
		if sym == "" {
			continue
		}
		if only == nil {
			only = make(map[string]bool)
		}
		only[sym] = true
	}
	return only
}

// consoleSink prints price updates instead of storing them.
type consoleSink struct {
	verbose bool
	only    map[string]bool
	count   atomic.Int64
}

func (c *consoleSink) UpdatePrice(_ context.Context, u model.PriceUpdate) error {
	c.count.Add(1)
	if c.only != nil && !c.only[u.Ticker] {
		return nil
	}

	if c.verbose {
		data, _ := json.MarshalIndent(u, "", "  ")
		fmt.Printf("[TRADE] %s\n", data)
		return nil
	}
	fmt.Printf("[TRADE] ticker=%s price=%.4f time=%s\n",
		u.Ticker, u.Price, u.LastUpdated.Format(time.RFC3339Nano))
	return nil
}

func printStats(ctx context.Context, sink *consoleSink, logger *slog.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	var last int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := sink.count.Load()
			logger.Info("stats", "trades", n, "trades_per_sec", float64(n-last)/10)
			last = n
		}
	}
}
