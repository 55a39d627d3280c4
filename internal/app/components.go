package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/hodwatch/internal/api"
	"github.com/rickgao/hodwatch/internal/config"
	"github.com/rickgao/hodwatch/internal/connection"
	"github.com/rickgao/hodwatch/internal/ingest"
	"github.com/rickgao/hodwatch/internal/scanner"
)

// NewAPIClient builds the REST client from the polygon section.
func NewAPIClient(cfg config.PolygonConfig, logger *slog.Logger) *api.Client {
	return api.NewClient(
		cfg.RestURL,
		cfg.APIKey,
		api.WithLogger(logger),
		api.WithTimeout(cfg.Timeout),
		api.WithRetries(cfg.MaxRetries, time.Second),
	)
}

// MetadataConfig maps the metadata section onto the job settings.
func MetadataConfig(cfg config.MetadataConfig) ingest.MetadataConfig {
	return ingest.MetadataConfig{
		Source:       cfg.Source,
		PageSize:     cfg.PageSize,
		BatchSize:    cfg.BatchSize,
		RequestDelay: cfg.RequestDelay,
		BatchDelay:   cfg.BatchDelay,

		AvgVolumeDays: max(cfg.AvgVolumeDays, 0),
	}
}

// StreamerConfig maps the polygon and stream sections onto the streamer
// settings.
func StreamerConfig(cfg *config.Config) connection.StreamerConfig {
	return connection.StreamerConfig{
		APIKey:             cfg.Polygon.APIKey,
		Subscription:       cfg.Stream.Subscription,
		ReconnectBaseDelay: cfg.Stream.ReconnectBaseDelay,
		ReconnectMaxDelay:  cfg.Stream.ReconnectMaxDelay,
		StaleAfter:         cfg.Stream.StaleAfter,
		WatchdogInterval:   cfg.Stream.WatchdogInterval,
		Client: connection.ClientConfig{
			URL:          cfg.Polygon.WSURL,
			PingInterval: cfg.Stream.PingInterval,
			PingTimeout:  3 * cfg.Stream.PingInterval,
			WriteTimeout: cfg.Stream.WriteTimeout,
			BufferSize:   cfg.Stream.BufferSize,
		},
	}
}

// ScannerConfig maps the scanner section onto the scanner settings.
func ScannerConfig(cfg config.ScannerConfig) (scanner.Config, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return scanner.Config{}, fmt.Errorf("scanner timezone: %w", err)
	}
	return scanner.Config{
		PageSize:      cfg.PageSize,
		ChunkSize:     cfg.ChunkSize,
		RestartPolicy: cfg.RestartPolicy,
		Location:      loc,
	}, nil
}
