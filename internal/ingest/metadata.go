package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/rickgao/hodwatch/internal/api"
	"github.com/rickgao/hodwatch/internal/metrics"
	"github.com/rickgao/hodwatch/internal/model"
	"github.com/rickgao/hodwatch/internal/store"
	"github.com/rickgao/hodwatch/internal/writer"
)

// Symbol sources for the metadata job.
const (
	SourceStore    = "store"    // market_data keys
	SourceSnapshot = "snapshot" // bulk snapshot tickers
)

// ReferenceSource provides per-ticker reference data, daily volume history
// and, for bootstrap runs, the bulk snapshot.
type ReferenceSource interface {
	FetchReference(ctx context.Context, ticker string) (api.Reference, error)
	FetchDailyVolumes(ctx context.Context, day time.Time) (map[string]float64, error)
	FetchSnapshots(ctx context.Context) ([]api.TickerSnapshot, error)
}

// MetadataStore is the store surface the metadata job needs.
type MetadataStore interface {
	SnapshotSymbolsPage(ctx context.Context, offset, limit int) ([]string, error)
	UpsertMetadata(ctx context.Context, rows []model.TickerMetadata) (store.UpsertResult, error)
}

// MetadataConfig holds metadata job settings.
type MetadataConfig struct {
	Source       string        // SourceStore or SourceSnapshot
	PageSize     int           // Universe page size (default: 1000)
	BatchSize    int           // Rows per upsert (default: 100)
	RequestDelay time.Duration // Pause after each reference request (default: 100ms)
	BatchDelay   time.Duration // Pause after each full batch (default: 2s)

	AvgVolumeDays int // Trading days in the average volume (default: 10, 0 disables)
}

// DefaultMetadataConfig returns the default job settings.
func DefaultMetadataConfig() MetadataConfig {
	return MetadataConfig{
		Source:       SourceStore,
		PageSize:     1000,
		BatchSize:    100,
		RequestDelay: 100 * time.Millisecond,
		BatchDelay:   2 * time.Second,

		AvgVolumeDays: 10,
	}
}

// MetadataIngestor refreshes ticker_metadata.
type MetadataIngestor struct {
	cfg     MetadataConfig
	source  ReferenceSource
	store   MetadataStore
	metrics *metrics.Metrics
	logger  *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewMetadataIngestor creates a MetadataIngestor. m and logger may be nil.
func NewMetadataIngestor(cfg MetadataConfig, source ReferenceSource, st MetadataStore, m *metrics.Metrics, logger *slog.Logger) *MetadataIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &MetadataIngestor{
		cfg:     cfg,
		source:  source,
		store:   st,
		metrics: m,
		logger:  logger.With("component", "metadata_ingestor"),
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// Run executes the job once and returns the number of rows upserted. It stops
// early, returning the count so far, when ctx is cancelled.
func (m *MetadataIngestor) Run(ctx context.Context) (int, error) {
	start := m.now()

	symbols, err := m.symbols(ctx)
	if err != nil {
		return 0, err
	}
	m.logger.Info("metadata sync started", "symbols", len(symbols), "source", m.cfg.Source)

	avgVolumes, err := m.averageVolumes(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	batch, err := writer.NewBatch(m.cfg.BatchSize, func(ctx context.Context, rows []model.TickerMetadata) error {
		res, err := m.store.UpsertMetadata(ctx, rows)
		total += res.Upserted
		m.metrics.MetadataRows.WithLabelValues("upserted").Add(float64(res.Upserted))
		m.metrics.MetadataRows.WithLabelValues("failed").Add(float64(res.Failed))
		if err != nil {
			m.metrics.StoreErrors.WithLabelValues("upsert_metadata").Inc()
			return err
		}
		m.logger.Debug("metadata batch upserted", "rows", res.Upserted, "total", total)
		return nil
	}, m.logger)
	if err != nil {
		return 0, err
	}

	var missing int
	for _, sym := range symbols {
		ref, err := m.source.FetchReference(ctx, sym)
		switch {
		case err != nil && ctx.Err() != nil:
			return total, ctx.Err()
		case err != nil:
			missing++
			m.metrics.MetadataRows.WithLabelValues("missing").Inc()
			if api.IsNotFound(err) {
				m.logger.Debug("no reference data", "ticker", sym)
			} else {
				m.logger.Warn("reference fetch failed", "ticker", sym, "error", err)
			}
		default:
			if err := batch.Add(ctx, toMetadata(ref, avgVolumes, m.now())); err != nil {
				m.logger.Error("metadata batch upsert failed", "error", err)
			}
			if batch.Len() == 0 {
				if err := m.sleep(ctx, m.cfg.BatchDelay); err != nil {
					return total, err
				}
			}
		}

		if err := m.sleep(ctx, m.cfg.RequestDelay); err != nil {
			return total, err
		}
	}

	if err := batch.Flush(ctx); err != nil {
		m.logger.Error("metadata batch upsert failed", "error", err)
	}

	m.logger.Info("metadata sync complete",
		"symbols", len(symbols),
		"upserted", total,
		"missing", missing,
		"duration", m.now().Sub(start),
	)
	return total, nil
}

func (m *MetadataIngestor) symbols(ctx context.Context) ([]string, error) {
	switch m.cfg.Source {
	case SourceSnapshot:
		raw, err := m.source.FetchSnapshots(ctx)
		if err != nil {
			return nil, err
		}
		syms := make([]string, 0, len(raw))
		for _, r := range raw {
			if r.Ticker != "" {
				syms = append(syms, r.Ticker)
			}
		}
		slices.Sort(syms)
		return slices.Compact(syms), nil

	case SourceStore, "":
		syms, err := store.Paginate(ctx, m.cfg.PageSize, m.store.SnapshotSymbolsPage)
		if err != nil {
			m.metrics.StoreErrors.WithLabelValues("snapshot_symbols_page").Inc()
			return nil, fmt.Errorf("load symbols: %w", err)
		}
		return syms, nil

	default:
		return nil, fmt.Errorf("unknown metadata source %q", m.cfg.Source)
	}
}

func toMetadata(ref api.Reference, avgVolumes map[string]float64, now time.Time) model.TickerMetadata {
	md := model.TickerMetadata{
		Ticker:            ref.Ticker,
		Name:              ref.Name,
		Exchange:          ref.Exchange,
		MarketCap:         ref.MarketCap,
		SharesOutstanding: ref.SharesOutstanding,
		UpdatedAt:         now,
	}
	if v, ok := avgVolumes[ref.Ticker]; ok {
		md.Avg10DVolume = &v
	}
	return md
}

// averageVolumes averages each ticker's daily volume over the last
// AvgVolumeDays trading days before today. Weekends are skipped without a
// request; a weekday with no results is a holiday and does not count. A
// failed request leaves the averages unset for this run.
func (m *MetadataIngestor) averageVolumes(ctx context.Context) (map[string]float64, error) {
	days := m.cfg.AvgVolumeDays
	if days <= 0 {
		return nil, nil
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	found := 0

	day := m.now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -1)
	for lookback := 0; found < days && lookback < 2*days+7; lookback, day = lookback+1, day.AddDate(0, 0, -1) {
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}

		vols, err := m.source.FetchDailyVolumes(ctx, day)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			m.logger.Warn("volume history unavailable, averages not updated", "day", day.Format(time.DateOnly), "error", err)
			return nil, nil
		}
		if err := m.sleep(ctx, m.cfg.RequestDelay); err != nil {
			return nil, err
		}
		if len(vols) == 0 {
			continue
		}

		found++
		for ticker, v := range vols {
			sums[ticker] += v
			counts[ticker]++
		}
	}

	avg := make(map[string]float64, len(sums))
	for ticker, sum := range sums {
		avg[ticker] = sum / float64(counts[ticker])
	}
	m.logger.Debug("volume history loaded", "trading_days", found, "tickers", len(avg))
	return avg, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
