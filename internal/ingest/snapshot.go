package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/hodwatch/internal/api"
	"github.com/rickgao/hodwatch/internal/metrics"
	"github.com/rickgao/hodwatch/internal/model"
	"github.com/rickgao/hodwatch/internal/store"
)

// Timestamps outside [minPlausible, now+maxClockSkew] are replaced with the
// ingestion time.
var minPlausible = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

const maxClockSkew = time.Hour

// SnapshotSource provides the bulk day snapshot.
type SnapshotSource interface {
	FetchSnapshots(ctx context.Context) ([]api.TickerSnapshot, error)
}

// SnapshotStore is the store surface the snapshot ingestor needs.
type SnapshotStore interface {
	TickerMetadataPage(ctx context.Context, offset, limit int) ([]string, error)
	UpsertSnapshots(ctx context.Context, rows []model.MarketSnapshot) (store.UpsertResult, error)
}

// SnapshotIngestor refreshes market_data from the bulk snapshot.
type SnapshotIngestor struct {
	source   SnapshotSource
	store    SnapshotStore
	pageSize int
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewSnapshotIngestor creates a SnapshotIngestor. m and logger may be nil.
func NewSnapshotIngestor(source SnapshotSource, st SnapshotStore, pageSize int, m *metrics.Metrics, logger *slog.Logger) *SnapshotIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &SnapshotIngestor{
		source:   source,
		store:    st,
		pageSize: pageSize,
		metrics:  m,
		logger:   logger.With("component", "snapshot_ingestor"),
		now:      time.Now,
	}
}

// RunCycle performs one ingest cycle. An empty universe is logged and is not
// an error.
func (s *SnapshotIngestor) RunCycle(ctx context.Context) error {
	start := s.now()

	symbols, err := store.Paginate(ctx, s.pageSize, s.store.TickerMetadataPage)
	if err != nil {
		s.metrics.StoreErrors.WithLabelValues("ticker_metadata_page").Inc()
		return fmt.Errorf("load universe: %w", err)
	}
	if len(symbols) == 0 {
		s.logger.Warn("universe is empty, skipping cycle")
		return nil
	}
	universe := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		universe[sym] = struct{}{}
	}

	raw, err := s.source.FetchSnapshots(ctx)
	if err != nil {
		return err
	}

	rows, invalid := Normalize(raw, start)
	s.metrics.SnapshotRows.WithLabelValues("invalid").Add(float64(invalid))

	filtered := rows[:0]
	for _, r := range rows {
		if _, ok := universe[r.Ticker]; ok {
			filtered = append(filtered, r)
		}
	}
	outside := len(rows) - len(filtered)
	s.metrics.SnapshotRows.WithLabelValues("outside_universe").Add(float64(outside))

	if len(filtered) == 0 {
		s.logger.Info("no snapshot rows in universe",
			"fetched", len(raw),
			"universe", len(universe),
		)
		return nil
	}

	res, err := s.store.UpsertSnapshots(ctx, filtered)
	s.metrics.SnapshotRows.WithLabelValues("upserted").Add(float64(res.Upserted))
	s.metrics.SnapshotRows.WithLabelValues("failed").Add(float64(res.Failed))
	if err != nil {
		s.metrics.StoreErrors.WithLabelValues("upsert_snapshots").Inc()
		s.logger.Warn("snapshot upsert incomplete",
			"upserted", res.Upserted,
			"failed", res.Failed,
		)
		return fmt.Errorf("upsert snapshots: %w", err)
	}

	s.logger.Info("snapshot cycle complete",
		"fetched", len(raw),
		"invalid", invalid,
		"outside_universe", outside,
		"upserted", res.Upserted,
		"duration", s.now().Sub(start),
	)
	return nil
}

// Normalize converts raw snapshot rows into market_data rows. Rows without a
// positive close are dropped and counted as invalid. Implausible update
// timestamps are replaced with now.
func Normalize(raw []api.TickerSnapshot, now time.Time) (rows []model.MarketSnapshot, invalid int) {
	rows = make([]model.MarketSnapshot, 0, len(raw))
	for _, r := range raw {
		if r.Ticker == "" || !(r.Close > 0) {
			invalid++
			continue
		}

		updated := r.Updated
		if !plausible(updated, now) {
			updated = now
		}

		rows = append(rows, model.MarketSnapshot{
			Ticker:        r.Ticker,
			Price:         r.Close,
			ChangePercent: r.ChangePercent,
			Volume:        r.Volume,
			DayHigh:       r.High,
			DayLow:        r.Low,
			DayOpen:       r.Open,
			DayClose:      r.Close,
			LastUpdated:   updated,
		})
	}
	return rows, invalid
}

func plausible(ts, now time.Time) bool {
	return !ts.IsZero() && !ts.Before(minPlausible) && !ts.After(now.Add(maxClockSkew))
}
