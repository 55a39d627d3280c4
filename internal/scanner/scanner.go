package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/hodwatch/internal/metrics"
	"github.com/rickgao/hodwatch/internal/model"
	"github.com/rickgao/hodwatch/internal/store"
)

// Restart policies.
const (
	// PolicyFresh starts with no marks. After a restart a price above the
	// stored day high alerts again even if it was alerted before.
	PolicyFresh = "fresh"

	// PolicyResume seeds marks from today's stored alerts before the first scan.
	PolicyResume = "resume"
)

// Store is the store surface the scanner needs.
type Store interface {
	LowFloatPage(ctx context.Context, offset, limit int) ([]model.LowFloatTicker, error)
	SnapshotsFor(ctx context.Context, tickers []string) ([]model.MarketSnapshot, error)
	InsertAlerts(ctx context.Context, alerts []model.HodAlert) error
	AlertHighsSince(ctx context.Context, since time.Time) (map[string]float64, error)
}

// Config holds scanner settings.
type Config struct {
	PageSize      int            // Watch-list page size (default: 1000)
	ChunkSize     int            // Max tickers per snapshot lookup (default: 1000)
	RestartPolicy string         // PolicyFresh or PolicyResume
	Location      *time.Location // Trading day boundary for PolicyResume
}

// DefaultConfig returns the default scanner settings.
func DefaultConfig() Config {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return Config{
		PageSize:      1000,
		ChunkSize:     1000,
		RestartPolicy: PolicyFresh,
		Location:      loc,
	}
}

// Scanner owns the high-water marks for one process. It is driven by a single
// goroutine and is not safe for concurrent Scan calls.
type Scanner struct {
	cfg     Config
	store   Store
	metrics *metrics.Metrics
	logger  *slog.Logger

	marks  map[string]float64
	seeded bool

	now   func() time.Time
	newID func() uuid.UUID
}

// New creates a Scanner. m and logger may be nil.
func New(cfg Config, st Store, m *metrics.Metrics, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = 1000
	}
	return &Scanner{
		cfg:     cfg,
		store:   st,
		metrics: m,
		logger:  logger.With("component", "hod_scanner"),
		marks:   make(map[string]float64),
		seeded:  cfg.RestartPolicy != PolicyResume,
		now:     time.Now,
		newID:   uuid.New,
	}
}

// Mark returns the last alerted high for ticker.
func (s *Scanner) Mark(ticker string) (float64, bool) {
	v, ok := s.marks[ticker]
	return v, ok
}

// Scan runs one scan and returns the alerts it wrote.
func (s *Scanner) Scan(ctx context.Context) ([]model.HodAlert, error) {
	if !s.seeded {
		if err := s.seed(ctx); err != nil {
			return nil, err
		}
	}

	watch, err := store.Paginate(ctx, s.cfg.PageSize, s.store.LowFloatPage)
	if err != nil {
		s.metrics.StoreErrors.WithLabelValues("low_float_page").Inc()
		return nil, fmt.Errorf("load watch-list: %w", err)
	}
	if len(watch) == 0 {
		s.logger.Debug("watch-list is empty")
		return nil, nil
	}

	snaps, err := s.snapshots(ctx, watch)
	if err != nil {
		s.metrics.StoreErrors.WithLabelValues("snapshots_for").Inc()
		return nil, fmt.Errorf("load snapshots: %w", err)
	}

	now := s.now()
	var alerts []model.HodAlert
	for _, w := range watch {
		snap, ok := snaps[w.Ticker]
		if !ok {
			continue
		}

		last, ok := s.marks[w.Ticker]
		if !ok {
			last = snap.DayHigh
		}
		if !(snap.Price > last) {
			continue
		}

		s.marks[w.Ticker] = snap.Price
		alerts = append(alerts, model.HodAlert{
			ID:        s.newID(),
			Ticker:    w.Ticker,
			AlertTime: now,
			Price:     snap.Price,
			Volume:    snap.Volume,
			Float:     w.Float,
			AlertType: model.AlertTypeHOD,
		})
	}
	s.metrics.HighWaterMarks.Set(float64(len(s.marks)))

	if len(alerts) == 0 {
		return nil, nil
	}

	if err := s.store.InsertAlerts(ctx, alerts); err != nil {
		s.metrics.StoreErrors.WithLabelValues("insert_alerts").Inc()
		s.logger.Error("dropping alerts", "count", len(alerts), "error", err)
		return nil, fmt.Errorf("insert alerts: %w", err)
	}
	s.metrics.Alerts.Add(float64(len(alerts)))

	for _, a := range alerts {
		s.logger.Info("hod alert", "ticker", a.Ticker, "price", a.Price, "volume", a.Volume, "float", a.Float)
	}
	return alerts, nil
}

// snapshots loads market_data rows for the watch-list in chunks.
func (s *Scanner) snapshots(ctx context.Context, watch []model.LowFloatTicker) (map[string]model.MarketSnapshot, error) {
	out := make(map[string]model.MarketSnapshot, len(watch))
	for start := 0; start < len(watch); start += s.cfg.ChunkSize {
		chunk := watch[start:min(start+s.cfg.ChunkSize, len(watch))]
		tickers := make([]string, len(chunk))
		for i, w := range chunk {
			tickers[i] = w.Ticker
		}

		rows, err := s.store.SnapshotsFor(ctx, tickers)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			out[r.Ticker] = r
		}
	}
	return out, nil
}

// seed loads today's highest alerted prices into the marks.
func (s *Scanner) seed(ctx context.Context) error {
	local := s.now().In(s.cfg.Location)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.cfg.Location)

	highs, err := s.store.AlertHighsSince(ctx, dayStart)
	if err != nil {
		s.metrics.StoreErrors.WithLabelValues("alert_highs_since").Inc()
		return fmt.Errorf("seed marks: %w", err)
	}
	for ticker, high := range highs {
		if high > s.marks[ticker] {
			s.marks[ticker] = high
		}
	}
	s.seeded = true

	s.metrics.SeededMarks.Set(float64(len(highs)))
	s.logger.Info("seeded marks from stored alerts", "count", len(highs), "since", dayStart)
	return nil
}
