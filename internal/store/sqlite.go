package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/hodwatch/internal/model"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// SQLite is the single-file Store. Timestamps are stored as unix nanoseconds.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// NewSQLite opens (or creates) the database at path. Several processes may
// share the file; WAL mode and a busy timeout keep their writes from failing
// on lock contention.
func NewSQLite(path string) (*SQLite, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return &SQLite{db: db}, nil
}

// Migrate creates the tables if they do not exist.
func (s *SQLite) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(sqliteSchema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}

func (s *SQLite) TickerMetadataPage(ctx context.Context, offset, limit int) ([]string, error) {
	return s.tickerPage(ctx, `SELECT ticker FROM ticker_metadata ORDER BY ticker LIMIT ? OFFSET ?`, offset, limit)
}

func (s *SQLite) SnapshotSymbolsPage(ctx context.Context, offset, limit int) ([]string, error) {
	return s.tickerPage(ctx, `SELECT ticker FROM market_data ORDER BY ticker LIMIT ? OFFSET ?`, offset, limit)
}

func (s *SQLite) tickerPage(ctx context.Context, query string, offset, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}

func (s *SQLite) LowFloatPage(ctx context.Context, offset, limit int) ([]model.LowFloatTicker, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ticker,
		       COALESCE("float", 0), COALESCE(volume, 0), COALESCE(price, 0),
		       COALESCE(percent_change, 0), filtered_at
		FROM low_float_tickers
		ORDER BY ticker
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LowFloatTicker
	for rows.Next() {
		var (
			t          model.LowFloatTicker
			filteredAt sql.NullInt64
		)
		if err := rows.Scan(&t.Ticker, &t.Float, &t.Volume, &t.Price, &t.PercentChange, &filteredAt); err != nil {
			return nil, err
		}
		t.FilteredAt = fromNanos(filteredAt)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLite) SnapshotsFor(ctx context.Context, tickers []string) ([]model.MarketSnapshot, error) {
	if len(tickers) == 0 {
		return nil, nil
	}

	args := make([]any, len(tickers))
	for i, t := range tickers {
		args[i] = t
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tickers)), ",")

	rows, err := s.db.QueryContext(ctx, `
		SELECT ticker,
		       COALESCE(price, 0), COALESCE(change_percent, 0), COALESCE(volume, 0),
		       COALESCE(day_high, 0), COALESCE(day_low, 0), COALESCE(day_open, 0),
		       COALESCE(day_close, 0), last_updated, avg_daily_volume
		FROM market_data
		WHERE ticker IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MarketSnapshot
	for rows.Next() {
		var (
			m           model.MarketSnapshot
			lastUpdated sql.NullInt64
			avgVolume   sql.NullFloat64
		)
		if err := rows.Scan(&m.Ticker, &m.Price, &m.ChangePercent, &m.Volume,
			&m.DayHigh, &m.DayLow, &m.DayOpen, &m.DayClose, &lastUpdated, &avgVolume); err != nil {
			return nil, err
		}
		m.LastUpdated = fromNanos(lastUpdated)
		if avgVolume.Valid {
			v := avgVolume.Float64
			m.AvgDailyVolume = &v
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLite) UpsertSnapshots(ctx context.Context, rows []model.MarketSnapshot) (UpsertResult, error) {
	return execEach(ctx, s.db, `
		INSERT INTO market_data (ticker, price, change_percent, volume, day_high, day_low, day_open, day_close, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ticker) DO UPDATE SET
			price = excluded.price,
			change_percent = excluded.change_percent,
			volume = excluded.volume,
			day_high = excluded.day_high,
			day_low = excluded.day_low,
			day_open = excluded.day_open,
			day_close = excluded.day_close,
			last_updated = excluded.last_updated
	`, rows, func(m model.MarketSnapshot) []any {
		return []any{m.Ticker, m.Price, m.ChangePercent, m.Volume, m.DayHigh, m.DayLow, m.DayOpen, m.DayClose, toNanos(m.LastUpdated)}
	})
}

func (s *SQLite) UpdatePrice(ctx context.Context, u model.PriceUpdate) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO market_data (ticker, price, last_updated)
		VALUES (?, ?, ?)
		ON CONFLICT (ticker) DO UPDATE SET
			price = excluded.price,
			last_updated = excluded.last_updated
	`, u.Ticker, u.Price, toNanos(u.LastUpdated))
	return err
}

func (s *SQLite) UpsertMetadata(ctx context.Context, rows []model.TickerMetadata) (UpsertResult, error) {
	return execEach(ctx, s.db, `
		INSERT INTO ticker_metadata (ticker, name, exchange, market_cap, shares_outstanding, avg_10d_volume, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ticker) DO UPDATE SET
			name = excluded.name,
			exchange = excluded.exchange,
			market_cap = excluded.market_cap,
			shares_outstanding = excluded.shares_outstanding,
			avg_10d_volume = COALESCE(excluded.avg_10d_volume, ticker_metadata.avg_10d_volume),
			updated_at = excluded.updated_at
	`, rows, func(m model.TickerMetadata) []any {
		return []any{m.Ticker, m.Name, m.Exchange, m.MarketCap, m.SharesOutstanding, m.Avg10DVolume, toNanos(m.UpdatedAt)}
	})
}

func (s *SQLite) InsertAlerts(ctx context.Context, alerts []model.HodAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO hod_alerts (id, ticker, alert_time, price, volume, "float", alert_type)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range alerts {
		if _, err := stmt.ExecContext(ctx, a.ID.String(), a.Ticker, toNanos(a.AlertTime), a.Price, a.Volume, a.Float, a.AlertType); err != nil {
			return fmt.Errorf("insert alert %s: %w", a.Ticker, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) AlertHighsSince(ctx context.Context, since time.Time) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ticker, MAX(price)
		FROM hod_alerts
		WHERE alert_type = ? AND alert_time >= ? AND price IS NOT NULL
		GROUP BY ticker
	`, model.AlertTypeHOD, since.UnixNano())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	highs := make(map[string]float64)
	for rows.Next() {
		var (
			ticker string
			high   float64
		)
		if err := rows.Scan(&ticker, &high); err != nil {
			return nil, err
		}
		highs[ticker] = high
	}
	return highs, rows.Err()
}

// Alerts returns every stored alert ordered by time. Used by the console tools.
func (s *SQLite) Alerts(ctx context.Context) ([]model.HodAlert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ticker, alert_time, COALESCE(price, 0), COALESCE(volume, 0), COALESCE("float", 0), alert_type
		FROM hod_alerts
		ORDER BY alert_time, ticker
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.HodAlert
	for rows.Next() {
		var (
			a     model.HodAlert
			id    string
			nanos int64
		)
		if err := rows.Scan(&id, &a.Ticker, &nanos, &a.Price, &a.Volume, &a.Float, &a.AlertType); err != nil {
			return nil, err
		}
		if a.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("alert id %q: %w", id, err)
		}
		a.AlertTime = time.Unix(0, nanos).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() {
	_ = s.db.Close()
}

// execEach runs one statement per row inside a transaction. Rows whose
// statement fails are counted and skipped; the rest commit together.
func execEach[T any](ctx context.Context, db *sql.DB, query string, rows []T, args func(T) []any) (UpsertResult, error) {
	var res UpsertResult
	if len(rows) == 0 {
		return res, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return UpsertResult{Failed: len(rows)}, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return UpsertResult{Failed: len(rows)}, err
	}
	defer stmt.Close()

	var firstErr error
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, args(r)...); err != nil {
			res.Failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		res.Upserted++
	}

	if err := tx.Commit(); err != nil {
		return UpsertResult{Failed: len(rows)}, err
	}
	if firstErr != nil {
		return res, fmt.Errorf("%d of %d rows failed: %w", res.Failed, len(rows), firstErr)
	}
	return res, nil
}

func toNanos(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixNano()
}

func fromNanos(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return time.Unix(0, n.Int64).UTC()
}
