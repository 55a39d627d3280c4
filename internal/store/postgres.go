package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/hodwatch/internal/model"
)

// batchChunk caps the statements queued per pgx.Batch.
const batchChunk = 500

// Postgres is the pgx-backed Store.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// NewPostgres wraps an open pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("apply postgres schema: %w", err)
	}
	return nil
}

func (p *Postgres) TickerMetadataPage(ctx context.Context, offset, limit int) ([]string, error) {
	return p.tickerPage(ctx, `SELECT ticker FROM ticker_metadata ORDER BY ticker LIMIT $1 OFFSET $2`, offset, limit)
}

func (p *Postgres) SnapshotSymbolsPage(ctx context.Context, offset, limit int) ([]string, error) {
	return p.tickerPage(ctx, `SELECT ticker FROM market_data ORDER BY ticker LIMIT $1 OFFSET $2`, offset, limit)
}

func (p *Postgres) tickerPage(ctx context.Context, query string, offset, limit int) ([]string, error) {
	rows, err := p.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (p *Postgres) LowFloatPage(ctx context.Context, offset, limit int) ([]model.LowFloatTicker, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT ticker,
		       COALESCE("float", 0), COALESCE(volume, 0), COALESCE(price, 0),
		       COALESCE(percent_change, 0), filtered_at
		FROM low_float_tickers
		ORDER BY ticker
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.LowFloatTicker, error) {
		var (
			t          model.LowFloatTicker
			filteredAt *time.Time
		)
		err := row.Scan(&t.Ticker, &t.Float, &t.Volume, &t.Price, &t.PercentChange, &filteredAt)
		if filteredAt != nil {
			t.FilteredAt = *filteredAt
		}
		return t, err
	})
}

func (p *Postgres) SnapshotsFor(ctx context.Context, tickers []string) ([]model.MarketSnapshot, error) {
	if len(tickers) == 0 {
		return nil, nil
	}

	rows, err := p.pool.Query(ctx, `
		SELECT ticker,
		       COALESCE(price, 0), COALESCE(change_percent, 0), COALESCE(volume, 0),
		       COALESCE(day_high, 0), COALESCE(day_low, 0), COALESCE(day_open, 0),
		       COALESCE(day_close, 0), last_updated, avg_daily_volume
		FROM market_data
		WHERE ticker = ANY($1)
	`, tickers)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.MarketSnapshot, error) {
		var (
			s           model.MarketSnapshot
			lastUpdated *time.Time
		)
		err := row.Scan(&s.Ticker, &s.Price, &s.ChangePercent, &s.Volume,
			&s.DayHigh, &s.DayLow, &s.DayOpen, &s.DayClose, &lastUpdated, &s.AvgDailyVolume)
		if lastUpdated != nil {
			s.LastUpdated = *lastUpdated
		}
		return s, err
	})
}

func (p *Postgres) UpsertSnapshots(ctx context.Context, rows []model.MarketSnapshot) (UpsertResult, error) {
	return sendChunked(ctx, p.pool, rows, queueSnapshot)
}

func (p *Postgres) UpdatePrice(ctx context.Context, u model.PriceUpdate) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO market_data (ticker, price, last_updated)
		VALUES ($1, $2, $3)
		ON CONFLICT (ticker) DO UPDATE SET
			price = EXCLUDED.price,
			last_updated = EXCLUDED.last_updated
	`, u.Ticker, u.Price, u.LastUpdated)
	return err
}

func (p *Postgres) UpsertMetadata(ctx context.Context, rows []model.TickerMetadata) (UpsertResult, error) {
	return sendChunked(ctx, p.pool, rows, queueMetadata)
}

func (p *Postgres) InsertAlerts(ctx context.Context, alerts []model.HodAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	_, err := p.pool.CopyFrom(ctx,
		pgx.Identifier{"hod_alerts"},
		[]string{"id", "ticker", "alert_time", "price", "volume", "float", "alert_type"},
		pgx.CopyFromSlice(len(alerts), func(i int) ([]any, error) {
			return alertRow(alerts[i]), nil
		}),
	)
	return err
}

func (p *Postgres) AlertHighsSince(ctx context.Context, since time.Time) (map[string]float64, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT ticker, MAX(price)
		FROM hod_alerts
		WHERE alert_type = $1 AND alert_time >= $2 AND price IS NOT NULL
		GROUP BY ticker
	`, model.AlertTypeHOD, since)
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

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func queueSnapshot(b *pgx.Batch, s model.MarketSnapshot) {
	b.Queue(`
		INSERT INTO market_data (ticker, price, change_percent, volume, day_high, day_low, day_open, day_close, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (ticker) DO UPDATE SET
			price = EXCLUDED.price,
			change_percent = EXCLUDED.change_percent,
			volume = EXCLUDED.volume,
			day_high = EXCLUDED.day_high,
			day_low = EXCLUDED.day_low,
			day_open = EXCLUDED.day_open,
			day_close = EXCLUDED.day_close,
			last_updated = EXCLUDED.last_updated
	`, s.Ticker, s.Price, s.ChangePercent, s.Volume, s.DayHigh, s.DayLow, s.DayOpen, s.DayClose, s.LastUpdated)
}

// queueMetadata keeps the stored average volume when the row carries none.
func queueMetadata(b *pgx.Batch, m model.TickerMetadata) {
	b.Queue(`
		INSERT INTO ticker_metadata (ticker, name, exchange, market_cap, shares_outstanding, avg_10d_volume, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (ticker) DO UPDATE SET
			name = EXCLUDED.name,
			exchange = EXCLUDED.exchange,
			market_cap = EXCLUDED.market_cap,
			shares_outstanding = EXCLUDED.shares_outstanding,
			avg_10d_volume = COALESCE(EXCLUDED.avg_10d_volume, ticker_metadata.avg_10d_volume),
			updated_at = EXCLUDED.updated_at
	`, m.Ticker, m.Name, m.Exchange, m.MarketCap, m.SharesOutstanding, m.Avg10DVolume, m.UpdatedAt)
}

func alertRow(a model.HodAlert) []any {
	return []any{a.ID, a.Ticker, a.AlertTime, a.Price, a.Volume, a.Float, a.AlertType}
}

// batchSender is the part of *pgxpool.Pool that sendChunked needs.
type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// sendChunked queues one statement per row and sends them in chunks. A chunk
// runs as one implicit transaction, so any failing statement fails the whole
// chunk. The first error is returned alongside the counts.
func sendChunked[T any](ctx context.Context, pool batchSender, rows []T, queue func(*pgx.Batch, T)) (UpsertResult, error) {
	var (
		res      UpsertResult
		firstErr error
	)

	for start := 0; start < len(rows); start += batchChunk {
		chunk := rows[start:min(start+batchChunk, len(rows))]

		batch := &pgx.Batch{}
		for _, r := range chunk {
			queue(batch, r)
		}

		var chunkErr error
		results := pool.SendBatch(ctx, batch)
		for range chunk {
			if _, err := results.Exec(); err != nil && chunkErr == nil {
				chunkErr = err
			}
		}
		if err := results.Close(); err != nil && chunkErr == nil {
			chunkErr = err
		}

		if chunkErr != nil {
			res.Failed += len(chunk)
			if firstErr == nil {
				firstErr = chunkErr
			}
			continue
		}
		res.Upserted += len(chunk)
	}

	if firstErr != nil {
		return res, fmt.Errorf("%d of %d rows failed: %w", res.Failed, len(rows), firstErr)
	}
	return res, nil
}
