package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rickgao/hodwatch/internal/model"
)

// Store is the full surface of the relational store.
type Store interface {
	// TickerMetadataPage returns tickers from ticker_metadata ordered by ticker.
	TickerMetadataPage(ctx context.Context, offset, limit int) ([]string, error)

	// SnapshotSymbolsPage returns tickers from market_data ordered by ticker.
	SnapshotSymbolsPage(ctx context.Context, offset, limit int) ([]string, error)

	// LowFloatPage returns watch-list rows ordered by ticker.
	LowFloatPage(ctx context.Context, offset, limit int) ([]model.LowFloatTicker, error)

	// SnapshotsFor returns the market_data rows for the given tickers in one
	// query. Tickers without a row are absent from the result.
	SnapshotsFor(ctx context.Context, tickers []string) ([]model.MarketSnapshot, error)

	// UpsertSnapshots writes full snapshot rows keyed by ticker. The
	// average daily volume column is left untouched.
	UpsertSnapshots(ctx context.Context, rows []model.MarketSnapshot) (UpsertResult, error)

	// UpdatePrice writes price and last_updated only, creating the row when
	// the ticker has never been seen.
	UpdatePrice(ctx context.Context, u model.PriceUpdate) error

	// UpsertMetadata writes reference rows keyed by ticker.
	UpsertMetadata(ctx context.Context, rows []model.TickerMetadata) (UpsertResult, error)

	// InsertAlerts appends alerts in a single statement. Either all rows are
	// written or none.
	InsertAlerts(ctx context.Context, alerts []model.HodAlert) error

	// AlertHighsSince returns the highest alerted HOD price per ticker for
	// alerts at or after since.
	AlertHighsSince(ctx context.Context, since time.Time) (map[string]float64, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connections.
	Close()
}

// UpsertResult reports the outcome of a batch upsert. Failed rows are
// dropped; callers retry on their next cycle.
type UpsertResult struct {
	Upserted int
	Failed   int
}

// PageFunc fetches one page of rows starting at offset.
type PageFunc[T any] func(ctx context.Context, offset, limit int) ([]T, error)

// Paginate reads every page from fetch. It stops at the first page holding
// fewer than pageSize rows.
func Paginate[T any](ctx context.Context, pageSize int, fetch PageFunc[T]) ([]T, error) {
	if pageSize < 1 {
		return nil, fmt.Errorf("page size must be >= 1, got %d", pageSize)
	}

	var all []T
	for offset := 0; ; offset += pageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := fetch(ctx, offset, pageSize)
		if err != nil {
			return nil, fmt.Errorf("page at offset %d: %w", offset, err)
		}
		all = append(all, page...)

		if len(page) < pageSize {
			return all, nil
		}
	}
}
