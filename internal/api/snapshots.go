package api

import (
	"context"
	"fmt"
	"time"

	"github.com/polygon-io/client-go/rest/models"
)

// FetchSnapshots returns the bulk day snapshot for all US stocks.
func (c *Client) FetchSnapshots(ctx context.Context) ([]TickerSnapshot, error) {
	resp, err := c.rest.GetAllTickersSnapshot(ctx, &models.GetAllTickersSnapshotParams{
		Locale:     models.US,
		MarketType: models.Stocks,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch snapshots: %w", err)
	}

	out := make([]TickerSnapshot, 0, len(resp.Tickers))
	for _, t := range resp.Tickers {
		out = append(out, TickerSnapshot{
			Ticker:        t.Ticker,
			Open:          t.Day.Open,
			High:          t.Day.High,
			Low:           t.Day.Low,
			Close:         t.Day.Close,
			Volume:        t.Day.Volume,
			ChangePercent: t.TodaysChangePerc,
			Updated:       time.Time(t.Updated),
		})
	}
	return out, nil
}
