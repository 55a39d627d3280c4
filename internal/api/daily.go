package api

import (
	"context"
	"fmt"
	"time"

	"github.com/polygon-io/client-go/rest/models"
)

// FetchDailyVolumes returns each ticker's volume for one trading day. A
// non-trading day returns an empty map.
func (c *Client) FetchDailyVolumes(ctx context.Context, day time.Time) (map[string]float64, error) {
	adjusted := true
	resp, err := c.rest.GetGroupedDailyAggs(ctx, &models.GetGroupedDailyAggsParams{
		Locale:     models.US,
		MarketType: models.Stocks,
		Date:       models.Date(day),
		Adjusted:   &adjusted,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch daily volumes %s: %w", day.Format(time.DateOnly), err)
	}

	out := make(map[string]float64, len(resp.Results))
	for _, a := range resp.Results {
		if a.Ticker != "" {
			out[a.Ticker] = a.Volume
		}
	}
	return out, nil
}
