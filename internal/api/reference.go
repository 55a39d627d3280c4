package api

import (
	"context"
	"fmt"

	"github.com/polygon-io/client-go/rest/models"
)

// FetchReference returns reference details for one ticker. A ticker unknown
// to the API yields an error for which IsNotFound is true.
func (c *Client) FetchReference(ctx context.Context, ticker string) (Reference, error) {
	resp, err := c.rest.GetTickerDetails(ctx, &models.GetTickerDetailsParams{
		Ticker: ticker,
	})
	if err != nil {
		return Reference{}, fmt.Errorf("fetch reference %s: %w", ticker, err)
	}

	r := resp.Results
	shares := r.ShareClassSharesOutstanding
	if shares == 0 {
		shares = r.WeightedSharesOutstanding
	}

	return Reference{
		Ticker:            ticker,
		Name:              r.Name,
		Exchange:          r.PrimaryExchange,
		MarketCap:         r.MarketCap,
		SharesOutstanding: shares,
	}, nil
}
