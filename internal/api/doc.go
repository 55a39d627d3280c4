// Package api provides the market data REST client.
//
// Requests go through the polygon-io SDK. The client's transport adds
// retries with jittered exponential backoff on 429 and 5xx responses and can
// point the SDK at a non-default host (proxies, test servers).
//
// Endpoints used:
//   - GET /v2/snapshot/locale/us/markets/stocks/tickers (bulk snapshot)
//   - GET /v3/reference/tickers/{ticker} (reference details)
package api
