// Package model defines shared data types used across hodwatch.
//
// All types mirror the relational tables the components read and write:
//   - market_data: MarketSnapshot (full row), PriceUpdate (streamer write shape)
//   - ticker_metadata: TickerMetadata
//   - low_float_tickers: LowFloatTicker (read-only, filled by an external process)
//   - hod_alerts: HodAlert (append-only)
//
// Conventions:
//   - Tickers: case-sensitive strings, used verbatim as primary keys
//   - Prices: float64 dollars
//   - Timestamps: time.Time in UTC
package model
