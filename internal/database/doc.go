// Package database provides PostgreSQL connection pool management.
//
// All hodwatch processes share one relational database holding market_data,
// ticker_metadata, low_float_tickers and hod_alerts. Each process opens its own
// pool; there is no in-process sharing between components.
package database
