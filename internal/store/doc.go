// Package store implements the relational store every hodwatch component reads
// from and writes to.
//
// Tables:
//   - ticker_metadata: valid universe, upserted by ticker
//   - market_data: latest snapshot per ticker, upserted by ticker
//   - low_float_tickers: watch-list, read-only here
//   - hod_alerts: append-only alert log
//
// Writes are keyed upserts (last write wins) or plain inserts; no component
// takes locks or opens long transactions. Bulk reads are offset-paginated and
// ordered by ticker so pages are stable while the table is quiet.
//
// Two backends share the same semantics: Postgres (pgx) for deployments and
// SQLite (modernc) for single-host setups and tests.
package store
