// Package ingest implements the two market data ingestors.
//
// SnapshotIngestor runs one cycle per scheduler tick: load the universe from
// ticker_metadata, pull the bulk day snapshot, normalize it, keep the rows in
// the universe, and upsert them into market_data in one batch.
//
// MetadataIngestor is a finite job: enumerate symbols, fetch reference data
// for each with a fixed delay between requests, and upsert ticker_metadata in
// batches with a pause after each batch.
//
// Neither ingestor retries inside a cycle. Failures are logged and the next
// cycle (or the next run of the job) picks the rows up again.
package ingest
