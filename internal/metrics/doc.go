// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Snapshot and metadata rows written, dropped, or missing
//   - Stream state, applied and rejected trades, reconnects
//   - Alerts raised and high-water-mark size
//   - Store errors by operation
//   - Scheduled task durations
package metrics
