// Package poller runs a task on a fixed delay.
//
// The loop runs the task to completion, logs any error, then waits the full
// interval before the next run. Runs never overlap and a slow run is never
// followed by a catch-up burst. The snapshot ingestor and the HOD scanner are
// both driven this way.
package poller
