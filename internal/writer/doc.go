// Package writer accumulates rows into fixed-size batches and hands each full
// batch to a flush function.
//
// A flush takes ownership of the accumulated rows and starts a fresh batch,
// so a failed flush never replays rows into the next one. Callers decide what
// a flush does (upsert, throttle) and whether a failure is fatal.
package writer
