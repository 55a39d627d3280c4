// Package scanner detects high-of-day breakouts on the low-float watch-list.
//
// Each scan loads the watch-list, looks up the latest market_data row for
// every entry, and raises an alert when the price is strictly above the last
// alerted high. The last alerted high lives in memory and starts from the
// stored day high; a breakout raises it to the breakout price, so a ticker
// alerts again only when it makes a new high.
//
// Alerts from one scan are written in a single insert. A failed insert is
// logged and dropped; the marks stay raised.
package scanner
