package api

import "time"

// TickerSnapshot is one row of the bulk snapshot, before normalization.
type TickerSnapshot struct {
	Ticker        string
	Open          float64
	High          float64
	Low           float64
	Close         float64
	Volume        float64
	ChangePercent float64
	Updated       time.Time // zero when the upstream omitted it
}

// Reference holds the reference attributes of one ticker.
type Reference struct {
	Ticker            string
	Name              string
	Exchange          string
	MarketCap         float64
	SharesOutstanding int64
}
