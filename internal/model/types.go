package model

import (
	"time"

	"github.com/google/uuid"
)

// AlertTypeHOD is the alert_type written for high-of-day breakouts.
const AlertTypeHOD = "HOD"

// -----------------------------------------------------------------------------
// Market Data
// -----------------------------------------------------------------------------

// MarketSnapshot is the latest day summary for one ticker (one row per ticker).
type MarketSnapshot struct {
	Ticker         string    // Primary key
	Price          float64   // Latest price
	ChangePercent  float64   // Change vs previous close, percent
	Volume         float64   // Day volume
	DayHigh        float64   // Day high (0 if unknown)
	DayLow         float64   // Day low
	DayOpen        float64   // Day open
	DayClose       float64   // Day close (latest bar close)
	LastUpdated    time.Time // Upstream update time, or ingestion time if implausible
	AvgDailyVolume *float64  // Optional, never written by the ingestors
}

// PriceUpdate is a price-only write to market_data. Volume and the day range
// stay owned by the snapshot ingestor.
type PriceUpdate struct {
	Ticker      string
	Price       float64
	LastUpdated time.Time
}

// -----------------------------------------------------------------------------
// Reference Data
// -----------------------------------------------------------------------------

// TickerMetadata holds reference attributes for a ticker. The set of rows
// defines the valid universe.
type TickerMetadata struct {
	Ticker            string
	Name              string
	Exchange          string
	MarketCap         float64
	SharesOutstanding int64
	Avg10DVolume      *float64 // Mean daily volume over recent sessions; nil keeps the stored value
	UpdatedAt         time.Time
}

// LowFloatTicker is a watch-list entry produced by an external filter.
type LowFloatTicker struct {
	Ticker        string
	Float         float64
	Volume        float64
	Price         float64
	PercentChange float64
	FilteredAt    time.Time
}

// -----------------------------------------------------------------------------
// Alerts
// -----------------------------------------------------------------------------

// HodAlert is an immutable high-of-day alert record.
type HodAlert struct {
	ID        uuid.UUID
	Ticker    string
	AlertTime time.Time
	Price     float64 // Price that set the new high
	Volume    float64 // Day volume at alert time
	Float     float64 // Float from the watch-list entry
	AlertType string
}
