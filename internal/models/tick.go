package models

import "time"

// Tick is one recorded market observation. Owned exclusively by the
// recorder's queue from acceptance until written, then discarded.
type Tick struct {
	MarketID     string        `json:"market_id"`
	YesPrice     float64       `json:"yes_price"`
	NoPrice      float64       `json:"no_price"`
	Volume       float64       `json:"volume"`
	DepthSummary *DepthMetrics `json:"depth_summary,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}
