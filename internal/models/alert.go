package models

import (
	"errors"
	"time"
)

// AlertDirection is the side of the target a price must cross.
type AlertDirection string

const (
	DirectionAbove AlertDirection = "above"
	DirectionBelow AlertDirection = "below"
)

// PriceAlert is a user-configured price threshold on one market. The JSON
// file store is the source of truth; in-memory copies are snapshots.
// Triggered records the most recent firing; alerts stay active until
// explicitly removed, with refires gated by the watcher's cooldown.
type PriceAlert struct {
	ID           string         `json:"id"`
	MarketID     string         `json:"market_id"`
	Direction    AlertDirection `json:"direction"`
	TargetPrice  float64        `json:"target_price"`
	CurrentPrice float64        `json:"current_price"`
	Triggered    bool           `json:"triggered"`
	TriggeredAt  *time.Time     `json:"triggered_at,omitempty"`
	Message      string         `json:"alert_message"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Validate checks alert field constraints.
func (a *PriceAlert) Validate() error {
	if a.MarketID == "" {
		return errors.New("market ID must not be empty")
	}
	if a.Direction != DirectionAbove && a.Direction != DirectionBelow {
		return errors.New("direction must be 'above' or 'below'")
	}
	if a.TargetPrice < 0 || a.TargetPrice > 1 {
		return errors.New("target price must be between 0 and 1")
	}
	return nil
}
