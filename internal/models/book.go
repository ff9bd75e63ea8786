package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// Level is a single order-book price level. The CLOB API encodes price and
// size as strings; unparseable or missing fields decode to zero rather than
// failing, so a malformed level still contributes its size to depth.
type Level struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// UnmarshalJSON accepts both string-encoded and numeric price/size fields.
func (l *Level) UnmarshalJSON(data []byte) error {
	var raw struct {
		Price json.RawMessage `json:"price"`
		Size  json.RawMessage `json:"size"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	l.Price = parseLevelField(raw.Price)
	l.Size = parseLevelField(raw.Size)
	return nil
}

func parseLevelField(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return f
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	return 0
}

// OrderBook is the raw book for one market's YES outcome, plus the NO
// outcome's book when independently available. Empty NO sides mean the
// complementary-market identity applies.
type OrderBook struct {
	MarketID string  `json:"market_id"`
	Bids     []Level `json:"bids"`
	Asks     []Level `json:"asks"`
	NoBids   []Level `json:"no_bids,omitempty"`
	NoAsks   []Level `json:"no_asks,omitempty"`
}

// BookUpdate is a push update from the subscription feed with top-of-book
// prices. Nil pointers indicate an empty side.
type BookUpdate struct {
	MarketID   string
	YesBestBid *float64
	YesBestAsk *float64
	NoBestBid  *float64
	NoBestAsk  *float64
	Timestamp  time.Time
}
