// Package models defines the core domain entities: depth metrics, signals,
// price alerts, and recorded ticks.
package models

// SignalKind identifies a depth signal rule.
type SignalKind string

const (
	SignalThinDepth       SignalKind = "thin_depth"
	SignalLargeGap        SignalKind = "large_gap"
	SignalStrongImbalance SignalKind = "strong_imbalance"
)

// DepthMetrics is the snapshot of one market's order-book state used for a
// single evaluation. Recomputed from the book every cycle, never persisted
// as-is.
type DepthMetrics struct {
	TotalYesDepth float64 `json:"total_yes_depth"`
	TotalNoDepth  float64 `json:"total_no_depth"`
	TopGapYes     float64 `json:"top_gap_yes"`
	TopGapNo      float64 `json:"top_gap_no"`
	Imbalance     float64 `json:"imbalance"`
}

// Signal is a triggered rule outcome. The evaluator only emits triggered
// signals; absence of a signal is the non-trigger.
type Signal struct {
	Kind      SignalKind             `json:"signal_type"`
	Triggered bool                   `json:"triggered"`
	Reason    string                 `json:"reason"`
	Metrics   map[string]interface{} `json:"metrics"`
}
