package depth

import (
	"fmt"

	"depthwatch/internal/models"
)

// DetectSignals evaluates the depth rules against metrics and returns the
// triggered signals in fixed rule order: thin_depth, large_gap,
// strong_imbalance. Rules are independent; all applicable rules fire.
// Comparisons are strict, so a metric exactly equal to its threshold never
// triggers.
func DetectSignals(m models.DepthMetrics, cfg Thresholds) []models.Signal {
	var signals []models.Signal

	totalDepth := m.TotalYesDepth + m.TotalNoDepth
	if totalDepth < cfg.MinDepth {
		signals = append(signals, models.Signal{
			Kind:      models.SignalThinDepth,
			Triggered: true,
			Reason: fmt.Sprintf("Thin orderbook depth: %.2f < %.2f",
				totalDepth, cfg.MinDepth),
			Metrics: map[string]interface{}{
				"total_depth": totalDepth,
				"threshold":   cfg.MinDepth,
				"yes_depth":   m.TotalYesDepth,
				"no_depth":    m.TotalNoDepth,
			},
		})
	}

	maxGap := m.TopGapYes
	if m.TopGapNo > maxGap {
		maxGap = m.TopGapNo
	}
	if maxGap > cfg.MaxGap {
		signals = append(signals, models.Signal{
			Kind:      models.SignalLargeGap,
			Triggered: true,
			Reason: fmt.Sprintf("Large bid-ask gap: %.4f > %.4f",
				maxGap, cfg.MaxGap),
			Metrics: map[string]interface{}{
				"max_gap":   maxGap,
				"threshold": cfg.MaxGap,
				"gap_yes":   m.TopGapYes,
				"gap_no":    m.TopGapNo,
			},
		})
	}

	absImbalance := m.Imbalance
	if absImbalance < 0 {
		absImbalance = -absImbalance
	}
	if absImbalance > cfg.ImbalanceRatio {
		deeperSide := "YES"
		if m.Imbalance < 0 {
			deeperSide = "NO"
		}
		signals = append(signals, models.Signal{
			Kind:      models.SignalStrongImbalance,
			Triggered: true,
			Reason: fmt.Sprintf("Strong depth imbalance: %s side deeper by %.2f (> %.2f)",
				deeperSide, absImbalance, cfg.ImbalanceRatio),
			Metrics: map[string]interface{}{
				"imbalance":     m.Imbalance,
				"abs_imbalance": absImbalance,
				"threshold":     cfg.ImbalanceRatio,
				"deeper_side":   deeperSide,
				"yes_depth":     m.TotalYesDepth,
				"no_depth":      m.TotalNoDepth,
			},
		})
	}

	return signals
}
