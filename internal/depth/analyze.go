// Package depth analyzes order-book depth metrics and evaluates the
// rule-based depth signals against configured thresholds.
package depth

import (
	"sort"

	"depthwatch/internal/models"
)

// Analyze computes depth metrics from a single YES order book. For binary
// markets the NO side is complementary: buying YES is selling NO, so NO
// depth equals YES depth and the NO gap equals the YES gap. When the book
// carries independent NO sides, AnalyzeNormalized is used instead.
func Analyze(book *models.OrderBook) models.DepthMetrics {
	var m models.DepthMetrics

	total := sideDepth(book.Bids) + sideDepth(book.Asks)
	m.TotalYesDepth = total
	m.TotalNoDepth = total

	if len(book.Bids) > 0 && len(book.Asks) > 0 {
		gap := bestAsk(book.Asks) - bestBid(book.Bids)
		m.TopGapYes = gap
		// NO prices are 1-complements: no_gap = (1-best_bid) - (1-best_ask).
		m.TopGapNo = gap
	}

	m.Imbalance = m.TotalYesDepth - m.TotalNoDepth
	return m
}

// AnalyzeNormalized computes depth metrics from per-outcome books. Figures
// are used as given when both outcomes are independently available; an empty
// NO book falls back to the complementary identity.
func AnalyzeNormalized(yesBids, yesAsks, noBids, noAsks []models.Level) models.DepthMetrics {
	var m models.DepthMetrics

	m.TotalYesDepth = sideDepth(yesBids) + sideDepth(yesAsks)
	if len(yesBids) > 0 && len(yesAsks) > 0 {
		m.TopGapYes = bestAsk(yesAsks) - bestBid(yesBids)
	}

	if len(noBids) == 0 && len(noAsks) == 0 {
		m.TotalNoDepth = m.TotalYesDepth
		m.TopGapNo = m.TopGapYes
	} else {
		m.TotalNoDepth = sideDepth(noBids) + sideDepth(noAsks)
		if len(noBids) > 0 && len(noAsks) > 0 {
			m.TopGapNo = bestAsk(noAsks) - bestBid(noBids)
		}
	}

	m.Imbalance = m.TotalYesDepth - m.TotalNoDepth
	return m
}

// BestBid returns the highest bid price; ok is false for an empty side.
func BestBid(bids []models.Level) (float64, bool) {
	if len(bids) == 0 {
		return 0, false
	}
	return bestBid(bids), true
}

// BestAsk returns the lowest ask price; ok is false for an empty side.
func BestAsk(asks []models.Level) (float64, bool) {
	if len(asks) == 0 {
		return 0, false
	}
	return bestAsk(asks), true
}

// sideDepth sums level sizes. Zero-size levels contribute zero; levels with
// a missing price still count their size.
func sideDepth(levels []models.Level) float64 {
	var total float64
	for _, l := range levels {
		total += l.Size
	}
	return total
}

// bestBid returns the highest bid price. A level with a missing price sorts
// as zero, which can produce a degenerate (even negative) gap; that is
// accepted as observed, not corrected.
func bestBid(bids []models.Level) float64 {
	sorted := make([]models.Level, len(bids))
	copy(sorted, bids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Price > sorted[j].Price })
	return sorted[0].Price
}

// bestAsk returns the lowest ask price.
func bestAsk(asks []models.Level) float64 {
	sorted := make([]models.Level, len(asks))
	copy(sorted, asks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })
	return sorted[0].Price
}
