package orderbook

import (
	"capwatch/internal/models"
)

// FlowStats summarizes order-flow churn across a sequence of book
// snapshots. It works at aggregated price-level granularity: a price
// present in a later snapshot but not the earlier one counts as an
// addition, the reverse as a cancellation. Individual order identity
// is not tracked.
type FlowStats struct {
	BidAdditions     int `json:"bid_additions"`
	AskAdditions     int `json:"ask_additions"`
	BidCancellations int `json:"bid_cancellations"`
	AskCancellations int `json:"ask_cancellations"`
}

// AnalyzeOrderFlow diffs consecutive snapshots by price-level set.
// Fewer than two snapshots is not enough to diff.
func (a *Analyzer) AnalyzeOrderFlow(history []models.OrderBookSnapshot) (FlowStats, error) {
	var flow FlowStats
	if len(history) < 2 {
		return flow, models.ErrInsufficientData
	}

	for i := 1; i < len(history); i++ {
		prevBids := priceSet(history[i-1].Bids)
		currBids := priceSet(history[i].Bids)
		added, cancelled := diffPriceSets(prevBids, currBids)
		flow.BidAdditions += added
		flow.BidCancellations += cancelled

		prevAsks := priceSet(history[i-1].Asks)
		currAsks := priceSet(history[i].Asks)
		added, cancelled = diffPriceSets(prevAsks, currAsks)
		flow.AskAdditions += added
		flow.AskCancellations += cancelled
	}
	return flow, nil
}

func priceSet(levels []models.BookLevel) map[float64]struct{} {
	set := make(map[float64]struct{}, len(levels))
	for _, l := range levels {
		set[l.Price] = struct{}{}
	}
	return set
}

func diffPriceSets(prev, curr map[float64]struct{}) (added, cancelled int) {
	for p := range curr {
		if _, ok := prev[p]; !ok {
			added++
		}
	}
	for p := range prev {
		if _, ok := curr[p]; !ok {
			cancelled++
		}
	}
	return added, cancelled
}
