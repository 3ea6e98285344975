// Package orderbook computes pressure, imbalance, and spoofing
// heuristics over Level-2 snapshots, real or synthesized.
package orderbook

import (
	"fmt"

	"capwatch/internal/models"
)

// Config holds analysis parameters.
type Config struct {
	PressureLevels       int     // book levels per side for pressure/imbalance
	LargeOrderMultiplier float64 // best-level size vs side mean that flags a large order
	ClusterMinOrders     int     // distinct orders at one price to consider clustering
	ClusterSizeMult      float64 // clustered size vs side mean that flags clustering
	WideSpreadPercent    float64 // spread as % of mid that flags a wide spread
}

// DefaultConfig returns the default analysis parameters.
func DefaultConfig() Config {
	return Config{
		PressureLevels:       10,
		LargeOrderMultiplier: 5.0,
		ClusterMinOrders:     4,
		ClusterSizeMult:      10.0,
		WideSpreadPercent:    0.5,
	}
}

// Analyzer is stateless per invocation; every call receives the full
// snapshot it needs.
type Analyzer struct {
	config Config
}

// New creates an analyzer with the given parameters.
func New(config Config) *Analyzer {
	if config.PressureLevels < 1 {
		config.PressureLevels = 10
	}
	return &Analyzer{config: config}
}

// Analyze validates the book and summarizes it. Crossed or degenerate
// books yield neutral metrics plus ErrInvalidOrderBook so callers can
// tell neutrality from emptiness.
func (a *Analyzer) Analyze(ob *models.OrderBookSnapshot) (models.BookMetrics, error) {
	neutral := models.BookMetrics{BidPressure: 50, AskPressure: 50, Simulated: ob.Simulated}
	if err := ob.Validate(); err != nil {
		return neutral, err
	}
	bid, ask := a.Pressure(ob)
	return models.BookMetrics{
		Spread:      a.Spread(ob),
		BidPressure: bid,
		AskPressure: ask,
		Imbalance:   a.OrderImbalance(ob),
		Simulated:   ob.Simulated,
	}, nil
}

// Spread returns best ask minus best bid, or 0 when either side is
// empty.
func (a *Analyzer) Spread(ob *models.OrderBookSnapshot) float64 {
	if len(ob.Bids) == 0 || len(ob.Asks) == 0 {
		return 0
	}
	return ob.BestAsk() - ob.BestBid()
}

// Pressure returns bid and ask pressure percentages over the top
// levels of each side. An empty book is neutral (50/50); a one-sided
// book follows the volume split (0/100).
func (a *Analyzer) Pressure(ob *models.OrderBookSnapshot) (bidPressure, askPressure float64) {
	bidVolume := sideVolume(ob.Bids, a.config.PressureLevels)
	askVolume := sideVolume(ob.Asks, a.config.PressureLevels)
	total := bidVolume + askVolume
	if total == 0 {
		return 50, 50
	}
	bidPressure = bidVolume / total * 100
	return bidPressure, 100 - bidPressure
}

// OrderImbalance weights top levels by proximity to the mid price and
// returns the weighted bid/ask imbalance in [-100, 100]. A one-sided
// or empty book is 0.
func (a *Analyzer) OrderImbalance(ob *models.OrderBookSnapshot) float64 {
	mid := ob.MidPrice()
	if mid == 0 {
		return 0
	}
	weightedBid := weightedSideVolume(ob.Bids, a.config.PressureLevels, mid)
	weightedAsk := weightedSideVolume(ob.Asks, a.config.PressureLevels, mid)
	total := weightedBid + weightedAsk
	if total == 0 {
		return 0
	}
	return (weightedBid - weightedAsk) / total * 100
}

// DetectSpoofing evaluates the spoofing heuristics independently; all
// may fire together. Results are advisory strings, not a verdict.
func (a *Analyzer) DetectSpoofing(ob *models.OrderBookSnapshot) []string {
	var flags []string
	if len(ob.Bids) == 0 || len(ob.Asks) == 0 {
		return flags
	}

	bestBid := bestLevel(ob.Bids, true)
	bestAsk := bestLevel(ob.Asks, false)
	avgBidSize := meanSize(ob.Bids)
	avgAskSize := meanSize(ob.Asks)

	if avgBidSize > 0 && bestBid.Size > avgBidSize*a.config.LargeOrderMultiplier {
		flags = append(flags, fmt.Sprintf("large bid order: %.0f shares at $%.2f", bestBid.Size, bestBid.Price))
	}
	if avgAskSize > 0 && bestAsk.Size > avgAskSize*a.config.LargeOrderMultiplier {
		flags = append(flags, fmt.Sprintf("large ask order: %.0f shares at $%.2f", bestAsk.Size, bestAsk.Price))
	}

	flags = append(flags, a.clusterFlags(ob.Bids, avgBidSize, "bid")...)
	flags = append(flags, a.clusterFlags(ob.Asks, avgAskSize, "ask")...)

	mid := ob.MidPrice()
	if mid > 0 {
		spread := a.Spread(ob)
		spreadPct := spread / mid * 100
		if spreadPct > a.config.WideSpreadPercent {
			flags = append(flags, fmt.Sprintf("wide spread: %.2f%% ($%.4f)", spreadPct, spread))
		}
	}
	return flags
}

// clusterFlags flags price levels with many distinct orders whose
// combined size dwarfs the side mean, evaluated per price per side.
func (a *Analyzer) clusterFlags(levels []models.BookLevel, avgSize float64, side string) []string {
	if avgSize == 0 {
		return nil
	}
	counts := make(map[float64]int)
	sums := make(map[float64]float64)
	for _, l := range levels {
		counts[l.Price]++
		sums[l.Price] += l.Size
	}
	var flags []string
	for price, n := range counts {
		if n >= a.config.ClusterMinOrders && sums[price] > avgSize*a.config.ClusterSizeMult {
			flags = append(flags, fmt.Sprintf("%s clustering: %d orders totaling %.0f shares at $%.2f",
				side, n, sums[price], price))
		}
	}
	return flags
}

// DepthLevel is one cumulative depth step.
type DepthLevel struct {
	Price      float64
	Size       float64
	Cumulative float64
}

// MarketDepth returns cumulative volume per level for both sides plus
// the bid/ask depth ratio.
func (a *Analyzer) MarketDepth(ob *models.OrderBookSnapshot, levels int) (bids, asks []DepthLevel, ratio float64) {
	bids = cumulativeDepth(ob.Bids, levels)
	asks = cumulativeDepth(ob.Asks, levels)
	var bidTotal, askTotal float64
	if len(bids) > 0 {
		bidTotal = bids[len(bids)-1].Cumulative
	}
	if len(asks) > 0 {
		askTotal = asks[len(asks)-1].Cumulative
	}
	if askTotal > 0 {
		ratio = bidTotal / askTotal
	}
	return bids, asks, ratio
}

func cumulativeDepth(levels []models.BookLevel, n int) []DepthLevel {
	if n > len(levels) {
		n = len(levels)
	}
	out := make([]DepthLevel, 0, n)
	var cum float64
	for _, l := range levels[:n] {
		cum += l.Size
		out = append(out, DepthLevel{Price: l.Price, Size: l.Size, Cumulative: cum})
	}
	return out
}

func sideVolume(levels []models.BookLevel, n int) float64 {
	if n > len(levels) {
		n = len(levels)
	}
	var total float64
	for _, l := range levels[:n] {
		total += l.Size
	}
	return total
}

func weightedSideVolume(levels []models.BookLevel, n int, mid float64) float64 {
	if n > len(levels) {
		n = len(levels)
	}
	var total float64
	for _, l := range levels[:n] {
		distance := l.Price - mid
		if distance < 0 {
			distance = -distance
		}
		weight := 1 / (1 + distance/mid*10)
		total += l.Size * weight
	}
	return total
}

// bestLevel returns the highest bid or lowest ask without assuming the
// side is sorted.
func bestLevel(levels []models.BookLevel, highest bool) models.BookLevel {
	best := levels[0]
	for _, l := range levels[1:] {
		if highest && l.Price > best.Price {
			best = l
		}
		if !highest && l.Price < best.Price {
			best = l
		}
	}
	return best
}

func meanSize(levels []models.BookLevel) float64 {
	if len(levels) == 0 {
		return 0
	}
	var total float64
	for _, l := range levels {
		total += l.Size
	}
	return total / float64(len(levels))
}
