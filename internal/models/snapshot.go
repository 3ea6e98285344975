package models

import (
	"fmt"
	"math"
	"time"
)

// Snapshot is the latest-quote record for one symbol, produced by the
// market data collaborator before the core is invoked.
type Snapshot struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	PreviousClose float64   `json:"previous_close"`
	PriceChange   float64   `json:"price_change"`
	ChangePercent float64   `json:"change_percent"`
	Volume        float64   `json:"volume"`
	AvgVolume     float64   `json:"avg_volume"`
	VolumeRatio   float64   `json:"volume_ratio"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Open          float64   `json:"open"`
	Timestamp     time.Time `json:"timestamp"`
	MarketCap     float64   `json:"market_cap"`
	FloatShares   float64   `json:"float_shares"`
}

// Validate checks snapshot field constraints. A failing snapshot must be
// skipped for the whole evaluation cycle, not partially used.
func (s *Snapshot) Validate() error {
	if s.Symbol == "" {
		return fmt.Errorf("%w: symbol is empty", ErrMalformedSnapshot)
	}
	for name, v := range map[string]float64{
		"price":          s.Price,
		"previous_close": s.PreviousClose,
		"change_percent": s.ChangePercent,
		"volume":         s.Volume,
		"volume_ratio":   s.VolumeRatio,
		"market_cap":     s.MarketCap,
		"float_shares":   s.FloatShares,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrMalformedSnapshot, name)
		}
	}
	if s.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrMalformedSnapshot)
	}
	if s.Volume < 0 {
		return fmt.Errorf("%w: volume must not be negative", ErrMalformedSnapshot)
	}
	return nil
}

// SymbolRow is one line of a leaderboard query: the latest persisted
// snapshot values for a symbol within a reporting window.
type SymbolRow struct {
	Symbol        string
	Price         float64
	ChangePercent float64
	Volume        float64
	VolumeRatio   float64
}

// Field returns a named numeric field for custom rule predicates.
// Unknown names report ok=false so malformed rules fail closed.
func (s *Snapshot) Field(name string) (float64, bool) {
	switch name {
	case "price":
		return s.Price, true
	case "previous_close":
		return s.PreviousClose, true
	case "price_change":
		return s.PriceChange, true
	case "change_percent":
		return s.ChangePercent, true
	case "volume":
		return s.Volume, true
	case "avg_volume":
		return s.AvgVolume, true
	case "volume_ratio":
		return s.VolumeRatio, true
	case "high":
		return s.High, true
	case "low":
		return s.Low, true
	case "open":
		return s.Open, true
	case "market_cap":
		return s.MarketCap, true
	case "float_shares":
		return s.FloatShares, true
	}
	return 0, false
}
