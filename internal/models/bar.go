// Package models defines the core domain entities: bars, snapshots,
// order books, anomalies, and alerts.
package models

import (
	"fmt"
	"math"
	"time"
)

// Bar is one OHLCV sample. Bars form an ordered sequence and are
// immutable once recorded.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Validate checks bar field constraints.
func (b *Bar) Validate() error {
	if b.Timestamp.IsZero() {
		return fmt.Errorf("bar timestamp must be set")
	}
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("bar fields must be finite")
		}
	}
	if b.Open < 0 || b.High < 0 || b.Low < 0 || b.Close < 0 {
		return fmt.Errorf("bar prices must not be negative")
	}
	if b.High < math.Max(b.Open, b.Close) {
		return fmt.Errorf("bar high %.4f below max(open, close)", b.High)
	}
	if b.Low > math.Min(b.Open, b.Close) {
		return fmt.Errorf("bar low %.4f above min(open, close)", b.Low)
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar volume must not be negative")
	}
	return nil
}

// Range returns the intraday high-low range.
func (b *Bar) Range() float64 {
	return b.High - b.Low
}
