package orderbook

import (
	"math"
	"math/rand"
	"time"

	"capwatch/internal/models"
)

// Synthesizer builds a plausible order book from recent price action
// when no real Level-2 feed is available. Books it produces are tagged
// Simulated so downstream consumers can discount their signal.
type Synthesizer struct {
	rng    *rand.Rand
	levels int
}

// NewSynthesizer creates a synthesizer with an injectable random
// source; pass a seeded rand.New for deterministic tests.
func NewSynthesizer(rng *rand.Rand, levels int) *Synthesizer {
	if levels < 1 {
		levels = 20
	}
	return &Synthesizer{rng: rng, levels: levels}
}

// Synthesize generates a book around the given price: spread scales
// with recent volatility (floored at 0.1%), level sizes are drawn from
// an exponential distribution scaled by volume.
func (s *Synthesizer) Synthesize(symbol string, price, volatility, volume float64, now time.Time) *models.OrderBookSnapshot {
	spreadPct := volatility * 0.1
	if spreadPct < 0.001 {
		spreadPct = 0.001
	}
	spread := price * spreadPct

	bids := make([]models.BookLevel, 0, s.levels)
	asks := make([]models.BookLevel, 0, s.levels)
	for i := 0; i < s.levels; i++ {
		step := float64(i) * spread * 0.1
		bidPrice := roundCents(price - spread/2 - step)
		askPrice := roundCents(price + spread/2 + step)
		if bidPrice <= 0 {
			break
		}
		bids = append(bids, models.BookLevel{
			Price:     bidPrice,
			Size:      s.levelSize(volume),
			Timestamp: now,
		})
		asks = append(asks, models.BookLevel{
			Price:     askPrice,
			Size:      s.levelSize(volume),
			Timestamp: now,
		})
	}

	return &models.OrderBookSnapshot{
		Symbol:    symbol,
		Bids:      bids,
		Asks:      asks,
		Timestamp: now,
		Simulated: true,
	}
}

func (s *Synthesizer) levelSize(volume float64) float64 {
	size := math.Floor(volume * s.rng.ExpFloat64() * 0.01)
	if size < 100 {
		size = 100
	}
	return size
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
