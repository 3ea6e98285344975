package models

import (
	"fmt"
	"time"
)

// BookLevel is one aggregated price level of an order book side.
type BookLevel struct {
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderBookSnapshot is a point-in-time Level-2 view: bids sorted
// descending, asks ascending. Simulated marks books synthesized from
// price action rather than a real feed, so downstream consumers can
// discount their signal.
type OrderBookSnapshot struct {
	Symbol    string      `json:"symbol"`
	Bids      []BookLevel `json:"bids"`
	Asks      []BookLevel `json:"asks"`
	Timestamp time.Time   `json:"timestamp"`
	Simulated bool        `json:"simulated"`
}

// BestBid returns the highest bid price, or 0 if the side is empty.
func (ob *OrderBookSnapshot) BestBid() float64 {
	best := 0.0
	for _, l := range ob.Bids {
		if l.Price > best {
			best = l.Price
		}
	}
	return best
}

// BestAsk returns the lowest ask price, or 0 if the side is empty.
func (ob *OrderBookSnapshot) BestAsk() float64 {
	best := 0.0
	for _, l := range ob.Asks {
		if best == 0 || l.Price < best {
			best = l.Price
		}
	}
	return best
}

// MidPrice returns the midpoint of best bid and ask, or 0 for a
// one-sided or empty book.
func (ob *OrderBookSnapshot) MidPrice() float64 {
	bid, ask := ob.BestBid(), ob.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return (bid + ask) / 2
}

// BookMetrics is the summarized output of an order-book analysis pass,
// consumed by the squeeze-probability calculation.
type BookMetrics struct {
	Spread      float64 `json:"spread"`
	BidPressure float64 `json:"bid_pressure"`
	AskPressure float64 `json:"ask_pressure"`
	Imbalance   float64 `json:"imbalance"`
	Simulated   bool    `json:"simulated"`
}

// Validate rejects crossed or degenerate books. Violating snapshots
// must be rejected, not silently used.
func (ob *OrderBookSnapshot) Validate() error {
	if ob.Symbol == "" {
		return fmt.Errorf("%w: symbol is empty", ErrInvalidOrderBook)
	}
	for _, l := range ob.Bids {
		if l.Price <= 0 || l.Size < 0 {
			return fmt.Errorf("%w: bad bid level %.4f x %.0f", ErrInvalidOrderBook, l.Price, l.Size)
		}
	}
	for _, l := range ob.Asks {
		if l.Price <= 0 || l.Size < 0 {
			return fmt.Errorf("%w: bad ask level %.4f x %.0f", ErrInvalidOrderBook, l.Price, l.Size)
		}
	}
	if len(ob.Bids) > 0 && len(ob.Asks) > 0 && ob.BestBid() > ob.BestAsk() {
		return fmt.Errorf("%w: crossed book, best bid %.4f > best ask %.4f",
			ErrInvalidOrderBook, ob.BestBid(), ob.BestAsk())
	}
	return nil
}
