package models

import "errors"

// Sentinel errors shared by the evaluation core. Callers distinguish
// "nothing happened" (nil result, nil error) from "input was unusable"
// (one of these, possibly wrapped with detail).
var (
	// ErrInsufficientData signals too few samples for a rolling computation.
	// The affected analysis returns empty; sibling analyses proceed.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrMalformedSnapshot signals a quote snapshot with missing or
	// non-finite fields. The whole evaluation for that symbol is skipped.
	ErrMalformedSnapshot = errors.New("malformed snapshot")

	// ErrInvalidOrderBook signals a crossed or otherwise degenerate book.
	// Pressure and imbalance fall back to neutral defaults.
	ErrInvalidOrderBook = errors.New("invalid order book")
)
