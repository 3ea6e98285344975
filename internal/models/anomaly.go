package models

import (
	"time"
)

// AnomalyKind identifies which analysis produced an anomaly.
type AnomalyKind string

const (
	AnomalyVolume      AnomalyKind = "volume"
	AnomalyPrice       AnomalyKind = "price"
	AnomalyGap         AnomalyKind = "gap"
	AnomalyVolatility  AnomalyKind = "intraday_volatility"
	AnomalyCorrelation AnomalyKind = "correlation"
	AnomalyNews        AnomalyKind = "news"
)

// Anomaly is one flagged observation from a detector pass. Metrics holds
// the named numeric evidence for the flag (ratio, zscore, gap_percent and
// so on, depending on Kind).
type Anomaly struct {
	Timestamp time.Time          `json:"timestamp"`
	Kind      AnomalyKind        `json:"kind"`
	Symbol    string             `json:"symbol"`
	Metrics   map[string]float64 `json:"metrics"`
	Detail    string             `json:"detail,omitempty"`
	Severity  int                `json:"severity,omitempty"`
}

// SqueezeAnalysis is the short-squeeze probability assessment built from
// a live snapshot plus optional order-book pressure.
type SqueezeAnalysis struct {
	Probability       int                `json:"squeeze_probability"`
	BullishIndicators []string           `json:"bullish_indicators"`
	RiskFactors       []string           `json:"risk_factors"`
	Metrics           map[string]float64 `json:"metrics"`
}
