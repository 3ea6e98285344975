package models

import (
	"time"
)

// AlertType identifies which rule produced an alert.
type AlertType string

const (
	AlertPriceSpike  AlertType = "price_spike"
	AlertVolumeSpike AlertType = "volume_spike"
	AlertCombo       AlertType = "combo_alert"
	AlertSmallCap    AlertType = "smallcap_alert"
	AlertCustom      AlertType = "custom_alert"
)

// Alert is a finalized, deduplicated alert record. Severity runs 1-10.
type Alert struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	Type          AlertType `json:"type"`
	Message       string    `json:"message"`
	Timestamp     time.Time `json:"timestamp"`
	Severity      int       `json:"severity"`
	TriggerValue  float64   `json:"trigger_value"`
	Price         float64   `json:"price"`
	Volume        float64   `json:"volume,omitempty"`
	ChangePercent float64   `json:"change_percent,omitempty"`
	VolumeRatio   float64   `json:"volume_ratio,omitempty"`
	MarketCap     float64   `json:"market_cap,omitempty"`
}

// ConditionOperator is a comparison operator in a custom rule predicate.
type ConditionOperator string

const (
	OpGT  ConditionOperator = ">"
	OpLT  ConditionOperator = "<"
	OpGTE ConditionOperator = ">="
	OpLTE ConditionOperator = "<="
	OpEQ  ConditionOperator = "=="
	OpNEQ ConditionOperator = "!="
)

// Condition is a user-defined predicate over a snapshot field.
type Condition struct {
	Field    string            `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    float64           `json:"value"`
}

// CustomRule binds a condition and message to a symbol. A missing field
// or malformed operator causes the rule to simply not match.
type CustomRule struct {
	Symbol    string    `json:"symbol"`
	Condition Condition `json:"condition"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	Active    bool      `json:"active"`
}
