package alerts

import (
	"fmt"

	"github.com/google/uuid"

	"capwatch/internal/models"
)

// AddCustomRule registers a user-defined rule. Rules are stored as
// given; validation happens at match time so a bad rule degrades to
// never matching instead of being rejected up front.
func (e *Engine) AddCustomRule(rule models.CustomRule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = e.now()
	}
	e.custom = append(e.custom, rule)
}

// RemoveCustomRules drops all rules for a symbol and returns how many
// were removed.
func (e *Engine) RemoveCustomRules(symbol string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	kept := e.custom[:0]
	removed := 0
	for _, r := range e.custom {
		if r.Symbol == symbol {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	e.custom = kept
	return removed
}

// CustomRules returns a copy of the registered rules.
func (e *Engine) CustomRules() []models.CustomRule {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]models.CustomRule, len(e.custom))
	copy(out, e.custom)
	return out
}

// EvaluateCustomRules runs every active rule bound to the snapshot's
// symbol. Each match produces its own alert; custom rules do not
// compete with the built-in rules and are not cooldown-suppressed.
// A rule with a missing field or unknown operator simply does not
// match.
func (e *Engine) EvaluateCustomRules(snap models.Snapshot) []models.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	var out []models.Alert
	for _, rule := range e.custom {
		if !rule.Active || rule.Symbol != snap.Symbol {
			continue
		}
		if !matches(rule.Condition, snap) {
			continue
		}
		value, _ := snap.Field(rule.Condition.Field)
		alert := models.Alert{
			ID:           uuid.NewString(),
			Symbol:       snap.Symbol,
			Type:         models.AlertCustom,
			Message:      customMessage(rule, value),
			Timestamp:    now,
			Severity:     6,
			TriggerValue: value,
			Price:        snap.Price,
		}
		e.recordLocked(alert)
		out = append(out, alert)
	}
	return out
}

// matches evaluates a condition against a snapshot, failing closed on
// unknown fields or operators.
func matches(c models.Condition, snap models.Snapshot) bool {
	value, ok := snap.Field(c.Field)
	if !ok {
		return false
	}
	switch c.Operator {
	case models.OpGT:
		return value > c.Value
	case models.OpLT:
		return value < c.Value
	case models.OpGTE:
		return value >= c.Value
	case models.OpLTE:
		return value <= c.Value
	case models.OpEQ:
		return value == c.Value
	case models.OpNEQ:
		return value != c.Value
	default:
		return false
	}
}

func customMessage(rule models.CustomRule, value float64) string {
	if rule.Message != "" {
		return rule.Message
	}
	return fmt.Sprintf("%s: %s %s %g (now %g)",
		rule.Symbol, rule.Condition.Field, rule.Condition.Operator, rule.Condition.Value, value)
}
