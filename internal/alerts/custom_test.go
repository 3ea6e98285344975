package alerts

import (
	"testing"
	"time"

	"capwatch/internal/models"
)

func rule(symbol, field string, op models.ConditionOperator, value float64) models.CustomRule {
	return models.CustomRule{
		Symbol:    symbol,
		Condition: models.Condition{Field: field, Operator: op, Value: value},
		Active:    true,
	}
}

func TestEvaluateCustomRules_Match(t *testing.T) {
	e, _ := newTestEngine()
	e.AddCustomRule(rule("ABCD", "price", models.OpGT, 12.0))
	e.AddCustomRule(rule("ABCD", "volume_ratio", models.OpGTE, 2.0))
	e.AddCustomRule(rule("WXYZ", "price", models.OpGT, 1.0)) // other symbol

	got := e.EvaluateCustomRules(testSnapshot())
	if len(got) != 2 {
		t.Fatalf("custom alerts = %d, want 2 (every matching rule fires)", len(got))
	}
	for _, a := range got {
		if a.Type != models.AlertCustom {
			t.Errorf("alert type = %s, want custom_alert", a.Type)
		}
		if a.ID == "" {
			t.Error("custom alert missing ID")
		}
	}
}

func TestEvaluateCustomRules_FailClosed(t *testing.T) {
	e, _ := newTestEngine()
	e.AddCustomRule(rule("ABCD", "no_such_field", models.OpGT, 1.0))
	e.AddCustomRule(rule("ABCD", "price", models.ConditionOperator("~="), 1.0))
	inactive := rule("ABCD", "price", models.OpGT, 1.0)
	inactive.Active = false
	e.AddCustomRule(inactive)

	if got := e.EvaluateCustomRules(testSnapshot()); len(got) != 0 {
		t.Errorf("malformed/inactive rules fired: %+v", got)
	}
}

func TestEvaluateCustomRules_NotCooldownSuppressed(t *testing.T) {
	e, clock := newTestEngine()
	e.AddCustomRule(rule("ABCD", "price", models.OpGT, 1.0))

	if got := e.EvaluateCustomRules(testSnapshot()); len(got) != 1 {
		t.Fatalf("first pass = %d alerts, want 1", len(got))
	}
	clock.advance(time.Second)
	if got := e.EvaluateCustomRules(testSnapshot()); len(got) != 1 {
		t.Errorf("second pass = %d alerts, want 1 (no cooldown for custom rules)", len(got))
	}
}

func TestMatches_Operators(t *testing.T) {
	snap := testSnapshot() // price 13.00
	cases := []struct {
		op    models.ConditionOperator
		value float64
		want  bool
	}{
		{models.OpGT, 12, true},
		{models.OpGT, 13, false},
		{models.OpLT, 14, true},
		{models.OpGTE, 13, true},
		{models.OpLTE, 12.99, false},
		{models.OpEQ, 13, true},
		{models.OpNEQ, 13, false},
	}
	for _, tc := range cases {
		c := models.Condition{Field: "price", Operator: tc.op, Value: tc.value}
		if got := matches(c, snap); got != tc.want {
			t.Errorf("price %s %v = %v, want %v", tc.op, tc.value, got, tc.want)
		}
	}
}

func TestRemoveCustomRules(t *testing.T) {
	e, _ := newTestEngine()
	e.AddCustomRule(rule("ABCD", "price", models.OpGT, 1.0))
	e.AddCustomRule(rule("ABCD", "volume", models.OpGT, 1.0))
	e.AddCustomRule(rule("WXYZ", "price", models.OpGT, 1.0))

	if got := e.RemoveCustomRules("ABCD"); got != 2 {
		t.Errorf("removed = %d, want 2", got)
	}
	if got := e.CustomRules(); len(got) != 1 || got[0].Symbol != "WXYZ" {
		t.Errorf("remaining rules = %+v", got)
	}
}
