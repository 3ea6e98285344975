package alerts

import (
	"errors"
	"testing"
	"time"

	"capwatch/internal/models"
)

func testSnapshot() models.Snapshot {
	return models.Snapshot{
		Symbol:        "ABCD",
		Price:         13.00,
		PreviousClose: 10.00,
		PriceChange:   3.00,
		ChangePercent: 30.0,
		Volume:        200000,
		AvgVolume:     100000,
		VolumeRatio:   2.0,
		Timestamp:     time.Now(),
		MarketCap:     2e9,
	}
}

// fakeClock steps the engine through time without sleeping.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestEngine() (*Engine, *fakeClock) {
	e := New(DefaultConfig())
	clock := &fakeClock{t: time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)}
	e.SetClock(clock.now)
	return e, clock
}

func TestEvaluate_CooldownSuppression(t *testing.T) {
	e, clock := newTestEngine()
	snap := testSnapshot()

	first, err := e.Evaluate(snap)
	if err != nil || first == nil {
		t.Fatalf("first evaluation: alert=%v err=%v, want an alert", first, err)
	}
	if first.Type != models.AlertPriceSpike {
		t.Fatalf("alert type = %s, want price_spike", first.Type)
	}

	clock.advance(100 * time.Second)
	repeat, err := e.Evaluate(snap)
	if err != nil {
		t.Fatalf("repeat evaluation: %v", err)
	}
	if repeat != nil {
		t.Errorf("alert fired at t=100s inside 300s cooldown: %+v", repeat)
	}

	clock.advance(201 * time.Second)
	again, err := e.Evaluate(snap)
	if err != nil || again == nil {
		t.Fatalf("evaluation after cooldown: alert=%v err=%v, want a new alert", again, err)
	}
	if again.ID == first.ID {
		t.Error("re-fired alert reused the original ID")
	}
}

func TestEvaluate_DirectionNotSuppressed(t *testing.T) {
	e, clock := newTestEngine()

	up := testSnapshot()
	if a, _ := e.Evaluate(up); a == nil {
		t.Fatal("up-move did not fire")
	}

	clock.advance(10 * time.Second)
	down := testSnapshot()
	down.ChangePercent = -30.0
	down.Price = 7.00
	a, err := e.Evaluate(down)
	if err != nil || a == nil {
		t.Fatalf("reversal: alert=%v err=%v, want an alert (separate cooldown key)", a, err)
	}
}

func TestEvaluate_SingleWinner(t *testing.T) {
	e, _ := newTestEngine()

	// change 25 -> price severity 6; ratio 3 + change 15 -> combo
	// severity 8. Only the combo must fire and enter the history.
	snap := testSnapshot()
	snap.ChangePercent = 25.0
	snap.VolumeRatio = 3.0

	alert, err := e.Evaluate(snap)
	if err != nil || alert == nil {
		t.Fatalf("Evaluate: alert=%v err=%v", alert, err)
	}
	if alert.Type != models.AlertCombo {
		t.Errorf("winner = %s, want combo_alert", alert.Type)
	}
	if alert.Severity != 8 {
		t.Errorf("severity = %d, want 8", alert.Severity)
	}
	if h := e.History(); len(h) != 1 || h[0].Type != models.AlertCombo {
		t.Errorf("history = %+v, want exactly the combo alert", h)
	}
}

func TestEvaluate_LoserKeyStaysIdle(t *testing.T) {
	e, clock := newTestEngine()

	// Combo (severity 8) beats price (severity 6). The price key must
	// stay idle, so a later price-only snapshot still fires.
	both := testSnapshot()
	both.ChangePercent = 25.0
	both.VolumeRatio = 3.0
	if a, _ := e.Evaluate(both); a == nil || a.Type != models.AlertCombo {
		t.Fatalf("setup: combo did not win, got %+v", a)
	}

	clock.advance(10 * time.Second)
	priceOnly := testSnapshot()
	priceOnly.ChangePercent = 25.0
	priceOnly.VolumeRatio = 1.0
	a, err := e.Evaluate(priceOnly)
	if err != nil || a == nil {
		t.Fatalf("price-only: alert=%v err=%v, want a price alert", a, err)
	}
	if a.Type != models.AlertPriceSpike {
		t.Errorf("alert type = %s, want price_spike", a.Type)
	}
}

func TestEvaluate_SeverityTierOrder(t *testing.T) {
	// Tie at severity 7: price (change 35) is evaluated before small
	// cap, so it wins.
	e, _ := newTestEngine()
	snap := testSnapshot()
	snap.ChangePercent = 35.0
	snap.MarketCap = 5e8

	alert, err := e.Evaluate(snap)
	if err != nil || alert == nil {
		t.Fatalf("Evaluate: alert=%v err=%v", alert, err)
	}
	if alert.Type != models.AlertPriceSpike {
		t.Errorf("tie winner = %s, want price_spike (rule order)", alert.Type)
	}
}

func TestPriceSeverity_Monotonic(t *testing.T) {
	changes := []float64{25, 30, 35, 49, 50, 74, 75, 99, 100, 250}
	prev := 0
	for _, c := range changes {
		s := priceSeverity(c)
		if s < prev {
			t.Errorf("severity(%v) = %d < severity of smaller change %d", c, s, prev)
		}
		prev = s
	}
	if priceSeverity(25) != 6 || priceSeverity(100) != 10 {
		t.Errorf("tier anchors wrong: sev(25)=%d sev(100)=%d", priceSeverity(25), priceSeverity(100))
	}
}

func TestVolumeSeverity_Tiers(t *testing.T) {
	cases := []struct {
		ratio float64
		want  int
	}{
		{5, 5}, {10, 6}, {15, 7}, {20, 8}, {30, 9}, {50, 10}, {120, 10},
	}
	for _, tc := range cases {
		if got := volumeSeverity(tc.ratio); got != tc.want {
			t.Errorf("volumeSeverity(%v) = %d, want %d", tc.ratio, got, tc.want)
		}
	}
}

func TestEvaluate_MalformedSnapshot(t *testing.T) {
	e, _ := newTestEngine()
	snap := testSnapshot()
	snap.Price = 0

	alert, err := e.Evaluate(snap)
	if !errors.Is(err, models.ErrMalformedSnapshot) {
		t.Fatalf("got %v, want ErrMalformedSnapshot", err)
	}
	if alert != nil {
		t.Errorf("malformed snapshot produced an alert: %+v", alert)
	}
	if len(e.History()) != 0 {
		t.Error("malformed snapshot mutated the history")
	}
}

func TestEvaluate_NothingTriggered(t *testing.T) {
	e, _ := newTestEngine()
	snap := testSnapshot()
	snap.ChangePercent = 2.0
	snap.VolumeRatio = 1.1

	alert, err := e.Evaluate(snap)
	if err != nil {
		t.Fatalf("quiet snapshot errored: %v", err)
	}
	if alert != nil {
		t.Errorf("quiet snapshot produced an alert: %+v", alert)
	}
}

func TestPurge(t *testing.T) {
	e, clock := newTestEngine()
	if a, _ := e.Evaluate(testSnapshot()); a == nil {
		t.Fatal("setup alert did not fire")
	}

	clock.advance(49 * time.Hour)
	e.Purge(48 * time.Hour)

	e.mu.Lock()
	remaining := len(e.cooldowns)
	e.mu.Unlock()
	if remaining != 0 {
		t.Errorf("cooldown entries after purge = %d, want 0", remaining)
	}
	if got := e.ActiveAlerts(48 * time.Hour); len(got) != 0 {
		t.Errorf("active alerts after purge = %d, want 0", len(got))
	}
	// History is the analytics record and survives the purge.
	if len(e.History()) != 1 {
		t.Errorf("history after purge = %d, want 1", len(e.History()))
	}
}

func TestActiveAlerts_Horizon(t *testing.T) {
	e, clock := newTestEngine()
	if a, _ := e.Evaluate(testSnapshot()); a == nil {
		t.Fatal("setup alert did not fire")
	}

	clock.advance(2 * time.Hour)
	if got := e.ActiveAlerts(time.Hour); len(got) != 0 {
		t.Errorf("stale alert inside 1h horizon: %d", len(got))
	}
	if got := e.ActiveAlerts(3 * time.Hour); len(got) != 1 {
		t.Errorf("alert missing from 3h horizon: %d", len(got))
	}
}

func TestHistoryCap(t *testing.T) {
	config := DefaultConfig()
	config.MaxActive = 3
	config.MaxHistory = 5
	e := New(config)
	clock := &fakeClock{t: time.Now()}
	e.SetClock(clock.now)

	snap := testSnapshot()
	for i := 0; i < 8; i++ {
		clock.advance(6 * time.Minute) // step past the cooldown each time
		if a, err := e.Evaluate(snap); err != nil || a == nil {
			t.Fatalf("iteration %d: alert=%v err=%v", i, a, err)
		}
	}
	if got := len(e.History()); got != 5 {
		t.Errorf("history length = %d, want capped at 5", got)
	}
	if got := len(e.ActiveAlerts(24 * time.Hour)); got != 3 {
		t.Errorf("active length = %d, want capped at 3", got)
	}
}

func TestSummary(t *testing.T) {
	e, clock := newTestEngine()
	if a, _ := e.Evaluate(testSnapshot()); a == nil {
		t.Fatal("setup alert did not fire")
	}
	clock.advance(6 * time.Minute)

	vol := testSnapshot()
	vol.ChangePercent = 1.0
	vol.VolumeRatio = 8.0
	if a, _ := e.Evaluate(vol); a == nil {
		t.Fatal("volume alert did not fire")
	}

	got := e.Summary()
	if got[models.AlertPriceSpike] != 1 || got[models.AlertVolumeSpike] != 1 {
		t.Errorf("summary = %v", got)
	}
}
