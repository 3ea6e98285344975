package anomaly

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"capwatch/internal/models"
)

func barSeries(t *testing.T, closes, volumes []float64) []models.Bar {
	t.Helper()
	if len(closes) != len(volumes) {
		t.Fatalf("closes and volumes must match: %d vs %d", len(closes), len(volumes))
	}
	start := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	bars := make([]models.Bar, len(closes))
	for i := range closes {
		c := closes[i]
		bars[i] = models.Bar{
			Timestamp: start.Add(time.Duration(i) * 24 * time.Hour),
			Open:      c,
			High:      c * 1.01,
			Low:       c * 0.99,
			Close:     c,
			Volume:    volumes[i],
		}
	}
	return bars
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestDetectVolumeAnomalies_SpikeScenario(t *testing.T) {
	// 20 quiet bars then a 6x spike; the spike must be measured against
	// the prior window so only bar 21 flags, with ratio ~6.0.
	volumes := append(repeat(1000, 20), 6000, 1100, 1050, 1000, 990)
	closes := repeat(10.0, 25)

	d := New(DefaultConfig())
	anomalies, err := d.DetectVolumeAnomalies("ABCD", barSeries(t, closes, volumes))
	if err != nil {
		t.Fatalf("DetectVolumeAnomalies: %v", err)
	}
	if len(anomalies) != 1 {
		t.Fatalf("expected exactly 1 anomaly, got %d", len(anomalies))
	}
	a := anomalies[0]
	if a.Kind != models.AnomalyVolume {
		t.Errorf("kind = %s, want volume", a.Kind)
	}
	ratio := a.Metrics["volume_ratio"]
	if math.Abs(ratio-6.0) > 0.01 {
		t.Errorf("volume_ratio = %v, want ~6.0", ratio)
	}
	if a.Metrics["volume"] != 6000 {
		t.Errorf("volume = %v, want 6000", a.Metrics["volume"])
	}
	// z-score against the full-series distribution, not the rolling one
	if _, ok := a.Metrics["volume_zscore"]; !ok {
		t.Error("missing volume_zscore metric")
	}
}

func TestDetectVolumeAnomalies_Idempotent(t *testing.T) {
	volumes := append(repeat(1000, 20), 6000, 1100, 8000, 1000, 990)
	closes := repeat(10.0, 25)
	bars := barSeries(t, closes, volumes)

	d := New(DefaultConfig())
	first, err := d.DetectVolumeAnomalies("ABCD", bars)
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	second, err := d.DetectVolumeAnomalies("ABCD", bars)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("two passes over the same bars produced different results")
	}
}

func TestDetectVolumeAnomalies_InsufficientData(t *testing.T) {
	d := New(DefaultConfig())
	bars := barSeries(t, repeat(10, 3), repeat(1000, 3))
	_, err := d.DetectVolumeAnomalies("ABCD", bars)
	if !errors.Is(err, models.ErrInsufficientData) {
		t.Errorf("got %v, want ErrInsufficientData", err)
	}
}

func TestDetectPriceAnomalies(t *testing.T) {
	// 30 bars of mild noise, then a violent move that must exceed |z| > 2.
	closes := make([]float64, 0, 32)
	price := 10.0
	for i := 0; i < 30; i++ {
		if i%2 == 0 {
			price *= 1.002
		} else {
			price *= 0.998
		}
		closes = append(closes, price)
	}
	closes = append(closes, price*1.30, price*1.31)
	volumes := repeat(1000, len(closes))

	d := New(DefaultConfig())
	anomalies, err := d.DetectPriceAnomalies("ABCD", barSeries(t, closes, volumes))
	if err != nil {
		t.Fatalf("DetectPriceAnomalies: %v", err)
	}
	if len(anomalies) == 0 {
		t.Fatal("expected the 30% move to be flagged")
	}
	found := false
	for _, a := range anomalies {
		if math.Abs(a.Metrics["zscore"]) > 2.0 {
			found = true
		}
	}
	if !found {
		t.Error("no anomaly with |zscore| > 2")
	}
}

func TestDetectPriceAnomalies_FirstWindowExcluded(t *testing.T) {
	// A huge jump inside the first window must not be flagged: rolling
	// stats are undefined there, not defaulted to zero.
	closes := append([]float64{10, 10, 30, 10, 10}, repeat(10, 20)...)
	volumes := repeat(1000, len(closes))

	d := New(DefaultConfig())
	anomalies, err := d.DetectPriceAnomalies("ABCD", barSeries(t, closes, volumes))
	if err != nil {
		t.Fatalf("DetectPriceAnomalies: %v", err)
	}
	for _, a := range anomalies {
		if a.Timestamp.Before(barSeries(t, closes, volumes)[20].Timestamp) {
			t.Errorf("anomaly inside first window at %v", a.Timestamp)
		}
	}
}

func TestDetectGapAnomalies(t *testing.T) {
	start := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	bars := []models.Bar{
		{Timestamp: start, Open: 10.00, High: 10.10, Low: 9.90, Close: 10.00, Volume: 1000},
		{Timestamp: start.Add(24 * time.Hour), Open: 11.50, High: 11.80, Low: 11.40, Close: 11.60, Volume: 5000},
		{Timestamp: start.Add(48 * time.Hour), Open: 11.70, High: 11.90, Low: 11.50, Close: 11.80, Volume: 1200},
	}

	d := New(DefaultConfig())
	anomalies, err := d.DetectGapAnomalies("ABCD", bars)
	if err != nil {
		t.Fatalf("DetectGapAnomalies: %v", err)
	}
	if len(anomalies) != 1 {
		t.Fatalf("expected 1 gap, got %d", len(anomalies))
	}
	a := anomalies[0]
	if math.Abs(a.Metrics["gap_percent"]-15.0) > 1e-9 {
		t.Errorf("gap_percent = %v, want 15.0", a.Metrics["gap_percent"])
	}
	if a.Detail != "Gap Up" {
		t.Errorf("detail = %q, want Gap Up", a.Detail)
	}
}

func TestDetectGapAnomalies_GapDown(t *testing.T) {
	start := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	bars := []models.Bar{
		{Timestamp: start, Open: 20.00, High: 20.10, Low: 19.90, Close: 20.00, Volume: 1000},
		{Timestamp: start.Add(24 * time.Hour), Open: 17.00, High: 17.20, Low: 16.80, Close: 17.10, Volume: 4000},
	}

	d := New(DefaultConfig())
	anomalies, err := d.DetectGapAnomalies("ABCD", bars)
	if err != nil {
		t.Fatalf("DetectGapAnomalies: %v", err)
	}
	if len(anomalies) != 1 || anomalies[0].Detail != "Gap Down" {
		t.Fatalf("expected one Gap Down, got %+v", anomalies)
	}
}

func TestDetectIntradayVolatility(t *testing.T) {
	start := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, 0, 21)
	for i := 0; i < 20; i++ {
		bars = append(bars, models.Bar{
			Timestamp: start.Add(time.Duration(i) * 24 * time.Hour),
			Open:      10.0, High: 10.1, Low: 9.9, Close: 10.0, Volume: 1000,
		})
	}
	// one wild bar: 20% intraday range
	bars = append(bars, models.Bar{
		Timestamp: start.Add(20 * 24 * time.Hour),
		Open:      10.0, High: 11.0, Low: 9.0, Close: 10.0, Volume: 9000,
	})

	d := New(DefaultConfig())
	anomalies, err := d.DetectIntradayVolatility("ABCD", bars)
	if err != nil {
		t.Fatalf("DetectIntradayVolatility: %v", err)
	}
	if len(anomalies) != 1 {
		t.Fatalf("expected 1 volatility anomaly, got %d", len(anomalies))
	}
	if math.Abs(anomalies[0].Metrics["range_percent"]-20.0) > 1e-9 {
		t.Errorf("range_percent = %v, want 20.0", anomalies[0].Metrics["range_percent"])
	}
}

func TestDetectCorrelationAnomaly(t *testing.T) {
	// Volume uncorrelated with |price change|: alternate volume while
	// price wiggles independently.
	n := 40
	closes := make([]float64, n)
	volumes := make([]float64, n)
	price := 10.0
	for i := 0; i < n; i++ {
		switch i % 4 {
		case 0:
			price *= 1.03
		case 1:
			price *= 0.97
		case 2:
			price *= 1.0005
		case 3:
			price *= 0.9995
		}
		closes[i] = price
		if i%2 == 0 {
			volumes[i] = 5000
		} else {
			volumes[i] = 1000
		}
	}

	d := New(DefaultConfig())
	anomalies, err := d.DetectCorrelationAnomaly("ABCD", barSeries(t, closes, volumes))
	if err != nil {
		t.Fatalf("DetectCorrelationAnomaly: %v", err)
	}
	if len(anomalies) > 1 {
		t.Fatalf("at most one correlation anomaly per evaluation, got %d", len(anomalies))
	}
	if len(anomalies) == 1 {
		if anomalies[0].Metrics["correlation"] >= 0.2 {
			t.Errorf("flagged correlation %v >= 0.2", anomalies[0].Metrics["correlation"])
		}
	}
}

func TestDetectCorrelationAnomaly_TooFewBars(t *testing.T) {
	d := New(DefaultConfig())
	bars := barSeries(t, repeat(10, 20), repeat(1000, 20))
	_, err := d.DetectCorrelationAnomaly("ABCD", bars)
	if !errors.Is(err, models.ErrInsufficientData) {
		t.Errorf("got %v, want ErrInsufficientData for <= 20 bars", err)
	}
}

func TestScan_DegradesLocally(t *testing.T) {
	// Two bars: enough for gap analysis, not for volume/price/correlation.
	start := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	bars := []models.Bar{
		{Timestamp: start, Open: 10.00, High: 10.10, Low: 9.90, Close: 10.00, Volume: 1000},
		{Timestamp: start.Add(24 * time.Hour), Open: 12.00, High: 12.20, Low: 11.90, Close: 12.10, Volume: 1100},
	}

	d := New(DefaultConfig())
	anomalies := d.Scan("ABCD", bars)
	for _, a := range anomalies {
		if a.Kind != models.AnomalyGap && a.Kind != models.AnomalyVolatility {
			t.Errorf("unexpected kind %s from a 2-bar series", a.Kind)
		}
	}
	found := false
	for _, a := range anomalies {
		if a.Kind == models.AnomalyGap {
			found = true
		}
	}
	if !found {
		t.Error("gap analysis should still run on a 2-bar series")
	}
}
