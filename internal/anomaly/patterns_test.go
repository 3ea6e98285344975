package anomaly

import (
	"errors"
	"testing"

	"capwatch/internal/models"
)

func hasPattern(patterns []string, want string) bool {
	for _, p := range patterns {
		if p == want {
			return true
		}
	}
	return false
}

func TestDetectPatterns_InsufficientData(t *testing.T) {
	d := New(DefaultConfig())
	bars := barSeries(t, repeat(10, 10), repeat(1000, 10))
	if _, err := d.DetectPatterns("ABCD", bars); !errors.Is(err, models.ErrInsufficientData) {
		t.Errorf("got %v, want ErrInsufficientData", err)
	}
}

func TestDetectPatterns_BreakoutWithVolume(t *testing.T) {
	d := New(DefaultConfig())
	closes := append(repeat(10, 19), 12)
	volumes := append(repeat(1000, 19), 3000)

	patterns, err := d.DetectPatterns("ABCD", barSeries(t, closes, volumes))
	if err != nil {
		t.Fatalf("DetectPatterns: %v", err)
	}
	if !hasPattern(patterns, "bullish breakout on high volume") {
		t.Errorf("breakout not flagged in %v", patterns)
	}
	if hasPattern(patterns, "sustained volume ramp") {
		t.Errorf("single volume spike flagged as ramp in %v", patterns)
	}
	if hasPattern(patterns, "tight consolidation, potential breakout setup") {
		t.Errorf("jump bar flagged as consolidation in %v", patterns)
	}
}

func TestDetectPatterns_VolumeRamp(t *testing.T) {
	d := New(DefaultConfig())
	closes := repeat(10, 20)
	volumes := append(repeat(1000, 16), 1600, 2560, 4096, 6554)

	patterns, err := d.DetectPatterns("ABCD", barSeries(t, closes, volumes))
	if err != nil {
		t.Fatalf("DetectPatterns: %v", err)
	}
	if !hasPattern(patterns, "sustained volume ramp") {
		t.Errorf("four consecutive 1.6x volume steps not flagged in %v", patterns)
	}
	if hasPattern(patterns, "bullish breakout on high volume") {
		t.Errorf("flat close flagged as breakout in %v", patterns)
	}
}

func TestDetectPatterns_Consolidation(t *testing.T) {
	d := New(DefaultConfig())
	patterns, err := d.DetectPatterns("ABCD", barSeries(t, repeat(10, 20), repeat(1000, 20)))
	if err != nil {
		t.Fatalf("DetectPatterns: %v", err)
	}
	if len(patterns) != 1 || patterns[0] != "tight consolidation, potential breakout setup" {
		t.Errorf("flat series = %v, want only the consolidation pattern", patterns)
	}
}

func TestDetectPatterns_Divergence(t *testing.T) {
	d := New(DefaultConfig())

	// Price rising linearly while volume declines.
	closes := repeat(10, 10)
	volumes := repeat(1000, 10)
	for i := 0; i < 10; i++ {
		closes = append(closes, 10.0+0.2*float64(i))
		volumes = append(volumes, 2000.0-100.0*float64(i))
	}
	patterns, err := d.DetectPatterns("ABCD", barSeries(t, closes, volumes))
	if err != nil {
		t.Fatalf("DetectPatterns: %v", err)
	}
	if !hasPattern(patterns, "price rising on declining volume") {
		t.Errorf("bearish divergence not flagged in %v", patterns)
	}

	// The mirror image: price declining while volume builds.
	closes = repeat(11.8, 10)
	volumes = repeat(1000, 10)
	for i := 0; i < 10; i++ {
		closes = append(closes, 11.8-0.2*float64(i))
		volumes = append(volumes, 1100.0+100.0*float64(i))
	}
	patterns, err = d.DetectPatterns("ABCD", barSeries(t, closes, volumes))
	if err != nil {
		t.Fatalf("DetectPatterns: %v", err)
	}
	if !hasPattern(patterns, "volume accumulation during price decline") {
		t.Errorf("accumulation not flagged in %v", patterns)
	}
	if hasPattern(patterns, "price rising on declining volume") {
		t.Errorf("declining price flagged as rising in %v", patterns)
	}
}
