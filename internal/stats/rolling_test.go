package stats

import (
	"errors"
	"math"
	"testing"

	"capwatch/internal/models"
)

func TestMinPeriods(t *testing.T) {
	tests := []struct {
		window int
		want   int
	}{
		{20, 5},
		{4, 5},
		{40, 10},
		{100, 25},
	}
	for _, tt := range tests {
		if got := MinPeriods(tt.window); got != tt.want {
			t.Errorf("MinPeriods(%d) = %d, want %d", tt.window, got, tt.want)
		}
	}
}

func TestRollingMean(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	means, err := RollingMean(values, 5, 5)
	if err != nil {
		t.Fatalf("RollingMean: %v", err)
	}
	for i := 0; i < 4; i++ {
		if !math.IsNaN(means[i]) {
			t.Errorf("means[%d] = %v, want NaN (below min periods)", i, means[i])
		}
	}
	// index 4: mean of 1..5 = 3
	if math.Abs(means[4]-3.0) > 1e-12 {
		t.Errorf("means[4] = %v, want 3.0", means[4])
	}
	// index 9: mean of 6..10 = 8
	if math.Abs(means[9]-8.0) > 1e-12 {
		t.Errorf("means[9] = %v, want 8.0", means[9])
	}
}

func TestRollingMean_PartialWindows(t *testing.T) {
	// min_periods below window: partial windows become defined early.
	values := []float64{2, 2, 2, 2, 2, 2, 8}
	means, err := RollingMean(values, 20, 5)
	if err != nil {
		t.Fatalf("RollingMean: %v", err)
	}
	if !math.IsNaN(means[3]) {
		t.Errorf("means[3] = %v, want NaN", means[3])
	}
	if means[4] != 2.0 {
		t.Errorf("means[4] = %v, want 2.0 (5-sample partial window)", means[4])
	}
	want := (2.0*6 + 8.0) / 7.0
	if math.Abs(means[6]-want) > 1e-12 {
		t.Errorf("means[6] = %v, want %v", means[6], want)
	}
}

func TestRollingMean_InsufficientData(t *testing.T) {
	_, err := RollingMean([]float64{1, 2, 3}, 20, 5)
	if !errors.Is(err, models.ErrInsufficientData) {
		t.Errorf("got %v, want ErrInsufficientData", err)
	}
}

func TestRollingStd(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6}
	stds, err := RollingStd(values, 5, 5)
	if err != nil {
		t.Fatalf("RollingStd: %v", err)
	}
	// sample std of 1..5 = sqrt(2.5)
	want := math.Sqrt(2.5)
	if math.Abs(stds[4]-want) > 1e-12 {
		t.Errorf("stds[4] = %v, want %v", stds[4], want)
	}
	if !math.IsNaN(stds[2]) {
		t.Errorf("stds[2] = %v, want NaN", stds[2])
	}
}

func TestZScore_FlatWindow(t *testing.T) {
	if got := ZScore(5.0, 5.0, 0.0); got != 0 {
		t.Errorf("ZScore with zero std = %v, want 0", got)
	}
	if got := ZScore(5.0, 3.0, math.NaN()); got != 0 {
		t.Errorf("ZScore with NaN std = %v, want 0", got)
	}
	if got := ZScore(7.0, 5.0, 2.0); got != 1.0 {
		t.Errorf("ZScore = %v, want 1.0", got)
	}
}

func TestStd(t *testing.T) {
	if got := Std([]float64{2, 4, 4, 4, 5, 5, 7, 9}); math.Abs(got-2.13809) > 1e-4 {
		t.Errorf("Std = %v, want ~2.13809", got)
	}
	if !math.IsNaN(Std([]float64{1})) {
		t.Error("Std of single sample should be NaN")
	}
}

func TestPearsonCorrelation(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	ys := []float64{2, 4, 6, 8, 10}
	if got := PearsonCorrelation(xs, ys); math.Abs(got-1.0) > 1e-12 {
		t.Errorf("perfect positive correlation = %v, want 1.0", got)
	}
	inv := []float64{10, 8, 6, 4, 2}
	if got := PearsonCorrelation(xs, inv); math.Abs(got+1.0) > 1e-12 {
		t.Errorf("perfect negative correlation = %v, want -1.0", got)
	}
	flat := []float64{3, 3, 3, 3, 3}
	if got := PearsonCorrelation(xs, flat); !math.IsNaN(got) {
		t.Errorf("correlation with flat series = %v, want NaN", got)
	}
}
