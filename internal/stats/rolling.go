// Package stats provides rolling-window and full-series statistics for
// price and volume series.
package stats

import (
	"math"

	"capwatch/internal/models"
)

// MinPeriods returns the default minimum sample count for a rolling
// window of the given size.
func MinPeriods(window int) int {
	mp := window / 4
	if mp < 5 {
		mp = 5
	}
	return mp
}

// RollingMean computes the trailing mean over [i-window+1, i] for each
// index. Entries backed by fewer than minPeriods samples are NaN. A
// series shorter than minPeriods yields ErrInsufficientData.
func RollingMean(values []float64, window, minPeriods int) ([]float64, error) {
	if window < 1 || len(values) < minPeriods {
		return nil, models.ErrInsufficientData
	}
	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		count := i + 1
		if count > window {
			count = window
		}
		if count < minPeriods {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(count)
	}
	return out, nil
}

// RollingStd computes the trailing sample standard deviation over
// [i-window+1, i] for each index, with the same min-periods policy as
// RollingMean. Windows with fewer than two samples are NaN.
func RollingStd(values []float64, window, minPeriods int) ([]float64, error) {
	if window < 1 || len(values) < minPeriods {
		return nil, models.ErrInsufficientData
	}
	out := make([]float64, len(values))
	for i := range values {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		count := i - start + 1
		if count < minPeriods || count < 2 {
			out[i] = math.NaN()
			continue
		}
		out[i] = Std(values[start : i+1])
	}
	return out, nil
}

// ZScore returns (x - mean) / std, defined as 0 for a flat window
// (std == 0). Flat windows would otherwise produce spurious infinite
// anomalies.
func ZScore(x, mean, std float64) float64 {
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return (x - mean) / std
}

// Mean returns the arithmetic mean, or NaN for an empty series.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Std returns the sample standard deviation, or NaN for fewer than two
// samples.
func Std(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return math.NaN()
	}
	mean := Mean(values)
	var m2 float64
	for _, v := range values {
		d := v - mean
		m2 += d * d
	}
	return math.Sqrt(m2 / float64(n-1))
}

// PearsonCorrelation returns the Pearson correlation coefficient of two
// equal-length series, or NaN when undefined (short or flat input).
func PearsonCorrelation(xs, ys []float64) float64 {
	n := len(xs)
	if n != len(ys) || n < 2 {
		return math.NaN()
	}
	mx, my := Mean(xs), Mean(ys)
	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx := xs[i] - mx
		dy := ys[i] - my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return math.NaN()
	}
	return sxy / math.Sqrt(sxx*syy)
}
