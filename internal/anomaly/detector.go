// Package anomaly detects statistical anomalies in OHLCV series and
// scores short-squeeze potential from live snapshots.
package anomaly

import (
	"fmt"
	"math"

	"capwatch/internal/models"
	"capwatch/internal/stats"
)

// Config holds detection thresholds.
type Config struct {
	VolumeWindow         int     // rolling window for the volume baseline
	VolumeThreshold      float64 // ratio over baseline that flags a volume anomaly
	PriceWindow          int     // rolling window for price z-scores
	PriceZScoreThreshold float64 // |z| that flags a price anomaly
	GapThresholdPercent  float64 // minimum |gap| percent
	CorrelationThreshold float64 // volume/price correlation floor
	CorrelationMinBars   int     // minimum series length for correlation
}

// DefaultConfig returns the default detection thresholds.
func DefaultConfig() Config {
	return Config{
		VolumeWindow:         20,
		VolumeThreshold:      5.0,
		PriceWindow:          20,
		PriceZScoreThreshold: 2.0,
		GapThresholdPercent:  10.0,
		CorrelationThreshold: 0.2,
		CorrelationMinBars:   20,
	}
}

// Detector runs statistical anomaly analyses over bar series. It keeps
// no per-invocation state; all history arrives as explicit input.
type Detector struct {
	config Config
}

// New creates a detector with the given thresholds.
func New(config Config) *Detector {
	if config.VolumeWindow < 1 {
		config.VolumeWindow = 20
	}
	if config.PriceWindow < 1 {
		config.PriceWindow = 20
	}
	return &Detector{config: config}
}

// DetectVolumeAnomalies flags bars whose volume exceeds the trailing
// rolling-mean baseline by the configured ratio. The baseline is the
// mean of the prior window, so a spike does not dilute its own
// reference. Each flagged bar carries the close-to-close price change
// and a z-score against the full-series volume distribution; the two
// baselines are deliberately distinct.
func (d *Detector) DetectVolumeAnomalies(symbol string, bars []models.Bar) ([]models.Anomaly, error) {
	minPeriods := stats.MinPeriods(d.config.VolumeWindow)
	if len(bars) < minPeriods+1 {
		return nil, models.ErrInsufficientData
	}

	volumes := make([]float64, len(bars))
	for i, b := range bars {
		volumes[i] = b.Volume
	}
	means, err := stats.RollingMean(volumes, d.config.VolumeWindow, minPeriods)
	if err != nil {
		return nil, err
	}
	globalMean := stats.Mean(volumes)
	globalStd := stats.Std(volumes)

	var anomalies []models.Anomaly
	for i := 1; i < len(bars); i++ {
		baseline := means[i-1]
		if math.IsNaN(baseline) || baseline <= 0 {
			continue
		}
		ratio := bars[i].Volume / baseline
		if ratio <= d.config.VolumeThreshold {
			continue
		}
		priceChange := 0.0
		if bars[i-1].Close > 0 {
			priceChange = (bars[i].Close - bars[i-1].Close) / bars[i-1].Close * 100
		}
		anomalies = append(anomalies, models.Anomaly{
			Timestamp: bars[i].Timestamp,
			Kind:      models.AnomalyVolume,
			Symbol:    symbol,
			Metrics: map[string]float64{
				"volume":           bars[i].Volume,
				"volume_ratio":     ratio,
				"price_change_pct": priceChange,
				"volume_zscore":    stats.ZScore(bars[i].Volume, globalMean, globalStd),
				"close":            bars[i].Close,
			},
			Detail: fmt.Sprintf("volume %.1fx above %d-bar average", ratio, d.config.VolumeWindow),
		})
	}
	return anomalies, nil
}

// DetectPriceAnomalies flags bars whose close-to-close change deviates
// more than the configured z-score from its rolling distribution. The
// first window of bars has undefined rolling stats and is excluded
// rather than defaulted to zero.
func (d *Detector) DetectPriceAnomalies(symbol string, bars []models.Bar) ([]models.Anomaly, error) {
	window := d.config.PriceWindow
	if len(bars) < window+1 {
		return nil, models.ErrInsufficientData
	}

	// changes[j] is the percent change into bar j+1.
	changes := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		if bars[i-1].Close == 0 {
			changes = append(changes, 0)
			continue
		}
		changes = append(changes, (bars[i].Close-bars[i-1].Close)/bars[i-1].Close*100)
	}

	means, err := stats.RollingMean(changes, window, window)
	if err != nil {
		return nil, err
	}
	stds, err := stats.RollingStd(changes, window, window)
	if err != nil {
		return nil, err
	}

	var anomalies []models.Anomaly
	for j, pct := range changes {
		if math.IsNaN(means[j]) || math.IsNaN(stds[j]) {
			continue
		}
		z := stats.ZScore(pct, means[j], stds[j])
		if math.Abs(z) <= d.config.PriceZScoreThreshold {
			continue
		}
		bar := bars[j+1]
		anomalies = append(anomalies, models.Anomaly{
			Timestamp: bar.Timestamp,
			Kind:      models.AnomalyPrice,
			Symbol:    symbol,
			Metrics: map[string]float64{
				"close":            bar.Close,
				"price_change_pct": pct,
				"zscore":           z,
				"volume":           bar.Volume,
			},
			Detail: fmt.Sprintf("%.2f%% move, z-score %.2f", pct, z),
		})
	}
	return anomalies, nil
}

// DetectGapAnomalies flags opens that gap away from the prior close by
// at least the configured percent, classified Gap Up or Gap Down.
func (d *Detector) DetectGapAnomalies(symbol string, bars []models.Bar) ([]models.Anomaly, error) {
	if len(bars) < 2 {
		return nil, models.ErrInsufficientData
	}

	var anomalies []models.Anomaly
	for i := 1; i < len(bars); i++ {
		prevClose := bars[i-1].Close
		if prevClose == 0 {
			continue
		}
		gapPct := (bars[i].Open - prevClose) / prevClose * 100
		if math.Abs(gapPct) < d.config.GapThresholdPercent {
			continue
		}
		detail := "Gap Up"
		if gapPct < 0 {
			detail = "Gap Down"
		}
		anomalies = append(anomalies, models.Anomaly{
			Timestamp: bars[i].Timestamp,
			Kind:      models.AnomalyGap,
			Symbol:    symbol,
			Metrics: map[string]float64{
				"gap_percent":  gapPct,
				"prev_close":   prevClose,
				"current_open": bars[i].Open,
				"volume":       bars[i].Volume,
			},
			Detail: detail,
		})
	}
	return anomalies, nil
}

// DetectIntradayVolatility flags bars whose high-low range exceeds the
// full-series mean range by two standard deviations. The baseline is
// series-level, not rolling.
func (d *Detector) DetectIntradayVolatility(symbol string, bars []models.Bar) ([]models.Anomaly, error) {
	if len(bars) < 2 {
		return nil, models.ErrInsufficientData
	}

	ranges := make([]float64, len(bars))
	for i, b := range bars {
		if b.Close == 0 {
			continue
		}
		ranges[i] = b.Range() / b.Close * 100
	}
	mean := stats.Mean(ranges)
	std := stats.Std(ranges)
	if math.IsNaN(std) {
		return nil, models.ErrInsufficientData
	}
	cutoff := mean + 2*std

	var anomalies []models.Anomaly
	for i, b := range bars {
		if ranges[i] <= cutoff {
			continue
		}
		anomalies = append(anomalies, models.Anomaly{
			Timestamp: b.Timestamp,
			Kind:      models.AnomalyVolatility,
			Symbol:    symbol,
			Metrics: map[string]float64{
				"range_percent": ranges[i],
				"volume":        b.Volume,
				"close":         b.Close,
			},
			Detail: fmt.Sprintf("intraday range %.2f%% vs %.2f%% cutoff", ranges[i], cutoff),
		})
	}
	return anomalies, nil
}

// DetectCorrelationAnomaly emits a single informational anomaly when
// volume and absolute price change are nearly uncorrelated over the
// trailing series, a possible manipulation signal. One flag per
// evaluation, not per bar.
func (d *Detector) DetectCorrelationAnomaly(symbol string, bars []models.Bar) ([]models.Anomaly, error) {
	if len(bars) <= d.config.CorrelationMinBars {
		return nil, models.ErrInsufficientData
	}

	volumes := make([]float64, 0, len(bars)-1)
	absChanges := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		if bars[i-1].Close == 0 {
			continue
		}
		volumes = append(volumes, bars[i].Volume)
		absChanges = append(absChanges, math.Abs((bars[i].Close-bars[i-1].Close)/bars[i-1].Close))
	}

	corr := stats.PearsonCorrelation(volumes, absChanges)
	if math.IsNaN(corr) || corr >= d.config.CorrelationThreshold {
		return nil, nil
	}
	return []models.Anomaly{{
		Timestamp: bars[len(bars)-1].Timestamp,
		Kind:      models.AnomalyCorrelation,
		Symbol:    symbol,
		Metrics:   map[string]float64{"correlation": corr},
		Detail:    "low volume-price correlation, possible manipulation or unusual trading pattern",
	}}, nil
}

// Scan runs all bar-series analyses, degrading locally: an analysis
// without enough data contributes nothing but never aborts its
// siblings.
func (d *Detector) Scan(symbol string, bars []models.Bar) []models.Anomaly {
	var all []models.Anomaly
	analyses := []func(string, []models.Bar) ([]models.Anomaly, error){
		d.DetectVolumeAnomalies,
		d.DetectPriceAnomalies,
		d.DetectGapAnomalies,
		d.DetectIntradayVolatility,
		d.DetectCorrelationAnomaly,
	}
	for _, analyze := range analyses {
		found, err := analyze(symbol, bars)
		if err != nil {
			continue
		}
		all = append(all, found...)
	}
	return all
}
