package anomaly

import (
	"capwatch/internal/models"
	"capwatch/internal/stats"
)

// Pattern detection thresholds. The lookbacks are fixed: patterns
// describe the tail of the series, not every historical bar.
const (
	patternMinBars       = 20
	patternSMAWindow     = 20
	patternVolumeConfirm = 2.0
	patternSpikeStep     = 1.5
	patternSpikeMin      = 3
	patternRangeMax      = 0.05
	patternRecentBars    = 5
	patternTrendBars     = 10
	patternTrendMin      = 0.5
)

// DetectPatterns scans the tail of a bar series for setups that are
// not anomalies in the statistical sense but still worth surfacing:
// breakouts with volume confirmation, sustained volume ramps, tight
// consolidation, and price/volume trend divergence. Returns the
// matched pattern descriptions, oldest check first.
func (d *Detector) DetectPatterns(symbol string, bars []models.Bar) ([]string, error) {
	if len(bars) < patternMinBars {
		return nil, models.ErrInsufficientData
	}

	var patterns []string
	latest := bars[len(bars)-1]

	tail := bars[len(bars)-patternSMAWindow:]
	closes := make([]float64, len(tail))
	volumes := make([]float64, len(tail))
	for i, b := range tail {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}
	sma := stats.Mean(closes)
	volMA := stats.Mean(volumes)
	if latest.Close > sma && latest.Volume > volMA*patternVolumeConfirm {
		patterns = append(patterns, "bullish breakout on high volume")
	}

	spikes := 0
	for i := len(bars) - patternRecentBars; i < len(bars); i++ {
		if bars[i-1].Volume > 0 && bars[i].Volume > bars[i-1].Volume*patternSpikeStep {
			spikes++
		}
	}
	if spikes >= patternSpikeMin {
		patterns = append(patterns, "sustained volume ramp")
	}

	recent := bars[len(bars)-patternRecentBars:]
	high := recent[0].High
	low := recent[0].Low
	var closeSum float64
	for _, b := range recent {
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
		closeSum += b.Close
	}
	meanClose := closeSum / float64(len(recent))
	if meanClose > 0 && (high-low)/meanClose < patternRangeMax {
		patterns = append(patterns, "tight consolidation, potential breakout setup")
	}

	trendTail := bars[len(bars)-patternTrendBars:]
	trendCloses := make([]float64, len(trendTail))
	trendVolumes := make([]float64, len(trendTail))
	index := make([]float64, len(trendTail))
	for i, b := range trendTail {
		trendCloses[i] = b.Close
		trendVolumes[i] = b.Volume
		index[i] = float64(i)
	}
	priceTrend := stats.PearsonCorrelation(index, trendCloses)
	volumeTrend := stats.PearsonCorrelation(index, trendVolumes)
	switch {
	case priceTrend > patternTrendMin && volumeTrend < -patternTrendMin:
		patterns = append(patterns, "price rising on declining volume")
	case priceTrend < -patternTrendMin && volumeTrend > patternTrendMin:
		patterns = append(patterns, "volume accumulation during price decline")
	}

	return patterns, nil
}
