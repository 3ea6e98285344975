package anomaly

import (
	"fmt"

	"capwatch/internal/models"
)

// Squeeze score contributions. All factors are additive and independent,
// so the total is the same regardless of input field arrival order.
const (
	squeezeVolumeToFloatPoints = 20
	squeezeStrongMomentumPts   = 30
	squeezeMildMomentumPts     = 15
	squeezeSmallCapPoints      = 15
	squeezeBidPressurePoints   = 20
	squeezeVolumeRatioPoints   = 25
)

// AnalyzeShortSqueeze scores squeeze potential in [0, 100] from a live
// snapshot plus optional order-book metrics. Risk factors are
// informational and never reduce the score.
func (d *Detector) AnalyzeShortSqueeze(snap models.Snapshot, book *models.BookMetrics) models.SqueezeAnalysis {
	analysis := models.SqueezeAnalysis{
		BullishIndicators: []string{},
		RiskFactors:       []string{},
		Metrics:           map[string]float64{},
	}

	score := 0

	if snap.FloatShares > 0 {
		volumeToFloat := snap.Volume / snap.FloatShares
		analysis.Metrics["volume_to_float_ratio"] = volumeToFloat
		if volumeToFloat > 0.1 {
			analysis.BullishIndicators = append(analysis.BullishIndicators,
				fmt.Sprintf("high volume: %.1f%% of float traded", volumeToFloat*100))
			score += squeezeVolumeToFloatPoints
		}
	}

	switch {
	case snap.ChangePercent > 25:
		analysis.BullishIndicators = append(analysis.BullishIndicators,
			fmt.Sprintf("strong upward momentum: +%.1f%%", snap.ChangePercent))
		score += squeezeStrongMomentumPts
	case snap.ChangePercent > 10:
		analysis.BullishIndicators = append(analysis.BullishIndicators,
			fmt.Sprintf("positive momentum: +%.1f%%", snap.ChangePercent))
		score += squeezeMildMomentumPts
	}

	if snap.MarketCap > 0 && snap.MarketCap < 1e9 {
		analysis.BullishIndicators = append(analysis.BullishIndicators,
			"small cap with potential for high volatility")
		score += squeezeSmallCapPoints
	}

	if book != nil && book.BidPressure > 70 {
		analysis.BullishIndicators = append(analysis.BullishIndicators,
			fmt.Sprintf("strong buying pressure: %.1f%%", book.BidPressure))
		score += squeezeBidPressurePoints
	}

	if snap.VolumeRatio > 5 {
		analysis.BullishIndicators = append(analysis.BullishIndicators,
			fmt.Sprintf("volume spike: %.1fx normal volume", snap.VolumeRatio))
		score += squeezeVolumeRatioPoints
	}

	if snap.ChangePercent > 100 {
		analysis.RiskFactors = append(analysis.RiskFactors,
			"extreme price increase, high volatility risk")
	}
	if snap.VolumeRatio > 20 {
		analysis.RiskFactors = append(analysis.RiskFactors,
			"extreme volume, potential pump and dump risk")
	}

	if score > 100 {
		score = 100
	}
	analysis.Probability = score
	return analysis
}
