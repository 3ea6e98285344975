package alerts

import (
	"fmt"
	"math"
	"time"

	"capwatch/internal/models"
)

// candidate pairs a would-be alert with its cooldown key. The key
// carries a discriminator so that, say, a reversal from +30% to -30%
// is not suppressed by the earlier up-move's cooldown.
type candidate struct {
	alert models.Alert
	key   string
}

// builtinCandidates evaluates the four built-in rules in fixed order:
// price, volume, combo, small cap. Order matters for severity ties.
func builtinCandidates(snap models.Snapshot, config Config, now time.Time) []candidate {
	var out []candidate
	change := math.Abs(snap.ChangePercent)

	if change >= config.PriceThresholdPercent {
		direction := "up"
		if snap.ChangePercent < 0 {
			direction = "down"
		}
		out = append(out, candidate{
			key: fmt.Sprintf("%s_price_%s", snap.Symbol, direction),
			alert: models.Alert{
				Symbol:        snap.Symbol,
				Type:          models.AlertPriceSpike,
				Message:       fmt.Sprintf("%s %s %.1f%% to $%.2f", snap.Symbol, direction, change, snap.Price),
				Timestamp:     now,
				Severity:      priceSeverity(change),
				TriggerValue:  snap.ChangePercent,
				Price:         snap.Price,
				ChangePercent: snap.ChangePercent,
			},
		})
	}

	if snap.VolumeRatio >= config.VolumeRatioThreshold {
		out = append(out, candidate{
			key: fmt.Sprintf("%s_volume_%.1f", snap.Symbol, snap.VolumeRatio),
			alert: models.Alert{
				Symbol:       snap.Symbol,
				Type:         models.AlertVolumeSpike,
				Message:      fmt.Sprintf("%s volume %.1fx average (%.0f shares)", snap.Symbol, snap.VolumeRatio, snap.Volume),
				Timestamp:    now,
				Severity:     volumeSeverity(snap.VolumeRatio),
				TriggerValue: snap.VolumeRatio,
				Price:        snap.Price,
				Volume:       snap.Volume,
				VolumeRatio:  snap.VolumeRatio,
			},
		})
	}

	if change >= config.ComboChangePercent && snap.VolumeRatio >= config.ComboVolumeRatio {
		out = append(out, candidate{
			key: fmt.Sprintf("%s_combo", snap.Symbol),
			alert: models.Alert{
				Symbol:        snap.Symbol,
				Type:          models.AlertCombo,
				Message:       fmt.Sprintf("%s moving %.1f%% on %.1fx volume", snap.Symbol, snap.ChangePercent, snap.VolumeRatio),
				Timestamp:     now,
				Severity:      8,
				TriggerValue:  snap.ChangePercent,
				Price:         snap.Price,
				Volume:        snap.Volume,
				ChangePercent: snap.ChangePercent,
				VolumeRatio:   snap.VolumeRatio,
			},
		})
	}

	if snap.MarketCap > 0 && snap.MarketCap < config.SmallCapCeiling && change >= config.SmallCapChangePercent {
		out = append(out, candidate{
			key: fmt.Sprintf("%s_smallcap", snap.Symbol),
			alert: models.Alert{
				Symbol:        snap.Symbol,
				Type:          models.AlertSmallCap,
				Message:       fmt.Sprintf("small cap %s moving %.1f%% (mcap $%.0fM)", snap.Symbol, snap.ChangePercent, snap.MarketCap/1e6),
				Timestamp:     now,
				Severity:      7,
				TriggerValue:  snap.ChangePercent,
				Price:         snap.Price,
				ChangePercent: snap.ChangePercent,
				MarketCap:     snap.MarketCap,
			},
		})
	}

	return out
}

// priceSeverity maps absolute change percent to a 5-10 severity. The
// tiers are monotonic in the magnitude of the move.
func priceSeverity(change float64) int {
	switch {
	case change >= 100:
		return 10
	case change >= 75:
		return 9
	case change >= 50:
		return 8
	case change >= 35:
		return 7
	case change >= 25:
		return 6
	default:
		return 5
	}
}

func volumeSeverity(ratio float64) int {
	switch {
	case ratio >= 50:
		return 10
	case ratio >= 30:
		return 9
	case ratio >= 20:
		return 8
	case ratio >= 15:
		return 7
	case ratio >= 10:
		return 6
	default:
		return 5
	}
}
