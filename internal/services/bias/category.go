package bias

import (
	"fmt"
	"math"
	"strings"

	"SignalForge/internal/domain/models"

	"github.com/shopspring/decimal"
)

const DefaultRisk = "Standard market conditions"

// Compute classifies every asset and aggregates them into the category verdict.
// The regime supplies the contrarian override and the confidence multiplier.
func Compute(category models.Category, assets []models.AssetData, regime models.RegimeSnapshot) models.CategoryBias {
	signals := make([]models.AssetSignal, 0, len(assets))
	for _, a := range assets {
		signals = append(signals, ClassifyAsset(category, a))
	}

	out := models.CategoryBias{
		Category: category,
		Assets:   signals,
		Levels:   Levels(assets),
	}
	for _, s := range signals {
		switch s.Bias {
		case models.Bullish:
			out.BullishCount++
		case models.Bearish:
			out.BearishCount++
		default:
			out.NeutralCount++
		}
	}

	out.MajorityBias = Majority(out.BullishCount, out.BearishCount, len(signals))
	out.Bias, out.ContrarianApplied = ApplyContrarian(out.MajorityBias, regime.Macro.Contrarian)
	out.Confidence = Confidence(signals, out.Bias, regime.Multiplier)
	out.Risks = Risks(category, assets, signals, regime)
	return out
}

// Majority returns the direction held by more than half of n assets.
func Majority(bull, bear, n int) models.Bias {
	switch {
	case n == 0:
		return models.Neutral
	case bull*2 > n:
		return models.Bullish
	case bear*2 > n:
		return models.Bearish
	default:
		return models.Neutral
	}
}

// ApplyContrarian folds an extreme sentiment reading into the majority vote.
// A neutral majority adopts the contrarian direction; an opposing majority
// cancels to Neutral; an agreeing majority is left alone.
func ApplyContrarian(majority models.Bias, contrarian *models.Bias) (models.Bias, bool) {
	if contrarian == nil || *contrarian == models.Neutral {
		return majority, false
	}
	switch majority {
	case models.Neutral:
		return *contrarian, true
	case contrarian.Opposite():
		return models.Neutral, true
	default:
		return majority, false
	}
}

// Confidence is the share of assets agreeing with the final bias scaled by
// the regime multiplier, as an integer percentage.
func Confidence(signals []models.AssetSignal, final models.Bias, multiplier float64) int {
	if len(signals) == 0 {
		return 0
	}
	if multiplier <= 0 || multiplier > 1 {
		multiplier = 1
	}
	agree := 0
	for _, s := range signals {
		if s.Bias == final {
			agree++
		}
	}
	share := float64(agree) / float64(len(signals)) * 100
	return int(math.Round(share * multiplier))
}

// Levels maps ticker to its price, rounded to 4 decimals under 10 and 2 otherwise.
func Levels(assets []models.AssetData) map[string]float64 {
	levels := make(map[string]float64, len(assets))
	for _, a := range assets {
		places := int32(2)
		if a.Price < 10 {
			places = 4
		}
		levels[a.Ticker] = decimal.NewFromFloat(a.Price).Round(places).InexactFloat64()
	}
	return levels
}

// Risks lists heuristic warnings. The result is never empty.
func Risks(category models.Category, assets []models.AssetData, signals []models.AssetSignal, regime models.RegimeSnapshot) []string {
	var risks []string
	n := len(signals)

	bull, bear, low := 0, 0, 0
	for _, s := range signals {
		switch s.Bias {
		case models.Bullish:
			bull++
		case models.Bearish:
			bear++
		}
		if s.VolumeState == models.VolumeDiverges {
			low++
		}
	}
	if n > 0 && bull == n {
		risks = append(risks, "All assets bullish, elevated reversal risk")
	}
	if n > 0 && bear == n {
		risks = append(risks, "All assets bearish, elevated reversal risk")
	}
	if n > 0 && low*2 > n {
		risks = append(risks, "Most assets trading on low volume, weak conviction")
	}

	for _, a := range assets {
		switch category {
		case models.CategoryCrypto:
			if a.FundingRate != nil && *a.FundingRate > FundingBearish {
				risks = append(risks, fmt.Sprintf("%s funding %.3f%%, crowded longs", a.Ticker, *a.FundingRate))
			}
		default:
			if a.RSI == nil {
				continue
			}
			if *a.RSI > RSIOverbought {
				risks = append(risks, fmt.Sprintf("%s overbought (RSI %.1f)", a.Ticker, *a.RSI))
			} else if *a.RSI < RSIOversold {
				risks = append(risks, fmt.Sprintf("%s oversold (RSI %.1f)", a.Ticker, *a.RSI))
			}
		}
	}

	if len(regime.Calendar.ActiveEvents) > 0 {
		risks = append(risks, "Event risk: "+strings.Join(regime.Calendar.ActiveEvents, ", "))
	}
	if regime.Posture == models.PostureDefensive {
		risks = append(risks, "Macro headwinds, defensive regime")
	}

	if len(risks) == 0 {
		risks = append(risks, DefaultRisk)
	}
	return risks
}
