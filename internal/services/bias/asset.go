package bias

import (
	"fmt"
	"strings"

	"SignalForge/internal/domain/models"
)

const (
	TrendBand       = 0.01
	HighVolumeRatio = 1.2
	LowVolumeRatio  = 0.8

	RSIOversold      = 30.0
	RSIOverbought    = 70.0
	RSIBearLeanUpper = 45.0
	RSIBullLeanLower = 55.0

	// Funding thresholds are in percent per funding interval.
	FundingBullish = 0.01
	FundingBearish = 0.05
)

// TrendVote compares price with its 20-day average using a ±1% deadband.
func TrendVote(price, ma20 float64) models.Bias {
	if ma20 <= 0 {
		return models.Neutral
	}
	switch {
	case price > ma20*(1+TrendBand):
		return models.Bullish
	case price < ma20*(1-TrendBand):
		return models.Bearish
	default:
		return models.Neutral
	}
}

// VolumeVote reinforces the trend on high volume and neutralizes it on low volume.
func VolumeVote(trend models.Bias, ratio float64) (models.Bias, models.VolumeState) {
	switch {
	case ratio > HighVolumeRatio:
		return trend, models.VolumeConfirms
	case ratio < LowVolumeRatio:
		return models.Neutral, models.VolumeDiverges
	default:
		return models.Neutral, models.VolumeNeutral
	}
}

// RSIVote buckets an RSI reading.
func RSIVote(rsi float64) models.Bias {
	switch {
	case rsi < RSIOversold:
		return models.Bullish
	case rsi > RSIOverbought:
		return models.Bearish
	case rsi <= RSIBearLeanUpper:
		return models.Bearish
	case rsi >= RSIBullLeanLower:
		return models.Bullish
	default:
		return models.Neutral
	}
}

// FundingVote buckets a perpetual funding rate given in percent.
func FundingVote(rate float64) models.Bias {
	switch {
	case rate < FundingBullish:
		return models.Bullish
	case rate > FundingBearish:
		return models.Bearish
	default:
		return models.Neutral
	}
}

// StrengthVote picks the category-specific indicator. A missing reading votes Neutral.
func StrengthVote(category models.Category, a models.AssetData) (models.Bias, string) {
	if category == models.CategoryCrypto {
		if a.FundingRate == nil {
			return models.Neutral, "funding n/a"
		}
		return FundingVote(*a.FundingRate), fmt.Sprintf("funding %.3f%%", *a.FundingRate)
	}
	if a.RSI == nil {
		return models.Neutral, "RSI n/a"
	}
	return RSIVote(*a.RSI), fmt.Sprintf("RSI %.1f", *a.RSI)
}

// Combine returns the direction backed by at least two votes, and how many
// votes back it. Anything else is Neutral.
func Combine(votes ...models.Bias) (models.Bias, int) {
	bull, bear := 0, 0
	for _, v := range votes {
		switch v {
		case models.Bullish:
			bull++
		case models.Bearish:
			bear++
		}
	}
	switch {
	case bull >= 2:
		return models.Bullish, bull
	case bear >= 2:
		return models.Bearish, bear
	case bull > bear:
		return models.Neutral, bull
	default:
		return models.Neutral, bear
	}
}

// ClassifyAsset derives the per-asset bias from trend, volume and strength.
func ClassifyAsset(category models.Category, a models.AssetData) models.AssetSignal {
	trend := TrendVote(a.Price, a.MA20)
	volume, state := VolumeVote(trend, a.VolumeRatio())
	strength, strengthNote := StrengthVote(category, a)

	bias, agreeing := Combine(trend, volume, strength)

	confluence := fmt.Sprintf("%d/3 %s", agreeing, strings.ToLower(string(bias)))
	if bias == models.Neutral {
		confluence = "mixed"
	}

	reasoning := fmt.Sprintf("trend %s (price %s vs MA20 %s), volume %s (%.2fx, %s), strength %s (%s)",
		strings.ToLower(string(trend)), formatPrice(a.Price), formatPrice(a.MA20),
		strings.ToLower(string(volume)), a.VolumeRatio(), state,
		strings.ToLower(string(strength)), strengthNote)

	return models.AssetSignal{
		Ticker:      a.Ticker,
		Price:       a.Price,
		Bias:        bias,
		Trend:       trend,
		VolumeVote:  volume,
		Strength:    strength,
		VolumeState: state,
		Confluence:  confluence,
		Reasoning:   reasoning,
	}
}

func formatPrice(p float64) string {
	if p < 10 {
		return fmt.Sprintf("%.4f", p)
	}
	return fmt.Sprintf("%.2f", p)
}
