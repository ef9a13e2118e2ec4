package quality

import (
	"fmt"
	"math"
	"sort"

	"SignalForge/internal/domain/models"
)

const (
	MaxMADeviation = 0.5
	RSIMin         = 5.0
	RSIMax         = 95.0
	MaxFundingPct  = 1.0
)

// Input is what the assess step sees: the expected universe, what was
// fetched and the macro fetch flags.
type Input struct {
	Category      models.Category
	Expected      []string
	Assets        []models.AssetData
	MacroFallback bool
	MacroStale    bool
}

// Assess flags data-quality issues. It never fails and an empty input
// yields empty flags.
func Assess(in Input) models.QualityFlags {
	var flags models.QualityFlags

	fetched := make(map[string]bool, len(in.Assets))
	for _, a := range in.Assets {
		fetched[a.Ticker] = true
	}
	for _, t := range in.Expected {
		if !fetched[t] {
			flags.MissingTickers = append(flags.MissingTickers, t)
		}
	}
	sort.Strings(flags.MissingTickers)

	flags.MacroFallback = in.MacroFallback
	flags.MacroStale = in.MacroStale

	for _, a := range in.Assets {
		if a.Stale {
			flags.StaleAssets = append(flags.StaleAssets, a.Ticker)
		}
		if reasons := OutlierReasons(in.Category, a); len(reasons) > 0 {
			flags.Outliers = append(flags.Outliers, models.Outlier{Ticker: a.Ticker, Reasons: reasons})
		}
	}
	return flags
}

// OutlierReasons lists every implausibility found on one asset.
func OutlierReasons(category models.Category, a models.AssetData) []string {
	var reasons []string
	if a.MA20 > 0 {
		dev := math.Abs(a.Price-a.MA20) / a.MA20
		if dev > MaxMADeviation {
			reasons = append(reasons, fmt.Sprintf("price deviates %.0f%% from MA20", dev*100))
		}
	}
	if a.RSI != nil && (*a.RSI < RSIMin || *a.RSI > RSIMax) {
		reasons = append(reasons, fmt.Sprintf("RSI %.1f outside [%.0f, %.0f]", *a.RSI, RSIMin, RSIMax))
	}
	if category == models.CategoryCrypto && a.FundingRate != nil && math.Abs(*a.FundingRate) > MaxFundingPct {
		reasons = append(reasons, fmt.Sprintf("funding rate %.3f%% beyond ±%.0f%%", *a.FundingRate, MaxFundingPct))
	}
	return reasons
}
