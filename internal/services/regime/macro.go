package regime

import (
	"math"

	"SignalForge/internal/domain/models"
)

const (
	DollarBand = 0.01

	VIXRiskOn  = 15.0
	VIXRiskOff = 25.0

	// Yield level is bucketed on the absolute 10Y rate, not its change.
	YieldRising  = 4.5
	YieldFalling = 3.5

	CurveFlat = 0.5

	FearExtreme  = 25
	FearLean     = 45
	GreedLean    = 55
	GreedExtreme = 75

	OilShockPct        = 5.0
	BreakevenShockPts  = 0.15
	StressBaseline     = 5.0
	StressHigh         = 8.0
	StressElevated     = 6.5
	StressHighDamp     = 0.6
	StressElevatedDamp = 0.8
)

const (
	DollarStrong  = "strong"
	DollarWeak    = "weak"
	DollarNeutral = "neutral"

	VolRiskOn  = "risk_on"
	VolRiskOff = "risk_off"
	VolNeutral = "neutral"

	YieldLevelRising  = "rising"
	YieldLevelFalling = "falling"
	YieldLevelStable  = "stable"

	CurveInverted = "inverted"
	CurveFlatten  = "flat"
	CurveNormal   = "normal"

	FGExtremeFear  = "extreme_fear"
	FGFear         = "fear"
	FGNeutral      = "neutral"
	FGGreed        = "greed"
	FGExtremeGreed = "extreme_greed"
	FGUnknown      = "unknown"
)

func DollarBias(dxy, ma20 float64) string {
	if ma20 <= 0 {
		return DollarNeutral
	}
	switch {
	case dxy > ma20*(1+DollarBand):
		return DollarStrong
	case dxy < ma20*(1-DollarBand):
		return DollarWeak
	default:
		return DollarNeutral
	}
}

func VolatilityLevel(vix float64) string {
	switch {
	case vix <= 0:
		return VolNeutral
	case vix < VIXRiskOn:
		return VolRiskOn
	case vix > VIXRiskOff:
		return VolRiskOff
	default:
		return VolNeutral
	}
}

func YieldLevel(us10y float64) string {
	switch {
	case us10y > YieldRising:
		return YieldLevelRising
	case us10y > 0 && us10y < YieldFalling:
		return YieldLevelFalling
	default:
		return YieldLevelStable
	}
}

func YieldCurve(us10y, us2y float64) string {
	spread := us10y - us2y
	switch {
	case spread < 0:
		return CurveInverted
	case spread < CurveFlat:
		return CurveFlatten
	default:
		return CurveNormal
	}
}

// FearGreed buckets the index and returns the contrarian direction at the extremes.
func FearGreed(v *int) (string, *models.Bias) {
	if v == nil {
		return FGUnknown, nil
	}
	switch x := *v; {
	case x <= FearExtreme:
		b := models.Bullish
		return FGExtremeFear, &b
	case x <= FearLean:
		return FGFear, nil
	case x < GreedLean:
		return FGNeutral, nil
	case x < GreedExtreme:
		return FGGreed, nil
	default:
		b := models.Bearish
		return FGExtremeGreed, &b
	}
}

func Shock(oilChangePct, breakevenChange float64) bool {
	return math.Abs(oilChangePct) >= OilShockPct || breakevenChange >= BreakevenShockPts
}

// Overall fuses dollar, volatility, yields and curve into a weighted vote.
// The curve counts half.
func Overall(dollar, vol, yield, curve string) models.Overall {
	var on, off float64
	switch dollar {
	case DollarWeak:
		on++
	case DollarStrong:
		off++
	}
	switch vol {
	case VolRiskOn:
		on++
	case VolRiskOff:
		off++
	}
	switch yield {
	case YieldLevelFalling:
		on++
	case YieldLevelRising:
		off++
	}
	switch curve {
	case CurveNormal:
		on += 0.5
	case CurveInverted:
		off += 0.5
	}
	switch {
	case on > off:
		return models.RiskOn
	case off > on:
		return models.RiskOff
	default:
		return models.Mixed
	}
}

// StressScore is additive from a baseline of 5 and clamped to [0, 10].
func StressScore(overall models.Overall, curve, fearGreed string, shock bool) float64 {
	s := StressBaseline
	switch overall {
	case models.RiskOff:
		s += 2
	case models.RiskOn:
		s -= 2
	}
	switch curve {
	case CurveInverted:
		s += 1.5
	case CurveNormal:
		s -= 0.5
	}
	switch fearGreed {
	case FGExtremeFear:
		s++
	case FGExtremeGreed:
		s -= 0.5
	}
	if shock {
		s += 1.5
	}
	return math.Max(0, math.Min(10, s))
}

func StressDampening(stress float64) float64 {
	switch {
	case stress >= StressHigh:
		return StressHighDamp
	case stress >= StressElevated:
		return StressElevatedDamp
	default:
		return 1
	}
}

// ClassifyMacro derives the macro signal from raw macro data.
func ClassifyMacro(m models.MacroData) models.MacroSignal {
	dollar := DollarBias(m.DXY, m.DXYMA20)
	vol := VolatilityLevel(m.VIX)
	yield := YieldLevel(m.US10Y)
	curve := YieldCurve(m.US10Y, m.US2Y)
	fg, contrarian := FearGreed(m.FearGreed)
	shock := Shock(m.OilChangePct, m.BreakevenChange)
	overall := Overall(dollar, vol, yield, curve)
	stress := StressScore(overall, curve, fg, shock)

	return models.MacroSignal{
		DollarBias:      dollar,
		VolatilityLevel: vol,
		YieldLevel:      yield,
		YieldCurve:      curve,
		FearGreed:       fg,
		Contrarian:      contrarian,
		Shock:           shock,
		Overall:         overall,
		StressScore:     stress,
		Dampening:       StressDampening(stress),
	}
}
