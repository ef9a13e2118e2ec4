package models

import "time"

// MacroData is the raw macro observation from the macro fetch skill.
type MacroData struct {
	DXY             float64   `json:"dxy"`
	DXYMA20         float64   `json:"dxy_ma20"`
	VIX             float64   `json:"vix"`
	US10Y           float64   `json:"us10y"`
	US2Y            float64   `json:"us2y"`
	FearGreed       *int      `json:"fear_greed,omitempty"`
	OilChangePct    float64   `json:"oil_change_pct"`
	BreakevenChange float64   `json:"breakeven_change"`
	AsOf            time.Time `json:"as_of"`
	Fallback        bool      `json:"fallback"`
	Stale           bool      `json:"stale"`
}

// Overall is the fused macro verdict.
type Overall string

const (
	RiskOn  Overall = "Risk-on"
	RiskOff Overall = "Risk-off"
	Mixed   Overall = "Mixed"
)

// MacroSignal is the derived macro classification.
type MacroSignal struct {
	DollarBias      string  `json:"dollar_bias"`      // strong, weak, neutral
	VolatilityLevel string  `json:"volatility_level"` // risk_on, risk_off, neutral
	YieldLevel      string  `json:"yield_level"`      // rising, falling, stable
	YieldCurve      string  `json:"yield_curve"`      // inverted, flat, normal
	FearGreed       string  `json:"fear_greed"`
	Contrarian      *Bias   `json:"contrarian,omitempty"`
	Shock           bool    `json:"shock"`
	Overall         Overall `json:"overall"`
	StressScore     float64 `json:"stress_score"`
	Dampening       float64 `json:"dampening"`
}

// EconomicEvent is a scheduled release from the calendar feed.
type EconomicEvent struct {
	Name string    `json:"name"`
	Time time.Time `json:"time"`
}

// CalendarSignal lists the events whose window covers the run time.
type CalendarSignal struct {
	ActiveEvents []string `json:"active_events,omitempty"`
	Dampening    float64  `json:"dampening"`
}

// NewsArticle is one geopolitical news item.
type NewsArticle struct {
	Title    string   `json:"title"`
	Tone     float64  `json:"tone"`
	Keywords []string `json:"keywords"`
}

// GeopoliticalSignal is the tension score and its trend vs the prior run.
type GeopoliticalSignal struct {
	Score     float64  `json:"score"`
	Previous  *float64 `json:"previous,omitempty"`
	Trend     string   `json:"trend"` // rising, stable, falling
	Articles  int      `json:"articles"`
	Dampening float64  `json:"dampening"`
}

// PredictionMarket is one market-implied probability.
type PredictionMarket struct {
	Slug        string  `json:"slug"`
	Tag         string  `json:"tag"` // crypto_bullish, fed_dovish, recession
	Probability float64 `json:"probability"`
}

// PredictionSignal aggregates prediction-market probabilities.
type PredictionSignal struct {
	CryptoBullish *float64 `json:"crypto_bullish,omitempty"`
	FedDovish     *float64 `json:"fed_dovish,omitempty"`
	RecessionOdds *float64 `json:"recession_odds,omitempty"`
	Uncertainty   float64  `json:"uncertainty"`
	Markets       int      `json:"markets"`
	Dampening     float64  `json:"dampening"`
}

// DampeningFactor is one active source of confidence reduction.
type DampeningFactor struct {
	Source     string  `json:"source"`
	Reason     string  `json:"reason"`
	Multiplier float64 `json:"multiplier"`
}

// Posture is the coarse risk stance derived from the final multiplier.
type Posture string

const (
	PostureAggressive Posture = "aggressive"
	PostureNormal     Posture = "normal"
	PostureCautious   Posture = "cautious"
	PostureDefensive  Posture = "defensive"
)

// RegimeSnapshot is the full output of the regime classifier.
type RegimeSnapshot struct {
	Macro         MacroSignal        `json:"macro"`
	Calendar      CalendarSignal     `json:"calendar"`
	Geopolitical  GeopoliticalSignal `json:"geopolitical"`
	Prediction    PredictionSignal   `json:"prediction"`
	ActiveFactors []DampeningFactor  `json:"active_factors,omitempty"`
	Multiplier    float64            `json:"multiplier"`
	Posture       Posture            `json:"posture"`
}
