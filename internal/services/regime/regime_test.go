package regime

import (
	"context"
	"testing"
	"time"

	"SignalForge/internal/domain/models"
	"SignalForge/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ip(v int) *int { return &v }

func TestClassifyMacro_RiskOff(t *testing.T) {
	sig := ClassifyMacro(models.MacroData{
		DXY: 106, DXYMA20: 104, VIX: 30, US10Y: 4.8, US2Y: 5.0, FearGreed: ip(20), OilChangePct: -6,
	})
	assert.Equal(t, DollarStrong, sig.DollarBias)
	assert.Equal(t, VolRiskOff, sig.VolatilityLevel)
	assert.Equal(t, YieldLevelRising, sig.YieldLevel)
	assert.Equal(t, CurveInverted, sig.YieldCurve)
	assert.Equal(t, FGExtremeFear, sig.FearGreed)
	require.NotNil(t, sig.Contrarian)
	assert.Equal(t, models.Bullish, *sig.Contrarian)
	assert.True(t, sig.Shock)
	assert.Equal(t, models.RiskOff, sig.Overall)
	assert.Equal(t, 10.0, sig.StressScore) // 5+2+1.5+1+1.5 clamped
	assert.Equal(t, StressHighDamp, sig.Dampening)
}

func TestClassifyMacro_RiskOn(t *testing.T) {
	sig := ClassifyMacro(models.MacroData{
		DXY: 100, DXYMA20: 103, VIX: 12, US10Y: 3.2, US2Y: 2.5, FearGreed: ip(80),
	})
	assert.Equal(t, models.RiskOn, sig.Overall)
	assert.Equal(t, FGExtremeGreed, sig.FearGreed)
	require.NotNil(t, sig.Contrarian)
	assert.Equal(t, models.Bearish, *sig.Contrarian)
	assert.False(t, sig.Shock)
	assert.Equal(t, 2.0, sig.StressScore) // 5-2-0.5-0.5
	assert.Equal(t, 1.0, sig.Dampening)
}

func TestOverall_CurveIsHalfWeight(t *testing.T) {
	assert.Equal(t, models.Mixed, Overall(DollarWeak, VolRiskOff, YieldLevelStable, CurveFlatten))
	assert.Equal(t, models.RiskOn, Overall(DollarWeak, VolRiskOff, YieldLevelStable, CurveNormal))
	assert.Equal(t, models.RiskOff, Overall(DollarNeutral, VolNeutral, YieldLevelStable, CurveInverted))
}

func TestFearGreed_Buckets(t *testing.T) {
	cases := map[int]string{0: FGExtremeFear, 25: FGExtremeFear, 26: FGFear, 45: FGFear, 50: FGNeutral, 55: FGGreed, 74: FGGreed, 75: FGExtremeGreed}
	for v, want := range cases {
		got, c := FearGreed(ip(v))
		assert.Equal(t, want, got, "%d", v)
		if want != FGExtremeFear && want != FGExtremeGreed {
			assert.Nil(t, c, "%d", v)
		}
	}
	got, c := FearGreed(nil)
	assert.Equal(t, FGUnknown, got)
	assert.Nil(t, c)
}

func TestShock(t *testing.T) {
	assert.True(t, Shock(5, 0))
	assert.True(t, Shock(-5.5, 0))
	assert.True(t, Shock(0, 0.15))
	assert.False(t, Shock(4.9, 0.1))
}

func TestClassifyCalendar_Windows(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	events := []models.EconomicEvent{
		{Name: "FOMC Rate Decision", Time: now.Add(20 * time.Hour)},
		{Name: "CPI m/m", Time: now.Add(-5 * time.Hour)},
		{Name: "Non-Farm Payrolls", Time: now.Add(3 * time.Hour)},
		{Name: "Bank Holiday", Time: now},
	}
	sig, factors := ClassifyCalendar(DefaultEventRules, events, now)
	assert.Equal(t, []string{"FOMC", "NFP"}, sig.ActiveEvents)
	assert.Equal(t, 0.5, sig.Dampening)
	assert.Len(t, factors, 2)

	sig, factors = ClassifyCalendar(DefaultEventRules, nil, now)
	assert.Empty(t, sig.ActiveEvents)
	assert.Equal(t, 1.0, sig.Dampening)
	assert.Empty(t, factors)
}

func TestScoreGeopolitical(t *testing.T) {
	articles := make([]models.NewsArticle, 50)
	for i := range articles {
		articles[i] = models.NewsArticle{Tone: -10, Keywords: []string{"sanctions", "missile", "Sanctions"}}
	}
	prev := 40.0
	sig := ScoreGeopolitical(articles, &prev)
	// 40 volume + 40 tone + 2/10*20 keywords
	assert.Equal(t, 84.0, sig.Score)
	assert.Equal(t, TrendRising, sig.Trend)
	assert.Equal(t, GeoHighDamp, sig.Dampening)

	sig = ScoreGeopolitical(nil, nil)
	assert.Equal(t, 0.0, sig.Score)
	assert.Equal(t, TrendStable, sig.Trend)
	assert.Equal(t, 1.0, sig.Dampening)
}

func TestClassifyPrediction(t *testing.T) {
	sig, factors := ClassifyPrediction([]models.PredictionMarket{
		{Tag: TagRecession, Probability: 0.6},
		{Tag: TagRecession, Probability: 0.5},
		{Tag: TagFedDovish, Probability: 0.5},
	})
	require.NotNil(t, sig.RecessionOdds)
	assert.InDelta(t, 0.55, *sig.RecessionOdds, 1e-9)
	assert.Nil(t, sig.CryptoBullish)
	// (0.8 + 1 + 1) / 3
	assert.InDelta(t, 0.933, sig.Uncertainty, 1e-9)
	assert.Equal(t, RecessionDamp, sig.Dampening)
	assert.Len(t, factors, 2)

	sig, factors = ClassifyPrediction(nil)
	assert.Equal(t, 1.0, sig.Dampening)
	assert.Empty(t, factors)
}

func TestFuse_MinimumAndPosture(t *testing.T) {
	macro := models.MacroSignal{StressScore: 3, Dampening: 1}
	snap := Fuse(macro, models.CalendarSignal{Dampening: 1}, nil, models.GeopoliticalSignal{Dampening: 1}, models.PredictionSignal{Dampening: 1}, nil)
	assert.Equal(t, 1.0, snap.Multiplier)
	assert.Equal(t, models.PostureAggressive, snap.Posture)
	assert.Empty(t, snap.ActiveFactors)

	macro = models.MacroSignal{StressScore: 6.5, Dampening: 0.8}
	cal := []models.DampeningFactor{{Source: "calendar", Multiplier: 0.5}}
	snap = Fuse(macro, models.CalendarSignal{Dampening: 0.5}, cal, models.GeopoliticalSignal{Dampening: 0.8}, models.PredictionSignal{Dampening: 1}, nil)
	assert.Equal(t, 0.5, snap.Multiplier)
	assert.Equal(t, models.PostureDefensive, snap.Posture)
	assert.Len(t, snap.ActiveFactors, 3)
}

func TestPostureFor(t *testing.T) {
	assert.Equal(t, models.PostureAggressive, PostureFor(1, 4))
	assert.Equal(t, models.PostureNormal, PostureFor(1, 5))
	assert.Equal(t, models.PostureNormal, PostureFor(0.8, 2))
	assert.Equal(t, models.PostureCautious, PostureFor(0.6, 2))
	assert.Equal(t, models.PostureDefensive, PostureFor(0.59, 2))
}

func TestClassifier_KeepsGeopoliticalScoreAcrossRuns(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	c := NewClassifier(WithCache(mc))
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	first := c.Classify(ctx, Inputs{At: at})
	assert.Nil(t, first.Geopolitical.Previous)

	news := make([]models.NewsArticle, 25)
	second := c.Classify(ctx, Inputs{At: at, News: news})
	require.NotNil(t, second.Geopolitical.Previous)
	assert.Equal(t, 0.0, *second.Geopolitical.Previous)
	assert.Equal(t, 20.0, second.Geopolitical.Score)
	assert.Equal(t, TrendRising, second.Geopolitical.Trend)
}
