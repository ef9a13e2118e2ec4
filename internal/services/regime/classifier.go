package regime

import (
	"context"
	"fmt"
	"math"
	"time"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/domain/repository"
	applogger "SignalForge/pkg/logger"
)

const (
	PostureAggressiveMin = 0.95
	PostureAggressiveMax = 4.0 // stress
	PostureNormalMin     = 0.8
	PostureCautiousMin   = 0.6

	geoScoreKey = "regime:geopolitical:score"
	geoScoreTTL = 7 * 24 * time.Hour
)

// Inputs is everything the classifier fuses for one tick.
type Inputs struct {
	Macro   models.MacroData
	Events  []models.EconomicEvent
	News    []models.NewsArticle
	Markets []models.PredictionMarket
	At      time.Time
}

// Fuse combines the independent layers. The final multiplier is the minimum
// across active factors, 1.0 when none is active.
func Fuse(
	macro models.MacroSignal,
	cal models.CalendarSignal, calFactors []models.DampeningFactor,
	geo models.GeopoliticalSignal,
	pred models.PredictionSignal, predFactors []models.DampeningFactor,
) models.RegimeSnapshot {
	var factors []models.DampeningFactor
	if macro.Dampening > 0 && macro.Dampening < 1 {
		factors = append(factors, models.DampeningFactor{
			Source:     "macro",
			Reason:     fmt.Sprintf("stress %.1f", macro.StressScore),
			Multiplier: macro.Dampening,
		})
	}
	factors = append(factors, calFactors...)
	if geo.Dampening > 0 && geo.Dampening < 1 {
		factors = append(factors, models.DampeningFactor{
			Source:     "geopolitical",
			Reason:     fmt.Sprintf("tension %.1f (%s)", geo.Score, geo.Trend),
			Multiplier: geo.Dampening,
		})
	}
	factors = append(factors, predFactors...)

	mult := 1.0
	for _, f := range factors {
		mult = math.Min(mult, f.Multiplier)
	}

	return models.RegimeSnapshot{
		Macro:         macro,
		Calendar:      cal,
		Geopolitical:  geo,
		Prediction:    pred,
		ActiveFactors: factors,
		Multiplier:    mult,
		Posture:       PostureFor(mult, macro.StressScore),
	}
}

func PostureFor(multiplier, stress float64) models.Posture {
	switch {
	case multiplier >= PostureAggressiveMin && stress <= PostureAggressiveMax:
		return models.PostureAggressive
	case multiplier >= PostureNormalMin:
		return models.PostureNormal
	case multiplier >= PostureCautiousMin:
		return models.PostureCautious
	default:
		return models.PostureDefensive
	}
}

// Classifier runs every layer and keeps the geopolitical score across runs.
type Classifier struct {
	cache repository.KVCache
	rules []EventRule
	log   *applogger.Logger
}

type Option func(*Classifier)

func WithCache(c repository.KVCache) Option {
	return func(cl *Classifier) { cl.cache = c }
}

func WithEventRules(r []EventRule) Option {
	return func(cl *Classifier) { cl.rules = r }
}

func WithLogger(l *applogger.Logger) Option {
	return func(cl *Classifier) { cl.log = l }
}

func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{rules: DefaultEventRules, log: applogger.Nop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Classifier) EventRules() []EventRule { return c.rules }

// Classify never fails; cache errors only lose the geopolitical trend.
func (c *Classifier) Classify(ctx context.Context, in Inputs) models.RegimeSnapshot {
	macro := ClassifyMacro(in.Macro)
	cal, calFactors := ClassifyCalendar(c.rules, in.Events, in.At)
	geo := ScoreGeopolitical(in.News, c.previousGeoScore(ctx))
	pred, predFactors := ClassifyPrediction(in.Markets)

	c.storeGeoScore(ctx, geo.Score)

	snap := Fuse(macro, cal, calFactors, geo, pred, predFactors)
	c.log.Info("regime classified",
		applogger.String("overall", string(macro.Overall)),
		applogger.Float64("stress", macro.StressScore),
		applogger.Float64("multiplier", snap.Multiplier),
		applogger.String("posture", string(snap.Posture)),
		applogger.Int("factors", len(snap.ActiveFactors)),
	)
	return snap
}

func (c *Classifier) previousGeoScore(ctx context.Context) *float64 {
	if c.cache == nil {
		return nil
	}
	var prev float64
	if err := c.cache.Get(ctx, geoScoreKey, &prev); err != nil {
		c.log.Debug("no previous geopolitical score", applogger.Error(err))
		return nil
	}
	return &prev
}

func (c *Classifier) storeGeoScore(ctx context.Context, score float64) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, geoScoreKey, score, geoScoreTTL); err != nil {
		c.log.Warn("store geopolitical score failed", applogger.Error(err))
	}
}
