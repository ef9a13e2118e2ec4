package regime

import (
	"math"

	"SignalForge/internal/domain/models"

	"gonum.org/v1/gonum/stat"
)

const (
	TagCryptoBullish = "crypto_bullish"
	TagFedDovish     = "fed_dovish"
	TagRecession     = "recession"

	RecessionThreshold   = 0.5
	RecessionDamp        = 0.7
	UncertaintyThreshold = 0.8
	UncertaintyDamp      = 0.85
)

// ClassifyPrediction averages market probabilities per tag. Uncertainty is
// the mean of 1-|2p-1| over all markets, 1 when every market sits at 50%.
func ClassifyPrediction(markets []models.PredictionMarket) (models.PredictionSignal, []models.DampeningFactor) {
	sig := models.PredictionSignal{Dampening: 1}
	if len(markets) == 0 {
		return sig, nil
	}

	byTag := make(map[string][]float64)
	unc := make([]float64, 0, len(markets))
	for _, m := range markets {
		p := math.Max(0, math.Min(1, m.Probability))
		byTag[m.Tag] = append(byTag[m.Tag], p)
		unc = append(unc, 1-math.Abs(2*p-1))
	}
	mean := func(tag string) *float64 {
		xs := byTag[tag]
		if len(xs) == 0 {
			return nil
		}
		v := stat.Mean(xs, nil)
		return &v
	}

	sig.CryptoBullish = mean(TagCryptoBullish)
	sig.FedDovish = mean(TagFedDovish)
	sig.RecessionOdds = mean(TagRecession)
	sig.Uncertainty = math.Round(stat.Mean(unc, nil)*1000) / 1000
	sig.Markets = len(markets)

	var factors []models.DampeningFactor
	if sig.RecessionOdds != nil && *sig.RecessionOdds >= RecessionThreshold {
		factors = append(factors, models.DampeningFactor{Source: "prediction", Reason: "recession odds elevated", Multiplier: RecessionDamp})
		sig.Dampening = math.Min(sig.Dampening, RecessionDamp)
	}
	if sig.Uncertainty >= UncertaintyThreshold {
		factors = append(factors, models.DampeningFactor{Source: "prediction", Reason: "prediction markets undecided", Multiplier: UncertaintyDamp})
		sig.Dampening = math.Min(sig.Dampening, UncertaintyDamp)
	}
	return sig, factors
}
