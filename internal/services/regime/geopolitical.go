package regime

import (
	"math"
	"strings"

	"SignalForge/internal/domain/models"

	"gonum.org/v1/gonum/stat"
)

const (
	GeoVolumeSaturation  = 50.0
	GeoKeywordSaturation = 10.0
	GeoTrendBand         = 5.0
	GeoHigh              = 75.0
	GeoElevated          = 50.0
	GeoHighDamp          = 0.6
	GeoElevatedDamp      = 0.8

	TrendRising  = "rising"
	TrendFalling = "falling"
	TrendStable  = "stable"
)

// ScoreGeopolitical builds the 0-100 tension score from news volume (40),
// negative tone (40) and keyword diversity (20), and compares it with the
// previous run's score.
func ScoreGeopolitical(articles []models.NewsArticle, previous *float64) models.GeopoliticalSignal {
	n := float64(len(articles))
	volume := math.Min(n/GeoVolumeSaturation, 1) * 40

	var tone float64
	if len(articles) > 0 {
		tones := make([]float64, len(articles))
		for i, a := range articles {
			tones[i] = a.Tone
		}
		avg := stat.Mean(tones, nil)
		tone = math.Max(0, math.Min(1, -avg/10)) * 40
	}

	distinct := make(map[string]struct{})
	for _, a := range articles {
		for _, k := range a.Keywords {
			k = strings.ToLower(strings.TrimSpace(k))
			if k != "" {
				distinct[k] = struct{}{}
			}
		}
	}
	keywords := math.Min(float64(len(distinct))/GeoKeywordSaturation, 1) * 20

	score := math.Round((volume+tone+keywords)*10) / 10

	sig := models.GeopoliticalSignal{
		Score:     score,
		Previous:  previous,
		Trend:     TrendStable,
		Articles:  len(articles),
		Dampening: 1,
	}
	if previous != nil {
		switch d := score - *previous; {
		case d > GeoTrendBand:
			sig.Trend = TrendRising
		case d < -GeoTrendBand:
			sig.Trend = TrendFalling
		}
	}
	switch {
	case score >= GeoHigh:
		sig.Dampening = GeoHighDamp
	case score >= GeoElevated:
		sig.Dampening = GeoElevatedDamp
	}
	return sig
}
