package delta

import (
	"fmt"
	"strings"

	"SignalForge/internal/domain/models"

	"github.com/shopspring/decimal"
)

// NoSignificantChanges is rendered when there is nothing worth reporting.
const NoSignificantChanges = "No significant changes"

var hundred = decimal.NewFromInt(100)

// PercentChange returns (current-previous)/previous*100 rounded to 2 decimals.
// A non-positive previous price yields 0.
func PercentChange(previous, current float64) float64 {
	if previous <= 0 {
		return 0
	}
	p := decimal.NewFromFloat(previous)
	c := decimal.NewFromFloat(current)
	return c.Sub(p).Div(p).Mul(hundred).Round(2).InexactFloat64()
}

// ComputeDelta diffs the current category verdict against the previous
// snapshot. With no snapshot every delta is zero and FirstSignal is set.
func ComputeDelta(current models.CategoryBias, previous *models.SignalSnapshot) models.SignalDelta {
	d := models.SignalDelta{
		CurrentBias: current.Bias,
		Assets:      make([]models.AssetDelta, 0, len(current.Assets)),
	}

	if previous == nil {
		d.FirstSignal = true
		for _, a := range current.Assets {
			d.Assets = append(d.Assets, models.AssetDelta{Ticker: a.Ticker, CurrentBias: a.Bias})
		}
		return d
	}

	prevBias := previous.Bias
	d.PreviousBias = &prevBias
	d.BiasChanged = previous.Bias != current.Bias

	var gainer, loser *models.AssetDelta
	for _, a := range current.Assets {
		ad := models.AssetDelta{Ticker: a.Ticker, CurrentBias: a.Bias}
		if prior, ok := previous.Assets[a.Ticker]; ok {
			pb := prior.Bias
			ad.PreviousPrice = prior.Price
			ad.PreviousBias = &pb
			ad.PriceDelta = PercentChange(prior.Price, a.Price)
			ad.BiasChanged = prior.Bias != a.Bias
			if ad.BiasChanged {
				d.ChangedAssets++
			}
		}
		d.Assets = append(d.Assets, ad)
	}

	for i := range d.Assets {
		ad := &d.Assets[i]
		if ad.PriceDelta > 0 && (gainer == nil || ad.PriceDelta > gainer.PriceDelta) {
			gainer = ad
		}
		if ad.PriceDelta < 0 && (loser == nil || ad.PriceDelta < loser.PriceDelta) {
			loser = ad
		}
	}
	if gainer != nil {
		g := *gainer
		d.BiggestGainer = &g
	}
	if loser != nil {
		l := *loser
		d.BiggestLoser = &l
	}
	return d
}

// FormatDeltaSummary renders bias change and movers as short prose.
func FormatDeltaSummary(d models.SignalDelta) string {
	if d.FirstSignal || d.PreviousBias == nil {
		return NoSignificantChanges
	}

	var parts []string
	if d.BiasChanged {
		parts = append(parts, fmt.Sprintf("Bias flipped %s to %s.", *d.PreviousBias, d.CurrentBias))
	}
	if d.ChangedAssets > 0 {
		noun := "assets"
		if d.ChangedAssets == 1 {
			noun = "asset"
		}
		parts = append(parts, fmt.Sprintf("%d %s changed bias.", d.ChangedAssets, noun))
	}

	var movers []string
	if d.BiggestGainer != nil {
		movers = append(movers, fmt.Sprintf("top gainer %s %s", d.BiggestGainer.Ticker, signedPct(d.BiggestGainer.PriceDelta)))
	}
	if d.BiggestLoser != nil {
		movers = append(movers, fmt.Sprintf("top loser %s %s", d.BiggestLoser.Ticker, signedPct(d.BiggestLoser.PriceDelta)))
	}
	if len(movers) > 0 {
		s := strings.Join(movers, ", ")
		parts = append(parts, strings.ToUpper(s[:1])+s[1:]+".")
	}

	if len(parts) == 0 {
		return NoSignificantChanges
	}
	return strings.Join(parts, " ")
}

func signedPct(v float64) string {
	return fmt.Sprintf("%+.1f%%", v)
}
