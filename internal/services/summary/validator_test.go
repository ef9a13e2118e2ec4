package summary

import (
	"strings"
	"testing"

	"SignalForge/internal/domain/models"

	"github.com/stretchr/testify/assert"
)

const good = "Crypto leans bullish as BTC and ETH hold above their averages on firm volume while the macro backdrop stays mixed."

func TestValidateSummary_AcceptsPlainProse(t *testing.T) {
	res := ValidateSummary(good)
	assert.True(t, res.Valid, res.Errors)
	assert.Empty(t, res.Warnings)
}

func TestValidateSummary_Blocklist(t *testing.T) {
	for _, term := range []string{"Fibonacci", "DISCLAIMER", "dyor", "MACD", "Golden Cross", "not financial advice", "NFA"} {
		res := ValidateSummary(good + " Also " + term + " applies here.")
		assert.False(t, res.Valid, term)
	}
	// word boundaries keep ordinary words clean
	assert.True(t, ValidateSummary(good+" Infant markets rally.").Valid)
}

func TestValidateSummary_LengthSeverity(t *testing.T) {
	res := ValidateSummary("Too short text.")
	assert.False(t, res.Valid)
	assert.Len(t, res.Errors, 2)

	long := strings.Repeat("Markets drift sideways today. ", 14)
	res = ValidateSummary(long)
	assert.True(t, res.Valid)
	assert.Len(t, res.Warnings, 1)

	res = ValidateSummary(strings.Repeat("upward ", 70))
	assert.True(t, res.Valid)
	assert.Len(t, res.Warnings, 2)
}

func TestValidateSummary_Formatting(t *testing.T) {
	cases := map[string]string{
		"emoji":  good + " 🚀",
		"bold":   "**Bullish** " + good,
		"italic": "*Bullish* " + good,
		"code":   "`BTC` " + good,
		"header": "## Outlook\n" + good,
		"bullet": "- " + good,
		"link":   good + " [chart](https://x.y)",
	}
	for name, text := range cases {
		assert.False(t, ValidateSummary(text).Valid, name)
	}
}

func TestValidateSummary_SensationalIsWarning(t *testing.T) {
	res := ValidateSummary(good + " BTC is mooning, buy now.")
	assert.True(t, res.Valid)
	assert.Len(t, res.Warnings, 2)
}

func TestSanitizeSummary(t *testing.T) {
	in := "## Outlook\n- **BTC** is _firm_ 🚀🚀 and `ETH`   follows [see](http://x)\n\n* SOL lags"
	out := SanitizeSummary(in)
	assert.Equal(t, "Outlook BTC is firm and ETH follows see SOL lags", out)

	nested := "a"
	for i := 0; i < 10; i++ {
		nested = "[" + nested + "](x)"
	}
	assert.Equal(t, "a bitcoin holds", SanitizeSummary(nested+" bitcoin holds"))

	inputs := []string{in, good, "- - nested", "**a** __b__ _c_ d", "🔥", "", "  spaced\t\tout  ", nested + " tail"}
	for _, s := range inputs {
		once := SanitizeSummary(s)
		assert.Equal(t, once, SanitizeSummary(once), s)
	}
}

func TestMeetsMinimumQuality_MatchesValidate(t *testing.T) {
	inputs := []string{good, "", "short", good + " dyor", "**x** " + good, strings.Repeat("word ", 80)}
	for _, s := range inputs {
		assert.Equal(t, ValidateSummary(s).Valid, MeetsMinimumQuality(s), s)
	}
}

func TestFallback_AlwaysValid(t *testing.T) {
	for _, c := range models.AllCategories() {
		text := Fallback(c, models.CategoryBias{}, "")
		assert.True(t, ValidateSummary(text).Valid, text)
	}
	text := Fallback(models.CategoryCrypto, models.CategoryBias{
		Bias: models.Bullish, BullishCount: 2, BearishCount: 1,
		Assets: make([]models.AssetSignal, 3),
	}, models.RiskOn)
	assert.Equal(t, "Crypto bias is Bullish with 2 of 3 assets bullish and 1 bearish. Macro backdrop is Risk-on.", text)
}
