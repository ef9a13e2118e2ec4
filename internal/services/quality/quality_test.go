package quality

import (
	"testing"

	"SignalForge/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestAssess_EmptyInput(t *testing.T) {
	flags := Assess(Input{})
	assert.True(t, flags.IsEmpty())
	assert.Equal(t, models.QualityFlags{}, flags)
}

func TestAssess_CleanRun(t *testing.T) {
	flags := Assess(Input{
		Category: models.CategoryStocks,
		Expected: []string{"SPY", "QQQ"},
		Assets: []models.AssetData{
			{Ticker: "SPY", Price: 510, MA20: 500, RSI: f(55)},
			{Ticker: "QQQ", Price: 440, MA20: 430, RSI: f(60)},
		},
	})
	assert.True(t, flags.IsEmpty())
}

func TestAssess_AccumulatesEveryIssue(t *testing.T) {
	flags := Assess(Input{
		Category:      models.CategoryCrypto,
		Expected:      []string{"BTC", "SOL", "ETH", "ADA"},
		MacroFallback: true,
		MacroStale:    true,
		Assets: []models.AssetData{
			{Ticker: "BTC", Price: 90000, MA20: 50000, FundingRate: f(1.5), Stale: true},
			{Ticker: "ETH", Price: 3000, MA20: 3000, FundingRate: f(0.01)},
		},
	})

	assert.Equal(t, []string{"ADA", "SOL"}, flags.MissingTickers)
	assert.True(t, flags.MacroFallback)
	assert.True(t, flags.MacroStale)
	assert.Equal(t, []string{"BTC"}, flags.StaleAssets)
	require.Len(t, flags.Outliers, 1)
	assert.Equal(t, "BTC", flags.Outliers[0].Ticker)
	assert.Len(t, flags.Outliers[0].Reasons, 2)
	assert.False(t, flags.IsEmpty())
}

func TestOutlierReasons(t *testing.T) {
	assert.Len(t, OutlierReasons(models.CategoryForex, models.AssetData{Price: 1, MA20: 1, RSI: f(3)}), 1)
	assert.Len(t, OutlierReasons(models.CategoryForex, models.AssetData{Price: 1, MA20: 1, RSI: f(96)}), 1)
	assert.Empty(t, OutlierReasons(models.CategoryForex, models.AssetData{Price: 1, MA20: 1, RSI: f(5)}))
	// funding only matters for crypto
	assert.Empty(t, OutlierReasons(models.CategoryStocks, models.AssetData{Price: 1, MA20: 1, FundingRate: f(5)}))
	assert.Len(t, OutlierReasons(models.CategoryCrypto, models.AssetData{Price: 1, MA20: 1, FundingRate: f(-2)}), 1)
	assert.Len(t, OutlierReasons(models.CategoryStocks, models.AssetData{Price: 10, MA20: 30, RSI: f(99)}), 2)
}
