package service

import (
	"context"
	"time"

	"SignalForge/internal/domain/models"
)

// AssetFetcher returns the latest observations for the given tickers.
type AssetFetcher interface {
	FetchAssets(ctx context.Context, category models.Category, tickers []string) ([]models.AssetData, error)
}

// MacroFetcher returns the macro snapshot. Implementations degrade to a
// neutral default with Fallback set instead of failing.
type MacroFetcher interface {
	FetchMacro(ctx context.Context) (models.MacroData, error)
}

// CalendarFetcher lists scheduled economic releases in [from, to].
type CalendarFetcher interface {
	FetchCalendar(ctx context.Context, from, to time.Time) ([]models.EconomicEvent, error)
}

// NewsFetcher lists recent geopolitical news.
type NewsFetcher interface {
	FetchGeopoliticalNews(ctx context.Context) ([]models.NewsArticle, error)
}

// PredictionFetcher lists tagged prediction-market probabilities.
type PredictionFetcher interface {
	FetchPredictionMarkets(ctx context.Context) ([]models.PredictionMarket, error)
}

// PriceSnapshotter returns last traded prices for symbols.
type PriceSnapshotter interface {
	Snapshot(ctx context.Context, symbols []string) (map[string]float64, error)
}

// Notifier sends the human-facing message for a stored signal.
type Notifier interface {
	Notify(ctx context.Context, s *models.Signal, deltaSummary string) error
}

// WebhookDispatcher fans a stored signal out to subscribers.
type WebhookDispatcher interface {
	Dispatch(ctx context.Context, s *models.Signal) []models.DeliveryResult
}
