package marketdata

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/domain/service"
)

// FeedService serves the regime inputs that need no derivation: the
// economic calendar, geopolitical news and prediction markets.
type FeedService struct {
	base *HTTPServiceBase
}

var (
	_ service.CalendarFetcher   = (*FeedService)(nil)
	_ service.NewsFetcher       = (*FeedService)(nil)
	_ service.PredictionFetcher = (*FeedService)(nil)
)

func NewFeedService(base *HTTPServiceBase) *FeedService {
	return &FeedService{base: base}
}

func (s *FeedService) FetchCalendar(ctx context.Context, from, to time.Time) ([]models.EconomicEvent, error) {
	q := url.Values{}
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("to", to.UTC().Format(time.RFC3339))

	var resp struct {
		Events []models.EconomicEvent `json:"events"`
	}
	if err := s.base.GetJSONWithRetry(ctx, "/v1/calendar", q, &resp); err != nil {
		return nil, fmt.Errorf("fetch calendar: %w", err)
	}
	return resp.Events, nil
}

func (s *FeedService) FetchGeopoliticalNews(ctx context.Context) ([]models.NewsArticle, error) {
	var resp struct {
		Articles []models.NewsArticle `json:"articles"`
	}
	if err := s.base.GetJSONWithRetry(ctx, "/v1/news/geopolitical", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch news: %w", err)
	}
	return resp.Articles, nil
}

func (s *FeedService) FetchPredictionMarkets(ctx context.Context) ([]models.PredictionMarket, error) {
	var resp struct {
		Markets []models.PredictionMarket `json:"markets"`
	}
	if err := s.base.GetJSONWithRetry(ctx, "/v1/prediction-markets", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch prediction markets: %w", err)
	}
	return resp.Markets, nil
}
