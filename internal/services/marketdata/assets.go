package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/domain/service"
	applogger "SignalForge/pkg/logger"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

const (
	MAPeriod        = 20
	RSIPeriod       = 14
	AssetStaleAfter = 96 * time.Hour
)

var ErrNoAssets = errors.New("no asset data returned")

type bar struct {
	Time   time.Time `json:"time"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

type historyResponse struct {
	Symbol      string   `json:"symbol"`
	Bars        []bar    `json:"bars"`
	FundingRate *float64 `json:"funding_rate,omitempty"`
}

// AssetService derives AssetData from daily history served by the gateway.
type AssetService struct {
	base        *HTTPServiceBase
	historyDays int
}

var _ service.AssetFetcher = (*AssetService)(nil)

func NewAssetService(base *HTTPServiceBase, historyDays int) *AssetService {
	if historyDays < MAPeriod+1 {
		historyDays = MAPeriod * 2
	}
	return &AssetService{base: base, historyDays: historyDays}
}

// FetchAssets queries every ticker concurrently. Tickers that fail are
// logged and left out so the quality step can flag them; the call only
// fails when nothing came back.
func (s *AssetService) FetchAssets(ctx context.Context, category models.Category, tickers []string) ([]models.AssetData, error) {
	if s.base.apiKey == "" {
		return nil, ErrMissingCredential
	}

	type result struct {
		data models.AssetData
		err  error
	}
	results := make([]result, len(tickers))

	var wg sync.WaitGroup
	for i, t := range tickers {
		wg.Add(1)
		go func(i int, ticker string) {
			defer wg.Done()
			d, err := s.fetchOne(ctx, category, ticker)
			results[i] = result{data: d, err: err}
		}(i, t)
	}
	wg.Wait()

	var out []models.AssetData
	var errs []error
	for i, r := range results {
		if r.err != nil {
			s.base.log.Warn("asset fetch failed",
				applogger.String("category", string(category)),
				applogger.String("ticker", tickers[i]),
				applogger.Error(r.err))
			errs = append(errs, r.err)
			continue
		}
		out = append(out, r.data)
	}
	if len(out) == 0 {
		if len(errs) > 0 {
			return nil, fmt.Errorf("fetch %s assets: %w: %w", category, ErrNoAssets, errors.Join(errs...))
		}
		return nil, fmt.Errorf("fetch %s assets: %w", category, ErrNoAssets)
	}
	return out, nil
}

func (s *AssetService) fetchOne(ctx context.Context, category models.Category, ticker string) (models.AssetData, error) {
	q := url.Values{}
	q.Set("symbol", ticker)
	q.Set("category", string(category))
	q.Set("days", strconv.Itoa(s.historyDays))

	var resp historyResponse
	if err := s.base.GetJSONWithRetry(ctx, "/v1/history", q, &resp); err != nil {
		return models.AssetData{}, err
	}
	if len(resp.Bars) == 0 {
		return models.AssetData{}, fmt.Errorf("%s: empty history", ticker)
	}
	d := Derive(ticker, category, resp.Bars, s.base.now())
	if category == models.CategoryCrypto {
		d.FundingRate = resp.FundingRate
	}
	return d, nil
}

// Derive computes the indicator snapshot from daily bars. Bars may arrive
// in any order.
func Derive(ticker string, category models.Category, bars []bar, now time.Time) models.AssetData {
	sorted := append([]bar(nil), bars...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	closes := make([]float64, len(sorted))
	volumes := make([]float64, len(sorted))
	for i, b := range sorted {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}
	last := sorted[len(sorted)-1]

	d := models.AssetData{
		Ticker: ticker,
		Price:  last.Close,
		Volume: last.Volume,
		AsOf:   last.Time,
		Stale:  now.Sub(last.Time) > AssetStaleAfter,
		MA20:   movingAverage(closes),
	}
	if len(volumes) > 1 {
		prior := volumes[:len(volumes)-1]
		if len(prior) > MAPeriod {
			prior = prior[len(prior)-MAPeriod:]
		}
		d.AvgVolume = stat.Mean(prior, nil)
	}
	if category != models.CategoryCrypto && len(closes) > RSIPeriod {
		rsi := talib.Rsi(closes, RSIPeriod)
		v := rsi[len(rsi)-1]
		d.RSI = &v
	}
	return d
}

// movingAverage is the MA20 of closes, or the mean of what is available
// when the history is shorter than the period.
func movingAverage(closes []float64) float64 {
	if len(closes) < MAPeriod {
		return stat.Mean(closes, nil)
	}
	sma := talib.Sma(closes, MAPeriod)
	return sma[len(sma)-1]
}
