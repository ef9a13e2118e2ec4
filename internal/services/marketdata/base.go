package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"SignalForge/pkg/config"
	xhttp "SignalForge/pkg/http"
	applogger "SignalForge/pkg/logger"
)

var (
	ErrMissingCredential = errors.New("market data api key not configured")
	ErrNotInitialized    = errors.New("market data client not initialized")
)

// HTTPServiceBase is the shared gateway client for every fetcher in this
// package. It owns the base URL, the API key header and retry policy.
type HTTPServiceBase struct {
	baseURL string
	apiKey  string
	retries int
	client  *xhttp.Client
	log     *applogger.Logger
	now     func() time.Time
}

type Option func(*HTTPServiceBase)

func WithClient(c *xhttp.Client) Option {
	return func(b *HTTPServiceBase) { b.client = c }
}

func WithLogger(l *applogger.Logger) Option {
	return func(b *HTTPServiceBase) { b.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(b *HTTPServiceBase) { b.now = now }
}

func WithRetries(n int) Option {
	return func(b *HTTPServiceBase) { b.retries = n }
}

// NewHTTPServiceBase builds the gateway client from the market_data config section.
func NewHTTPServiceBase(cfg *config.Config, opts ...Option) *HTTPServiceBase {
	timeout := cfg.MarketData.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b := &HTTPServiceBase{
		baseURL: strings.TrimRight(cfg.MarketData.BaseURL, "/"),
		apiKey:  cfg.MarketData.APIKey,
		retries: cfg.MarketData.Retries,
		log:     applogger.Nop(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	if b.client == nil {
		b.client = xhttp.NewClient(xhttp.WithTimeout(timeout))
	}
	return b
}

// GetJSON issues GET baseURL+path and decodes the JSON body into dest.
func (b *HTTPServiceBase) GetJSON(ctx context.Context, path string, query url.Values, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return ErrNotInitialized
	}
	if b.apiKey == "" {
		return ErrMissingCredential
	}
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         b.baseURL + path,
		Headers:     map[string]string{"X-API-Key": b.apiKey, "Accept": "application/json"},
		QueryParams: query,
	}, dest)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	return nil
}

// GetJSONWithRetry retries transient failures with a linear backoff.
// Client errors (4xx other than 429) are returned immediately.
func (b *HTTPServiceBase) GetJSONWithRetry(ctx context.Context, path string, query url.Values, dest interface{}) error {
	attempts := b.retries + 1
	var err error
	for i := 1; i <= attempts; i++ {
		err = b.GetJSON(ctx, path, query, dest)
		if err == nil || !retryable(err) || i == attempts {
			return err
		}
		b.log.Debug("market data request failed, retrying",
			applogger.String("path", path), applogger.Int("attempt", i), applogger.Error(err))
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func retryable(err error) bool {
	if errors.Is(err, ErrMissingCredential) || errors.Is(err, ErrNotInitialized) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}
